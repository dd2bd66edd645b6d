package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/xlamaexchange/bridge-daemon/internal/config"
	"github.com/xlamaexchange/bridge-daemon/internal/core/application"
	"github.com/xlamaexchange/bridge-daemon/internal/core/ports"
	"github.com/xlamaexchange/bridge-daemon/internal/infrastructure/provider/jupiter"
	"github.com/xlamaexchange/bridge-daemon/internal/infrastructure/provider/lifi"
	"github.com/xlamaexchange/bridge-daemon/internal/infrastructure/provider/okx"
	dbbadger "github.com/xlamaexchange/bridge-daemon/internal/infrastructure/storage/db/badger"
	"github.com/xlamaexchange/bridge-daemon/internal/infrastructure/wallet"
	"github.com/xlamaexchange/bridge-daemon/pkg/coordinator"
	"github.com/xlamaexchange/bridge-daemon/pkg/poller"
	"github.com/xlamaexchange/bridge-daemon/pkg/stats"
)

func main() {
	if err := config.InitConfig(); err != nil {
		log.WithError(err).Fatal("invalid config")
	}
	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))

	dbDir := filepath.Join(config.GetDatadir(), config.DbLocation)
	dbManager, err := dbbadger.NewDbManager(
		dbDir, nil, config.GetInt(config.TxHistoryLimitKey),
	)
	if err != nil {
		log.WithError(err).Fatal("error while opening database")
	}
	defer dbManager.Close()

	providers := newProviders()

	walletSvc, err := wallet.NewService(config.GetString(config.WalletAddrKey))
	if err != nil {
		log.WithError(err).Fatal("error while connecting to wallet")
	}

	providersByName := map[string]ports.Provider{}
	for _, p := range providers {
		providersByName[p.Name()] = p
	}
	statusPoller := poller.NewService(poller.Opts{
		Providers:   providersByName,
		Interval:    config.GetDuration(config.PollIntervalKey),
		MaxDuration: config.GetDuration(config.PollMaxDurationKey),
		ErrorHandler: func(err error) {
			log.WithError(err).Warn("status poll error")
		},
	})

	coord := coordinator.NewCoordinator(coordinator.Opts{
		MaxRequests: config.GetInt(config.RateLimitRequestsKey),
		Window:      config.GetDuration(config.RateLimitWindowKey),
	})
	prometheus.MustRegister(coord.Collector())

	quoteSvc := application.NewQuoteService(application.QuoteServiceOpts{
		Providers:    providers,
		Coordinator:  coord,
		DebounceTime: config.GetDuration(config.QuoteDebounceKey),
		QuoteTTL:     config.GetDuration(config.QuoteTTLKey),
		MaxRetries:   config.GetInt(config.QuoteMaxRetriesKey),
		BackoffBase:  config.GetDuration(config.QuoteBackoffBaseKey),
		BackoffCap:   config.GetDuration(config.QuoteBackoffCapKey),
	})

	bridgeSvc, err := application.NewBridgeService(application.BridgeServiceOpts{
		Repository: dbManager.TransactionRepository(),
		Wallet:     walletSvc,
		Poller:     statusPoller,
	})
	if err != nil {
		log.WithError(err).Fatal("error while creating bridge service")
	}

	daemon, err := application.NewDaemon(quoteSvc, bridgeSvc)
	if err != nil {
		log.WithError(err).Fatal("error while wiring services")
	}

	daemon.Start()
	defer daemon.Stop()

	statsCtx, stopStats := context.WithCancel(context.Background())
	defer stopStats()
	if interval := config.GetInt(config.StatsIntervalKey); interval > 0 {
		stats.EnableMemoryStatistics(
			statsCtx,
			time.Duration(interval)*time.Second,
			filepath.Join(config.GetDatadir(), "stats"),
		)
	}

	log.Info("daemon started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan

	log.Info("shutting down daemon")
}

func newProviders() []ports.Provider {
	lifiSvc, err := lifi.NewService(config.GetString(config.LiFiURLKey))
	if err != nil {
		log.WithError(err).Fatal("error while creating lifi client")
	}
	jupiterSvc, err := jupiter.NewService(config.GetString(config.JupiterURLKey))
	if err != nil {
		log.WithError(err).Fatal("error while creating jupiter client")
	}
	okxSvc, err := okx.NewService(config.GetString(config.OKXURLKey))
	if err != nil {
		log.WithError(err).Fatal("error while creating okx client")
	}
	return []ports.Provider{lifiSvc, jupiterSvc, okxSvc}
}
