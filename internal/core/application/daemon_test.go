package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xlamaexchange/bridge-daemon/internal/core/application"
	"github.com/xlamaexchange/bridge-daemon/internal/core/ports"
	"github.com/xlamaexchange/bridge-daemon/internal/infrastructure/storage/db/inmemory"
	"github.com/xlamaexchange/bridge-daemon/pkg/poller"
)

func newTestDaemon(t *testing.T, provider ports.Provider) *application.Daemon {
	quoteSvc := newTestQuoteService(provider)

	statusSvc := poller.NewService(poller.Opts{
		Providers:         map[string]ports.Provider{provider.Name(): provider},
		Interval:          20 * time.Millisecond,
		MaxDuration:       time.Minute,
		RequestsPerSecond: 1000,
		ErrorHandler:      func(error) {},
	})
	bridgeSvc, err := application.NewBridgeService(application.BridgeServiceOpts{
		Repository: inmemory.NewTransactionRepositoryImpl(100),
		Wallet:     &stubWallet{sufficient: true},
		Poller:     statusSvc,
	})
	require.NoError(t, err)

	daemon, err := application.NewDaemon(quoteSvc, bridgeSvc)
	require.NoError(t, err)
	return daemon
}

func TestNewDaemon(t *testing.T) {
	t.Parallel()

	_, err := application.NewDaemon(nil, nil)
	require.Error(t, err)

	_, err = application.NewDaemon(newTestQuoteService(), nil)
	require.Error(t, err)
}

func TestDaemonLifecycle(t *testing.T) {
	t.Parallel()

	provider := quotingProvider("lifi", "998")
	daemon := newTestDaemon(t, provider)

	daemon.Start()
	defer daemon.Stop()

	// quoting and bridging both run behind the single facade
	session := daemon.QuoteService().NewSession(nil)
	defer session.Close()
	session.Update(newQuoteRequest())
	waitForStatus(t, session, application.QuoteStatusSettled)

	quote := session.State().Quote
	id, err := daemon.BridgeService().SubmitBridge(
		context.Background(), senderAddress, quote,
	)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		txs, err := daemon.BridgeService().GetTransactions(
			context.Background(), senderAddress,
		)
		return err == nil && len(txs) == 1 && txs[0].Status.String() == "pending-source"
	}, 3*time.Second, 10*time.Millisecond)
}
