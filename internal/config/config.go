package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const (
	// DatadirKey is the local data directory to store the internal state of
	// the daemon
	DatadirKey = "DATADIR"
	// LogLevelKey are the different logging levels. For reference on the values
	// https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// WalletAddrKey is the address <host:port> of the external signer service
	WalletAddrKey = "WALLET_ADDR"
	// LiFiURLKey is the base url of the LI.FI bridge aggregator API
	LiFiURLKey = "LIFI_URL"
	// JupiterURLKey is the base url of the Jupiter DEX aggregator API
	JupiterURLKey = "JUPITER_URL"
	// OKXURLKey is the base url of the OKX DEX cross-chain API
	OKXURLKey = "OKX_URL"
	// QuoteDebounceKey is the duration the trade parameters must stay
	// unchanged before a quote fetch starts
	QuoteDebounceKey = "QUOTE_DEBOUNCE"
	// QuoteTTLKey is the lifetime of a cached quote
	QuoteTTLKey = "QUOTE_TTL"
	// QuoteMaxRetriesKey bounds the automatic retries on rate-limit errors
	QuoteMaxRetriesKey = "QUOTE_MAX_RETRIES"
	// QuoteBackoffBaseKey is the base of the exponential retry backoff
	QuoteBackoffBaseKey = "QUOTE_BACKOFF_BASE"
	// QuoteBackoffCapKey caps the exponential retry backoff
	QuoteBackoffCapKey = "QUOTE_BACKOFF_CAP"
	// RateLimitRequestsKey is the outbound-request budget per rate window
	RateLimitRequestsKey = "RATE_LIMIT_REQUESTS"
	// RateLimitWindowKey is the sliding window of the outbound rate budget
	RateLimitWindowKey = "RATE_LIMIT_WINDOW"
	// PollIntervalKey is the interval between two status checks of the same
	// transaction
	PollIntervalKey = "POLL_INTERVAL"
	// PollMaxDurationKey bounds the lifetime of every poll task
	PollMaxDurationKey = "POLL_MAX_DURATION"
	// TxHistoryLimitKey caps the number of transaction records kept per owner
	TxHistoryLimitKey = "TX_HISTORY_LIMIT"
	// StatsIntervalKey defines the interval in seconds for printing basic
	// daemon statistics, 0 disables them
	StatsIntervalKey = "STATS_INTERVAL"

	// DbLocation is the name of the db directory inside the datadir
	DbLocation = "db"
)

var vip *viper.Viper

// InitConfig loads the environment into the package and validates it. It
// must be called before any getter.
func InitConfig() error {
	vip = viper.New()
	vip.SetEnvPrefix("BRIDGED")
	vip.AutomaticEnv()

	home, _ := os.UserHomeDir()

	vip.SetDefault(DatadirKey, filepath.Join(home, ".bridged"))
	vip.SetDefault(LogLevelKey, 4)
	vip.SetDefault(LiFiURLKey, "https://li.quest")
	vip.SetDefault(JupiterURLKey, "https://quote-api.jup.ag")
	vip.SetDefault(OKXURLKey, "https://www.okx.com")
	vip.SetDefault(QuoteDebounceKey, 600*time.Millisecond)
	vip.SetDefault(QuoteTTLKey, 10*time.Second)
	vip.SetDefault(QuoteMaxRetriesKey, 3)
	vip.SetDefault(QuoteBackoffBaseKey, time.Second)
	vip.SetDefault(QuoteBackoffCapKey, 30*time.Second)
	vip.SetDefault(RateLimitRequestsKey, 10)
	vip.SetDefault(RateLimitWindowKey, time.Second)
	vip.SetDefault(PollIntervalKey, 15*time.Second)
	vip.SetDefault(PollMaxDurationKey, 30*time.Minute)
	vip.SetDefault(TxHistoryLimitKey, 100)
	vip.SetDefault(StatsIntervalKey, 600)

	if err := validate(); err != nil {
		return fmt.Errorf("error while validating config: %s", err)
	}

	if err := initDatadir(); err != nil {
		return fmt.Errorf("error while creating datadir: %s", err)
	}

	return nil
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

func GetDuration(key string) time.Duration {
	return vip.GetDuration(key)
}

func GetBool(key string) bool {
	return vip.GetBool(key)
}

func GetDatadir() string {
	return GetString(DatadirKey)
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("missing datadir")
	}

	if len(GetString(WalletAddrKey)) <= 0 {
		return fmt.Errorf("missing wallet address")
	}

	if GetDuration(QuoteDebounceKey) <= 0 {
		return fmt.Errorf("%s must be a positive duration", QuoteDebounceKey)
	}
	if GetDuration(PollIntervalKey) <= 0 {
		return fmt.Errorf("%s must be a positive duration", PollIntervalKey)
	}
	if GetDuration(PollMaxDurationKey) <= GetDuration(PollIntervalKey) {
		return fmt.Errorf(
			"%s must be greater than %s", PollMaxDurationKey, PollIntervalKey,
		)
	}
	if GetInt(RateLimitRequestsKey) <= 0 {
		return fmt.Errorf("%s must be a positive number", RateLimitRequestsKey)
	}
	if GetInt(TxHistoryLimitKey) <= 0 {
		return fmt.Errorf("%s must be a positive number", TxHistoryLimitKey)
	}

	return nil
}

func initDatadir() error {
	return makeDirectoryIfNotExists(filepath.Join(GetDatadir(), DbLocation))
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}
