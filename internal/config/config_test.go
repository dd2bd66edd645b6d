package config_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xlamaexchange/bridge-daemon/internal/config"
)

func TestInitConfig(t *testing.T) {
	datadir := t.TempDir()
	t.Setenv("BRIDGED_DATADIR", datadir)
	t.Setenv("BRIDGED_WALLET_ADDR", "localhost:18000")

	require.NoError(t, config.InitConfig())

	require.Equal(t, datadir, config.GetDatadir())
	require.Equal(t, "localhost:18000", config.GetString(config.WalletAddrKey))
	require.Equal(t, "https://li.quest", config.GetString(config.LiFiURLKey))
	require.Equal(
		t, 600*time.Millisecond, config.GetDuration(config.QuoteDebounceKey),
	)
	require.Equal(t, 100, config.GetInt(config.TxHistoryLimitKey))

	// the db directory is created inside the datadir
	require.DirExists(t, filepath.Join(datadir, config.DbLocation))
}

func TestInitConfigWithoutWalletAddr(t *testing.T) {
	t.Setenv("BRIDGED_DATADIR", t.TempDir())
	t.Setenv("BRIDGED_WALLET_ADDR", "")

	require.Error(t, config.InitConfig())
}

func TestInitConfigRejectsBadDurations(t *testing.T) {
	t.Setenv("BRIDGED_DATADIR", t.TempDir())
	t.Setenv("BRIDGED_WALLET_ADDR", "localhost:18000")
	t.Setenv("BRIDGED_POLL_INTERVAL", "1h")
	t.Setenv("BRIDGED_POLL_MAX_DURATION", "30m")

	require.Error(t, config.InitConfig())
}
