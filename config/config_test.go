package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Default()
	cfg.SiteIntercomHost = "127.0.0.1"
	cfg.DatabaseDSN = "postgres://localhost/walletbroker"
	return cfg
}

func TestValidateAcceptsDefaultConfig(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	cfg := validConfig()
	cfg.IntercomMode = 7
	require.Error(t, cfg.Validate())
}

func TestValidateRequiresSiteNameUnderMutualTLS(t *testing.T) {
	cfg := validConfig()
	cfg.IntercomMode = ModeMutualTLS
	cfg.IntercomSiteName = ""
	require.Error(t, cfg.Validate())
}

func TestValidateRequiresDatabaseDSN(t *testing.T) {
	cfg := validConfig()
	cfg.DatabaseDSN = ""
	require.Error(t, cfg.Validate())
}

func TestPrecisionForFallsBackToDefault(t *testing.T) {
	cfg := validConfig()
	require.Equal(t, DefaultDecimalPrecision, cfg.PrecisionFor("BTC"))
}

func TestPrecisionForUsesPerCoinOverride(t *testing.T) {
	cfg := validConfig()
	cfg.DecimalPrecisionOverrides = "ETH:18, XMR:12"
	require.NoError(t, cfg.parsePrecisionOverrides())

	require.Equal(t, 18, cfg.PrecisionFor("ETH"))
	require.Equal(t, 12, cfg.PrecisionFor("XMR"))
	require.Equal(t, DefaultDecimalPrecision, cfg.PrecisionFor("BTC"))
}

func TestParsePrecisionOverridesRejectsMalformedEntry(t *testing.T) {
	cfg := validConfig()
	cfg.DecimalPrecisionOverrides = "ETH"
	require.Error(t, cfg.parsePrecisionOverrides())
}
