package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhishek3950/AIvsHuman/internal/config"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := config.Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 240*time.Second, cfg.Market.Window.Duration)
	assert.Equal(t, int64(10), cfg.Market.FeeRate)
	assert.Equal(t, time.Minute, cfg.Scheduler.Interval.Duration)
	assert.False(t, cfg.OnChain())
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "local"
log_level = "debug"

[market]
window = "5m"
min_bet = "1"
fee_rate = 5

[scheduler]
interval = "30s"
`), 0o600))

	t.Setenv("OVERUNDER_MARKET_FEE_RATE", "7")
	t.Setenv("OVERUNDER_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5*time.Minute, cfg.Market.Window.Duration)
	assert.Equal(t, "1", cfg.Market.MinBet)
	assert.Equal(t, "100", cfg.Market.MaxBet)
	assert.Equal(t, int64(7), cfg.Market.FeeRate)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.Interval.Duration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestValidateChainMode(t *testing.T) {
	cfg := config.Defaults()
	cfg.Mode = config.ModeChain

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "private_key or encrypted_key_path")
	assert.Contains(t, err.Error(), "rpc_url")
	assert.Contains(t, err.Error(), "betting_contract")

	cfg.Wallet.PrivateKey = "0xabc"
	cfg.Chain.RPCURL = "http://localhost:8545"
	cfg.Chain.BettingContract = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	cfg.Chain.TokenContract = "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"
	assert.NoError(t, cfg.Validate())
}

func TestValidateMarketRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"min above max", func(c *config.Config) { c.Market.MinBet = "500" }, "min_bet must not exceed max_bet"},
		{"bad amount", func(c *config.Config) { c.Market.MaxBet = "lots" }, "max_bet"},
		{"fee too high", func(c *config.Config) { c.Market.FeeRate = 100 }, "fee_rate"},
		{"zero window", func(c *config.Config) { c.Market.Window.Duration = 0 }, "window"},
		{"unknown oracle", func(c *config.Config) { c.Oracle.Source = "pyth" }, "unknown source"},
		{"unknown mode", func(c *config.Config) { c.Mode = "full" }, "unknown mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Wallet.PrivateKey = "secret"
	cfg.Supabase.DSN = "postgres://u:p@h/db"
	cfg.Chain.RPCURL = "https://base-sepolia.g.alchemy.com/v2/KEY123"
	cfg.Redis.Addr = "rediss://default:pw@cache.example:6380"

	out := config.RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Wallet.PrivateKey)
	assert.Equal(t, "https://base-sepolia.g.alchemy.com", out.Chain.RPCURL)
	assert.NotContains(t, out.Redis.Addr, "pw")
	assert.Contains(t, out.Redis.Addr, "cache.example:6380")
	assert.Equal(t, "***", out.Supabase.DSN)
	assert.Equal(t, "secret", cfg.Wallet.PrivateKey)

	out.Server.CORSOrigins[0] = "changed"
	assert.NotEqual(t, "changed", cfg.Server.CORSOrigins[0])
}
