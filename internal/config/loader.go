package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies OVERUNDER_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after
// Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known OVERUNDER_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "OVERUNDER_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.PrivateKey, "AI_AGENT_PRIVATE_KEY") // compatibility alias
	setStr(&cfg.Wallet.EncryptedKeyPath, "OVERUNDER_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "OVERUNDER_WALLET_KEY_PASSWORD")
	setStr(&cfg.Wallet.Agent, "OVERUNDER_WALLET_AGENT")
	setStr(&cfg.Wallet.Pool, "OVERUNDER_WALLET_POOL")

	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "OVERUNDER_CHAIN_RPC_URL")
	setStr(&cfg.Chain.RPCURL, "RPC_URL") // compatibility alias
	setInt64(&cfg.Chain.ChainID, "OVERUNDER_CHAIN_CHAIN_ID")
	setStr(&cfg.Chain.BettingContract, "OVERUNDER_CHAIN_BETTING_CONTRACT")
	setStr(&cfg.Chain.BettingContract, "BETTING_CONTRACT_ADDRESS") // compatibility alias
	setStr(&cfg.Chain.TokenContract, "OVERUNDER_CHAIN_TOKEN_CONTRACT")
	setDuration(&cfg.Chain.ReceiptTimeout, "OVERUNDER_CHAIN_RECEIPT_TIMEOUT")

	// ── Market ──
	setDuration(&cfg.Market.Window, "OVERUNDER_MARKET_WINDOW")
	setStr(&cfg.Market.MinBet, "OVERUNDER_MARKET_MIN_BET")
	setStr(&cfg.Market.MaxBet, "OVERUNDER_MARKET_MAX_BET")
	setStr(&cfg.Market.MarketCap, "OVERUNDER_MARKET_CAP")
	setInt64(&cfg.Market.FeeRate, "OVERUNDER_MARKET_FEE_RATE")
	setInt64(&cfg.Market.MarkupBps, "OVERUNDER_MARKET_MARKUP_BPS")

	// ── Oracle ──
	setStr(&cfg.Oracle.Source, "OVERUNDER_ORACLE_SOURCE")
	setStr(&cfg.Oracle.CoinGeckoURL, "OVERUNDER_ORACLE_COINGECKO_URL")
	setStr(&cfg.Oracle.CoinGeckoAPIKey, "OVERUNDER_ORACLE_COINGECKO_API_KEY")
	setStr(&cfg.Oracle.ChainlinkFeed, "OVERUNDER_ORACLE_CHAINLINK_FEED")

	// ── Scheduler ──
	setBool(&cfg.Scheduler.Enabled, "OVERUNDER_SCHEDULER_ENABLED")
	setDuration(&cfg.Scheduler.Interval, "OVERUNDER_SCHEDULER_INTERVAL")
	setDuration(&cfg.Scheduler.TickTimeout, "OVERUNDER_SCHEDULER_TICK_TIMEOUT")

	// ── Faucet ──
	setBool(&cfg.Faucet.Enabled, "OVERUNDER_FAUCET_ENABLED")
	setStr(&cfg.Faucet.Amount, "OVERUNDER_FAUCET_AMOUNT")
	setDuration(&cfg.Faucet.Cooldown, "OVERUNDER_FAUCET_COOLDOWN")

	// ── Supabase ──
	setStr(&cfg.Supabase.DSN, "OVERUNDER_SUPABASE_DSN")
	setStr(&cfg.Supabase.DSN, "OVERUNDER_DATABASE_URL") // compatibility alias
	setStr(&cfg.Supabase.Host, "OVERUNDER_SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "OVERUNDER_SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "OVERUNDER_SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "OVERUNDER_SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "OVERUNDER_SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "OVERUNDER_SUPABASE_SSL_MODE")
	setInt(&cfg.Supabase.PoolMaxConns, "OVERUNDER_SUPABASE_POOL_MAX_CONNS")
	setInt(&cfg.Supabase.PoolMinConns, "OVERUNDER_SUPABASE_POOL_MIN_CONNS")
	setBool(&cfg.Supabase.RunMigrations, "OVERUNDER_SUPABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "OVERUNDER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "OVERUNDER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "OVERUNDER_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "OVERUNDER_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "OVERUNDER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "OVERUNDER_S3_REGION")
	setStr(&cfg.S3.Bucket, "OVERUNDER_S3_BUCKET")
	setStr(&cfg.S3.Prefix, "OVERUNDER_S3_PREFIX")
	setStr(&cfg.S3.AccessKey, "OVERUNDER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "OVERUNDER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "OVERUNDER_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "OVERUNDER_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setInt(&cfg.Server.Port, "OVERUNDER_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "OVERUNDER_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "OVERUNDER_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "OVERUNDER_SERVER_RATE_LIMIT")
	setBool(&cfg.Server.TrustProxy, "OVERUNDER_SERVER_TRUST_PROXY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "OVERUNDER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "OVERUNDER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.TelegramAPI, "OVERUNDER_NOTIFY_TELEGRAM_API")
	setStr(&cfg.Notify.DiscordWebhookURL, "OVERUNDER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStr(&cfg.Notify.DiscordUsername, "OVERUNDER_NOTIFY_DISCORD_USERNAME")
	setStringSlice(&cfg.Notify.Events, "OVERUNDER_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "OVERUNDER_MODE")
	setStr(&cfg.LogLevel, "OVERUNDER_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
