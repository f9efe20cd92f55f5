// Package config defines the configuration of the over/under market service
// and its validation rules.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by OVERUNDER_* environment variables.
type Config struct {
	Wallet    WalletConfig    `toml:"wallet"`
	Chain     ChainConfig     `toml:"chain"`
	Market    MarketConfig    `toml:"market"`
	Oracle    OracleConfig    `toml:"oracle"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Faucet    FaucetConfig    `toml:"faucet"`
	Supabase  SupabaseConfig  `toml:"supabase"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// WalletConfig holds the settlement agent's identity. In local mode Agent
// names the authorized settler and Pool the custody account; in chain mode
// the agent is derived from the key.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
	Agent            string `toml:"agent"`
	Pool             string `toml:"pool"`
}

// ChainConfig holds the RPC endpoint and contract addresses.
type ChainConfig struct {
	RPCURL          string   `toml:"rpc_url"`
	ChainID         int64    `toml:"chain_id"`
	BettingContract string   `toml:"betting_contract"`
	TokenContract   string   `toml:"token_contract"`
	ReceiptTimeout  duration `toml:"receipt_timeout"`
	PollInterval    duration `toml:"poll_interval"`
	GasHeadroomPct  int64    `toml:"gas_headroom_pct"`
}

// MarketConfig holds the betting rules. Token amounts are whole-token
// decimal strings such as "10" or "0.5".
type MarketConfig struct {
	Window             duration `toml:"window"`
	MinBet             string   `toml:"min_bet"`
	MaxBet             string   `toml:"max_bet"`
	MarketCap          string   `toml:"market_cap"`
	FeeRate            int64    `toml:"fee_rate"`
	ApprovalMultiple   int64    `toml:"approval_multiple"`
	MarkupBps          int64    `toml:"markup_bps"`
	HistoryConcurrency int      `toml:"history_concurrency"`
}

// OracleConfig selects the price source. Source is "coingecko" or
// "chainlink".
type OracleConfig struct {
	Source          string   `toml:"source"`
	Asset           string   `toml:"asset"`
	CoinGeckoURL    string   `toml:"coingecko_url"`
	CoinGeckoAPIKey string   `toml:"coingecko_api_key"`
	RatePerMinute   int      `toml:"rate_per_minute"`
	Timeout         duration `toml:"timeout"`
	ChainlinkFeed   string   `toml:"chainlink_feed"`
	ChainlinkMaxAge duration `toml:"chainlink_max_age"`
	PriceCacheTTL   duration `toml:"price_cache_ttl"`
}

// SchedulerConfig controls the settlement loop.
type SchedulerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Interval    duration `toml:"interval"`
	TickTimeout duration `toml:"tick_timeout"`
}

// FaucetConfig controls test-token drips.
type FaucetConfig struct {
	Enabled  bool     `toml:"enabled"`
	Amount   string   `toml:"amount"`
	Cooldown duration `toml:"cooldown"`
}

// SupabaseConfig holds PostgreSQL / Supabase connection parameters. An empty
// DSN and host keep market state in memory.
type SupabaseConfig struct {
	DSN              string   `toml:"dsn"`
	Host             string   `toml:"host"`
	Port             int      `toml:"port"`
	Database         string   `toml:"database"`
	User             string   `toml:"user"`
	Password         string   `toml:"password"`
	SSLMode          string   `toml:"ssl_mode"`
	PoolMaxConns     int      `toml:"pool_max_conns"`
	PoolMinConns     int      `toml:"pool_min_conns"`
	StatementTimeout duration `toml:"statement_timeout"`
	RunMigrations    bool     `toml:"run_migrations"`
}

// Enabled reports whether a database is configured.
func (s SupabaseConfig) Enabled() bool {
	return strings.TrimSpace(s.DSN) != "" || s.Host != ""
}

// RedisConfig holds Redis connection parameters. An empty Addr disables the
// event bus, the price cache and the shared faucet limiter.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters. An empty Bucket
// disables settlement archiving.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	// RateLimit is requests per minute per client on write endpoints.
	RateLimit int `toml:"rate_limit"`
	// TrustProxy keys rate limits on X-Forwarded-For; set it only behind a
	// proxy that overwrites the header.
	TrustProxy bool `toml:"trust_proxy"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	TelegramAPI       string   `toml:"telegram_api"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	DiscordUsername   string   `toml:"discord_username"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Wallet: WalletConfig{
			Agent: "0x000000000000000000000000000000000000a6e7",
			Pool:  "0x000000000000000000000000000000000000b0b0",
		},
		Chain: ChainConfig{
			ChainID:        84532,
			ReceiptTimeout: duration{60 * time.Second},
			PollInterval:   duration{2 * time.Second},
			GasHeadroomPct: 20,
		},
		Market: MarketConfig{
			Window:             duration{240 * time.Second},
			MinBet:             "10",
			MaxBet:             "100",
			MarketCap:          "10000",
			FeeRate:            10,
			ApprovalMultiple:   100,
			MarkupBps:          100,
			HistoryConcurrency: 8,
		},
		Oracle: OracleConfig{
			Source:          "coingecko",
			Asset:           "bitcoin",
			CoinGeckoURL:    "https://api.coingecko.com/api/v3",
			RatePerMinute:   30,
			Timeout:         duration{10 * time.Second},
			ChainlinkMaxAge: duration{time.Hour},
			PriceCacheTTL:   duration{10 * time.Minute},
		},
		Scheduler: SchedulerConfig{
			Enabled:     true,
			Interval:    duration{60 * time.Second},
			TickTimeout: duration{45 * time.Second},
		},
		Faucet: FaucetConfig{
			Enabled:  true,
			Amount:   "1000",
			Cooldown: duration{24 * time.Hour},
		},
		Supabase: SupabaseConfig{
			Port:             5432,
			Database:         "postgres",
			User:             "postgres",
			SSLMode:          "disable",
			PoolMaxConns:     10,
			PoolMinConns:     2,
			StatementTimeout: duration{10 * time.Second},
			RunMigrations:    true,
		},
		Redis: RedisConfig{
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Region:         "us-east-1",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
			RateLimit:   60,
		},
		Notify: NotifyConfig{
			DiscordUsername: "Over/Under",
			Events: []string{
				string(domain.EventMarketSettled),
				string(domain.EventMarketCreated),
				string(domain.EventSettlementError),
				string(domain.EventCreationError),
			},
		},
		Mode:     "local",
		LogLevel: "info",
	}
}

// Modes.
const (
	ModeLocal   = "local"
	ModeChain   = "chain"
	ModeSettler = "settler"
)

var validModes = map[string]bool{
	ModeLocal:   true,
	ModeChain:   true,
	ModeSettler: true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// OnChain reports whether the contract is the source of truth.
func (c *Config) OnChain() bool {
	return c.Mode == ModeChain || c.Mode == ModeSettler
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[c.Mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: local, chain, settler)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.OnChain() {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode "+c.Mode)
		}
		if c.Chain.RPCURL == "" {
			errs = append(errs, "chain: rpc_url must not be empty")
		}
		if c.Chain.ChainID <= 0 {
			errs = append(errs, "chain: chain_id must be positive")
		}
		errs = appendAddr(errs, "chain: betting_contract", c.Chain.BettingContract)
		errs = appendAddr(errs, "chain: token_contract", c.Chain.TokenContract)
	} else {
		errs = appendAddr(errs, "wallet: agent", c.Wallet.Agent)
		errs = appendAddr(errs, "wallet: pool", c.Wallet.Pool)
	}
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}

	// Market
	if c.Market.Window.Duration <= 0 {
		errs = append(errs, "market: window must be > 0")
	}
	minBet, err := domain.ParseUnits(c.Market.MinBet)
	if err != nil || minBet.Sign() <= 0 {
		errs = append(errs, fmt.Sprintf("market: min_bet %q must be a positive amount", c.Market.MinBet))
	}
	maxBet, err := domain.ParseUnits(c.Market.MaxBet)
	if err != nil || maxBet.Sign() <= 0 {
		errs = append(errs, fmt.Sprintf("market: max_bet %q must be a positive amount", c.Market.MaxBet))
	} else if minBet != nil && minBet.Cmp(maxBet) > 0 {
		errs = append(errs, "market: min_bet must not exceed max_bet")
	}
	if c.Market.MarketCap != "" {
		if v, err := domain.ParseUnits(c.Market.MarketCap); err != nil || v.Sign() < 0 {
			errs = append(errs, fmt.Sprintf("market: market_cap %q must be a non-negative amount", c.Market.MarketCap))
		}
	}
	if c.Market.FeeRate < 0 || c.Market.FeeRate >= 100 {
		errs = append(errs, fmt.Sprintf("market: fee_rate must be 0-99, got %d", c.Market.FeeRate))
	}
	if c.Market.ApprovalMultiple < 1 {
		errs = append(errs, "market: approval_multiple must be >= 1")
	}

	// Oracle
	switch c.Oracle.Source {
	case "coingecko":
		if c.Oracle.CoinGeckoURL == "" {
			errs = append(errs, "oracle: coingecko_url must not be empty")
		}
	case "chainlink":
		if c.Chain.RPCURL == "" {
			errs = append(errs, "oracle: chainlink needs chain.rpc_url")
		}
		errs = appendAddr(errs, "oracle: chainlink_feed", c.Oracle.ChainlinkFeed)
	default:
		errs = append(errs, fmt.Sprintf("oracle: unknown source %q (valid: coingecko, chainlink)", c.Oracle.Source))
	}

	// Scheduler
	if c.Scheduler.Enabled {
		if c.Scheduler.Interval.Duration <= 0 {
			errs = append(errs, "scheduler: interval must be > 0")
		}
		if c.Scheduler.TickTimeout.Duration <= 0 {
			errs = append(errs, "scheduler: tick_timeout must be > 0")
		}
	}

	// Faucet
	if c.Faucet.Enabled {
		if v, err := domain.ParseUnits(c.Faucet.Amount); err != nil || v.Sign() <= 0 {
			errs = append(errs, fmt.Sprintf("faucet: amount %q must be a positive amount", c.Faucet.Amount))
		}
	}

	// Supabase
	if c.Supabase.Enabled() && strings.TrimSpace(c.Supabase.DSN) == "" {
		if c.Supabase.Port <= 0 || c.Supabase.Port > 65535 {
			errs = append(errs, fmt.Sprintf("supabase: port must be 1-65535, got %d", c.Supabase.Port))
		}
		if c.Supabase.Database == "" {
			errs = append(errs, "supabase: database must not be empty")
		}
	}
	if c.Supabase.PoolMinConns > c.Supabase.PoolMaxConns {
		errs = append(errs, "supabase: pool_min_conns must not exceed pool_max_conns")
	}

	// S3
	if c.S3.Bucket != "" && c.S3.Region == "" {
		errs = append(errs, "s3: region must not be empty")
	}

	// Server
	if c.Mode != ModeSettler {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func appendAddr(errs []string, field, v string) []string {
	if !common.IsHexAddress(v) {
		return append(errs, fmt.Sprintf("%s %q is not a hex address", field, v))
	}
	return errs
}
