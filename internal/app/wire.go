package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/ethclient"

	s3blob "github.com/abhishek3950/AIvsHuman/internal/blob/s3"
	"github.com/abhishek3950/AIvsHuman/internal/cache/redis"
	"github.com/abhishek3950/AIvsHuman/internal/config"
	"github.com/abhishek3950/AIvsHuman/internal/crypto"
	"github.com/abhishek3950/AIvsHuman/internal/domain"
	"github.com/abhishek3950/AIvsHuman/internal/notify"
	"github.com/abhishek3950/AIvsHuman/internal/oracle"
	"github.com/abhishek3950/AIvsHuman/internal/platform/chain"
	"github.com/abhishek3950/AIvsHuman/internal/server/handler"
	"github.com/abhishek3950/AIvsHuman/internal/service"
	"github.com/abhishek3950/AIvsHuman/internal/store/memory"
	"github.com/abhishek3950/AIvsHuman/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application modes
// need to operate. It is constructed by Wire and torn down by the returned
// cleanup function.
type Dependencies struct {
	// Market authority
	MarketStore domain.MarketStore
	Token       domain.TokenLedger
	Custody     domain.Custody
	Minter      service.Minter
	Agent       string
	Spender     string

	// Price
	Oracle     domain.PriceOracle
	PriceCache domain.PriceCache

	// Events and limits
	SignalBus   domain.SignalBus
	AuditStore  domain.AuditStore
	RateLimiter domain.RateLimiter

	// Optional; nil when not configured.
	Locks       domain.LockManager
	MarketCache domain.MarketCache
	Archiver    domain.SettlementArchiver
	Notifier    *notify.Notifier

	// Health probes for every external dependency that was dialled.
	Checks map[string]handler.Check
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{Checks: make(map[string]handler.Check)}

	// --- PostgreSQL (optional) ---
	var pgClient *postgres.Client
	if cfg.Supabase.Enabled() {
		var err error
		pgClient, err = postgres.New(ctx, postgres.ClientConfig{
			DSN:              cfg.Supabase.DSN,
			Host:             cfg.Supabase.Host,
			Port:             cfg.Supabase.Port,
			Database:         cfg.Supabase.Database,
			User:             cfg.Supabase.User,
			Password:         cfg.Supabase.Password,
			SSLMode:          cfg.Supabase.SSLMode,
			MaxConns:         cfg.Supabase.PoolMaxConns,
			MinConns:         cfg.Supabase.PoolMinConns,
			StatementTimeout: cfg.Supabase.StatementTimeout.Duration,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Supabase.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}
		deps.AuditStore = postgres.NewAuditStore(pgClient.Pool())
		deps.Checks["postgres"] = pgClient.Ping
	}

	// --- Redis (optional) ---
	if cfg.Redis.Addr != "" {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.PriceCache = redis.NewPriceCache(redisClient, cfg.Oracle.PriceCacheTTL.Duration)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.Locks = redis.NewLockManager(redisClient)
		deps.MarketCache = redis.NewMarketCache(redisClient)
		deps.Checks["redis"] = redisClient.Ping
	}

	// In-process fallbacks.
	if deps.SignalBus == nil {
		deps.SignalBus = memory.NewSignalBus()
	}
	if deps.PriceCache == nil {
		deps.PriceCache = memory.NewPriceCache()
	}
	if deps.RateLimiter == nil {
		deps.RateLimiter = memory.NewRateLimiter()
	}
	if deps.AuditStore == nil {
		deps.AuditStore = memory.NewAuditStore()
	}

	// --- Market authority ---
	var eth *ethclient.Client
	dial := func() (*ethclient.Client, error) {
		if eth != nil {
			return eth, nil
		}
		c, err := ethclient.DialContext(ctx, cfg.Chain.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("wire: dial rpc: %w", err)
		}
		closers = append(closers, c.Close)
		deps.Checks["chain"] = func(ctx context.Context) error {
			_, err := c.BlockNumber(ctx)
			return err
		}
		eth = c
		return c, nil
	}

	if cfg.OnChain() {
		c, err := dial()
		if err != nil {
			return fail(err)
		}
		if err := wireChain(cfg, c, deps, logger); err != nil {
			return fail(err)
		}
	} else {
		if err := wireLocal(cfg, pgClient, deps); err != nil {
			return fail(err)
		}
	}

	// --- Oracle ---
	var source domain.PriceOracle
	switch cfg.Oracle.Source {
	case "chainlink":
		c, err := dial()
		if err != nil {
			return fail(err)
		}
		source, err = oracle.NewChainlink(c, cfg.Oracle.ChainlinkFeed, cfg.Oracle.ChainlinkMaxAge.Duration)
		if err != nil {
			return fail(fmt.Errorf("wire: oracle: %w", err))
		}
	default:
		source = oracle.NewCoinGecko(oracle.CoinGeckoConfig{
			BaseURL:       cfg.Oracle.CoinGeckoURL,
			APIKey:        cfg.Oracle.CoinGeckoAPIKey,
			Timeout:       cfg.Oracle.Timeout.Duration,
			RatePerMinute: cfg.Oracle.RatePerMinute,
		})
	}
	deps.Oracle = oracle.NewRecording(source, deps.PriceCache, logger)

	// --- S3 settlement archive (optional) ---
	if cfg.S3.Bucket != "" {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			Prefix:         cfg.S3.Prefix,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), deps.AuditStore, cfg.Market.FeeRate)
		deps.Checks["s3"] = s3Client.Health
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramAPI,
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL, cfg.Notify.DiscordUsername))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	}

	return deps, cleanup, nil
}

// wireLocal keeps the market in postgres or memory and the token in memory.
func wireLocal(cfg *config.Config, pgClient *postgres.Client, deps *Dependencies) error {
	pool, err := domain.NormalizeAccount(cfg.Wallet.Pool)
	if err != nil {
		return fmt.Errorf("wire: wallet pool: %w", err)
	}
	ledger := memory.NewLedger()

	if pgClient != nil {
		deps.MarketStore = postgres.NewMarketStore(pgClient.Pool())
	} else {
		deps.MarketStore = memory.NewMarketStore()
	}
	deps.Token = ledger
	deps.Custody = memory.NewCustody(ledger, pool)
	deps.Minter = ledger
	deps.Agent = cfg.Wallet.Agent
	deps.Spender = pool
	return nil
}

// wireChain binds the betting and token contracts with the agent key.
func wireChain(cfg *config.Config, eth *ethclient.Client, deps *Dependencies, logger *slog.Logger) error {
	signer, err := crypto.LoadSigner(crypto.KeyConfig{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      cfg.Wallet.KeyPassword,
	}, big.NewInt(cfg.Chain.ChainID))
	if err != nil {
		return fmt.Errorf("wire: agent key: %w", err)
	}

	client := chain.NewClient(eth, signer, chain.ClientConfig{
		ReceiptTimeout: cfg.Chain.ReceiptTimeout.Duration,
		PollInterval:   cfg.Chain.PollInterval.Duration,
		GasHeadroomPct: cfg.Chain.GasHeadroomPct,
	}, logger)

	store, err := chain.NewMarketStore(client, cfg.Chain.BettingContract)
	if err != nil {
		return fmt.Errorf("wire: betting contract: %w", err)
	}
	token, err := chain.NewToken(client, cfg.Chain.TokenContract)
	if err != nil {
		return fmt.Errorf("wire: token contract: %w", err)
	}

	deps.MarketStore = store
	deps.Token = token
	deps.Custody = chain.Custody{}
	deps.Minter = token
	deps.Agent = signer.Address().Hex()
	deps.Spender = store.Address()
	return nil
}
