package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
	"github.com/abhishek3950/AIvsHuman/internal/server"
	"github.com/abhishek3950/AIvsHuman/internal/server/handler"
	"github.com/abhishek3950/AIvsHuman/internal/server/ws"
	"github.com/abhishek3950/AIvsHuman/internal/service"
)

// ServeMode runs the settlement scheduler next to the HTTP API and the
// websocket hub. Local and chain mode differ only in the wired authority.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode", slog.String("mode", a.cfg.Mode))

	lc, err := a.buildLifecycle(deps)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	if a.cfg.Scheduler.Enabled {
		sched := a.buildScheduler(lc, deps)
		g.Go(func() error {
			return sched.Run(ctx)
		})
	} else {
		a.logger.InfoContext(ctx, "scheduler disabled; markets advance only through another settler")
	}
	if err := a.startHTTPServer(ctx, g, deps, lc); err != nil {
		return err
	}
	return g.Wait()
}

// SettlerMode runs only the settlement scheduler against the contract.
func (a *App) SettlerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting settler mode", slog.String("agent", deps.Agent))

	lc, err := a.buildLifecycle(deps)
	if err != nil {
		return err
	}
	return a.buildScheduler(lc, deps).Run(ctx)
}

func (a *App) buildLifecycle(deps *Dependencies) (*service.Lifecycle, error) {
	m := a.cfg.Market
	minBet, err := domain.ParseUnits(m.MinBet)
	if err != nil {
		return nil, fmt.Errorf("app: min_bet: %w", err)
	}
	maxBet, err := domain.ParseUnits(m.MaxBet)
	if err != nil {
		return nil, fmt.Errorf("app: max_bet: %w", err)
	}
	marketCap := new(big.Int)
	if m.MarketCap != "" {
		if marketCap, err = domain.ParseUnits(m.MarketCap); err != nil {
			return nil, fmt.Errorf("app: market_cap: %w", err)
		}
	}

	lc, err := service.NewLifecycle(
		deps.MarketStore,
		service.NewWagerLedger(deps.Token, m.ApprovalMultiple, a.logger),
		deps.Custody,
		service.LifecycleConfig{
			Window:    m.Window.Duration,
			MinBet:    minBet,
			MaxBet:    maxBet,
			MarketCap: marketCap,
			FeeRate:   m.FeeRate,
			Agent:     deps.Agent,
			Spender:   deps.Spender,
		},
		a.logger,
		service.WithEvents(deps.SignalBus, deps.AuditStore),
	)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	return lc, nil
}

func (a *App) buildScheduler(lc *service.Lifecycle, deps *Dependencies) *service.Scheduler {
	var alerter service.Alerter
	if deps.Notifier != nil {
		alerter = deps.Notifier
	}
	sched := service.NewScheduler(
		lc,
		deps.Oracle,
		service.MarkupPolicy{Bps: a.cfg.Market.MarkupBps},
		service.SchedulerConfig{
			Asset:       a.cfg.Oracle.Asset,
			Interval:    a.cfg.Scheduler.Interval.Duration,
			TickTimeout: a.cfg.Scheduler.TickTimeout.Duration,
		},
		deps.Archiver,
		alerter,
		a.logger,
	)
	if deps.Locks != nil {
		sched.WithLock(deps.Locks)
	}
	return sched
}

// startHTTPServer registers the API, the websocket hub and a shutdown hook
// on g.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, lc *service.Lifecycle) error {
	feeRate := a.cfg.Market.FeeRate

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
		Origins:   a.cfg.Server.CORSOrigins,
		Snapshot: func(ctx context.Context) (any, error) {
			m, err := lc.Current(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"id":             m.ID,
				"state":          m.StateAt(lc.Now()),
				"end_time":       m.EndTime.UTC(),
				"prediction_usd": domain.FormatUnits(m.Prediction, 2),
				"pool":           m.Pool().String(),
			}, nil
		},
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	history := service.NewHistory(deps.MarketStore, feeRate, a.cfg.Market.HistoryConcurrency)
	if deps.MarketCache != nil {
		history.WithMarketCache(deps.MarketCache, a.logger)
	}

	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(a.cfg.Mode, deps.Checks, a.logger),
		Markets: handler.NewMarketHandler(lc, a.logger),
		Bets:    handler.NewBetHandler(lc, a.logger),
		History: handler.NewHistoryHandler(history, lc.Now, feeRate, a.logger),
		Price:   handler.NewPriceHandler(deps.PriceCache, a.cfg.Oracle.Asset, a.logger),
		Events:  handler.NewEventsHandler(deps.SignalBus, a.logger),
		Audit:   handler.NewAuditHandler(deps.AuditStore, a.logger),
	}
	if a.cfg.Faucet.Enabled {
		amount, err := domain.ParseUnits(a.cfg.Faucet.Amount)
		if err != nil {
			return fmt.Errorf("app: faucet amount: %w", err)
		}
		faucet := service.NewFaucet(deps.Minter, deps.RateLimiter, amount, a.cfg.Faucet.Cooldown.Duration, a.logger)
		handlers.Faucet = handler.NewFaucetHandler(faucet, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		TrustProxy:  a.cfg.Server.TrustProxy,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
	return nil
}
