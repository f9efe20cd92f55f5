package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
)

// Alerter receives operator notifications from the scheduler.
type Alerter interface {
	MarketSettled(ctx context.Context, m domain.Market, feeRate int64) error
	MarketCreated(ctx context.Context, m domain.Market) error
	SettlementFailed(ctx context.Context, marketID uint64, err error) error
	CreationFailed(ctx context.Context, marketID uint64, err error) error
}

// SchedulerConfig controls the tick loop.
type SchedulerConfig struct {
	Asset       string
	Interval    time.Duration
	TickTimeout time.Duration
}

// TickResult reports what a single tick changed.
type TickResult struct {
	Settled *domain.Market
	Created *domain.Market
}

// Scheduler settles expired markets and opens the next one. It acts as the
// settlement agent and never creates a market while the current one is
// unsettled.
type Scheduler struct {
	lifecycle *Lifecycle
	oracle    domain.PriceOracle
	policy    PredictionPolicy
	cfg       SchedulerConfig
	archiver  domain.SettlementArchiver
	alerter   Alerter
	locks     domain.LockManager
	logger    *slog.Logger
}

const tickLockKey = "scheduler:tick"

// NewScheduler creates a Scheduler. archiver and alerter may be nil.
func NewScheduler(
	lifecycle *Lifecycle,
	oracle domain.PriceOracle,
	policy PredictionPolicy,
	cfg SchedulerConfig,
	archiver domain.SettlementArchiver,
	alerter Alerter,
	logger *slog.Logger,
) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.TickTimeout <= 0 {
		cfg.TickTimeout = 45 * time.Second
	}
	if cfg.Asset == "" {
		cfg.Asset = "bitcoin"
	}
	if policy == nil {
		policy = MarkupPolicy{Bps: DefaultMarkupBps}
	}
	return &Scheduler{
		lifecycle: lifecycle,
		oracle:    oracle,
		policy:    policy,
		cfg:       cfg,
		archiver:  archiver,
		alerter:   alerter,
		logger:    logger.With(slog.String("component", "scheduler")),
	}
}

// WithLock makes every tick hold tickLockKey in locks, so replicas sharing
// the store take turns instead of racing on settlement.
func (s *Scheduler) WithLock(locks domain.LockManager) *Scheduler {
	s.locks = locks
	return s
}

// Run ticks once immediately and then every interval until ctx is done.
// A tick already in progress when ctx is cancelled runs to completion.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "settlement scheduler started",
		slog.String("agent", s.lifecycle.Agent()),
		slog.Duration("interval", s.cfg.Interval),
	)
	s.runTick(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "settlement scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runTick(ctx)
		}
	}
}

func (s *Scheduler) runTick(ctx context.Context) {
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.TickTimeout)
	defer cancel()
	if _, err := s.Tick(tctx); err != nil {
		s.logger.ErrorContext(tctx, "settlement tick failed",
			slog.String("kind", domain.KindOf(err).String()),
			slog.String("error", err.Error()),
		)
	}
}

// Tick performs one pass: settle the current market if it has expired,
// then open the next market if the current one is settled or none exists.
// Errors leave the store unchanged for that step; the next tick retries.
func (s *Scheduler) Tick(ctx context.Context) (TickResult, error) {
	var res TickResult

	if s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, tickLockKey, s.cfg.TickTimeout)
		switch {
		case errors.Is(err, domain.ErrLockHeld):
			s.logger.DebugContext(ctx, "tick lock held elsewhere, skipping")
			return res, nil
		case err != nil:
			// Store writes are conditional, so an unlocked tick stays safe.
			s.logger.WarnContext(ctx, "tick lock unavailable, ticking anyway", slog.String("error", err.Error()))
		default:
			defer unlock()
		}
	}

	cur, state, err := s.lifecycle.State(ctx)
	if err != nil {
		return res, fmt.Errorf("scheduler: read state: %w", err)
	}

	var spot *big.Int
	switch state {
	case domain.StateOpen:
		return res, nil
	case domain.StateLocked:
		spot, err = s.fetch(ctx)
		if err != nil {
			s.alertSettlement(ctx, cur.ID, err)
			return res, err
		}
		settled, err := s.lifecycle.Settle(ctx, s.lifecycle.Agent(), cur.ID, spot)
		if err != nil {
			s.alertSettlement(ctx, cur.ID, err)
			return res, fmt.Errorf("scheduler: settle market %d: %w", cur.ID, err)
		}
		res.Settled = &settled
		s.afterSettle(ctx, settled)
		cur = settled
	}

	// Id the next market will take.
	next := uint64(0)
	if state != domain.StateNone {
		next = cur.ID + 1
	}
	if spot == nil {
		if spot, err = s.fetch(ctx); err != nil {
			s.alertCreation(ctx, next, err)
			return res, err
		}
	}
	prediction, err := s.policy.Predict(ctx, spot)
	if err != nil {
		err = fmt.Errorf("scheduler: predict: %w", err)
		s.alertCreation(ctx, next, err)
		return res, err
	}
	created, err := s.lifecycle.CreateNext(ctx, s.lifecycle.Agent(), prediction)
	if err != nil {
		if errors.Is(err, domain.ErrPreviousMarketNotSettled) {
			s.logger.WarnContext(ctx, "market opened concurrently, skipping creation")
			return res, nil
		}
		err = fmt.Errorf("scheduler: create market: %w", err)
		s.alertCreation(ctx, next, err)
		return res, err
	}
	res.Created = &created

	if s.alerter != nil {
		if err := s.alerter.MarketCreated(ctx, created); err != nil {
			s.logger.WarnContext(ctx, "market created alert failed", slog.String("error", err.Error()))
		}
	}
	return res, nil
}

func (s *Scheduler) fetch(ctx context.Context) (*big.Int, error) {
	price, err := s.oracle.FetchPrice(ctx, s.cfg.Asset)
	if err != nil {
		return nil, fmt.Errorf("scheduler: fetch %s price: %w", s.cfg.Asset, err)
	}
	return price, nil
}

func (s *Scheduler) afterSettle(ctx context.Context, m domain.Market) {
	if s.archiver != nil {
		path, err := s.archiver.ArchiveSettlement(ctx, m)
		if err != nil {
			s.logger.WarnContext(ctx, "settlement archive failed",
				slog.Uint64("market_id", m.ID),
				slog.String("error", err.Error()),
			)
		} else {
			s.logger.DebugContext(ctx, "settlement archived", slog.String("path", path))
		}
	}
	if s.alerter != nil {
		if err := s.alerter.MarketSettled(ctx, m, s.lifecycle.FeeRate()); err != nil {
			s.logger.WarnContext(ctx, "market settled alert failed", slog.String("error", err.Error()))
		}
	}
}

func (s *Scheduler) alertSettlement(ctx context.Context, marketID uint64, cause error) {
	s.lifecycle.events.emit(ctx, domain.MarketEvent{
		Type:     domain.EventSettlementError,
		MarketID: marketID,
		Error:    cause.Error(),
	})
	if s.alerter == nil {
		return
	}
	if err := s.alerter.SettlementFailed(ctx, marketID, cause); err != nil {
		s.logger.WarnContext(ctx, "settlement failure alert failed", slog.String("error", err.Error()))
	}
}

// alertCreation reports a tick that settled (or found nothing to settle)
// but could not open marketID.
func (s *Scheduler) alertCreation(ctx context.Context, marketID uint64, cause error) {
	s.lifecycle.events.emit(ctx, domain.MarketEvent{
		Type:     domain.EventCreationError,
		MarketID: marketID,
		Error:    cause.Error(),
	})
	if s.alerter == nil {
		return
	}
	if err := s.alerter.CreationFailed(ctx, marketID, cause); err != nil {
		s.logger.WarnContext(ctx, "creation failure alert failed", slog.String("error", err.Error()))
	}
}
