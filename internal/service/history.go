package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
	"github.com/abhishek3950/AIvsHuman/internal/payout"
)

const defaultHistoryConcurrency = 8

// History rebuilds an account's betting record by scanning every market.
type History struct {
	store       domain.MarketStore
	feeRate     int64
	concurrency int
	cache       domain.MarketCache
	logger      *slog.Logger
}

// NewHistory creates a History. concurrency bounds parallel store reads.
func NewHistory(store domain.MarketStore, feeRate int64, concurrency int) *History {
	if concurrency <= 0 {
		concurrency = defaultHistoryConcurrency
	}
	return &History{store: store, feeRate: feeRate, concurrency: concurrency, logger: slog.Default()}
}

// WithMarketCache serves settled markets from cache instead of the store.
// Cache failures fall back to the store and are only logged.
func (h *History) WithMarketCache(cache domain.MarketCache, logger *slog.Logger) *History {
	h.cache = cache
	if logger != nil {
		h.logger = logger.With(slog.String("component", "history"))
	}
	return h
}

// ForAccount returns one row per non-zero side the account holds, newest
// market first, Over before Under within a market.
func (h *History) ForAccount(ctx context.Context, account string) ([]domain.Bet, error) {
	acct, err := domain.NormalizeAccount(account)
	if err != nil {
		return nil, err
	}
	count, err := h.store.MarketCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("history: count markets: %w", err)
	}

	perMarket := make([][]domain.Bet, count)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.concurrency)
	for id := uint64(0); id < count; id++ {
		g.Go(func() error {
			w, err := h.store.GetWager(gctx, id, acct)
			if err != nil {
				return fmt.Errorf("history: wager %d: %w", id, err)
			}
			if w.IsZero() {
				return nil
			}
			m, err := h.market(gctx, id)
			if err != nil {
				return err
			}
			perMarket[id] = h.rows(m, w)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []domain.Bet
	for _, rows := range perMarket {
		out = append(out, rows...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MarketID > out[j].MarketID
	})
	return out, nil
}

func (h *History) market(ctx context.Context, id uint64) (domain.Market, error) {
	if h.cache != nil {
		m, err := h.cache.Get(ctx, id)
		if err == nil {
			return m, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			h.logger.WarnContext(ctx, "market cache read failed",
				slog.Uint64("market_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	m, err := h.store.GetMarket(ctx, id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("history: market %d: %w", id, err)
	}
	if h.cache != nil && m.Settled {
		if err := h.cache.Set(ctx, m); err != nil {
			h.logger.WarnContext(ctx, "market cache write failed",
				slog.Uint64("market_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
	return m, nil
}

func (h *History) rows(m domain.Market, w domain.Wager) []domain.Bet {
	var rows []domain.Bet
	for _, side := range []domain.Side{domain.SideOver, domain.SideUnder} {
		stake := w.Stake(side)
		if stake.Sign() == 0 {
			continue
		}
		rows = append(rows, domain.Bet{
			MarketID: m.ID,
			Side:     side,
			Amount:   stake,
			Claimed:  w.Claimed,
			Payout:   payout.SidePayout(m, w, side, h.feeRate),
			Market:   m,
		})
	}
	return rows
}
