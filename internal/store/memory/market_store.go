// Package memory holds in-process implementations of the stores, caches and
// the wager token, used in local mode without postgres or redis and in tests.
package memory

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
)

type wagerKey struct {
	market  uint64
	account string
}

// MarketStore implements domain.MarketStore in memory. One mutex covers
// every write so each precondition check and its update are atomic.
type MarketStore struct {
	mu      sync.RWMutex
	markets []domain.Market
	wagers  map[wagerKey]domain.Wager
}

// NewMarketStore creates an empty store.
func NewMarketStore() *MarketStore {
	return &MarketStore{wagers: make(map[wagerKey]domain.Wager)}
}

// CurrentMarket returns the latest market.
func (s *MarketStore) CurrentMarket(_ context.Context) (domain.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.markets) == 0 {
		return domain.Market{}, domain.ErrNoMarket
	}
	return s.markets[len(s.markets)-1].Clone(), nil
}

// GetMarket returns the market with the given id.
func (s *MarketStore) GetMarket(_ context.Context, id uint64) (domain.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id >= uint64(len(s.markets)) {
		return domain.Market{}, domain.ErrNotFound
	}
	return s.markets[id].Clone(), nil
}

// GetWager returns the account's wager, zero when it never bet.
func (s *MarketStore) GetWager(_ context.Context, id uint64, account string) (domain.Wager, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id >= uint64(len(s.markets)) {
		return domain.Wager{}, domain.ErrNotFound
	}
	w, ok := s.wagers[wagerKey{id, account}]
	if !ok {
		return domain.ZeroWager(), nil
	}
	return cloneWager(w), nil
}

// MarketCount returns how many markets exist.
func (s *MarketStore) MarketCount(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.markets)), nil
}

// AppendMarket stores m under the next id.
func (s *MarketStore) AppendMarket(_ context.Context, m domain.Market) (domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.markets); n > 0 && !s.markets[n-1].Settled {
		return domain.Market{}, domain.ErrPreviousMarketNotSettled
	}
	m = m.Clone()
	m.ID = uint64(len(s.markets))
	m.Settled = false
	m.ActualPrice.SetInt64(0)
	m.TotalOver.SetInt64(0)
	m.TotalUnder.SetInt64(0)
	m.PaidOut.SetInt64(0)
	s.markets = append(s.markets, m)
	return m.Clone(), nil
}

// RecordBet adds amount to the account's side while the market is open at at.
func (s *MarketStore) RecordBet(_ context.Context, id uint64, account string, side domain.Side, amount, poolCap *big.Int, at time.Time) (domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id >= uint64(len(s.markets)) {
		return domain.Market{}, domain.ErrNotFound
	}
	m := &s.markets[id]
	if m.Settled || !at.Before(m.EndTime) {
		return domain.Market{}, domain.ErrBettingWindowClosed
	}
	if poolCap != nil && poolCap.Sign() > 0 {
		if after := new(big.Int).Add(m.Pool(), amount); after.Cmp(poolCap) > 0 {
			return domain.Market{}, domain.ErrMarketBetLimitReached
		}
	}

	key := wagerKey{id, account}
	w, ok := s.wagers[key]
	if !ok {
		w = domain.ZeroWager()
	}
	switch side {
	case domain.SideOver:
		w.Over = new(big.Int).Add(w.Over, amount)
		m.TotalOver.Add(m.TotalOver, amount)
	case domain.SideUnder:
		w.Under = new(big.Int).Add(w.Under, amount)
		m.TotalUnder.Add(m.TotalUnder, amount)
	default:
		return domain.Market{}, domain.ErrInvalidSide
	}
	s.wagers[key] = w
	return m.Clone(), nil
}

// RecordSettlement settles the market at price.
func (s *MarketStore) RecordSettlement(_ context.Context, id uint64, price *big.Int) (domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id >= uint64(len(s.markets)) {
		return domain.Market{}, domain.ErrNotFound
	}
	m := &s.markets[id]
	if m.Settled {
		return domain.Market{}, domain.ErrAlreadySettled
	}
	m.ActualPrice = new(big.Int).Set(price)
	m.Settled = true
	return m.Clone(), nil
}

// RecordClaim marks the wager claimed.
func (s *MarketStore) RecordClaim(_ context.Context, id uint64, account string, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id >= uint64(len(s.markets)) {
		return domain.ErrNotFound
	}
	m := &s.markets[id]
	if !m.Settled {
		return domain.ErrMarketNotSettled
	}
	key := wagerKey{id, account}
	w, ok := s.wagers[key]
	if !ok {
		return domain.ErrNothingToClaim
	}
	if w.Claimed {
		return domain.ErrAlreadyClaimed
	}
	w.Claimed = true
	w.ClaimedAmount = new(big.Int).Set(amount)
	s.wagers[key] = w
	m.PaidOut.Add(m.PaidOut, amount)
	return nil
}

func cloneWager(w domain.Wager) domain.Wager {
	out := domain.ZeroWager()
	if w.Over != nil {
		out.Over.Set(w.Over)
	}
	if w.Under != nil {
		out.Under.Set(w.Under)
	}
	if w.ClaimedAmount != nil {
		out.ClaimedAmount.Set(w.ClaimedAmount)
	}
	out.Claimed = w.Claimed
	return out
}
