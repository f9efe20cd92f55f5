package memory

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
)

type priceEntry struct {
	price *big.Int
	ts    time.Time
}

// PriceCache implements domain.PriceCache in memory.
type PriceCache struct {
	mu     sync.RWMutex
	prices map[string]priceEntry
}

// NewPriceCache creates an empty PriceCache.
func NewPriceCache() *PriceCache {
	return &PriceCache{prices: make(map[string]priceEntry)}
}

// SetPrice replaces the cached reading for asset.
func (c *PriceCache) SetPrice(_ context.Context, asset string, price *big.Int, ts time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[asset] = priceEntry{price: new(big.Int).Set(price), ts: ts}
	return nil
}

// GetPrice returns the cached reading, or domain.ErrNotFound.
func (c *PriceCache) GetPrice(_ context.Context, asset string) (*big.Int, time.Time, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.prices[asset]
	if !ok {
		return nil, time.Time{}, domain.ErrNotFound
	}
	return new(big.Int).Set(e.price), e.ts, nil
}
