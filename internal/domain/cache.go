package domain

import (
	"context"
	"math/big"
	"time"
)

// PriceCache keeps the most recent oracle reading per asset.
type PriceCache interface {
	SetPrice(ctx context.Context, asset string, price *big.Int, ts time.Time) error
	GetPrice(ctx context.Context, asset string) (*big.Int, time.Time, error)
}

// MarketCache keeps settled markets, which no longer change except for
// their paid-out total.
type MarketCache interface {
	Get(ctx context.Context, id uint64) (Market, error)
	Set(ctx context.Context, m Market) error
}

// LockManager hands out expiring mutual-exclusion locks shared between
// processes. Acquire returns ErrLockHeld when another holder has key.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
