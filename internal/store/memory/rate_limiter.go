package memory

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter implements domain.RateLimiter with one token bucket per key.
// A bucket holds limit tokens and refills one every window/limit.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*keyLimiter
	now      func() time.Time
}

type keyLimiter struct {
	limit   int
	window  time.Duration
	limiter *rate.Limiter
}

// NewRateLimiter creates an empty RateLimiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{limiters: make(map[string]*keyLimiter), now: time.Now}
}

// Allow reports whether one more event for key fits in the budget.
func (r *RateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 {
		return true, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	kl, ok := r.limiters[key]
	if !ok || kl.limit != limit || kl.window != window {
		kl = &keyLimiter{
			limit:   limit,
			window:  window,
			limiter: rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit),
		}
		r.limiters[key] = kl
	}
	return kl.limiter.AllowN(r.now(), 1), nil
}
