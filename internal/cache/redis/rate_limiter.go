package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
)

// fixedWindow counts hits in a key that expires with the window. The first
// hit sets the expiry, so the count and the TTL stay consistent.
const fixedWindow = `
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n`

// RateLimiter implements domain.RateLimiter with fixed windows. The faucet
// uses it with limit 1 to enforce one claim per cooldown across replicas.
type RateLimiter struct {
	rdb    *redis.Client
	script *redis.Script
}

// NewRateLimiter creates a RateLimiter backed by the given Client.
func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{rdb: c.Underlying(), script: redis.NewScript(fixedWindow)}
}

func rateLimitKey(key string) string {
	return "ratelimit:" + key
}

// Allow counts this call and reports whether it is within limit for the
// current window.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	n, err := rl.script.Run(ctx, rl.rdb, []string{rateLimitKey(key)}, window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("redis: rate limit %s: %w", key, err)
	}
	return n <= int64(limit), nil
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
