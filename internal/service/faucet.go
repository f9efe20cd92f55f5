package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
)

// Minter credits new tokens to an account.
type Minter interface {
	Mint(ctx context.Context, account string, amount *big.Int) error
}

// Faucet hands out test tokens at most once per cooldown per account.
type Faucet struct {
	minter   Minter
	limiter  domain.RateLimiter
	amount   *big.Int
	cooldown time.Duration
	now      func() time.Time
	logger   *slog.Logger

	mu   sync.Mutex
	last map[string]time.Time
}

// NewFaucet creates a Faucet. With a nil limiter the cooldown is tracked in
// process.
func NewFaucet(minter Minter, limiter domain.RateLimiter, amount *big.Int, cooldown time.Duration, logger *slog.Logger) *Faucet {
	return &Faucet{
		minter:   minter,
		limiter:  limiter,
		amount:   new(big.Int).Set(amount),
		cooldown: cooldown,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "faucet")),
		last:     make(map[string]time.Time),
	}
}

// Claim mints the faucet amount to account, or returns ErrRateLimited
// inside the cooldown.
func (f *Faucet) Claim(ctx context.Context, account string) (*big.Int, error) {
	acct, err := domain.NormalizeAccount(account)
	if err != nil {
		return nil, err
	}
	ok, err := f.allow(ctx, acct)
	if err != nil {
		return nil, fmt.Errorf("faucet: rate limit: %w", err)
	}
	if !ok {
		return nil, domain.ErrRateLimited
	}
	if err := f.minter.Mint(ctx, acct, f.amount); err != nil {
		return nil, fmt.Errorf("faucet: mint: %w", err)
	}
	f.logger.InfoContext(ctx, "faucet claimed",
		slog.String("account", acct),
		slog.String("amount", f.amount.String()),
	)
	return new(big.Int).Set(f.amount), nil
}

func (f *Faucet) allow(ctx context.Context, acct string) (bool, error) {
	if f.limiter != nil {
		return f.limiter.Allow(ctx, "faucet:"+acct, 1, f.cooldown)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	if last, ok := f.last[acct]; ok && now.Sub(last) < f.cooldown {
		return false, nil
	}
	f.last[acct] = now
	return true, nil
}
