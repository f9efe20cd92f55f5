package domain

import (
	"context"
	"math/big"
)

// TokenLedger is the wager token as seen by the engine.
type TokenLedger interface {
	BalanceOf(ctx context.Context, account string) (*big.Int, error)
	Allowance(ctx context.Context, owner, spender string) (*big.Int, error)
	// Approve sets owner's allowance for spender and returns once the
	// approval is final.
	Approve(ctx context.Context, owner, spender string, amount *big.Int) error
}

// Custody moves stakes into and out of the market pool.
type Custody interface {
	// Collect pulls amount from account into the pool using its allowance.
	Collect(ctx context.Context, account string, amount *big.Int) error
	// Release pays amount from the pool to account.
	Release(ctx context.Context, account string, amount *big.Int) error
}

// PriceOracle reports the spot USD price of an asset as 18-decimal fixed
// point. Failures wrap ErrOracleUnavailable.
type PriceOracle interface {
	FetchPrice(ctx context.Context, asset string) (*big.Int, error)
}
