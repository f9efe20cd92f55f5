package domain

import (
	"context"
	"math/big"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time

	// Audit filters; zero values match everything.
	MarketID *uint64
	Event    string
}

// MarketStore is the single authority over markets and wagers. Writers
// enforce their own preconditions atomically, so two agents racing on the
// same transition see one success and one precondition error.
type MarketStore interface {
	// CurrentMarket returns the market with the highest id, or ErrNoMarket.
	CurrentMarket(ctx context.Context) (Market, error)
	// GetMarket returns ErrNotFound for ids past the current market.
	GetMarket(ctx context.Context, id uint64) (Market, error)
	// GetWager returns a zero wager when the account never bet.
	GetWager(ctx context.Context, id uint64, account string) (Wager, error)
	MarketCount(ctx context.Context) (uint64, error)

	// AppendMarket assigns the next id and stores m. It fails with
	// ErrPreviousMarketNotSettled while the latest market is open or locked.
	AppendMarket(ctx context.Context, m Market) (Market, error)
	// RecordBet adds amount to the account's side and the side total. It
	// fails with ErrBettingWindowClosed when the market is settled or at is
	// not before EndTime. A positive poolCap bounds TotalOver+TotalUnder
	// after the bet.
	RecordBet(ctx context.Context, id uint64, account string, side Side, amount, poolCap *big.Int, at time.Time) (Market, error)
	// RecordSettlement stores the price and flips Settled exactly once.
	RecordSettlement(ctx context.Context, id uint64, price *big.Int) (Market, error)
	// RecordClaim marks the wager claimed and adds amount to PaidOut.
	RecordClaim(ctx context.Context, id uint64, account string, amount *big.Int) error
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
