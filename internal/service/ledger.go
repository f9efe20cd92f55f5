package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
)

// DefaultApprovalMultiple sizes approvals so that repeat bets do not need a
// new approval each time.
const DefaultApprovalMultiple = 100

// WagerLedger gates bets on token allowance and balance.
type WagerLedger struct {
	token    domain.TokenLedger
	multiple *big.Int
	logger   *slog.Logger
}

// NewWagerLedger wraps token. A non-positive multiple uses the default.
func NewWagerLedger(token domain.TokenLedger, multiple int64, logger *slog.Logger) *WagerLedger {
	if multiple <= 0 {
		multiple = DefaultApprovalMultiple
	}
	return &WagerLedger{
		token:    token,
		multiple: big.NewInt(multiple),
		logger:   logger.With(slog.String("component", "wager_ledger")),
	}
}

// BalanceOf returns the account's token balance.
func (l *WagerLedger) BalanceOf(ctx context.Context, account string) (*big.Int, error) {
	return l.token.BalanceOf(ctx, account)
}

// Allowance returns how much spender may pull from owner.
func (l *WagerLedger) Allowance(ctx context.Context, owner, spender string) (*big.Int, error) {
	return l.token.Allowance(ctx, owner, spender)
}

// EnsureAllowance approves amount times the configured multiple when the
// current allowance is below amount, then re-reads it. An allowance that is
// already sufficient is left untouched.
func (l *WagerLedger) EnsureAllowance(ctx context.Context, owner, spender string, amount *big.Int) error {
	current, err := l.token.Allowance(ctx, owner, spender)
	if err != nil {
		return fmt.Errorf("ledger: read allowance: %w", err)
	}
	if current.Cmp(amount) >= 0 {
		return nil
	}

	approve := new(big.Int).Mul(amount, l.multiple)
	l.logger.InfoContext(ctx, "approving wager token",
		slog.String("owner", owner),
		slog.String("spender", spender),
		slog.String("amount", approve.String()),
	)
	if err := l.token.Approve(ctx, owner, spender, approve); err != nil {
		if domain.KindOf(err) == domain.KindUnknown {
			return fmt.Errorf("ledger: approve: %w: %w", domain.ErrApprovalFailed, err)
		}
		return fmt.Errorf("ledger: approve: %w", err)
	}

	after, err := l.token.Allowance(ctx, owner, spender)
	if err != nil {
		return fmt.Errorf("ledger: re-read allowance: %w", err)
	}
	if after.Cmp(amount) < 0 {
		return fmt.Errorf("ledger: allowance %s still below %s: %w", after, amount, domain.ErrApprovalFailed)
	}
	return nil
}
