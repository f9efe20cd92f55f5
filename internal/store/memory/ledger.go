package memory

import (
	"context"
	"math/big"
	"sync"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
)

// Ledger is an in-process ERC-20 style token with mintable supply.
type Ledger struct {
	mu         sync.Mutex
	balances   map[string]*big.Int
	allowances map[string]map[string]*big.Int
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		balances:   make(map[string]*big.Int),
		allowances: make(map[string]map[string]*big.Int),
	}
}

// BalanceOf returns the account balance.
func (l *Ledger) BalanceOf(_ context.Context, account string) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.balance(account)), nil
}

// Allowance returns how much spender may pull from owner.
func (l *Ledger) Allowance(_ context.Context, owner, spender string) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.allowance(owner, spender)), nil
}

// Approve sets the allowance. It is final on return.
func (l *Ledger) Approve(_ context.Context, owner, spender string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return domain.ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.allowances[owner] == nil {
		l.allowances[owner] = make(map[string]*big.Int)
	}
	l.allowances[owner][spender] = new(big.Int).Set(amount)
	return nil
}

// Mint credits amount to account.
func (l *Ledger) Mint(_ context.Context, account string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return domain.ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balance(account).Add(l.balance(account), amount)
	return nil
}

// Transfer moves amount from one account to another.
func (l *Ledger) Transfer(_ context.Context, from, to string, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(from, to, amount)
}

// TransferFrom moves amount from owner to recipient, spending spender's
// allowance.
func (l *Ledger) TransferFrom(_ context.Context, spender, owner, to string, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	allowed := l.allowance(owner, spender)
	if allowed.Cmp(amount) < 0 {
		return domain.ErrInsufficientAllowance
	}
	if err := l.move(owner, to, amount); err != nil {
		return err
	}
	l.allowances[owner][spender] = new(big.Int).Sub(allowed, amount)
	return nil
}

func (l *Ledger) move(from, to string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return domain.ErrInvalidAmount
	}
	src := l.balance(from)
	if src.Cmp(amount) < 0 {
		return domain.ErrInsufficientBalance
	}
	src.Sub(src, amount)
	dst := l.balance(to)
	dst.Add(dst, amount)
	return nil
}

// balance returns the live balance pointer, creating it on first use.
// Callers hold l.mu.
func (l *Ledger) balance(account string) *big.Int {
	b, ok := l.balances[account]
	if !ok {
		b = new(big.Int)
		l.balances[account] = b
	}
	return b
}

func (l *Ledger) allowance(owner, spender string) *big.Int {
	if a, ok := l.allowances[owner][spender]; ok {
		return a
	}
	return new(big.Int)
}

// Custody is a pool account inside a Ledger. Stakes are pulled with the
// pool's allowance and winnings are paid back out of it.
type Custody struct {
	ledger *Ledger
	pool   string
}

// NewCustody uses pool as both the spender and the holding account.
func NewCustody(ledger *Ledger, pool string) *Custody {
	return &Custody{ledger: ledger, pool: pool}
}

// Address is the spender accounts must approve.
func (c *Custody) Address() string { return c.pool }

// Collect pulls the stake into the pool.
func (c *Custody) Collect(ctx context.Context, account string, amount *big.Int) error {
	return c.ledger.TransferFrom(ctx, c.pool, account, c.pool, amount)
}

// Release pays amount from the pool.
func (c *Custody) Release(ctx context.Context, account string, amount *big.Int) error {
	return c.ledger.Transfer(ctx, c.pool, account, amount)
}
