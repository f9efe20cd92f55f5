package service_test

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
	"github.com/abhishek3950/AIvsHuman/internal/service"
	"github.com/abhishek3950/AIvsHuman/internal/store/memory"
)

const (
	agent = "0x00000000000000000000000000000000000000aa"
	pool  = "0x00000000000000000000000000000000000000F0"
	alice = "0x000000000000000000000000000000000000A11c"
	bob   = "0x0000000000000000000000000000000000000B0b"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(sec int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = time.Unix(sec, 0)
}

// countingToken records how many approvals were sent. onApprove runs
// before each approval, standing in for the wait on a receipt.
type countingToken struct {
	*memory.Ledger
	mu        sync.Mutex
	approvals int
	fail      error
	onApprove func()
}

func (c *countingToken) Approve(ctx context.Context, owner, spender string, amount *big.Int) error {
	c.mu.Lock()
	c.approvals++
	fail, hook := c.fail, c.onApprove
	c.mu.Unlock()
	if hook != nil {
		hook()
	}
	if fail != nil {
		return fail
	}
	return c.Ledger.Approve(ctx, owner, spender, amount)
}

func (c *countingToken) Approvals() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.approvals
}

type fakeOracle struct {
	mu    sync.Mutex
	price *big.Int
	err   error
	calls int
}

func (o *fakeOracle) FetchPrice(_ context.Context, _ string) (*big.Int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	if o.err != nil {
		return nil, o.err
	}
	return new(big.Int).Set(o.price), nil
}

func (o *fakeOracle) set(price *big.Int, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.price, o.err = price, err
}

type fixture struct {
	store   *memory.MarketStore
	token   *countingToken
	custody *memory.Custody
	clock   *fakeClock
	lc      *service.Lifecycle
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: memory.NewMarketStore(),
		token: &countingToken{Ledger: memory.NewLedger()},
		clock: &fakeClock{},
	}
	poolAddr, err := domain.NormalizeAccount(pool)
	require.NoError(t, err)
	f.custody = memory.NewCustody(f.token.Ledger, poolAddr)

	lc, err := newLifecycle(f, f.store, nil)
	require.NoError(t, err)
	f.lc = lc

	ctx := context.Background()
	for _, acct := range []string{alice, bob} {
		norm, err := domain.NormalizeAccount(acct)
		require.NoError(t, err)
		require.NoError(t, f.token.Mint(ctx, norm, domain.Tokens(1000)))
	}
	return f
}

func (f *fixture) open(t *testing.T, at int64, prediction int64) domain.Market {
	t.Helper()
	f.clock.Set(at)
	m, err := f.lc.CreateNext(context.Background(), agent, domain.Tokens(prediction))
	require.NoError(t, err)
	return m
}

func (f *fixture) balance(t *testing.T, acct string) *big.Int {
	t.Helper()
	norm, err := domain.NormalizeAccount(acct)
	require.NoError(t, err)
	b, err := f.token.BalanceOf(context.Background(), norm)
	require.NoError(t, err)
	return b
}

func newLifecycle(f *fixture, store domain.MarketStore, marketCap *big.Int) (*service.Lifecycle, error) {
	return newLifecycleWithCustody(f, store, f.custody, marketCap)
}

func newLifecycleWithCustody(f *fixture, store domain.MarketStore, custody domain.Custody, marketCap *big.Int, opts ...service.LifecycleOption) (*service.Lifecycle, error) {
	return service.NewLifecycle(
		store,
		service.NewWagerLedger(f.token, 0, discardLogger()),
		custody,
		service.LifecycleConfig{
			Window:    240 * time.Second,
			MinBet:    domain.Tokens(10),
			MaxBet:    domain.Tokens(100),
			MarketCap: marketCap,
			FeeRate:   10,
			Agent:     agent,
			Spender:   pool,
		},
		discardLogger(),
		append([]service.LifecycleOption{service.WithClock(f.clock.Now)}, opts...)...,
	)
}

func newCappedLifecycle(f *fixture, marketCap *big.Int) (*service.Lifecycle, error) {
	return newLifecycle(f, f.store, marketCap)
}

// drainedStore reports every market as already fully paid out.
type drainedStore struct {
	*memory.MarketStore
}

func (d drainedStore) GetMarket(ctx context.Context, id uint64) (domain.Market, error) {
	m, err := d.MarketStore.GetMarket(ctx, id)
	if err != nil {
		return m, err
	}
	m.PaidOut = m.Pool()
	return m, nil
}

// stuckCustody collects normally but cannot release.
type stuckCustody struct {
	*memory.Custody
	err error
}

func (s stuckCustody) Release(context.Context, string, *big.Int) error {
	return s.err
}
