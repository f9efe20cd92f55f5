package service_test

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
	"github.com/abhishek3950/AIvsHuman/internal/service"
	"github.com/abhishek3950/AIvsHuman/internal/store/memory"
)

type recordingAlerter struct {
	mu        sync.Mutex
	settled   []uint64
	created   []uint64
	failures  []uint64
	creations []uint64
}

func (r *recordingAlerter) MarketSettled(_ context.Context, m domain.Market, _ int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settled = append(r.settled, m.ID)
	return nil
}

func (r *recordingAlerter) MarketCreated(_ context.Context, m domain.Market) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, m.ID)
	return nil
}

func (r *recordingAlerter) SettlementFailed(_ context.Context, id uint64, _ error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, id)
	return nil
}

func (r *recordingAlerter) CreationFailed(_ context.Context, id uint64, _ error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creations = append(r.creations, id)
	return nil
}

type recordingArchiver struct {
	ids []uint64
}

func (a *recordingArchiver) ArchiveSettlement(_ context.Context, m domain.Market) (string, error) {
	a.ids = append(a.ids, m.ID)
	return fmt.Sprintf("settlements/market-%d.json", m.ID), nil
}

func newScheduler(f *fixture, oracle domain.PriceOracle, archiver domain.SettlementArchiver, alerter service.Alerter) *service.Scheduler {
	return service.NewScheduler(
		f.lc,
		oracle,
		service.MarkupPolicy{Bps: service.DefaultMarkupBps},
		service.SchedulerConfig{Asset: "bitcoin", Interval: time.Minute, TickTimeout: time.Second},
		archiver,
		alerter,
		discardLogger(),
	)
}

func TestTickBootstrapsFirstMarket(t *testing.T) {
	f := newFixture(t)
	oracle := &fakeOracle{price: domain.Tokens(70000)}
	s := newScheduler(f, oracle, nil, nil)

	res, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Nil(t, res.Settled)
	require.NotNil(t, res.Created)
	assert.Equal(t, uint64(0), res.Created.ID)
	assert.Equal(t, domain.Tokens(70700).String(), res.Created.Prediction.String())
}

func TestTickLeavesOpenMarketAlone(t *testing.T) {
	f := newFixture(t)
	f.open(t, 0, 69420)
	f.clock.Set(100)
	oracle := &fakeOracle{price: domain.Tokens(70000)}

	res, err := newScheduler(f, oracle, nil, nil).Tick(context.Background())
	require.NoError(t, err)
	assert.Nil(t, res.Settled)
	assert.Nil(t, res.Created)
	assert.Zero(t, oracle.calls)
}

func TestTickOracleFailureChangesNothing(t *testing.T) {
	f := newFixture(t)
	f.open(t, 0, 69420)
	f.clock.Set(300)
	oracle := &fakeOracle{err: fmt.Errorf("coingecko: %w", domain.ErrOracleUnavailable)}
	alerter := &recordingAlerter{}
	s := newScheduler(f, oracle, nil, alerter)

	_, err := s.Tick(context.Background())
	require.ErrorIs(t, err, domain.ErrOracleUnavailable)
	assert.True(t, domain.IsTransient(err))
	assert.Equal(t, []uint64{0}, alerter.failures)
	assert.Empty(t, alerter.creations)

	cur, err := f.lc.Current(context.Background())
	require.NoError(t, err)
	assert.False(t, cur.Settled)
	n, err := f.store.MarketCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	oracle.set(domain.Tokens(70000), nil)
	res, err := s.Tick(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.Settled)
	require.NotNil(t, res.Created)
}

func TestTickReportsCreationFailure(t *testing.T) {
	f := newFixture(t)
	audit := memory.NewAuditStore()
	lc, err := newLifecycleWithCustody(f, f.store, f.custody, nil, service.WithEvents(nil, audit))
	require.NoError(t, err)
	oracle := &fakeOracle{err: fmt.Errorf("coingecko: %w", domain.ErrOracleUnavailable)}
	alerter := &recordingAlerter{}
	s := service.NewScheduler(lc, oracle, service.MarkupPolicy{Bps: service.DefaultMarkupBps},
		service.SchedulerConfig{Asset: "bitcoin", Interval: time.Minute, TickTimeout: time.Second},
		nil, alerter, discardLogger())
	ctx := context.Background()

	_, err = s.Tick(ctx)
	require.ErrorIs(t, err, domain.ErrOracleUnavailable)
	assert.Equal(t, []uint64{0}, alerter.creations)
	assert.Empty(t, alerter.failures)

	entries, err := audit.List(ctx, domain.ListOpts{Event: string(domain.EventCreationError)})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, uint64(0), entries[0].Detail["market_id"])

	// Settled current market: the failure names the id the next market takes.
	oracle.set(domain.Tokens(70000), nil)
	_, err = s.Tick(ctx)
	require.NoError(t, err)
	f.clock.Set(300)
	_, err = lc.Settle(ctx, agent, 0, domain.Tokens(70000))
	require.NoError(t, err)
	oracle.set(nil, fmt.Errorf("coingecko: %w", domain.ErrOracleUnavailable))

	_, err = s.Tick(ctx)
	require.Error(t, err)
	assert.Equal(t, []uint64{0, 1}, alerter.creations)
}

// guardStore fails the test if a market is appended over an unsettled one.
type guardStore struct {
	domain.MarketStore
	t *testing.T
}

func (g guardStore) AppendMarket(ctx context.Context, m domain.Market) (domain.Market, error) {
	if cur, err := g.MarketStore.CurrentMarket(ctx); err == nil && !cur.Settled {
		g.t.Errorf("market appended while market %d is unsettled", cur.ID)
	}
	return g.MarketStore.AppendMarket(ctx, m)
}

func TestSchedulerNeverCreatesOverUnsettled(t *testing.T) {
	f := newFixture(t)
	lc, err := newLifecycle(f, guardStore{MarketStore: f.store, t: t}, nil)
	require.NoError(t, err)
	f.lc = lc
	oracle := &fakeOracle{price: domain.Tokens(70000)}
	s := newScheduler(f, oracle, nil, nil)
	ctx := context.Background()

	for sec := int64(0); sec <= 2000; sec += 60 {
		f.clock.Set(sec)
		if sec == 600 {
			oracle.set(nil, domain.ErrOracleUnavailable)
		}
		if sec == 900 {
			oracle.set(domain.Tokens(71000), nil)
		}
		_, _ = s.Tick(ctx)
	}

	n, err := f.store.MarketCount(ctx)
	require.NoError(t, err)
	assert.Greater(t, n, uint64(3))
}

func TestEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alerter := &recordingAlerter{}
	archiver := &recordingArchiver{}
	oracle := &fakeOracle{price: domain.Tokens(70000)}
	s := newScheduler(f, oracle, archiver, alerter)

	// Market 0 opens at t=0 predicting $69,420.
	f.open(t, 0, 69420)

	f.clock.Set(10)
	_, err := f.lc.PlaceBet(ctx, alice, 0, domain.SideOver, domain.Tokens(50))
	require.NoError(t, err)
	_, err = f.lc.PlaceBet(ctx, bob, 0, domain.SideUnder, domain.Tokens(20))
	require.NoError(t, err)

	f.clock.Set(250)
	res, err := s.Tick(ctx)
	require.NoError(t, err)
	require.NotNil(t, res.Settled)
	assert.Equal(t, domain.OutcomeOver, res.Settled.Outcome())
	require.NotNil(t, res.Created)
	assert.Equal(t, uint64(1), res.Created.ID)
	assert.Equal(t, time.Unix(250, 0), res.Created.StartTime)
	assert.Equal(t, time.Unix(490, 0), res.Created.EndTime)
	assert.Equal(t, 1, oracle.calls, "settlement price is reused for the next prediction")

	paid, err := f.lc.Claim(ctx, alice, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.Tokens(63).String(), paid.String())

	_, err = f.lc.Claim(ctx, bob, 0)
	assert.ErrorIs(t, err, domain.ErrNothingToClaim)

	assert.Equal(t, []uint64{0}, archiver.ids)
	assert.Equal(t, []uint64{0}, alerter.settled)
	assert.Equal(t, []uint64{1}, alerter.created)
	assert.Empty(t, alerter.failures)
}

func TestRunTicksImmediatelyAndStops(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(0)
	oracle := &fakeOracle{price: domain.Tokens(70000)}
	s := newScheduler(f, oracle, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		n, err := f.store.MarketCount(context.Background())
		return err == nil && n == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestMarkupPolicy(t *testing.T) {
	got, err := service.MarkupPolicy{Bps: 100}.Predict(context.Background(), domain.Tokens(70000))
	require.NoError(t, err)
	assert.Equal(t, domain.Tokens(70700).String(), got.String())

	got, err = service.MarkupPolicy{Bps: -50}.Predict(context.Background(), big.NewInt(10_000))
	require.NoError(t, err)
	assert.Equal(t, "9950", got.String())

	_, err = service.MarkupPolicy{}.Predict(context.Background(), big.NewInt(0))
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)
}

type fakeLocks struct {
	held     bool
	acquired int
	released int
}

func (l *fakeLocks) Acquire(_ context.Context, _ string, _ time.Duration) (func(), error) {
	if l.held {
		return nil, domain.ErrLockHeld
	}
	l.acquired++
	return func() { l.released++ }, nil
}

func TestTickSkipsWhenLockHeld(t *testing.T) {
	f := newFixture(t)
	oracle := &fakeOracle{price: domain.Tokens(70000)}
	locks := &fakeLocks{held: true}
	s := newScheduler(f, oracle, nil, nil).WithLock(locks)

	res, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Nil(t, res.Created)
	assert.Zero(t, oracle.calls)

	locks.held = false
	res, err = s.Tick(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.Created)
	assert.Equal(t, 1, locks.acquired)
	assert.Equal(t, 1, locks.released)
}
