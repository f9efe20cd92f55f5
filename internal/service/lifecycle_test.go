package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
)

func TestStateTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, state, err := f.lc.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StateNone, state)

	m := f.open(t, 0, 69420)
	assert.Equal(t, uint64(0), m.ID)
	assert.Equal(t, time.Unix(240, 0), m.EndTime)

	f.clock.Set(239)
	_, state, err = f.lc.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StateOpen, state)

	f.clock.Set(240)
	_, state, err = f.lc.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StateLocked, state)

	_, err = f.lc.Settle(ctx, agent, 0, domain.Tokens(70000))
	require.NoError(t, err)
	_, state, err = f.lc.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StateSettled, state)
}

func TestPlaceBetUpdatesTotals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.open(t, 0, 69420)
	f.clock.Set(10)

	before, err := f.lc.Current(ctx)
	require.NoError(t, err)

	after, err := f.lc.PlaceBet(ctx, alice, 0, domain.SideOver, domain.Tokens(50))
	require.NoError(t, err)

	assert.Equal(t, domain.Tokens(50).String(), after.TotalOver.String())
	assert.Equal(t, before.TotalUnder.String(), after.TotalUnder.String())
	assert.Equal(t, domain.Tokens(50).String(), after.Pool().String())

	w, err := f.lc.Wager(ctx, 0, alice)
	require.NoError(t, err)
	assert.Equal(t, domain.Tokens(50).String(), w.Over.String())
	assert.Zero(t, w.Under.Sign())
	assert.False(t, w.Claimed)

	assert.Equal(t, domain.Tokens(950).String(), f.balance(t, alice).String())
	assert.Equal(t, domain.Tokens(50).String(), f.balance(t, pool).String())
}

func TestPlaceBetValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.open(t, 0, 69420)
	f.clock.Set(10)

	tests := []struct {
		name    string
		account string
		market  uint64
		side    domain.Side
		amount  int64
		want    error
	}{
		{"below minimum", alice, 0, domain.SideOver, 9, domain.ErrBetTooSmall},
		{"above maximum", alice, 0, domain.SideOver, 101, domain.ErrBetTooLarge},
		{"unknown side", alice, 0, domain.Side("sideways"), 10, domain.ErrInvalidSide},
		{"stale market", alice, 7, domain.SideUnder, 10, domain.ErrWrongMarket},
		{"bad address", "not-an-address", 0, domain.SideOver, 10, domain.ErrInvalidAccount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.lc.PlaceBet(ctx, tt.account, tt.market, tt.side, domain.Tokens(tt.amount))
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, domain.KindValidation, domain.KindOf(err))
		})
	}

	_, err := f.lc.PlaceBet(ctx, alice, 0, domain.SideOver, domain.Tokens(10))
	require.NoError(t, err)
	_, err = f.lc.PlaceBet(ctx, alice, 0, domain.SideOver, domain.Tokens(100))
	require.NoError(t, err)
}

func TestPlaceBetRejectedAfterEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.open(t, 0, 69420)

	f.clock.Set(240)
	_, err := f.lc.PlaceBet(ctx, alice, 0, domain.SideOver, domain.Tokens(10))
	assert.ErrorIs(t, err, domain.ErrBettingWindowClosed)

	f.clock.Set(10_000)
	_, err = f.lc.PlaceBet(ctx, alice, 0, domain.SideOver, domain.Tokens(10))
	assert.ErrorIs(t, err, domain.ErrBettingWindowClosed)
}

func TestPlaceBetLockedDuringApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.open(t, 0, 69420)
	f.clock.Set(239)
	f.token.onApprove = func() { f.clock.Set(300) }

	_, err := f.lc.PlaceBet(ctx, alice, 0, domain.SideOver, domain.Tokens(50))
	assert.ErrorIs(t, err, domain.ErrBettingWindowClosed)
	assert.Equal(t, 1, f.token.Approvals())

	m, state, err := f.lc.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StateLocked, state)
	assert.Zero(t, m.Pool().Sign())

	w, err := f.lc.Wager(ctx, 0, alice)
	require.NoError(t, err)
	assert.True(t, w.IsZero())
	assert.Equal(t, domain.Tokens(1000).String(), f.balance(t, alice).String(), "stake returned")
	assert.Zero(t, f.balance(t, pool).Sign())
}

func TestPlaceBetNoMarket(t *testing.T) {
	f := newFixture(t)
	_, err := f.lc.PlaceBet(context.Background(), alice, 0, domain.SideOver, domain.Tokens(10))
	assert.ErrorIs(t, err, domain.ErrNoMarket)
}

func TestPlaceBetInsufficientBalanceKeepsApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.open(t, 0, 69420)
	f.clock.Set(10)

	const poor = "0x0000000000000000000000000000000000000C0C"
	_, err := f.lc.PlaceBet(ctx, poor, 0, domain.SideOver, domain.Tokens(10))
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.Equal(t, domain.KindUser, domain.KindOf(err))
	assert.Equal(t, 1, f.token.Approvals())

	acct, err := domain.NormalizeAccount(poor)
	require.NoError(t, err)
	require.NoError(t, f.token.Mint(ctx, acct, domain.Tokens(10)))

	_, err = f.lc.PlaceBet(ctx, poor, 0, domain.SideOver, domain.Tokens(10))
	require.NoError(t, err)
	assert.Equal(t, 1, f.token.Approvals(), "retry reuses the surviving approval")
}

func TestPlaceBetMarketCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.open(t, 0, 69420)
	f.clock.Set(10)

	capped, err := newCappedLifecycle(f, domain.Tokens(120))
	require.NoError(t, err)

	_, err = capped.PlaceBet(ctx, alice, 0, domain.SideOver, domain.Tokens(100))
	require.NoError(t, err)
	_, err = capped.PlaceBet(ctx, bob, 0, domain.SideUnder, domain.Tokens(30))
	assert.ErrorIs(t, err, domain.ErrMarketBetLimitReached)
	_, err = capped.PlaceBet(ctx, bob, 0, domain.SideUnder, domain.Tokens(20))
	require.NoError(t, err)
}

func TestSettle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.open(t, 0, 69420)

	f.clock.Set(100)
	_, err := f.lc.Settle(ctx, agent, 0, domain.Tokens(70000))
	assert.ErrorIs(t, err, domain.ErrMarketNotEnded)

	f.clock.Set(250)
	_, err = f.lc.Settle(ctx, alice, 0, domain.Tokens(70000))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = f.lc.Settle(ctx, agent, 0, domain.Tokens(0))
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)

	m, err := f.lc.Settle(ctx, agent, 0, domain.Tokens(70000))
	require.NoError(t, err)
	assert.True(t, m.Settled)
	assert.Equal(t, domain.OutcomeOver, m.Outcome())

	_, err = f.lc.Settle(ctx, agent, 0, domain.Tokens(60000))
	assert.ErrorIs(t, err, domain.ErrAlreadySettled)

	again, err := f.lc.Market(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.Tokens(70000).String(), again.ActualPrice.String())
}

func TestCreateNextRequiresSettledCurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.open(t, 0, 69420)

	f.clock.Set(300)
	_, err := f.lc.CreateNext(ctx, agent, domain.Tokens(70000))
	assert.ErrorIs(t, err, domain.ErrPreviousMarketNotSettled)
	assert.Equal(t, domain.KindPrecondition, domain.KindOf(err))

	_, err = f.lc.CreateNext(ctx, bob, domain.Tokens(70000))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = f.lc.Settle(ctx, agent, 0, domain.Tokens(70000))
	require.NoError(t, err)
	m, err := f.lc.CreateNext(ctx, agent, domain.Tokens(70700))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), m.ID)
	assert.Equal(t, time.Unix(540, 0), m.EndTime)
}

func TestClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.open(t, 0, 69420)
	f.clock.Set(10)
	_, err := f.lc.PlaceBet(ctx, alice, 0, domain.SideOver, domain.Tokens(50))
	require.NoError(t, err)
	_, err = f.lc.PlaceBet(ctx, bob, 0, domain.SideUnder, domain.Tokens(20))
	require.NoError(t, err)

	_, err = f.lc.Claim(ctx, alice, 0)
	assert.ErrorIs(t, err, domain.ErrMarketNotSettled)

	f.clock.Set(250)
	_, err = f.lc.Settle(ctx, agent, 0, domain.Tokens(70000))
	require.NoError(t, err)

	_, err = f.lc.Claim(ctx, bob, 0)
	assert.ErrorIs(t, err, domain.ErrNothingToClaim)

	claimable, err := f.lc.Claimable(ctx, alice, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.Tokens(63).String(), claimable.String())

	paid, err := f.lc.Claim(ctx, alice, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.Tokens(63).String(), paid.String())
	assert.Equal(t, domain.Tokens(1013).String(), f.balance(t, alice).String())
	assert.Equal(t, domain.Tokens(7).String(), f.balance(t, pool).String())

	w, err := f.lc.Wager(ctx, 0, alice)
	require.NoError(t, err)
	assert.True(t, w.Claimed)

	_, err = f.lc.Claim(ctx, alice, 0)
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)
}

func TestClaimPushRefundsEveryone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.open(t, 0, 69420)
	f.clock.Set(10)
	_, err := f.lc.PlaceBet(ctx, alice, 0, domain.SideOver, domain.Tokens(40))
	require.NoError(t, err)
	_, err = f.lc.PlaceBet(ctx, alice, 0, domain.SideUnder, domain.Tokens(15))
	require.NoError(t, err)
	_, err = f.lc.PlaceBet(ctx, bob, 0, domain.SideUnder, domain.Tokens(20))
	require.NoError(t, err)

	f.clock.Set(240)
	_, err = f.lc.Settle(ctx, agent, 0, domain.Tokens(69420))
	require.NoError(t, err)

	paid, err := f.lc.Claim(ctx, alice, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.Tokens(55).String(), paid.String())

	paid, err = f.lc.Claim(ctx, bob, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.Tokens(20).String(), paid.String())

	assert.Zero(t, f.balance(t, pool).Sign())
}

func TestClaimInvariantViolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.open(t, 0, 100)
	f.clock.Set(10)
	_, err := f.lc.PlaceBet(ctx, alice, 0, domain.SideOver, domain.Tokens(50))
	require.NoError(t, err)
	_, err = f.lc.PlaceBet(ctx, bob, 0, domain.SideUnder, domain.Tokens(50))
	require.NoError(t, err)
	f.clock.Set(240)
	_, err = f.lc.Settle(ctx, agent, 0, domain.Tokens(200))
	require.NoError(t, err)

	drained, err := newLifecycle(f, drainedStore{f.store}, nil)
	require.NoError(t, err)

	_, err = drained.Claim(ctx, alice, 0)
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)
	assert.Equal(t, domain.KindInvariant, domain.KindOf(err))

	w, err := f.lc.Wager(ctx, 0, alice)
	require.NoError(t, err)
	assert.False(t, w.Claimed)
}

func TestClaimRecordedBeforeRelease(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.open(t, 0, 69420)
	f.clock.Set(10)
	_, err := f.lc.PlaceBet(ctx, alice, 0, domain.SideOver, domain.Tokens(50))
	require.NoError(t, err)
	_, err = f.lc.PlaceBet(ctx, bob, 0, domain.SideUnder, domain.Tokens(20))
	require.NoError(t, err)
	f.clock.Set(250)
	_, err = f.lc.Settle(ctx, agent, 0, domain.Tokens(70000))
	require.NoError(t, err)

	stuck, err := newLifecycleWithCustody(f, f.store, stuckCustody{f.custody, errors.New("pool frozen")}, nil)
	require.NoError(t, err)

	_, err = stuck.Claim(ctx, alice, 0)
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)

	w, err := f.lc.Wager(ctx, 0, alice)
	require.NoError(t, err)
	assert.True(t, w.Claimed)
	assert.Equal(t, domain.Tokens(950).String(), f.balance(t, alice).String())

	_, err = f.lc.Claim(ctx, alice, 0)
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed, "a failed release is never paid twice")
}

func TestKindsSurviveWrapping(t *testing.T) {
	f := newFixture(t)
	f.token.fail = errors.New("wallet rejected")
	f.open(t, 0, 69420)
	f.clock.Set(10)

	_, err := f.lc.PlaceBet(context.Background(), alice, 0, domain.SideOver, domain.Tokens(10))
	assert.ErrorIs(t, err, domain.ErrApprovalFailed)
	assert.Equal(t, domain.KindUser, domain.KindOf(err))
	assert.ErrorContains(t, err, "wallet rejected")
}
