package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
	"github.com/abhishek3950/AIvsHuman/internal/store/memory"
)

const alice = "0x00000000000000000000000000000000000000A1"

// betTime falls inside newMarket's betting window.
var betTime = time.Unix(10, 0)

func newMarket() domain.Market {
	return domain.NewMarket(time.Unix(0, 0), 240*time.Second, domain.Tokens(69420))
}

func TestMarketStoreEmpty(t *testing.T) {
	s := memory.NewMarketStore()
	ctx := context.Background()

	_, err := s.CurrentMarket(ctx)
	assert.ErrorIs(t, err, domain.ErrNoMarket)

	_, err = s.GetMarket(ctx, 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	n, err := s.MarketCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMarketStoreAppendRequiresSettledPrevious(t *testing.T) {
	s := memory.NewMarketStore()
	ctx := context.Background()

	m, err := s.AppendMarket(ctx, newMarket())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), m.ID)

	_, err = s.AppendMarket(ctx, newMarket())
	assert.ErrorIs(t, err, domain.ErrPreviousMarketNotSettled)

	_, err = s.RecordSettlement(ctx, 0, domain.Tokens(70000))
	require.NoError(t, err)

	m, err = s.AppendMarket(ctx, newMarket())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), m.ID)

	cur, err := s.CurrentMarket(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), cur.ID)
}

func TestMarketStoreRecordBet(t *testing.T) {
	s := memory.NewMarketStore()
	ctx := context.Background()
	_, err := s.AppendMarket(ctx, newMarket())
	require.NoError(t, err)

	w, err := s.GetWager(ctx, 0, alice)
	require.NoError(t, err)
	assert.True(t, w.IsZero())

	m, err := s.RecordBet(ctx, 0, alice, domain.SideOver, domain.Tokens(50), nil, betTime)
	require.NoError(t, err)
	assert.Equal(t, domain.Tokens(50).String(), m.TotalOver.String())

	_, err = s.RecordBet(ctx, 0, alice, domain.SideUnder, domain.Tokens(20), nil, betTime)
	require.NoError(t, err)

	w, err = s.GetWager(ctx, 0, alice)
	require.NoError(t, err)
	assert.Equal(t, domain.Tokens(50).String(), w.Over.String())
	assert.Equal(t, domain.Tokens(20).String(), w.Under.String())

	_, err = s.RecordBet(ctx, 0, alice, domain.SideOver, domain.Tokens(40), domain.Tokens(100), betTime)
	assert.ErrorIs(t, err, domain.ErrMarketBetLimitReached)

	_, err = s.RecordSettlement(ctx, 0, domain.Tokens(1))
	require.NoError(t, err)
	_, err = s.RecordBet(ctx, 0, alice, domain.SideOver, domain.Tokens(10), nil, betTime)
	assert.ErrorIs(t, err, domain.ErrBettingWindowClosed)
}

func TestMarketStoreRejectsBetAfterEnd(t *testing.T) {
	s := memory.NewMarketStore()
	ctx := context.Background()
	m, err := s.AppendMarket(ctx, newMarket())
	require.NoError(t, err)

	_, err = s.RecordBet(ctx, 0, alice, domain.SideOver, domain.Tokens(10), nil, m.EndTime)
	assert.ErrorIs(t, err, domain.ErrBettingWindowClosed)
	_, err = s.RecordBet(ctx, 0, alice, domain.SideOver, domain.Tokens(10), nil, m.EndTime.Add(time.Minute))
	assert.ErrorIs(t, err, domain.ErrBettingWindowClosed)

	got, err := s.GetMarket(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, got.Pool().Sign())

	_, err = s.RecordBet(ctx, 0, alice, domain.SideOver, domain.Tokens(10), nil, m.EndTime.Add(-time.Second))
	assert.NoError(t, err)
}

func TestMarketStoreSettleOnce(t *testing.T) {
	s := memory.NewMarketStore()
	ctx := context.Background()
	_, err := s.AppendMarket(ctx, newMarket())
	require.NoError(t, err)

	_, err = s.RecordSettlement(ctx, 0, domain.Tokens(70000))
	require.NoError(t, err)
	_, err = s.RecordSettlement(ctx, 0, domain.Tokens(1))
	assert.ErrorIs(t, err, domain.ErrAlreadySettled)

	m, err := s.GetMarket(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.Tokens(70000).String(), m.ActualPrice.String())
}

func TestMarketStoreClaimOnce(t *testing.T) {
	s := memory.NewMarketStore()
	ctx := context.Background()
	_, err := s.AppendMarket(ctx, newMarket())
	require.NoError(t, err)
	_, err = s.RecordBet(ctx, 0, alice, domain.SideOver, domain.Tokens(50), nil, betTime)
	require.NoError(t, err)

	assert.ErrorIs(t, s.RecordClaim(ctx, 0, alice, domain.Tokens(50)), domain.ErrMarketNotSettled)

	_, err = s.RecordSettlement(ctx, 0, domain.Tokens(70000))
	require.NoError(t, err)
	require.NoError(t, s.RecordClaim(ctx, 0, alice, domain.Tokens(45)))
	assert.ErrorIs(t, s.RecordClaim(ctx, 0, alice, domain.Tokens(45)), domain.ErrAlreadyClaimed)

	w, err := s.GetWager(ctx, 0, alice)
	require.NoError(t, err)
	assert.True(t, w.Claimed)
	m, err := s.GetMarket(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.Tokens(45).String(), m.PaidOut.String())
}

func TestMarketStoreReturnsCopies(t *testing.T) {
	s := memory.NewMarketStore()
	ctx := context.Background()
	m, err := s.AppendMarket(ctx, newMarket())
	require.NoError(t, err)

	m.TotalOver.SetInt64(999)
	got, err := s.GetMarket(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, got.TotalOver.Sign())
}

func TestMarketStoreConcurrentBetsCommute(t *testing.T) {
	s := memory.NewMarketStore()
	ctx := context.Background()
	_, err := s.AppendMarket(ctx, newMarket())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			side := domain.SideOver
			if i%2 == 1 {
				side = domain.SideUnder
			}
			_, err := s.RecordBet(ctx, 0, alice, side, domain.Tokens(10), nil, betTime)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	m, err := s.GetMarket(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.Tokens(250).String(), m.TotalOver.String())
	assert.Equal(t, domain.Tokens(250).String(), m.TotalUnder.String())
}

func TestMarketStoreConcurrentSettleSingleWinner(t *testing.T) {
	s := memory.NewMarketStore()
	ctx := context.Background()
	_, err := s.AppendMarket(ctx, newMarket())
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.RecordSettlement(ctx, 0, domain.Tokens(70000)); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}
