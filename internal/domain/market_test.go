package domain_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
)

func TestMarketStateAt(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	m := domain.NewMarket(start, 240*time.Second, domain.Tokens(69420))

	assert.Equal(t, domain.StateOpen, m.StateAt(start.Add(10*time.Second)))
	assert.Equal(t, domain.StateLocked, m.StateAt(start.Add(240*time.Second)))
	assert.Equal(t, domain.StateLocked, m.StateAt(start.Add(time.Hour)))

	m.Settled = true
	assert.Equal(t, domain.StateSettled, m.StateAt(start))
}

func TestMarketOutcome(t *testing.T) {
	m := domain.NewMarket(time.Unix(0, 0), time.Minute, domain.Tokens(100))
	assert.Equal(t, domain.OutcomeNone, m.Outcome())

	m.Settled = true
	for _, tt := range []struct {
		actual int64
		want   domain.Outcome
	}{
		{101, domain.OutcomeOver},
		{99, domain.OutcomeUnder},
		{100, domain.OutcomePush},
	} {
		m.ActualPrice = domain.Tokens(tt.actual)
		assert.Equal(t, tt.want, m.Outcome(), "actual %d", tt.actual)
	}
}

func TestParseSide(t *testing.T) {
	s, err := domain.ParseSide(" Over ")
	require.NoError(t, err)
	assert.Equal(t, domain.SideOver, s)

	_, err = domain.ParseSide("sideways")
	assert.ErrorIs(t, err, domain.ErrInvalidSide)
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("settle: %w", domain.ErrAlreadySettled)
	assert.Equal(t, domain.KindPrecondition, domain.KindOf(wrapped))
	assert.Equal(t, domain.KindTransient, domain.KindOf(domain.ErrOracleUnavailable))
	assert.True(t, domain.IsTransient(fmt.Errorf("x: %w", domain.ErrRPCTimeout)))
	assert.Equal(t, domain.KindUnknown, domain.KindOf(domain.ErrNotFound))
}

func TestUnits(t *testing.T) {
	v, err := domain.ParseUnits("69420.5")
	require.NoError(t, err)
	assert.Equal(t, "69420500000000000000000", v.String())
	assert.Equal(t, "69420.50", domain.FormatUnits(v, 2))
	assert.Equal(t, "10000000000000000000", domain.Tokens(10).String())

	_, err = domain.ParseUnits("abc")
	assert.Error(t, err)
}
