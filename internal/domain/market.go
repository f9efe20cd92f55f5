package domain

import (
	"math/big"
	"strings"
	"time"
)

// TokenDecimals is the fixed-point scale of wager tokens and prices.
const TokenDecimals = 18

// Side is the direction of a wager relative to the prediction.
type Side string

const (
	SideOver  Side = "over"
	SideUnder Side = "under"
)

// ParseSide accepts "over" or "under" in any case.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case SideOver:
		return SideOver, nil
	case SideUnder:
		return SideUnder, nil
	}
	return "", ErrInvalidSide
}

// Valid reports whether s is a known side.
func (s Side) Valid() bool { return s == SideOver || s == SideUnder }

// Outcome is the resolved result of a settled market.
type Outcome string

const (
	OutcomeNone  Outcome = ""
	OutcomeOver  Outcome = "over"
	OutcomeUnder Outcome = "under"
	OutcomePush  Outcome = "push"
)

// State is the lifecycle position of a market at a given instant.
type State string

const (
	StateNone    State = "none"
	StateOpen    State = "open"
	StateLocked  State = "locked"
	StateSettled State = "settled"
)

// Market is one time-boxed over/under round on BTC/USD.
type Market struct {
	ID          uint64
	StartTime   time.Time
	EndTime     time.Time
	Prediction  *big.Int // 18-decimal USD
	ActualPrice *big.Int // zero until settled
	TotalOver   *big.Int
	TotalUnder  *big.Int
	PaidOut     *big.Int
	Settled     bool
}

// NewMarket returns an unsettled market with zeroed totals.
func NewMarket(start time.Time, window time.Duration, prediction *big.Int) Market {
	return Market{
		StartTime:   start,
		EndTime:     start.Add(window),
		Prediction:  new(big.Int).Set(prediction),
		ActualPrice: new(big.Int),
		TotalOver:   new(big.Int),
		TotalUnder:  new(big.Int),
		PaidOut:     new(big.Int),
	}
}

// Pool is TotalOver + TotalUnder.
func (m Market) Pool() *big.Int {
	return new(big.Int).Add(orZero(m.TotalOver), orZero(m.TotalUnder))
}

// StateAt derives the lifecycle state at now.
func (m Market) StateAt(now time.Time) State {
	switch {
	case m.Settled:
		return StateSettled
	case now.Before(m.EndTime):
		return StateOpen
	default:
		return StateLocked
	}
}

// Outcome compares the settlement price with the prediction. Unsettled
// markets have no outcome.
func (m Market) Outcome() Outcome {
	if !m.Settled {
		return OutcomeNone
	}
	switch orZero(m.ActualPrice).Cmp(orZero(m.Prediction)) {
	case 1:
		return OutcomeOver
	case -1:
		return OutcomeUnder
	default:
		return OutcomePush
	}
}

// SideTotal returns the pool staked on side.
func (m Market) SideTotal(side Side) *big.Int {
	if side == SideOver {
		return orZero(m.TotalOver)
	}
	return orZero(m.TotalUnder)
}

// Clone deep-copies the big.Int fields.
func (m Market) Clone() Market {
	m.Prediction = cloneInt(m.Prediction)
	m.ActualPrice = cloneInt(m.ActualPrice)
	m.TotalOver = cloneInt(m.TotalOver)
	m.TotalUnder = cloneInt(m.TotalUnder)
	m.PaidOut = cloneInt(m.PaidOut)
	return m
}

// Wager is one account's position in one market.
type Wager struct {
	Over          *big.Int
	Under         *big.Int
	Claimed       bool
	ClaimedAmount *big.Int
}

// ZeroWager is the wager of an account that never bet.
func ZeroWager() Wager {
	return Wager{Over: new(big.Int), Under: new(big.Int), ClaimedAmount: new(big.Int)}
}

// Stake returns the amount on side.
func (w Wager) Stake(side Side) *big.Int {
	if side == SideOver {
		return orZero(w.Over)
	}
	return orZero(w.Under)
}

// IsZero reports whether the account holds nothing on either side.
func (w Wager) IsZero() bool {
	return orZero(w.Over).Sign() == 0 && orZero(w.Under).Sign() == 0
}

// Bet is one history row: a single side of an account's wager.
type Bet struct {
	MarketID uint64
	Side     Side
	Amount   *big.Int
	Claimed  bool
	Payout   *big.Int
	Market   Market
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func cloneInt(v *big.Int) *big.Int {
	return new(big.Int).Set(orZero(v))
}
