// Package payout implements pari-mutuel settlement math on 18-decimal
// integer amounts. All division truncates toward zero.
package payout

import (
	"fmt"
	"math/big"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
)

var hundred = big.NewInt(100)

// ComputePayout returns the gross payout owed to a winning stake. The fee is
// taken from the whole pool and the remainder is split pro rata across the
// winning side. A market with no winning stake pays nothing.
func ComputePayout(stake, winningPool, losingPool *big.Int, feeRate int64) *big.Int {
	if winningPool == nil || winningPool.Sign() == 0 || stake == nil || stake.Sign() == 0 {
		return new(big.Int)
	}
	distributable := Distributable(winningPool, losingPool, feeRate)
	out := new(big.Int).Mul(stake, distributable)
	return out.Quo(out, winningPool)
}

// Fee returns pool*feeRate/100 for pool = winningPool + losingPool.
func Fee(winningPool, losingPool *big.Int, feeRate int64) *big.Int {
	pool := sum(winningPool, losingPool)
	fee := pool.Mul(pool, big.NewInt(feeRate))
	return fee.Quo(fee, hundred)
}

// Distributable is the pool left for winners after the fee.
func Distributable(winningPool, losingPool *big.Int, feeRate int64) *big.Int {
	pool := sum(winningPool, losingPool)
	return pool.Sub(pool, Fee(winningPool, losingPool, feeRate))
}

// Refund is the push payout: every stake back at 1:1 with no fee.
func Refund(w domain.Wager) *big.Int {
	return sum(w.Over, w.Under)
}

// Summary describes how a settled market's pool is split.
type Summary struct {
	Outcome       domain.Outcome
	Pool          *big.Int
	Fee           *big.Int
	Distributable *big.Int
	WinningPool   *big.Int
}

// Summarize splits a settled market's pool. A push, or a market where
// nobody backed the winning side, charges no fee.
func Summarize(m domain.Market, feeRate int64) Summary {
	s := Summary{
		Outcome:     m.Outcome(),
		Pool:        m.Pool(),
		Fee:         new(big.Int),
		WinningPool: new(big.Int),
	}
	switch s.Outcome {
	case domain.OutcomeOver, domain.OutcomeUnder:
		win, lose := sides(m, s.Outcome)
		s.WinningPool.Set(win)
		if win.Sign() > 0 {
			s.Fee = Fee(win, lose, feeRate)
		}
	case domain.OutcomePush:
		s.WinningPool.Set(s.Pool)
	}
	s.Distributable = new(big.Int).Sub(s.Pool, s.Fee)
	return s
}

// ClaimAmount returns what the wager is owed in a settled market. An
// unsettled market, a losing wager, or an empty winning pool yields zero.
func ClaimAmount(m domain.Market, w domain.Wager, feeRate int64) *big.Int {
	switch m.Outcome() {
	case domain.OutcomePush:
		return Refund(w)
	case domain.OutcomeOver:
		win, lose := sides(m, domain.OutcomeOver)
		return ComputePayout(w.Stake(domain.SideOver), win, lose, feeRate)
	case domain.OutcomeUnder:
		win, lose := sides(m, domain.OutcomeUnder)
		return ComputePayout(w.Stake(domain.SideUnder), win, lose, feeRate)
	}
	return new(big.Int)
}

// SidePayout is the share of the claim attributable to one side of w, used
// for history rows where each side is listed separately.
func SidePayout(m domain.Market, w domain.Wager, side domain.Side, feeRate int64) *big.Int {
	switch m.Outcome() {
	case domain.OutcomePush:
		return new(big.Int).Set(w.Stake(side))
	case domain.Outcome(side):
		win, lose := sides(m, m.Outcome())
		return ComputePayout(w.Stake(side), win, lose, feeRate)
	}
	return new(big.Int)
}

// CheckPool verifies that paying amount on top of what is already paid out
// keeps payouts plus fee within the pool.
func CheckPool(m domain.Market, amount *big.Int, feeRate int64) error {
	s := Summarize(m, feeRate)
	total := sum(m.PaidOut, amount)
	total.Add(total, s.Fee)
	if total.Cmp(s.Pool) > 0 {
		return fmt.Errorf("payout: market %d pays %s with fee %s over pool %s: %w",
			m.ID, total, s.Fee, s.Pool, domain.ErrInvariantViolation)
	}
	return nil
}

func sides(m domain.Market, o domain.Outcome) (win, lose *big.Int) {
	if o == domain.OutcomeOver {
		return m.SideTotal(domain.SideOver), m.SideTotal(domain.SideUnder)
	}
	return m.SideTotal(domain.SideUnder), m.SideTotal(domain.SideOver)
}

func sum(a, b *big.Int) *big.Int {
	out := new(big.Int)
	if a != nil {
		out.Add(out, a)
	}
	if b != nil {
		out.Add(out, b)
	}
	return out
}
