package handler

import (
	"math/big"
	"time"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
)

// Amounts are 18-decimal base-unit strings; the *_usd and *_tokens fields
// are display copies.

type marketView struct {
	ID             uint64         `json:"id"`
	StartTime      time.Time      `json:"start_time"`
	EndTime        time.Time      `json:"end_time"`
	State          domain.State   `json:"state"`
	Prediction     string         `json:"prediction"`
	PredictionUSD  string         `json:"prediction_usd"`
	ActualPrice    string         `json:"actual_price"`
	ActualPriceUSD string         `json:"actual_price_usd"`
	TotalOver      string         `json:"total_over"`
	TotalUnder     string         `json:"total_under"`
	Pool           string         `json:"pool"`
	PoolTokens     string         `json:"pool_tokens"`
	Outcome        domain.Outcome `json:"outcome,omitempty"`
	Settled        bool           `json:"settled"`
	FeeRate        int64          `json:"fee_rate"`
}

func newMarketView(m domain.Market, now time.Time, feeRate int64) marketView {
	return marketView{
		ID:             m.ID,
		StartTime:      m.StartTime.UTC(),
		EndTime:        m.EndTime.UTC(),
		State:          m.StateAt(now),
		Prediction:     amount(m.Prediction),
		PredictionUSD:  domain.FormatUnits(m.Prediction, 2),
		ActualPrice:    amount(m.ActualPrice),
		ActualPriceUSD: domain.FormatUnits(m.ActualPrice, 2),
		TotalOver:      amount(m.TotalOver),
		TotalUnder:     amount(m.TotalUnder),
		Pool:           m.Pool().String(),
		PoolTokens:     domain.FormatUnits(m.Pool(), 2),
		Outcome:        m.Outcome(),
		Settled:        m.Settled,
		FeeRate:        feeRate,
	}
}

type wagerView struct {
	MarketID  uint64 `json:"market_id"`
	Account   string `json:"account"`
	Over      string `json:"over"`
	Under     string `json:"under"`
	Claimed   bool   `json:"claimed"`
	Claimable string `json:"claimable"`
}

type betView struct {
	MarketID     uint64      `json:"market_id"`
	Side         domain.Side `json:"side"`
	Amount       string      `json:"amount"`
	AmountTokens string      `json:"amount_tokens"`
	Claimed      bool        `json:"claimed"`
	Payout       string      `json:"payout"`
	Market       marketView  `json:"market"`
}

func amount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
