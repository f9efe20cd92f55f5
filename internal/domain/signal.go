package domain

import "time"

// ChannelMarkets carries lifecycle events on the signal bus.
const ChannelMarkets = "markets"

// StreamMarkets is the durable stream mirroring ChannelMarkets.
const StreamMarkets = "stream:markets"

// EventType names a lifecycle transition.
type EventType string

const (
	EventMarketCreated   EventType = "market_created"
	EventBetPlaced       EventType = "bet_placed"
	EventMarketSettled   EventType = "market_settled"
	EventWinningsClaimed EventType = "winnings_claimed"
	EventSettlementError EventType = "settlement_failed"
	EventCreationError   EventType = "creation_failed"
)

// MarketEvent is published after every successful transition. Amounts are
// base-unit decimal strings so JSON consumers keep full precision.
type MarketEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	MarketID   uint64    `json:"market_id"`
	Account    string    `json:"account,omitempty"`
	Side       Side      `json:"side,omitempty"`
	Amount     string    `json:"amount,omitempty"`
	Prediction string    `json:"prediction,omitempty"`
	Price      string    `json:"price,omitempty"`
	Outcome    Outcome   `json:"outcome,omitempty"`
	EndTime    int64     `json:"end_time,omitempty"`
	Error      string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
}
