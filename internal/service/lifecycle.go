package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
	"github.com/abhishek3950/AIvsHuman/internal/payout"
)

// LifecycleConfig holds the market rules.
type LifecycleConfig struct {
	Window    time.Duration
	MinBet    *big.Int
	MaxBet    *big.Int
	MarketCap *big.Int // zero or nil disables the per-market pool cap
	FeeRate   int64    // percent of the pool kept on settlement
	Agent     string   // only address allowed to settle and create
	Spender   string   // address bettors approve, usually the custody pool
}

// Lifecycle drives markets through open, locked and settled. Every write
// goes through the store, which owns the atomic precondition checks; the
// checks here reject bad requests early with a precise error.
type Lifecycle struct {
	store   domain.MarketStore
	ledger  *WagerLedger
	custody domain.Custody
	cfg     LifecycleConfig
	events  *eventSink
	now     func() time.Time
	logger  *slog.Logger
}

// LifecycleOption customises a Lifecycle.
type LifecycleOption func(*Lifecycle)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) LifecycleOption {
	return func(l *Lifecycle) { l.now = now }
}

// WithEvents publishes transitions to bus and records them in audit. Either
// may be nil.
func WithEvents(bus domain.SignalBus, audit domain.AuditStore) LifecycleOption {
	return func(l *Lifecycle) {
		l.events = &eventSink{bus: bus, audit: audit, logger: l.logger}
	}
}

// NewLifecycle creates a Lifecycle. Agent and Spender are normalised; an
// invalid address there is a configuration error.
func NewLifecycle(
	store domain.MarketStore,
	ledger *WagerLedger,
	custody domain.Custody,
	cfg LifecycleConfig,
	logger *slog.Logger,
	opts ...LifecycleOption,
) (*Lifecycle, error) {
	agent, err := domain.NormalizeAccount(cfg.Agent)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: settlement agent %q: %w", cfg.Agent, err)
	}
	cfg.Agent = agent
	if cfg.Spender != "" {
		if cfg.Spender, err = domain.NormalizeAccount(cfg.Spender); err != nil {
			return nil, fmt.Errorf("lifecycle: spender: %w", err)
		}
	}
	if cfg.Window <= 0 {
		return nil, fmt.Errorf("lifecycle: window must be positive")
	}

	l := &Lifecycle{
		store:   store,
		ledger:  ledger,
		custody: custody,
		cfg:     cfg,
		now:     time.Now,
		logger:  logger.With(slog.String("component", "lifecycle")),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Now returns the lifecycle clock.
func (l *Lifecycle) Now() time.Time { return l.now() }

// FeeRate returns the fee percent applied at settlement.
func (l *Lifecycle) FeeRate() int64 { return l.cfg.FeeRate }

// Agent returns the normalised settlement agent address.
func (l *Lifecycle) Agent() string { return l.cfg.Agent }

// Spender returns the address bettors approve.
func (l *Lifecycle) Spender() string { return l.cfg.Spender }

// Current returns the latest market, or ErrNoMarket.
func (l *Lifecycle) Current(ctx context.Context) (domain.Market, error) {
	return l.store.CurrentMarket(ctx)
}

// Market returns the market with id.
func (l *Lifecycle) Market(ctx context.Context, id uint64) (domain.Market, error) {
	return l.store.GetMarket(ctx, id)
}

// Wager returns the account's wager in market id.
func (l *Lifecycle) Wager(ctx context.Context, id uint64, account string) (domain.Wager, error) {
	acct, err := domain.NormalizeAccount(account)
	if err != nil {
		return domain.Wager{}, err
	}
	return l.store.GetWager(ctx, id, acct)
}

// State returns the current market and its state. With no markets it
// returns StateNone and a nil error.
func (l *Lifecycle) State(ctx context.Context) (domain.Market, domain.State, error) {
	m, err := l.store.CurrentMarket(ctx)
	if errors.Is(err, domain.ErrNoMarket) {
		return domain.Market{}, domain.StateNone, nil
	}
	if err != nil {
		return domain.Market{}, "", err
	}
	return m, m.StateAt(l.now()), nil
}

// PlaceBet stakes amount on side of the current market. The stake is moved
// into custody before it is recorded; if recording fails it is returned.
func (l *Lifecycle) PlaceBet(ctx context.Context, account string, marketID uint64, side domain.Side, amount *big.Int) (domain.Market, error) {
	if !side.Valid() {
		return domain.Market{}, domain.ErrInvalidSide
	}
	if amount == nil || amount.Sign() <= 0 {
		return domain.Market{}, domain.ErrInvalidAmount
	}
	if l.cfg.MinBet != nil && amount.Cmp(l.cfg.MinBet) < 0 {
		return domain.Market{}, domain.ErrBetTooSmall
	}
	if l.cfg.MaxBet != nil && l.cfg.MaxBet.Sign() > 0 && amount.Cmp(l.cfg.MaxBet) > 0 {
		return domain.Market{}, domain.ErrBetTooLarge
	}
	acct, err := domain.NormalizeAccount(account)
	if err != nil {
		return domain.Market{}, err
	}

	cur, err := l.store.CurrentMarket(ctx)
	if err != nil {
		return domain.Market{}, fmt.Errorf("lifecycle: place bet: %w", err)
	}
	if cur.ID != marketID {
		return domain.Market{}, domain.ErrWrongMarket
	}
	if cur.StateAt(l.now()) != domain.StateOpen {
		return domain.Market{}, domain.ErrBettingWindowClosed
	}
	if l.cfg.MarketCap != nil && l.cfg.MarketCap.Sign() > 0 {
		if after := new(big.Int).Add(cur.Pool(), amount); after.Cmp(l.cfg.MarketCap) > 0 {
			return domain.Market{}, domain.ErrMarketBetLimitReached
		}
	}

	if err := l.ledger.EnsureAllowance(ctx, acct, l.cfg.Spender, amount); err != nil {
		return domain.Market{}, fmt.Errorf("lifecycle: place bet: %w", err)
	}
	balance, err := l.ledger.BalanceOf(ctx, acct)
	if err != nil {
		return domain.Market{}, fmt.Errorf("lifecycle: place bet: balance: %w", err)
	}
	if balance.Cmp(amount) < 0 {
		return domain.Market{}, domain.ErrInsufficientBalance
	}

	if err := l.custody.Collect(ctx, acct, amount); err != nil {
		return domain.Market{}, fmt.Errorf("lifecycle: place bet: collect stake: %w", err)
	}
	updated, err := l.store.RecordBet(ctx, marketID, acct, side, amount, l.cfg.MarketCap, l.now())
	if err != nil {
		if relErr := l.custody.Release(ctx, acct, amount); relErr != nil {
			l.logger.ErrorContext(ctx, "stake refund after failed bet failed",
				slog.String("account", acct),
				slog.Uint64("market_id", marketID),
				slog.String("amount", amount.String()),
				slog.String("error", relErr.Error()),
			)
		}
		return domain.Market{}, fmt.Errorf("lifecycle: place bet: %w", err)
	}

	l.logger.InfoContext(ctx, "bet placed",
		slog.Uint64("market_id", marketID),
		slog.String("account", acct),
		slog.String("side", string(side)),
		slog.String("amount", amount.String()),
	)
	l.events.emit(ctx, domain.MarketEvent{
		Type:     domain.EventBetPlaced,
		MarketID: marketID,
		Account:  acct,
		Side:     side,
		Amount:   amount.String(),
	})
	return updated, nil
}

// Settle records the closing price of the current market. Only the agent
// may settle, only after EndTime, and only once.
func (l *Lifecycle) Settle(ctx context.Context, caller string, marketID uint64, price *big.Int) (domain.Market, error) {
	if err := l.authorize(caller); err != nil {
		return domain.Market{}, err
	}
	if price == nil || price.Sign() <= 0 {
		return domain.Market{}, domain.ErrInvalidPrice
	}

	cur, err := l.store.CurrentMarket(ctx)
	if err != nil {
		return domain.Market{}, fmt.Errorf("lifecycle: settle: %w", err)
	}
	if cur.ID != marketID {
		return domain.Market{}, domain.ErrWrongMarket
	}
	if cur.Settled {
		return domain.Market{}, domain.ErrAlreadySettled
	}
	if l.now().Before(cur.EndTime) {
		return domain.Market{}, domain.ErrMarketNotEnded
	}

	settled, err := l.store.RecordSettlement(ctx, marketID, price)
	if err != nil {
		return domain.Market{}, fmt.Errorf("lifecycle: settle: %w", err)
	}

	summary := payout.Summarize(settled, l.cfg.FeeRate)
	l.logger.InfoContext(ctx, "market settled",
		slog.Uint64("market_id", marketID),
		slog.String("price", domain.FormatUnits(price, 2)),
		slog.String("prediction", domain.FormatUnits(settled.Prediction, 2)),
		slog.String("outcome", string(summary.Outcome)),
		slog.String("pool", summary.Pool.String()),
		slog.String("fee", summary.Fee.String()),
	)
	l.events.emit(ctx, domain.MarketEvent{
		Type:       domain.EventMarketSettled,
		MarketID:   marketID,
		Prediction: settled.Prediction.String(),
		Price:      price.String(),
		Outcome:    summary.Outcome,
	})
	return settled, nil
}

// CreateNext opens a new market with the given prediction. It fails while
// the current market is unsettled.
func (l *Lifecycle) CreateNext(ctx context.Context, caller string, prediction *big.Int) (domain.Market, error) {
	if err := l.authorize(caller); err != nil {
		return domain.Market{}, err
	}
	if prediction == nil || prediction.Sign() <= 0 {
		return domain.Market{}, domain.ErrInvalidPrice
	}

	cur, err := l.store.CurrentMarket(ctx)
	switch {
	case errors.Is(err, domain.ErrNoMarket):
	case err != nil:
		return domain.Market{}, fmt.Errorf("lifecycle: create: %w", err)
	case !cur.Settled:
		return domain.Market{}, domain.ErrPreviousMarketNotSettled
	}

	created, err := l.store.AppendMarket(ctx, domain.NewMarket(l.now(), l.cfg.Window, prediction))
	if err != nil {
		return domain.Market{}, fmt.Errorf("lifecycle: create: %w", err)
	}

	l.logger.InfoContext(ctx, "market created",
		slog.Uint64("market_id", created.ID),
		slog.String("prediction", domain.FormatUnits(prediction, 2)),
		slog.Time("end_time", created.EndTime),
	)
	l.events.emit(ctx, domain.MarketEvent{
		Type:       domain.EventMarketCreated,
		MarketID:   created.ID,
		Prediction: prediction.String(),
		EndTime:    created.EndTime.Unix(),
	})
	return created, nil
}

// Claim pays the account what it is owed in a settled market and marks the
// wager claimed. The claim is recorded before custody releases the payout:
// the store's claimed flag is what makes a second, concurrent claim fail.
// If the release then fails the wager stays claimed but unpaid, the error
// wraps ErrInvariantViolation and the failure is logged with the amount so
// an operator can pay it by hand.
func (l *Lifecycle) Claim(ctx context.Context, account string, marketID uint64) (*big.Int, error) {
	acct, err := domain.NormalizeAccount(account)
	if err != nil {
		return nil, err
	}
	m, err := l.store.GetMarket(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: claim: %w", err)
	}
	if !m.Settled {
		return nil, domain.ErrMarketNotSettled
	}
	w, err := l.store.GetWager(ctx, marketID, acct)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: claim: %w", err)
	}
	if w.Claimed {
		return nil, domain.ErrAlreadyClaimed
	}

	amount := payout.ClaimAmount(m, w, l.cfg.FeeRate)
	if amount.Sign() == 0 {
		return nil, domain.ErrNothingToClaim
	}
	if err := payout.CheckPool(m, amount, l.cfg.FeeRate); err != nil {
		l.logger.ErrorContext(ctx, "claim rejected by pool check",
			slog.Uint64("market_id", marketID),
			slog.String("account", acct),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	if err := l.store.RecordClaim(ctx, marketID, acct, amount); err != nil {
		return nil, fmt.Errorf("lifecycle: claim: %w", err)
	}
	if err := l.custody.Release(ctx, acct, amount); err != nil {
		l.logger.ErrorContext(ctx, "claim recorded but payout release failed",
			slog.Uint64("market_id", marketID),
			slog.String("account", acct),
			slog.String("amount", amount.String()),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("lifecycle: claim: release %s to %s: %w: %w",
			amount, acct, domain.ErrInvariantViolation, err)
	}

	l.logger.InfoContext(ctx, "winnings claimed",
		slog.Uint64("market_id", marketID),
		slog.String("account", acct),
		slog.String("amount", amount.String()),
	)
	l.events.emit(ctx, domain.MarketEvent{
		Type:     domain.EventWinningsClaimed,
		MarketID: marketID,
		Account:  acct,
		Amount:   amount.String(),
		Outcome:  m.Outcome(),
	})
	return amount, nil
}

// Claimable returns what Claim would pay now, without paying it.
func (l *Lifecycle) Claimable(ctx context.Context, account string, marketID uint64) (*big.Int, error) {
	acct, err := domain.NormalizeAccount(account)
	if err != nil {
		return nil, err
	}
	m, err := l.store.GetMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	w, err := l.store.GetWager(ctx, marketID, acct)
	if err != nil {
		return nil, err
	}
	if w.Claimed {
		return new(big.Int), nil
	}
	return payout.ClaimAmount(m, w, l.cfg.FeeRate), nil
}

func (l *Lifecycle) authorize(caller string) error {
	c, err := domain.NormalizeAccount(caller)
	if err != nil || c != l.cfg.Agent {
		return domain.ErrUnauthorized
	}
	return nil
}
