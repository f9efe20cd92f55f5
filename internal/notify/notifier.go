// Package notify tells operators about settlements, new markets and failed
// ticks over Telegram and Discord. Each event type can be switched off.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
	"github.com/abhishek3950/AIvsHuman/internal/payout"
)

// Sender is one notification channel.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier implements the scheduler's alerter on top of one or more Senders,
// forwarding only the configured event types.
type Notifier struct {
	senders []Sender
	events  map[string]bool // allowed event types
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. An empty events list allows every type.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify forwards title and message when event is allowed.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", event),
		)
		return nil
	}

	return n.dispatch(ctx, title, message)
}

// MarketSettled reports the outcome and the pool split.
func (n *Notifier) MarketSettled(ctx context.Context, m domain.Market, feeRate int64) error {
	sum := payout.Summarize(m, feeRate)
	msg := fmt.Sprintf("Prediction %s, settled at %s: %s.\nPool %s (over %s / under %s), fee %s.",
		usd(m.Prediction), usd(m.ActualPrice), strings.ToUpper(string(sum.Outcome)),
		tokens(sum.Pool), tokens(m.TotalOver), tokens(m.TotalUnder), tokens(sum.Fee))
	return n.Notify(ctx, string(domain.EventMarketSettled), fmt.Sprintf("Market #%d settled", m.ID), msg)
}

// MarketCreated announces a new market.
func (n *Notifier) MarketCreated(ctx context.Context, m domain.Market) error {
	msg := fmt.Sprintf("Will BTC close above %s? Betting closes %s.",
		usd(m.Prediction), m.EndTime.UTC().Format(time.RFC1123))
	return n.Notify(ctx, string(domain.EventMarketCreated), fmt.Sprintf("Market #%d open", m.ID), msg)
}

// SettlementFailed reports a tick that could not settle.
func (n *Notifier) SettlementFailed(ctx context.Context, marketID uint64, err error) error {
	return n.Notify(ctx, string(domain.EventSettlementError),
		fmt.Sprintf("Market #%d settlement failed", marketID), err.Error())
}

// CreationFailed reports a tick that could not open the next market.
func (n *Notifier) CreationFailed(ctx context.Context, marketID uint64, err error) error {
	return n.Notify(ctx, string(domain.EventCreationError),
		fmt.Sprintf("Market #%d could not be opened", marketID), err.Error())
}

// dispatch delivers to every sender; one failing sender does not stop the
// rest, and their errors are joined.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("notify: %s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	return errors.Join(errs...)
}

func usd(v *big.Int) string {
	return "$" + domain.FormatUnits(v, 2)
}

func tokens(v *big.Int) string {
	return domain.FormatUnits(v, 2)
}
