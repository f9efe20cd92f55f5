package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
)

// eventSink fans lifecycle events out to the signal bus and the audit log.
// Either may be nil. Failures are logged and never fail the transition that
// produced the event.
type eventSink struct {
	bus    domain.SignalBus
	audit  domain.AuditStore
	logger *slog.Logger
}

func (e *eventSink) emit(ctx context.Context, evt domain.MarketEvent) {
	if e == nil {
		return
	}
	evt.ID = uuid.NewString()
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}

	if e.bus != nil {
		payload, err := json.Marshal(evt)
		if err != nil {
			e.logger.WarnContext(ctx, "marshal market event failed", slog.String("error", err.Error()))
			return
		}
		if err := e.bus.Publish(ctx, domain.ChannelMarkets, payload); err != nil {
			e.logger.WarnContext(ctx, "publish market event failed",
				slog.String("type", string(evt.Type)),
				slog.String("error", err.Error()),
			)
		}
		if err := e.bus.StreamAppend(ctx, domain.StreamMarkets, payload); err != nil {
			e.logger.WarnContext(ctx, "append market stream failed",
				slog.String("type", string(evt.Type)),
				slog.String("error", err.Error()),
			)
		}
	}

	if e.audit != nil {
		detail := map[string]any{
			"event_id":  evt.ID,
			"market_id": evt.MarketID,
		}
		for k, v := range map[string]string{
			"account":    evt.Account,
			"side":       string(evt.Side),
			"amount":     evt.Amount,
			"prediction": evt.Prediction,
			"price":      evt.Price,
			"outcome":    string(evt.Outcome),
			"error":      evt.Error,
		} {
			if v != "" {
				detail[k] = v
			}
		}
		if err := e.audit.Log(ctx, string(evt.Type), detail); err != nil {
			e.logger.WarnContext(ctx, "audit log failed",
				slog.String("type", string(evt.Type)),
				slog.String("error", err.Error()),
			)
		}
	}
}
