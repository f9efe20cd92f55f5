package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
)

// StreamReader reads the durable lifecycle event stream.
type StreamReader interface {
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error)
}

// EventsHandler serves the lifecycle event stream for clients that poll
// instead of holding a websocket.
type EventsHandler struct {
	stream StreamReader
	logger *slog.Logger
}

// NewEventsHandler creates an EventsHandler.
func NewEventsHandler(stream StreamReader, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{stream: stream, logger: logHandler(logger, "events")}
}

type eventEntry struct {
	StreamID string          `json:"stream_id"`
	Event    json.RawMessage `json:"event"`
}

type eventsResponse struct {
	Events []eventEntry `json:"events"`
	Next   string       `json:"next"`
}

// ListEvents returns events after the given stream id.
// GET /api/events?after=0&limit=50
func (h *EventsHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	after := r.URL.Query().Get("after")
	if after == "" {
		after = "0"
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, 500)
	}

	msgs, err := h.stream.StreamRead(r.Context(), domain.StreamMarkets, after, limit)
	if err != nil {
		writeDomainError(w, r, h.logger, "read events", err)
		return
	}

	resp := eventsResponse{Events: make([]eventEntry, 0, len(msgs)), Next: after}
	for _, m := range msgs {
		if !json.Valid(m.Payload) {
			h.logger.WarnContext(r.Context(), "skipping malformed event", slog.String("stream_id", m.ID))
			continue
		}
		resp.Events = append(resp.Events, eventEntry{StreamID: m.ID, Event: m.Payload})
	}
	if n := len(msgs); n > 0 {
		resp.Next = msgs[n-1].ID
	}
	writeJSON(w, http.StatusOK, resp)
}
