package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 16

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// errorResponse carries the error kind so clients can tell a rejected bet
// from a system fault.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// writeDomainError maps err to a status by its kind. Server-side faults are
// logged and reported generically; everything else is reported verbatim.
func writeDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op string, err error) {
	status := statusFor(err)
	kind := domain.KindOf(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError && kind != domain.KindTransient {
		logger.ErrorContext(r.Context(), "handler: "+op+" failed",
			slog.String("kind", kind.String()),
			slog.String("error", err.Error()),
		)
		msg = op + " failed"
	} else {
		logger.DebugContext(r.Context(), "handler: "+op+" rejected",
			slog.String("kind", kind.String()),
			slog.String("error", err.Error()),
		)
	}
	writeJSON(w, status, errorResponse{Error: msg, Kind: kind.String()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrNoMarket):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	}
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindPrecondition:
		return http.StatusConflict
	case domain.KindTransient:
		return http.StatusServiceUnavailable
	case domain.KindUser:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody reads a JSON body into v, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// parseListOpts extracts standard pagination parameters from the query string.
// Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	opts := domain.ListOpts{
		Limit:  limit,
		Offset: offset,
		Event:  q.Get("event"),
	}
	if id, err := strconv.ParseUint(q.Get("market_id"), 10, 64); err == nil {
		opts.MarketID = &id
	}
	for key, dst := range map[string]**time.Time{"since": &opts.Since, "until": &opts.Until} {
		if t, err := time.Parse(time.RFC3339, q.Get(key)); err == nil {
			*dst = &t
		}
	}
	return opts
}

// marketIDParam parses the {id} path segment.
func marketIDParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return 0, false
	}
	return id, true
}

// logHandler is a convenience to attach slog fields in handler code.
func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}
