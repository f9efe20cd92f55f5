package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
)

// HistoryService rebuilds an account's betting history.
type HistoryService interface {
	ForAccount(ctx context.Context, account string) ([]domain.Bet, error)
}

// HistoryHandler serves GET /api/accounts/{account}/history.
type HistoryHandler struct {
	history HistoryService
	now     func() time.Time
	feeRate int64
	logger  *slog.Logger
}

// NewHistoryHandler creates a HistoryHandler. now and feeRate only shape the
// embedded market views.
func NewHistoryHandler(history HistoryService, now func() time.Time, feeRate int64, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{
		history: history,
		now:     now,
		feeRate: feeRate,
		logger:  logHandler(logger, "history"),
	}
}

type historyResponse struct {
	Account string    `json:"account"`
	Bets    []betView `json:"bets"`
}

// ForAccount returns one row per side the account staked, newest market
// first.
// GET /api/accounts/{account}/history
func (h *HistoryHandler) ForAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := domain.NormalizeAccount(r.PathValue("account"))
	if err != nil {
		writeDomainError(w, r, h.logger, "history", err)
		return
	}
	bets, err := h.history.ForAccount(r.Context(), acct)
	if err != nil {
		writeDomainError(w, r, h.logger, "history", err)
		return
	}

	now := h.now()
	views := make([]betView, 0, len(bets))
	for _, b := range bets {
		views = append(views, betView{
			MarketID:     b.MarketID,
			Side:         b.Side,
			Amount:       amount(b.Amount),
			AmountTokens: domain.FormatUnits(b.Amount, 2),
			Claimed:      b.Claimed,
			Payout:       amount(b.Payout),
			Market:       newMarketView(b.Market, now, h.feeRate),
		})
	}
	writeJSON(w, http.StatusOK, historyResponse{Account: acct, Bets: views})
}
