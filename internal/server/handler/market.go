package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
)

// MarketService defines the methods that the market handler requires from the
// service layer. It is declared locally so the handler package does not depend
// on the concrete service implementation.
type MarketService interface {
	Now() time.Time
	FeeRate() int64
	Current(ctx context.Context) (domain.Market, error)
	Market(ctx context.Context, id uint64) (domain.Market, error)
	Wager(ctx context.Context, id uint64, account string) (domain.Wager, error)
	Claimable(ctx context.Context, account string, id uint64) (*big.Int, error)
}

// MarketHandler serves market-related HTTP endpoints.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given service and logger.
func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		logger:  logHandler(logger, "market"),
	}
}

// Current returns the latest market.
// GET /api/markets/current
func (h *MarketHandler) Current(w http.ResponseWriter, r *http.Request) {
	m, err := h.markets.Current(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, "current market", err)
		return
	}
	writeJSON(w, http.StatusOK, newMarketView(m, h.markets.Now(), h.markets.FeeRate()))
}

// GetMarket returns a single market by its ID.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id, ok := marketIDParam(w, r)
	if !ok {
		return
	}
	m, err := h.markets.Market(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, "get market", err)
		return
	}
	writeJSON(w, http.StatusOK, newMarketView(m, h.markets.Now(), h.markets.FeeRate()))
}

// GetWager returns an account's stake in a market and what it could claim.
// GET /api/markets/{id}/wagers/{account}
func (h *MarketHandler) GetWager(w http.ResponseWriter, r *http.Request) {
	id, ok := marketIDParam(w, r)
	if !ok {
		return
	}
	account := r.PathValue("account")
	acct, err := domain.NormalizeAccount(account)
	if err != nil {
		writeDomainError(w, r, h.logger, "get wager", err)
		return
	}

	wager, err := h.markets.Wager(r.Context(), id, acct)
	if err != nil {
		writeDomainError(w, r, h.logger, "get wager", err)
		return
	}
	claimable, err := h.markets.Claimable(r.Context(), acct, id)
	if err != nil {
		writeDomainError(w, r, h.logger, "get wager", err)
		return
	}

	writeJSON(w, http.StatusOK, wagerView{
		MarketID:  id,
		Account:   acct,
		Over:      amount(wager.Over),
		Under:     amount(wager.Under),
		Claimed:   wager.Claimed,
		Claimable: amount(claimable),
	})
}
