package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
)

// BetService places bets and pays out claims.
type BetService interface {
	Now() time.Time
	FeeRate() int64
	PlaceBet(ctx context.Context, account string, marketID uint64, side domain.Side, amount *big.Int) (domain.Market, error)
	Claim(ctx context.Context, account string, marketID uint64) (*big.Int, error)
}

// BetHandler serves the bet and claim endpoints.
type BetHandler struct {
	bets   BetService
	logger *slog.Logger
}

// NewBetHandler creates a BetHandler.
func NewBetHandler(bets BetService, logger *slog.Logger) *BetHandler {
	return &BetHandler{
		bets:   bets,
		logger: logHandler(logger, "bet"),
	}
}

// placeBetRequest is the body of POST /api/bets. Amount is in whole tokens
// and may carry a fraction, e.g. "12.5".
type placeBetRequest struct {
	MarketID uint64 `json:"market_id"`
	Account  string `json:"account"`
	Side     string `json:"side"`
	Amount   string `json:"amount"`
}

// PlaceBet stakes tokens on one side of the current market. The server acts
// for whatever account the body names, so the route is only served behind the
// API key.
// POST /api/bets
func (h *BetHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	var req placeBetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	side, err := domain.ParseSide(req.Side)
	if err != nil {
		writeDomainError(w, r, h.logger, "place bet", err)
		return
	}
	stake, err := domain.ParseUnits(req.Amount)
	if err != nil || stake.Sign() <= 0 {
		writeDomainError(w, r, h.logger, "place bet", domain.ErrInvalidAmount)
		return
	}

	m, err := h.bets.PlaceBet(r.Context(), req.Account, req.MarketID, side, stake)
	if err != nil {
		writeDomainError(w, r, h.logger, "place bet", err)
		return
	}
	writeJSON(w, http.StatusCreated, newMarketView(m, h.bets.Now(), h.bets.FeeRate()))
}

type claimRequest struct {
	MarketID uint64 `json:"market_id"`
	Account  string `json:"account"`
}

type claimResponse struct {
	MarketID     uint64 `json:"market_id"`
	Account      string `json:"account"`
	Amount       string `json:"amount"`
	AmountTokens string `json:"amount_tokens"`
}

// Claim pays out an account's winnings or refund from a settled market.
// POST /api/claims
func (h *BetHandler) Claim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if !decodeBody(w, r, &req) {
		return
	}
	paid, err := h.bets.Claim(r.Context(), req.Account, req.MarketID)
	if err != nil {
		writeDomainError(w, r, h.logger, "claim", err)
		return
	}
	acct, _ := domain.NormalizeAccount(req.Account)
	writeJSON(w, http.StatusOK, claimResponse{
		MarketID:     req.MarketID,
		Account:      acct,
		Amount:       paid.String(),
		AmountTokens: domain.FormatUnits(paid, 2),
	})
}
