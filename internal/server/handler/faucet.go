package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
)

// FaucetService dispenses test tokens.
type FaucetService interface {
	Claim(ctx context.Context, account string) (*big.Int, error)
}

// FaucetHandler serves POST /api/faucet.
type FaucetHandler struct {
	faucet FaucetService
	logger *slog.Logger
}

// NewFaucetHandler creates a FaucetHandler.
func NewFaucetHandler(faucet FaucetService, logger *slog.Logger) *FaucetHandler {
	return &FaucetHandler{faucet: faucet, logger: logHandler(logger, "faucet")}
}

type faucetRequest struct {
	Account string `json:"account"`
}

// Claim sends the faucet amount to the account.
// POST /api/faucet
func (h *FaucetHandler) Claim(w http.ResponseWriter, r *http.Request) {
	var req faucetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sent, err := h.faucet.Claim(r.Context(), req.Account)
	if err != nil {
		writeDomainError(w, r, h.logger, "faucet", err)
		return
	}
	acct, _ := domain.NormalizeAccount(req.Account)
	writeJSON(w, http.StatusOK, map[string]string{
		"account":       acct,
		"amount":        sent.String(),
		"amount_tokens": domain.FormatUnits(sent, 2),
	})
}
