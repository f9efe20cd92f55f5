package handler

import (
	"log/slog"
	"net/http"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
)

// PriceHandler serves the last cached oracle reading.
type PriceHandler struct {
	cache  domain.PriceCache
	asset  string
	logger *slog.Logger
}

// NewPriceHandler creates a PriceHandler for asset.
func NewPriceHandler(cache domain.PriceCache, asset string, logger *slog.Logger) *PriceHandler {
	return &PriceHandler{cache: cache, asset: asset, logger: logHandler(logger, "price")}
}

// GetPrice returns the latest price seen by the settlement oracle.
// GET /api/price
func (h *PriceHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	price, ts, err := h.cache.GetPrice(r.Context(), h.asset)
	if err != nil {
		writeDomainError(w, r, h.logger, "get price", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"asset":     h.asset,
		"price":     price.String(),
		"price_usd": domain.FormatUnits(price, 2),
		"timestamp": ts.UTC(),
	})
}
