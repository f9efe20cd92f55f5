package oracle

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
)

// Recording stores every successful reading in a PriceCache.
type Recording struct {
	next   domain.PriceOracle
	cache  domain.PriceCache
	logger *slog.Logger
}

// NewRecording wraps next.
func NewRecording(next domain.PriceOracle, cache domain.PriceCache, logger *slog.Logger) *Recording {
	return &Recording{next: next, cache: cache, logger: logger.With(slog.String("component", "oracle"))}
}

// FetchPrice implements domain.PriceOracle.
func (r *Recording) FetchPrice(ctx context.Context, asset string) (*big.Int, error) {
	price, err := r.next.FetchPrice(ctx, asset)
	if err != nil {
		return nil, err
	}
	if err := r.cache.SetPrice(ctx, asset, price, time.Now().UTC()); err != nil {
		r.logger.WarnContext(ctx, "cache oracle price failed",
			slog.String("asset", asset),
			slog.String("error", err.Error()),
		)
	}
	return price, nil
}
