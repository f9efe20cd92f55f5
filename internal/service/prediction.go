package service

import (
	"context"
	"math/big"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
)

// PredictionPolicy derives the next market's prediction from the spot price.
type PredictionPolicy interface {
	Predict(ctx context.Context, spot *big.Int) (*big.Int, error)
}

// DefaultMarkupBps is the +1% markup applied when nothing else is configured.
const DefaultMarkupBps = 100

// MarkupPolicy predicts spot scaled by (10000 + Bps) / 10000. Bps may be
// negative for a markdown.
type MarkupPolicy struct {
	Bps int64
}

// Predict implements PredictionPolicy.
func (p MarkupPolicy) Predict(_ context.Context, spot *big.Int) (*big.Int, error) {
	if spot == nil || spot.Sign() <= 0 {
		return nil, domain.ErrInvalidPrice
	}
	out := new(big.Int).Mul(spot, big.NewInt(10_000+p.Bps))
	out.Quo(out, big.NewInt(10_000))
	if out.Sign() <= 0 {
		return nil, domain.ErrInvalidPrice
	}
	return out, nil
}
