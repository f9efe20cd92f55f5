package chain

import (
	"context"
	"math/big"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
)

// Custody is a no-op: placeBet pulls the stake with transferFrom and
// claimWinnings pays out, both inside the contract.
type Custody struct{}

// Collect implements domain.Custody.
func (Custody) Collect(context.Context, string, *big.Int) error { return nil }

// Release implements domain.Custody.
func (Custody) Release(context.Context, string, *big.Int) error { return nil }

var _ domain.Custody = Custody{}
