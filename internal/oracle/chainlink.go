package oracle

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
)

const aggregatorABI = `[
 {"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
 {"inputs":[],"name":"latestRoundData","outputs":[
  {"name":"roundId","type":"uint80"},
  {"name":"answer","type":"int256"},
  {"name":"startedAt","type":"uint256"},
  {"name":"updatedAt","type":"uint256"},
  {"name":"answeredInRound","type":"uint80"}],"stateMutability":"view","type":"function"}
]`

// Chainlink reads an AggregatorV3 price feed. The asset argument of
// FetchPrice is ignored; one feed serves one pair.
type Chainlink struct {
	caller       ethereum.ContractCaller
	feed         common.Address
	abi          abi.ABI
	maxStaleness time.Duration
	now          func() time.Time
	decimals     int32
}

// NewChainlink binds the aggregator at feed. maxStaleness of zero accepts
// any round age.
func NewChainlink(caller ethereum.ContractCaller, feed string, maxStaleness time.Duration) (*Chainlink, error) {
	if !common.IsHexAddress(feed) {
		return nil, fmt.Errorf("chainlink: invalid feed address %q", feed)
	}
	parsed, err := abi.JSON(strings.NewReader(aggregatorABI))
	if err != nil {
		return nil, fmt.Errorf("chainlink: parse abi: %w", err)
	}
	return &Chainlink{
		caller:       caller,
		feed:         common.HexToAddress(feed),
		abi:          parsed,
		maxStaleness: maxStaleness,
		now:          time.Now,
		decimals:     -1,
	}, nil
}

// FetchPrice returns the latest answer scaled to 18 decimals.
func (c *Chainlink) FetchPrice(ctx context.Context, _ string) (*big.Int, error) {
	if c.decimals < 0 {
		out, err := c.call(ctx, "decimals")
		if err != nil {
			return nil, err
		}
		d, ok := out[0].(uint8)
		if !ok {
			return nil, fmt.Errorf("chainlink: decimals type %T: %w", out[0], domain.ErrOracleUnavailable)
		}
		c.decimals = int32(d)
	}

	out, err := c.call(ctx, "latestRoundData")
	if err != nil {
		return nil, err
	}
	answer, ok := out[1].(*big.Int)
	if !ok || answer.Sign() <= 0 {
		return nil, fmt.Errorf("chainlink: bad answer %v: %w", out[1], domain.ErrOracleUnavailable)
	}
	if updated, ok := out[3].(*big.Int); ok && c.maxStaleness > 0 {
		age := c.now().Sub(time.Unix(updated.Int64(), 0))
		if age > c.maxStaleness {
			return nil, fmt.Errorf("chainlink: round is %s old: %w", age.Round(time.Second), domain.ErrOracleUnavailable)
		}
	}
	return scale(answer, c.decimals), nil
}

func (c *Chainlink) call(ctx context.Context, method string) ([]any, error) {
	data, err := c.abi.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("chainlink: pack %s: %w", method, err)
	}
	raw, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &c.feed, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("chainlink: call %s: %w: %w", method, domain.ErrOracleUnavailable, err)
	}
	out, err := c.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("chainlink: unpack %s: %w: %w", method, domain.ErrOracleUnavailable, err)
	}
	return out, nil
}

// scale converts a value with the given decimals to 18 decimals.
func scale(v *big.Int, decimals int32) *big.Int {
	out := new(big.Int).Set(v)
	switch diff := domain.TokenDecimals - decimals; {
	case diff > 0:
		out.Mul(out, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(diff)), nil))
	case diff < 0:
		out.Quo(out, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-diff)), nil))
	}
	return out
}
