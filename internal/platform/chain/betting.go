package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
)

const bettingABI = `[
 {"inputs":[],"name":"getMarketsCount","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
 {"inputs":[{"name":"marketId","type":"uint256"}],"name":"getMarket","outputs":[
  {"name":"id","type":"uint256"},
  {"name":"startTime","type":"uint256"},
  {"name":"endTime","type":"uint256"},
  {"name":"aiPrediction","type":"uint256"},
  {"name":"actualPrice","type":"uint256"},
  {"name":"totalOverBets","type":"uint256"},
  {"name":"totalUnderBets","type":"uint256"},
  {"name":"settled","type":"bool"}],"stateMutability":"view","type":"function"},
 {"inputs":[{"name":"marketId","type":"uint256"},{"name":"user","type":"address"}],"name":"getUserBets","outputs":[
  {"name":"overBet","type":"uint256"},
  {"name":"underBet","type":"uint256"},
  {"name":"hasClaimed","type":"bool"}],"stateMutability":"view","type":"function"},
 {"inputs":[{"name":"aiPrediction","type":"uint256"}],"name":"createMarket","outputs":[],"stateMutability":"nonpayable","type":"function"},
 {"inputs":[{"name":"marketId","type":"uint256"},{"name":"actualPrice","type":"uint256"}],"name":"settleMarket","outputs":[],"stateMutability":"nonpayable","type":"function"},
 {"inputs":[{"name":"marketId","type":"uint256"},{"name":"isOver","type":"bool"},{"name":"amount","type":"uint256"}],"name":"placeBet","outputs":[],"stateMutability":"nonpayable","type":"function"},
 {"inputs":[{"name":"marketId","type":"uint256"}],"name":"claimWinnings","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

// MarketStore implements domain.MarketStore on the betting contract.
//
// Preconditions are checked against a fresh read before each transaction
// and enforced again by the contract. Only the agent wallet can sign, so
// bets and claims are accepted for that account alone. The contract does
// not expose paid-out totals or claimed amounts; they read as zero.
type MarketStore struct {
	client   *Client
	contract common.Address
	abi      abi.ABI
}

// NewMarketStore binds the betting contract at address.
func NewMarketStore(client *Client, address string) (*MarketStore, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("chain: invalid betting contract address %q", address)
	}
	return &MarketStore{
		client:   client,
		contract: common.HexToAddress(address),
		abi:      mustParseABI(bettingABI),
	}, nil
}

// Address is the betting contract, which is also the token spender.
func (s *MarketStore) Address() string {
	return s.contract.Hex()
}

// MarketCount implements domain.MarketStore.
func (s *MarketStore) MarketCount(ctx context.Context) (uint64, error) {
	out, err := s.client.call(ctx, s.contract, s.abi, "getMarketsCount")
	if err != nil {
		return 0, err
	}
	n, ok := out[0].(*big.Int)
	if !ok || !n.IsUint64() {
		return 0, fmt.Errorf("chain: bad market count %v", out[0])
	}
	return n.Uint64(), nil
}

// CurrentMarket implements domain.MarketStore.
func (s *MarketStore) CurrentMarket(ctx context.Context) (domain.Market, error) {
	n, err := s.MarketCount(ctx)
	if err != nil {
		return domain.Market{}, err
	}
	if n == 0 {
		return domain.Market{}, domain.ErrNoMarket
	}
	return s.GetMarket(ctx, n-1)
}

// GetMarket implements domain.MarketStore.
func (s *MarketStore) GetMarket(ctx context.Context, id uint64) (domain.Market, error) {
	n, err := s.MarketCount(ctx)
	if err != nil {
		return domain.Market{}, err
	}
	if id >= n {
		return domain.Market{}, domain.ErrNotFound
	}
	out, err := s.client.call(ctx, s.contract, s.abi, "getMarket", toBig(id))
	if err != nil {
		return domain.Market{}, err
	}
	return decodeMarket(out)
}

// GetWager implements domain.MarketStore.
func (s *MarketStore) GetWager(ctx context.Context, id uint64, account string) (domain.Wager, error) {
	if _, err := s.GetMarket(ctx, id); err != nil {
		return domain.Wager{}, err
	}
	out, err := s.client.call(ctx, s.contract, s.abi, "getUserBets", toBig(id), common.HexToAddress(account))
	if err != nil {
		return domain.Wager{}, err
	}
	over, ok1 := out[0].(*big.Int)
	under, ok2 := out[1].(*big.Int)
	claimed, ok3 := out[2].(bool)
	if !ok1 || !ok2 || !ok3 {
		return domain.Wager{}, fmt.Errorf("chain: bad getUserBets output %v", out)
	}
	w := domain.ZeroWager()
	w.Over, w.Under, w.Claimed = over, under, claimed
	return w, nil
}

// AppendMarket sends createMarket. The contract sets the window itself, so
// only m.Prediction is used.
func (s *MarketStore) AppendMarket(ctx context.Context, m domain.Market) (domain.Market, error) {
	cur, err := s.CurrentMarket(ctx)
	switch {
	case err == nil && !cur.Settled:
		return domain.Market{}, domain.ErrPreviousMarketNotSettled
	case err != nil && !errors.Is(err, domain.ErrNoMarket):
		return domain.Market{}, err
	}
	if _, err := s.client.transact(ctx, s.contract, s.abi, "createMarket", m.Prediction); err != nil {
		return domain.Market{}, err
	}
	return s.CurrentMarket(ctx)
}

// RecordBet sends placeBet from the agent wallet. The contract checks the
// window again against the block time.
func (s *MarketStore) RecordBet(ctx context.Context, id uint64, account string, side domain.Side, amount, poolCap *big.Int, at time.Time) (domain.Market, error) {
	if !side.Valid() {
		return domain.Market{}, domain.ErrInvalidSide
	}
	if err := s.requireAgent(account); err != nil {
		return domain.Market{}, err
	}
	m, err := s.GetMarket(ctx, id)
	if err != nil {
		return domain.Market{}, err
	}
	if m.Settled || !at.Before(m.EndTime) {
		return domain.Market{}, domain.ErrBettingWindowClosed
	}
	if poolCap != nil && poolCap.Sign() > 0 && new(big.Int).Add(m.Pool(), amount).Cmp(poolCap) > 0 {
		return domain.Market{}, domain.ErrMarketBetLimitReached
	}
	if _, err := s.client.transact(ctx, s.contract, s.abi, "placeBet", toBig(id), side == domain.SideOver, amount); err != nil {
		return domain.Market{}, err
	}
	return s.GetMarket(ctx, id)
}

// RecordSettlement sends settleMarket.
func (s *MarketStore) RecordSettlement(ctx context.Context, id uint64, price *big.Int) (domain.Market, error) {
	m, err := s.GetMarket(ctx, id)
	if err != nil {
		return domain.Market{}, err
	}
	if m.Settled {
		return domain.Market{}, domain.ErrAlreadySettled
	}
	if _, err := s.client.transact(ctx, s.contract, s.abi, "settleMarket", toBig(id), price); err != nil {
		return domain.Market{}, err
	}
	return s.GetMarket(ctx, id)
}

// RecordClaim sends claimWinnings; the contract transfers the payout.
func (s *MarketStore) RecordClaim(ctx context.Context, id uint64, account string, _ *big.Int) error {
	if err := s.requireAgent(account); err != nil {
		return err
	}
	m, err := s.GetMarket(ctx, id)
	if err != nil {
		return err
	}
	if !m.Settled {
		return domain.ErrMarketNotSettled
	}
	w, err := s.GetWager(ctx, id, account)
	if err != nil {
		return err
	}
	if w.Claimed {
		return domain.ErrAlreadyClaimed
	}
	_, err = s.client.transact(ctx, s.contract, s.abi, "claimWinnings", toBig(id))
	return err
}

func (s *MarketStore) requireAgent(account string) error {
	if !common.IsHexAddress(account) || common.HexToAddress(account) != s.client.Address() {
		return fmt.Errorf("chain: %s is not the agent wallet: %w", account, domain.ErrUnauthorized)
	}
	return nil
}

func decodeMarket(out []any) (domain.Market, error) {
	if len(out) != 8 {
		return domain.Market{}, fmt.Errorf("chain: getMarket returned %d values", len(out))
	}
	ints := make([]*big.Int, 7)
	for i := range ints {
		v, ok := out[i].(*big.Int)
		if !ok {
			return domain.Market{}, fmt.Errorf("chain: getMarket field %d is %T", i, out[i])
		}
		ints[i] = v
	}
	settled, ok := out[7].(bool)
	if !ok {
		return domain.Market{}, fmt.Errorf("chain: getMarket settled is %T", out[7])
	}
	return domain.Market{
		ID:          ints[0].Uint64(),
		StartTime:   time.Unix(ints[1].Int64(), 0).UTC(),
		EndTime:     time.Unix(ints[2].Int64(), 0).UTC(),
		Prediction:  ints[3],
		ActualPrice: ints[4],
		TotalOver:   ints[5],
		TotalUnder:  ints[6],
		PaidOut:     new(big.Int),
		Settled:     settled,
	}, nil
}

var _ domain.MarketStore = (*MarketStore)(nil)
