package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
)

const erc20ABI = `[
 {"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
 {"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
 {"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
 {"inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}
]`

// Token implements domain.TokenLedger on the ERC20 wager token.
type Token struct {
	client  *Client
	address common.Address
	abi     abi.ABI
}

// NewToken binds the token at address.
func NewToken(client *Client, address string) (*Token, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("chain: invalid token address %q", address)
	}
	return &Token{client: client, address: common.HexToAddress(address), abi: mustParseABI(erc20ABI)}, nil
}

// BalanceOf implements domain.TokenLedger.
func (t *Token) BalanceOf(ctx context.Context, account string) (*big.Int, error) {
	out, err := t.client.call(ctx, t.address, t.abi, "balanceOf", common.HexToAddress(account))
	if err != nil {
		return nil, err
	}
	return uintOut(out, "balanceOf")
}

// Allowance implements domain.TokenLedger.
func (t *Token) Allowance(ctx context.Context, owner, spender string) (*big.Int, error) {
	out, err := t.client.call(ctx, t.address, t.abi, "allowance", common.HexToAddress(owner), common.HexToAddress(spender))
	if err != nil {
		return nil, err
	}
	return uintOut(out, "allowance")
}

// Approve sends approve from the agent wallet and returns once it is mined.
func (t *Token) Approve(ctx context.Context, owner, spender string, amount *big.Int) error {
	if common.HexToAddress(owner) != t.client.Address() {
		return fmt.Errorf("chain: approve for %s: %w", owner, domain.ErrUnauthorized)
	}
	_, err := t.client.transact(ctx, t.address, t.abi, "approve", common.HexToAddress(spender), amount)
	return err
}

// Mint funds account from the agent wallet. The token has no open mint, so
// the faucet drips from the agent's own balance.
func (t *Token) Mint(ctx context.Context, account string, amount *big.Int) error {
	_, err := t.client.transact(ctx, t.address, t.abi, "transfer", common.HexToAddress(account), amount)
	return err
}

func uintOut(out []any, method string) (*big.Int, error) {
	if len(out) == 0 {
		return nil, fmt.Errorf("chain: %s returned nothing", method)
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("chain: %s returned %T", method, out[0])
	}
	return v, nil
}

var _ domain.TokenLedger = (*Token)(nil)
