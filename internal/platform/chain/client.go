// Package chain runs the market on an EVM betting contract. The contract
// holds the pool and the wager token; this package reads its state and
// sends transactions signed by the settlement agent.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/abhishek3950/AIvsHuman/internal/crypto"
	"github.com/abhishek3950/AIvsHuman/internal/domain"
)

// Backend is the subset of *ethclient.Client the package needs.
type Backend interface {
	ethereum.ContractCaller
	ethereum.GasPricer
	ethereum.GasEstimator
	ethereum.TransactionSender
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// ClientConfig bounds how long a transaction may take to be mined.
type ClientConfig struct {
	ReceiptTimeout time.Duration
	PollInterval   time.Duration
	// GasHeadroomPct is added on top of the node's gas estimate.
	GasHeadroomPct int64
}

// Client signs and sends contract transactions from the agent wallet.
// Sends are serialized so nonces never collide.
type Client struct {
	backend Backend
	signer  *crypto.Signer
	cfg     ClientConfig
	logger  *slog.Logger

	mu sync.Mutex
}

// NewClient creates a Client.
func NewClient(backend Backend, signer *crypto.Signer, cfg ClientConfig, logger *slog.Logger) *Client {
	if cfg.ReceiptTimeout <= 0 {
		cfg.ReceiptTimeout = 60 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.GasHeadroomPct <= 0 {
		cfg.GasHeadroomPct = 20
	}
	return &Client{
		backend: backend,
		signer:  signer,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "chain")),
	}
}

// Address is the agent wallet.
func (c *Client) Address() common.Address {
	return c.signer.Address()
}

// call runs a view method and returns its unpacked outputs.
func (c *Client) call(ctx context.Context, contract common.Address, parsed abi.ABI, method string, args ...any) ([]any, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("chain: pack %s: %w", method, err)
	}
	raw, err := c.backend.CallContract(ctx, ethereum.CallMsg{From: c.Address(), To: &contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: call %s: %w: %w", method, domain.ErrRPCTimeout, err)
	}
	out, err := parsed.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("chain: unpack %s: %w", method, err)
	}
	return out, nil
}

// transact sends a state-changing call and waits for a successful receipt.
func (c *Client) transact(ctx context.Context, contract common.Address, parsed abi.ABI, method string, args ...any) (common.Hash, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("chain: pack %s: %w", method, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	from := c.Address()
	nonce, err := c.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("chain: %s pending nonce: %w: %w", method, domain.ErrRPCTimeout, err)
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("chain: %s gas price: %w: %w", method, domain.ErrRPCTimeout, err)
	}
	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &contract, Data: data})
	if err != nil {
		if isRevert(err) {
			return common.Hash{}, fmt.Errorf("chain: %s: %w: %w", method, domain.ErrTxReverted, err)
		}
		return common.Hash{}, fmt.Errorf("chain: %s estimate gas: %w: %w", method, domain.ErrRPCTimeout, err)
	}
	gas += gas * uint64(c.cfg.GasHeadroomPct) / 100

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &contract,
		Value:    big.NewInt(0),
		Data:     data,
	})
	signed, err := c.signer.SignTx(tx)
	if err != nil {
		return common.Hash{}, err
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("chain: %s send: %w: %w", method, domain.ErrRPCTimeout, err)
	}

	hash := signed.Hash()
	c.logger.DebugContext(ctx, "transaction sent",
		slog.String("method", method),
		slog.String("tx", hash.Hex()),
		slog.Uint64("nonce", nonce),
	)
	if err := c.waitMined(ctx, hash); err != nil {
		return hash, fmt.Errorf("chain: %s tx %s: %w", method, hash.Hex(), err)
	}
	return hash, nil
}

func (c *Client) waitMined(ctx context.Context, hash common.Hash) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ReceiptTimeout)
	defer cancel()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()
	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		switch {
		case err == nil && receipt.Status == types.ReceiptStatusSuccessful:
			return nil
		case err == nil:
			return domain.ErrTxReverted
		case !errors.Is(err, ethereum.NotFound):
			c.logger.WarnContext(ctx, "receipt lookup failed",
				slog.String("tx", hash.Hex()),
				slog.String("error", err.Error()),
			)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", domain.ErrRPCTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

func isRevert(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "revert")
}

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("chain: parse abi: " + err.Error())
	}
	return parsed
}

func toBig(id uint64) *big.Int {
	return new(big.Int).SetUint64(id)
}
