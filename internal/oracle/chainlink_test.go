package oracle

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
)

const feedAddr = "0xc907E116054Ad103354f2D350FD2514433D57F6f"

type fakeFeed struct {
	t       *testing.T
	abi     abi.ABI
	answer  *big.Int
	updated int64
	err     error
	dcCalls int
}

func (f *fakeFeed) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	method, err := f.abi.MethodById(msg.Data[:4])
	require.NoError(f.t, err)
	switch method.Name {
	case "decimals":
		f.dcCalls++
		return method.Outputs.Pack(uint8(8))
	case "latestRoundData":
		return method.Outputs.Pack(big.NewInt(7), f.answer, big.NewInt(f.updated), big.NewInt(f.updated), big.NewInt(7))
	}
	f.t.Fatalf("unexpected method %s", method.Name)
	return nil, nil
}

func newFeed(t *testing.T) *fakeFeed {
	parsed, err := abi.JSON(strings.NewReader(aggregatorABI))
	require.NoError(t, err)
	return &fakeFeed{t: t, abi: parsed, updated: 1_700_000_000}
}

func TestChainlinkFetchPrice(t *testing.T) {
	feed := newFeed(t)
	feed.answer = big.NewInt(6_942_012_345_678) // $69,420.12345678 at 8 decimals

	c, err := NewChainlink(feed, feedAddr, time.Hour)
	require.NoError(t, err)
	c.now = func() time.Time { return time.Unix(1_700_000_060, 0) }

	price, err := c.FetchPrice(context.Background(), "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, "69420123456780000000000", price.String())

	_, err = c.FetchPrice(context.Background(), "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, 1, feed.dcCalls, "decimals is read once")
}

func TestChainlinkStaleRound(t *testing.T) {
	feed := newFeed(t)
	feed.answer = big.NewInt(6_942_000_000_000)

	c, err := NewChainlink(feed, feedAddr, time.Minute)
	require.NoError(t, err)
	c.now = func() time.Time { return time.Unix(1_700_000_000, 0).Add(time.Hour) }

	_, err = c.FetchPrice(context.Background(), "bitcoin")
	assert.ErrorIs(t, err, domain.ErrOracleUnavailable)
}

func TestChainlinkRPCError(t *testing.T) {
	feed := newFeed(t)
	feed.err = errors.New("connection refused")

	c, err := NewChainlink(feed, feedAddr, 0)
	require.NoError(t, err)
	_, err = c.FetchPrice(context.Background(), "bitcoin")
	assert.ErrorIs(t, err, domain.ErrOracleUnavailable)
}

func TestChainlinkInvalidFeed(t *testing.T) {
	_, err := NewChainlink(newFeed(t), "nope", 0)
	assert.Error(t, err)
}

func TestScale(t *testing.T) {
	assert.Equal(t, "1000000000000000000", scale(big.NewInt(100_000_000), 8).String())
	assert.Equal(t, "1", scale(big.NewInt(1000), 21).String())
	assert.Equal(t, "5", scale(big.NewInt(5), 18).String())
}
