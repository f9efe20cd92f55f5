package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
)

const settledMarketTTL = 24 * time.Hour

// MarketCache implements domain.MarketCache for settled markets using a
// hash per market whose "data" field holds the JSON-encoded Market.
//
// Key schema:
//
//	market:{id} - hash with field "data"
type MarketCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewMarketCache creates a MarketCache backed by the given Client.
func NewMarketCache(c *Client) *MarketCache {
	return &MarketCache{rdb: c.Underlying(), ttl: settledMarketTTL}
}

func marketKey(id uint64) string { return "market:" + strconv.FormatUint(id, 10) }

// Set stores a settled market. Unsettled markets are refused because their
// totals still move.
func (mc *MarketCache) Set(ctx context.Context, m domain.Market) error {
	if !m.Settled {
		return fmt.Errorf("redis: cache market %d: %w", m.ID, domain.ErrMarketNotSettled)
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("redis: marshal market %d: %w", m.ID, err)
	}

	key := marketKey(m.ID)
	pipe := mc.rdb.TxPipeline()
	pipe.HSet(ctx, key, "data", data)
	pipe.Expire(ctx, key, mc.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set market %d: %w", m.ID, err)
	}
	return nil
}

// Get returns a cached market or domain.ErrNotFound.
func (mc *MarketCache) Get(ctx context.Context, id uint64) (domain.Market, error) {
	data, err := mc.rdb.HGet(ctx, marketKey(id), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("redis: get market %d: %w", id, err)
	}

	var m domain.Market
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.Market{}, fmt.Errorf("redis: unmarshal market %d: %w", id, err)
	}
	return m, nil
}

var _ domain.MarketCache = (*MarketCache)(nil)
