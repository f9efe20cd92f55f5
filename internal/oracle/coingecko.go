// Package oracle reads the BTC/USD spot price used to settle markets and
// seed predictions.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
)

// DefaultCoinGeckoURL is the public API root.
const DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"

// CoinGeckoConfig configures the HTTP client.
type CoinGeckoConfig struct {
	BaseURL string
	APIKey  string // sent as x-cg-demo-api-key when set
	Timeout time.Duration
	// RatePerMinute throttles outbound calls; the free tier allows about 30.
	RatePerMinute int
}

// CoinGecko fetches simple spot prices over HTTP.
type CoinGecko struct {
	base    string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

// NewCoinGecko creates a client. Zero fields take the public defaults.
func NewCoinGecko(cfg CoinGeckoConfig) *CoinGecko {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultCoinGeckoURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = 30
	}
	return &CoinGecko{
		base:    cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RatePerMinute)/60), 1),
	}
}

// FetchPrice returns the USD price of asset (a CoinGecko coin id such as
// "bitcoin") scaled to 18 decimals.
func (c *CoinGecko) FetchPrice(ctx context.Context, asset string) (*big.Int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("coingecko: rate limiter: %w: %w", domain.ErrOracleUnavailable, err)
	}

	q := url.Values{}
	q.Set("ids", asset)
	q.Set("vs_currencies", "usd")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/simple/price?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("coingecko: create request: %w: %w", domain.ErrOracleUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coingecko: request: %w: %w", domain.ErrOracleUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("coingecko: status %d: %s: %w", resp.StatusCode, string(body), domain.ErrOracleUnavailable)
	}

	var out map[string]map[string]decimal.Decimal
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("coingecko: decode: %w: %w", domain.ErrOracleUnavailable, err)
	}
	usd, ok := out[asset]["usd"]
	if !ok {
		return nil, fmt.Errorf("coingecko: no usd price for %q: %w", asset, domain.ErrOracleUnavailable)
	}
	if !usd.IsPositive() {
		return nil, fmt.Errorf("coingecko: non-positive price %s: %w", usd, domain.ErrOracleUnavailable)
	}
	return usd.Shift(domain.TokenDecimals).Truncate(0).BigInt(), nil
}
