package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
	"github.com/abhishek3950/AIvsHuman/internal/server"
	"github.com/abhishek3950/AIvsHuman/internal/server/handler"
	"github.com/abhishek3950/AIvsHuman/internal/service"
	"github.com/abhishek3950/AIvsHuman/internal/store/memory"
)

const (
	agent = "0x00000000000000000000000000000000000000aa"
	pool  = "0x00000000000000000000000000000000000000F0"
	alice = "0x000000000000000000000000000000000000A11c"
	bob   = "0x0000000000000000000000000000000000000B0b"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) set(sec int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = time.Unix(sec, 0)
}

type env struct {
	t      *testing.T
	srv    *httptest.Server
	lc     *service.Lifecycle
	ledger *memory.Ledger
	clock  *clock
	prices *memory.PriceCache
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	e := &env{t: t, ledger: memory.NewLedger(), clock: &clock{}, prices: memory.NewPriceCache()}
	poolAddr, err := domain.NormalizeAccount(pool)
	require.NoError(t, err)
	bus := memory.NewSignalBus()
	audit := memory.NewAuditStore()

	store := memory.NewMarketStore()
	e.lc, err = service.NewLifecycle(
		store,
		service.NewWagerLedger(e.ledger, 0, logger),
		memory.NewCustody(e.ledger, poolAddr),
		service.LifecycleConfig{
			Window:  240 * time.Second,
			MinBet:  domain.Tokens(10),
			MaxBet:  domain.Tokens(100),
			FeeRate: 10,
			Agent:   agent,
			Spender: poolAddr,
		},
		logger,
		service.WithClock(e.clock.Now),
		service.WithEvents(bus, audit),
	)
	require.NoError(t, err)

	for _, acct := range []string{alice, bob} {
		norm, err := domain.NormalizeAccount(acct)
		require.NoError(t, err)
		require.NoError(t, e.ledger.Mint(ctx, norm, domain.Tokens(500)))
	}

	handlers := server.Handlers{
		Health:  handler.NewHealthHandler("local", nil, logger),
		Markets: handler.NewMarketHandler(e.lc, logger),
		Bets:    handler.NewBetHandler(e.lc, logger),
		History: handler.NewHistoryHandler(service.NewHistory(store, 10, 4), e.clock.Now, 10, logger),
		Faucet:  handler.NewFaucetHandler(service.NewFaucet(e.ledger, memory.NewRateLimiter(), domain.Tokens(1000), time.Hour, logger), logger),
		Price:   handler.NewPriceHandler(e.prices, "bitcoin", logger),
		Events:  handler.NewEventsHandler(bus, logger),
		Audit:   handler.NewAuditHandler(audit, logger),
	}
	mux := http.NewServeMux()
	server.Routes(mux, handlers, nil)
	e.srv = httptest.NewServer(mux)
	t.Cleanup(e.srv.Close)
	return e
}

func (e *env) do(method, path string, body any) (int, map[string]any) {
	e.t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, r)
	require.NoError(e.t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(e.t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (e *env) open(at, prediction int64) {
	e.t.Helper()
	e.clock.set(at)
	_, err := e.lc.CreateNext(context.Background(), agent, domain.Tokens(prediction))
	require.NoError(e.t, err)
}

func TestCurrentMarketEmpty(t *testing.T) {
	e := newEnv(t)
	status, body := e.do(http.MethodGet, "/api/markets/current", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "precondition", body["kind"])
}

func TestBetSettleClaimFlow(t *testing.T) {
	e := newEnv(t)
	e.open(1_000, 69_420)

	status, body := e.do(http.MethodGet, "/api/markets/current", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "open", body["state"])
	assert.Equal(t, "69420.00", body["prediction_usd"])

	status, body = e.do(http.MethodPost, "/api/bets", map[string]any{
		"market_id": 0, "account": alice, "side": "over", "amount": "60",
	})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, domain.Tokens(60).String(), body["total_over"])

	status, _ = e.do(http.MethodPost, "/api/bets", map[string]any{
		"market_id": 0, "account": bob, "side": "UNDER", "amount": "40",
	})
	require.Equal(t, http.StatusCreated, status)

	e.clock.set(1_300)
	status, body = e.do(http.MethodGet, "/api/markets/0", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "locked", body["state"])

	_, err := e.lc.Settle(context.Background(), agent, 0, domain.Tokens(70_000))
	require.NoError(t, err)

	status, body = e.do(http.MethodGet, "/api/markets/0/wagers/"+alice, nil)
	require.Equal(t, http.StatusOK, status)
	// pool 100, fee 10, alice holds the whole winning side.
	assert.Equal(t, domain.Tokens(90).String(), body["claimable"])

	status, body = e.do(http.MethodPost, "/api/claims", map[string]any{"market_id": 0, "account": alice})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "90.00", body["amount_tokens"])

	status, body = e.do(http.MethodPost, "/api/claims", map[string]any{"market_id": 0, "account": alice})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, domain.ErrAlreadyClaimed.Error(), body["error"])

	status, _ = e.do(http.MethodPost, "/api/claims", map[string]any{"market_id": 0, "account": bob})
	assert.Equal(t, http.StatusConflict, status, "losing side has nothing to claim")

	status, body = e.do(http.MethodGet, "/api/accounts/"+alice+"/history", nil)
	require.Equal(t, http.StatusOK, status)
	bets, ok := body["bets"].([]any)
	require.True(t, ok)
	assert.Len(t, bets, 1)

	status, body = e.do(http.MethodGet, "/api/events?after=0&limit=10", nil)
	require.Equal(t, http.StatusOK, status)
	events, ok := body["events"].([]any)
	require.True(t, ok)
	assert.Len(t, events, 5, "created, two bets, settled, claimed")

	status, body = e.do(http.MethodGet, "/api/audit?limit=2", nil)
	require.Equal(t, http.StatusOK, status)
	entries, ok := body["entries"].([]any)
	require.True(t, ok)
	assert.Len(t, entries, 2)

	status, body = e.do(http.MethodGet, "/api/audit?event=bet_placed&market_id=0", nil)
	require.Equal(t, http.StatusOK, status)
	entries, ok = body["entries"].([]any)
	require.True(t, ok)
	require.Len(t, entries, 2)
	assert.Equal(t, "bet_placed", entries[0].(map[string]any)["event"])
}

func TestBetRejections(t *testing.T) {
	e := newEnv(t)
	e.open(1_000, 69_420)

	tests := []struct {
		name   string
		body   map[string]any
		status int
	}{
		{"too small", map[string]any{"market_id": 0, "account": alice, "side": "over", "amount": "5"}, http.StatusBadRequest},
		{"too large", map[string]any{"market_id": 0, "account": alice, "side": "over", "amount": "101"}, http.StatusBadRequest},
		{"bad side", map[string]any{"market_id": 0, "account": alice, "side": "sideways", "amount": "10"}, http.StatusBadRequest},
		{"bad amount", map[string]any{"market_id": 0, "account": alice, "side": "over", "amount": "ten"}, http.StatusBadRequest},
		{"bad account", map[string]any{"market_id": 0, "account": "nobody", "side": "over", "amount": "10"}, http.StatusBadRequest},
		{"wrong market", map[string]any{"market_id": 7, "account": alice, "side": "over", "amount": "10"}, http.StatusBadRequest},
		{"unknown field", map[string]any{"market_id": 0, "account": alice, "side": "over", "amount": "10", "odds": 2}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := e.do(http.MethodPost, "/api/bets", tt.body)
			assert.Equal(t, tt.status, status)
		})
	}

	e.clock.set(1_240)
	status, body := e.do(http.MethodPost, "/api/bets", map[string]any{
		"market_id": 0, "account": alice, "side": "over", "amount": "10",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, domain.ErrBettingWindowClosed.Error(), body["error"])
}

func TestInsufficientBalanceIsUserError(t *testing.T) {
	e := newEnv(t)
	e.open(1_000, 69_420)
	broke := "0x000000000000000000000000000000000000dEaD"

	status, body := e.do(http.MethodPost, "/api/bets", map[string]any{
		"market_id": 0, "account": broke, "side": "under", "amount": "10",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "user", body["kind"])
}

func TestFaucetCooldown(t *testing.T) {
	e := newEnv(t)
	status, body := e.do(http.MethodPost, "/api/faucet", map[string]any{"account": alice})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "1000.00", body["amount_tokens"])

	status, _ = e.do(http.MethodPost, "/api/faucet", map[string]any{"account": alice})
	assert.Equal(t, http.StatusTooManyRequests, status)
}

func TestPriceEndpoint(t *testing.T) {
	e := newEnv(t)
	status, _ := e.do(http.MethodGet, "/api/price", nil)
	assert.Equal(t, http.StatusNotFound, status)

	require.NoError(t, e.prices.SetPrice(context.Background(), "bitcoin", domain.Tokens(70_123), time.Unix(1_700_000_000, 0)))
	status, body := e.do(http.MethodGet, "/api/price", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "70123.00", body["price_usd"])
}

func TestInvalidMarketID(t *testing.T) {
	e := newEnv(t)
	status, _ := e.do(http.MethodGet, "/api/markets/abc", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = e.do(http.MethodGet, "/api/markets/3", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	status, body := e.do(http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "local", body["mode"])
}
