// Package server exposes the market over HTTP and websocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
	"github.com/abhishek3950/AIvsHuman/internal/server/handler"
	"github.com/abhishek3950/AIvsHuman/internal/server/middleware"
	"github.com/abhishek3950/AIvsHuman/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
	RateLimit   int    // write requests per client per minute; zero disables
	TrustProxy  bool   // take the client address from X-Forwarded-For
}

// Handlers aggregates all HTTP handlers that the server needs to register.
// Nil optional handlers leave their routes unregistered.
type Handlers struct {
	Health  *handler.HealthHandler
	Markets *handler.MarketHandler
	Bets    *handler.BetHandler
	History *handler.HistoryHandler
	Faucet  *handler.FaucetHandler // optional
	Price   *handler.PriceHandler  // optional
	Events  *handler.EventsHandler // optional
	Audit   *handler.AuditHandler  // optional
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (rate limiting, auth, logging, CORS) and attaches
// the WebSocket hub when one is given.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	Routes(mux, handlers, wsHub)

	var h http.Handler = mux
	if limiter != nil {
		h = middleware.RateLimit(limiter, middleware.RateLimitConfig{
			Limit:      cfg.RateLimit,
			Window:     time.Minute,
			TrustProxy: cfg.TrustProxy,
		}, logger)(h)
	}
	h = middleware.Auth(cfg.APIKey, "/api/health")(h)
	h = middleware.RequireAPIKey(cfg.APIKey, custodialPaths...)(h)
	if cfg.APIKey == "" {
		logger.Warn("no api key configured, bet and claim endpoints are disabled")
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

// custodialPaths move tokens on behalf of the account named in the body.
var custodialPaths = []string{"/api/bets", "/api/claims"}

// Routes registers every endpoint on mux.
func Routes(mux *http.ServeMux, handlers Handlers, wsHub *ws.Hub) {
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	mux.HandleFunc("GET /api/markets/current", handlers.Markets.Current)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("GET /api/markets/{id}/wagers/{account}", handlers.Markets.GetWager)
	mux.HandleFunc("GET /api/accounts/{account}/history", handlers.History.ForAccount)

	mux.HandleFunc("POST /api/bets", handlers.Bets.PlaceBet)
	mux.HandleFunc("POST /api/claims", handlers.Bets.Claim)

	if handlers.Faucet != nil {
		mux.HandleFunc("POST /api/faucet", handlers.Faucet.Claim)
	}
	if handlers.Price != nil {
		mux.HandleFunc("GET /api/price", handlers.Price.GetPrice)
	}
	if handlers.Events != nil {
		mux.HandleFunc("GET /api/events", handlers.Events.ListEvents)
	}
	if handlers.Audit != nil {
		mux.HandleFunc("GET /api/audit", handlers.Audit.List)
	}
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
