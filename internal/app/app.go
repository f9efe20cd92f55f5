// Package app wires the over/under market together and runs it in one of
// three modes: local (in-process authority plus API), chain (contract
// authority plus API) or settler (scheduler only).
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/abhishek3950/AIvsHuman/internal/config"
)

// App owns the configuration and the cleanup funcs registered while wiring.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates an App.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires dependencies and blocks in the configured mode until ctx is
// done. Call Close afterwards to release what was wired.
func (a *App) Run(ctx context.Context) error {
	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	a.logger.InfoContext(ctx, "starting",
		slog.String("mode", a.cfg.Mode),
		slog.String("agent", deps.Agent),
		slog.Int64("fee_rate", a.cfg.Market.FeeRate),
		slog.Bool("scheduler", a.cfg.Scheduler.Enabled),
		slog.Int("dependencies", len(deps.Checks)),
	)

	switch strings.ToLower(a.cfg.Mode) {
	case config.ModeLocal, config.ModeChain:
		return a.ServeMode(ctx, deps)
	case config.ModeSettler:
		return a.SettlerMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close runs the cleanup funcs in reverse order. Later calls do nothing.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
