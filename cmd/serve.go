package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/lorekit/lore/internal/api"
	"github.com/lorekit/lore/internal/app"
	"github.com/lorekit/lore/internal/config"
	"github.com/lorekit/lore/internal/log"
)

// runServe initializes the application and starts the HTTP chat API.
func runServe(logger log.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	addr, err := parseServeAddr(cfg.ServerAddr())
	if err != nil {
		return fmt.Errorf("parsing address: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting lore server", "version", AppVersion)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	server := api.NewServer(a.Engine, a.DBPool, cfg.DataDir, logger)

	logger.Info("HTTP server ready",
		"addr", addr,
		"chat", "/api/chat, /api/chat/request",
		"health", "/health, /ready")

	return server.Run(ctx, addr)
}
