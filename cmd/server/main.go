package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcoot/townserver/internal/api"
	"github.com/mcoot/townserver/internal/config"
	"github.com/mcoot/townserver/internal/factory"
)

func main() {
	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration: defaults, then YAML file, then environment
	configPath := os.Getenv("TOWNSERVER_CONFIG")
	if configPath == "" {
		configPath = "townserver.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", slog.String("path", configPath), slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := config.LoadEnv(&cfg, ".env"); err != nil {
		logger.Error("failed to apply environment", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if len(cfg.Moderators) == 0 {
		logger.Warn("no moderator accounts configured; moderation endpoints will reject every request")
	}

	// Create application factory
	app, err := factory.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("failed to close storage", slog.String("error", err.Error()))
		}
	}()

	// Create API router
	router := api.NewRouter(api.RouterConfig{
		Logger:            logger,
		AuthService:       app.AuthService,
		LandService:       app.LandService,
		PendingRegistry:   app.PendingRegistry,
		TownStore:         app.TownStore,
		Ledger:            app.Ledger,
		Tracker:           app.Tracker,
		PendingDaysToKeep: cfg.Pending.DaysToKeep,
	})

	// Create server
	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = cfg.Server.Host
	serverConfig.Port = cfg.Server.Port
	server := api.NewServer(router, serverConfig, logger)

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Background maintenance
	go every(ctx, cfg.Stats.SweepInterval, func() {
		if n := app.Tracker.Sweep(); n > 0 {
			logger.Info("expired idle connections", slog.Int("count", n))
		}
	})
	go every(ctx, cfg.Pending.CleanupInterval, func() {
		if _, err := app.PendingRegistry.CleanupOld(ctx, cfg.Pending.DaysToKeep); err != nil {
			logger.Error("pending cleanup failed", slog.String("error", err.Error()))
		}
	})

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("server started", slog.String("addr", server.Addr()))

	// Wait for shutdown or error
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			cancel()
			_ = app.Close()
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
		}
	}

	logger.Info("server stopped")
}

// every runs fn on each tick until ctx is done. A non-positive interval disables it.
func every(ctx context.Context, interval time.Duration, fn func()) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
