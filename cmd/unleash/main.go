package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gambhirsharma/unleash/internal/config"
	"github.com/gambhirsharma/unleash/internal/migrations"
	"github.com/gambhirsharma/unleash/internal/segment"
	"github.com/gambhirsharma/unleash/internal/segment/api"
	"github.com/gambhirsharma/unleash/internal/segment/storage/postgres"
	"github.com/gambhirsharma/unleash/internal/server"
)

func main() {
	configPath := flag.String("config", "unleash.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config",
		"server", cfg.Server,
		"values_limit", cfg.Segments.ValuesLimit,
		"strategy_segments_limit", cfg.Segments.StrategySegmentsLimit,
	)

	// 2. Initialize Storage (PostgreSQL)
	dbAdapter, err := postgres.NewAdapter(
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
	)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer dbAdapter.Close()

	// 2.1. Run Database Migrations
	if err := migrations.RunMigrations(dbAdapter.DB(), cfg.Database.AutoMigrate); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}

	// 3. Initialize Segment Service
	// Limits are read from config on every call so runtime reloads of the
	// limits section take effect without restarting the service.
	segmentSvc := segment.NewService(
		dbAdapter,
		dbAdapter,
		dbAdapter,
		segment.JSONValidator{},
		func() segment.Limits { return cfg.Segments.Limits() },
	)

	// 4. Initialize Server
	srv := server.New(fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port), dbAdapter.DB(), cfg.Server.Mode)
	api.NewService(segmentSvc).RegisterRoutes(srv.Engine)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		slog.Error("HTTP server error", "error", err)
		os.Exit(1)
	}
	slog.Info("Shutdown complete")
}
