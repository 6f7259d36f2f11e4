// ComplyCal - Compliance calendars for Indian SMEs.
// Copyright (c) 2025 opencompliance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/opencompliance/complycal/internal/api"
	"github.com/opencompliance/complycal/internal/bus"
	"github.com/opencompliance/complycal/internal/cache"
	"github.com/opencompliance/complycal/internal/calendar"
	"github.com/opencompliance/complycal/internal/catalog"
	"github.com/opencompliance/complycal/internal/domain"
	"github.com/opencompliance/complycal/internal/matcher"
	"github.com/opencompliance/complycal/internal/report"
	"github.com/opencompliance/complycal/internal/repository"
	"github.com/opencompliance/complycal/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("COMPLYCAL_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting complycal",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := loadConfig()

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus, logger)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Load the obligation catalog, seeding the repository on first run
	cat, err := catalog.Load(ctx, repo, logger)
	if err != nil {
		slog.Error("failed to load obligation catalog", "error", err)
		os.Exit(1)
	}
	slog.Info("catalog loaded",
		"obligations", cat.Len(),
		"version", cat.Metadata().Version,
	)

	// Initialize Matcher (compiles custom applicability expressions)
	m, err := matcher.New(cat, logger)
	if err != nil {
		slog.Error("failed to initialize matcher", "error", err)
		os.Exit(1)
	}
	slog.Info("matcher initialized", "custom_rules", m.RulesCount())

	// Initialize Calendar Generator and Report Builder
	generator := calendar.NewGenerator(cat, logger)
	reports := report.NewBuilder(cat)

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("COMPLYCAL_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, cat, m, generator, reports, logger)
		if err := asyncWorker.Start(); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started")
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, cat, m, generator, reports, Version, cfg.RateLimit)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("complycal is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("complycal shutdown complete")
}

// loadConfig builds the configuration from the tier defaults plus
// COMPLYCAL_* environment overrides.
func loadConfig() *domain.Config {
	cfg := domain.DefaultConfig()
	if os.Getenv("COMPLYCAL_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	if v := os.Getenv("COMPLYCAL_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("COMPLYCAL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("COMPLYCAL_DB_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := os.Getenv("COMPLYCAL_POSTGRES_HOST"); v != "" {
		cfg.Repository.PostgresHost = v
	}
	if v := os.Getenv("COMPLYCAL_POSTGRES_PASSWORD"); v != "" {
		cfg.Repository.PostgresPassword = v
	}
	if v := os.Getenv("COMPLYCAL_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("COMPLYCAL_NATS_URL"); v != "" {
		cfg.EventBus.NATSUrl = v
	}
	if v := os.Getenv("COMPLYCAL_RATE_LIMIT"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit = limit
		}
	}
	return cfg
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  +------------------------------------------+")
	fmt.Println("  |               COMPLYCAL                  |")
	fmt.Println("  |   Compliance Calendars for Indian SMEs   |")
	fmt.Println("  |       Never miss a filing again.         |")
	fmt.Println("  +------------------------------------------+")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /match               - Match obligations for a profile")
	fmt.Println("    POST /calendar            - Generate a 12-month filing calendar")
	fmt.Println("    POST /report              - Build compliance report facts")
	fmt.Println("    GET  /obligations         - List the obligation catalog")
	fmt.Println("    POST /obligations         - Register a custom obligation")
	fmt.Println("    DELETE /obligations/{id}  - Delete a custom obligation")
	fmt.Println("    POST /obligations/reload  - Hot-reload the catalog")
	fmt.Println("    GET  /catalog/metadata    - Catalog provenance")
	fmt.Println("    GET  /health              - Health check")
	fmt.Println()
}
