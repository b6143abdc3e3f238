// Harrier - Merchant underwriting that runs itself.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opensource-finance/harrier/internal/advisory"
	"github.com/opensource-finance/harrier/internal/api"
	"github.com/opensource-finance/harrier/internal/bus"
	"github.com/opensource-finance/harrier/internal/cache"
	"github.com/opensource-finance/harrier/internal/decision"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/fingerprint"
	"github.com/opensource-finance/harrier/internal/monitor"
	"github.com/opensource-finance/harrier/internal/notify"
	"github.com/opensource-finance/harrier/internal/offer"
	"github.com/opensource-finance/harrier/internal/pipeline"
	"github.com/opensource-finance/harrier/internal/policy"
	"github.com/opensource-finance/harrier/internal/repository"
	"github.com/opensource-finance/harrier/internal/scoring"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Load configuration
	cfg := domain.ConfigFromEnv()

	// Initialize structured logger
	logLevel := slog.LevelInfo
	if cfg.Logging.Level == "debug" {
		logLevel = slog.LevelDebug
	}
	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting harrier",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	slog.Info("configuration loaded",
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"poll_interval", cfg.Monitor.PollInterval,
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
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Override Policy Engine
	overrides, err := policy.NewEngine()
	if err != nil {
		slog.Error("failed to initialize policy engine", "error", err)
		os.Exit(1)
	}
	if err := loadOverridesFromDatabase(ctx, repo, overrides); err != nil {
		slog.Error("failed to load override rules", "error", err)
		os.Exit(1)
	}
	slog.Info("policy engine initialized", "rules_count", overrides.RulesCount())

	// Initialize Advisory
	advisor := advisory.New(cfg.Advisory)
	if cfg.Advisory.Endpoint != "" {
		slog.Info("advisory initialized", "mode", "http")
	} else {
		slog.Info("advisory initialized", "mode", "heuristic")
	}

	// Initialize Pipeline
	pipe := pipeline.New(
		scoring.NewScorer(),
		advisor,
		decision.NewAuthority(),
		offer.NewCalculator(),
		overrides,
		repo,
		busImpl,
		logger,
	)

	// Initialize Notification Dispatcher
	transport := notify.NewHTTPTransport(cfg.Notify)
	dispatcher := notify.NewDispatcher(transport, cfg.Notify.RetryDelay, logger)

	// Initialize Monitor Engine
	fps := fingerprint.NewStore(repo, cacheImpl)
	engine := monitor.NewEngine(pipe, fps, dispatcher, repo, busImpl, cfg.Monitor, logger)

	if prior := engine.StartupState(ctx); prior == domain.StateContinuous {
		slog.Warn("continuous monitoring was enabled before last shutdown, re-enable via POST /engine/continuous")
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, engine, pipe, overrides, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("harrier is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Stop the continuous loop before the server so no cycle is cut off
	engine.Shutdown(shutdownCtx)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("harrier shutdown complete")
}

// loadOverridesFromDatabase loads override rules from the database into
// the policy engine. All rules are configured via POST /overrides - no
// hardcoded defaults.
func loadOverridesFromDatabase(ctx context.Context, repo domain.Repository, engine *policy.Engine) error {
	rules, err := repo.ListOverrideRules(ctx)
	if err != nil {
		slog.Warn("failed to list override rules from database", "error", err)
		return nil // Start with empty rules - they can be added via API
	}

	if len(rules) > 0 {
		slog.Info("loading override rules from database", "count", len(rules))
		return engine.LoadRules(rules)
	}

	slog.Info("no override rules in database - configure via POST /overrides API")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🦅 HARRIER                  ║")
	fmt.Println("  ║      Merchant Underwriting Engine         ║")
	fmt.Println("  ║    Underwriting that runs itself.         ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST   /engine/run              - Run a single monitoring cycle")
	fmt.Println("    POST   /engine/continuous       - Enable continuous monitoring")
	fmt.Println("    DELETE /engine/continuous       - Disable continuous monitoring")
	fmt.Println("    POST   /engine/cache/clear      - Clear fingerprints and statuses")
	fmt.Println("    GET    /engine/status           - Engine state")
	fmt.Println("    GET    /engine/summary          - Last cycle summary")
	fmt.Println("    POST   /merchants               - Create or update a merchant")
	fmt.Println("    POST   /merchants/{id}/evaluate - Underwrite one merchant now")
	fmt.Println("    GET    /merchants/{id}/decision - Latest decision")
	fmt.Println("    GET    /overrides               - List override rules")
	fmt.Println("    POST   /overrides               - Create an override rule")
	fmt.Println("    POST   /overrides/reload        - Hot-reload override rules")
	fmt.Println("    GET    /health                  - Health check")
	fmt.Println("    GET    /metrics                 - Prometheus metrics")
	fmt.Println()
}
