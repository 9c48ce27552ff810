// Package main is the entry point for the quote book service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jsamuelsen/quotebook/internal/adapters/clients"
	"github.com/jsamuelsen/quotebook/internal/adapters/clients/acl"
	"github.com/jsamuelsen/quotebook/internal/adapters/http"
	"github.com/jsamuelsen/quotebook/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quotebook/internal/adapters/persistence"
	"github.com/jsamuelsen/quotebook/internal/app"
	"github.com/jsamuelsen/quotebook/internal/platform/config"
	"github.com/jsamuelsen/quotebook/internal/platform/logging"
	"github.com/jsamuelsen/quotebook/internal/platform/telemetry"
	"github.com/jsamuelsen/quotebook/internal/ports"
)

// Build-time variables, injected via ldflags.
// Example: go build -ldflags "-X main.Version=1.0.0 -X main.Commit=$(git rev-parse HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	// Version is the semantic version of the service.
	Version = "dev"

	// Commit is the git commit SHA.
	Commit = "unknown"

	// BuildTime is the timestamp when the binary was built.
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// 1. Determine profile from environment
	profile := os.Getenv("APP_ENVIRONMENT")
	if profile == "" {
		profile = "local"
	}

	// 2. Load and validate configuration (fail fast)
	cfg, err := config.Load(profile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// 3. Initialize logging
	logger := logging.New(&logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: cfg.App.Name,
		Version: cfg.App.Version,
		File: logging.FileConfig{
			Enabled:    cfg.Log.File.Enabled,
			Path:       cfg.Log.File.Path,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
	})
	slog.SetDefault(logger)

	logger.Info("starting service",
		slog.String("version", Version),
		slog.String("commit", Commit),
		slog.String("environment", cfg.App.Environment),
		slog.String("database_driver", cfg.Database.Driver),
		slog.Bool("leaderboard_enabled", cfg.Leaderboard.Enabled),
	)

	// 4. Initialize telemetry (noop if disabled)
	telProvider, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		Endpoint:     cfg.Telemetry.Endpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      cfg.App.Version,
		Environment:  cfg.App.Environment,
		SamplingRate: cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	defer func() {
		if shutdownErr := telProvider.Shutdown(ctx); shutdownErr != nil {
			logger.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	quoteMetrics, err := telemetry.NewQuoteMetrics()
	if err != nil {
		return fmt.Errorf("creating quote metrics: %w", err)
	}

	// 5. Open the database and apply the schema
	db, err := persistence.Open(&cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	defer func() {
		if closeErr := persistence.Close(db); closeErr != nil {
			logger.Error("database close error", slog.Any("error", closeErr))
		}
	}()

	if err := persistence.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	store := persistence.NewQuoteStore(persistence.StoreConfig{
		DB:     db,
		Logger: logger,
	})

	// 6. Create health registry; the database is a critical dependency
	healthRegistry := ports.NewHealthRegistry()
	if err := healthRegistry.Register(store); err != nil {
		return fmt.Errorf("registering database health check: %w", err)
	}

	// 7. Wire the Discord mirror when a bot token is configured
	var (
		leaderboard app.LeaderboardRefresher
		announcer   ports.Announcer
	)

	if cfg.Discord.BotToken != "" {
		publisher, err := newDiscordPublisher(cfg, logger)
		if err != nil {
			return err
		}

		if err := healthRegistry.Register(publisher); err != nil {
			return fmt.Errorf("registering discord health check: %w", err)
		}

		if cfg.Discord.AnnounceChannelID != "" {
			announcer = publisher
		}

		if cfg.Leaderboard.Enabled {
			synchronizer := app.NewLeaderboardSynchronizer(app.SynchronizerConfig{
				Ranker:    store,
				Publisher: publisher,
				Size:      cfg.Leaderboard.Size,
				Metrics:   quoteMetrics,
				Logger:    logger,
			})

			// A failed startup reconcile is retried by the next refresh.
			if err := synchronizer.Reconcile(ctx); err != nil {
				step, _ := app.GetSyncStep(err)
				logger.Warn("leaderboard reconcile failed",
					slog.String("step", string(step)),
					slog.Any("error", err),
				)
			}

			leaderboard = synchronizer
		}
	}

	// 8. Create the application layer
	sweeper := app.NewRetentionSweeper(app.SweeperConfig{
		Repository: store,
		MaxAge:     cfg.Retention.MaxAge,
		MinUpvotes: cfg.Retention.MinUpvotes,
		Metrics:    quoteMetrics,
		Logger:     logger,
	})

	quoteService := app.NewQuoteService(app.QuoteServiceConfig{
		Repository:            store,
		Ranker:                store,
		Sweeper:               sweeper,
		Leaderboard:           leaderboard,
		Announcer:             announcer,
		LeaderboardSize:       cfg.Leaderboard.Size,
		QuoteOfWeekMinUpvotes: cfg.QuoteOfWeek.MinUpvotes,
		Metrics:               quoteMetrics,
		Logger:                logger,
	})

	// 9. Create handlers
	buildInfo := handlers.NewBuildInfo(Version, Commit, BuildTime)
	healthHandler := handlers.NewHealthHandler(healthRegistry, buildInfo)
	quoteHandler := handlers.NewQuoteHandler(quoteService)

	// 10. Create HTTP server
	server := http.New(&cfg.Server, logger)

	// 11. Setup router with all middleware and routes
	routerCfg := http.NewDefaultRouterConfig(logger, cfg, healthHandler, quoteHandler)
	routerCfg.Timeout = cfg.Server.RequestTimeout
	http.SetupRouter(server.Engine(), routerCfg)

	// 12. Start server (non-blocking)
	serverErr := server.Start()

	// 13. Wait for shutdown signal
	return waitForShutdown(ctx, logger, server, serverErr, cfg.Server.ShutdownTimeout)
}

// newDiscordPublisher builds the Discord REST client and the publisher
// adapter over it.
func newDiscordPublisher(cfg *config.Config, logger *slog.Logger) (*acl.DiscordPublisher, error) {
	botAuth := "Bot " + cfg.Discord.BotToken

	httpClient, err := clients.New(&clients.Config{
		BaseURL:     cfg.Discord.BaseURL,
		ServiceName: "discord",
		Timeout:     cfg.Client.Timeout,
		Retry:       cfg.Client.Retry,
		Circuit:     cfg.Client.CircuitBreaker,
		Transport:   cfg.Client.Transport,
		AuthFunc: func(req *nethttp.Request) {
			req.Header.Set("Authorization", botAuth)
		},
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating discord client: %w", err)
	}

	return acl.NewDiscordPublisher(acl.DiscordConfig{
		Client:               httpClient,
		LeaderboardChannelID: cfg.Discord.LeaderboardChannelID,
		AnnounceChannelID:    cfg.Discord.AnnounceChannelID,
		WritesPerSecond:      cfg.Discord.WritesPerSecond,
		Logger:               logger,
	}), nil
}

// waitForShutdown blocks until a shutdown signal is received or server error occurs.
// It then performs graceful shutdown of the HTTP server.
func waitForShutdown(
	ctx context.Context,
	logger *slog.Logger,
	server *http.Server,
	serverErr <-chan error,
	shutdownTimeout time.Duration,
) error {
	// Listen for OS signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		// Server error during startup or runtime
		return fmt.Errorf("server error: %w", err)

	case sig := <-quit:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	}

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	// Graceful shutdown sequence
	logger.Info("initiating graceful shutdown",
		slog.Duration("timeout", shutdownTimeout),
	)

	// Stop accepting new requests, drain in-flight
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("shutdown complete")

	return nil
}
