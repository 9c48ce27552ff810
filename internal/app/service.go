// Package app contains application services that orchestrate use cases.
// This is the application layer in Clean Architecture - it coordinates
// domain logic and infrastructure through ports.
//
// Application Layer Responsibilities:
//   - Orchestrate quote book use cases (submit, vote, edit, cleanup)
//   - Keep the published leaderboard in step with the stored quotes
//   - Handle cross-cutting concerns (logging, metrics)
//
// What does NOT belong here:
//   - HTTP specifics (that's adapters)
//   - Database queries (that's repository adapters)
//   - Discord message formats (that's the ACL)
package app

import (
	"context"
	"log/slog"

	"github.com/jsamuelsen/quotebook/internal/domain"
	"github.com/jsamuelsen/quotebook/internal/platform/logging"
	"github.com/jsamuelsen/quotebook/internal/platform/telemetry"
	"github.com/jsamuelsen/quotebook/internal/ports"
)

const (
	// MaxAutocompleteResults caps culprit and name lookups.
	MaxAutocompleteResults = 25

	// DefaultQuoteOfWeekMinUpvotes is the upvote threshold for the quote of the week.
	DefaultQuoteOfWeekMinUpvotes = 2
)

// LeaderboardRefresher republishes the leaderboard after standings may
// have changed. LeaderboardSynchronizer implements it.
type LeaderboardRefresher interface {
	Refresh(ctx context.Context) error
}

// Sweeper removes stale quotes. RetentionSweeper implements it.
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// QuoteServiceConfig contains the dependencies of the quote service.
type QuoteServiceConfig struct {
	Repository ports.QuoteRepository
	Ranker     ports.QuoteRanker
	Sweeper    Sweeper

	// Leaderboard is optional. Without it mutations are not mirrored.
	Leaderboard LeaderboardRefresher

	// Announcer is optional. Without it the quote of the week is only returned.
	Announcer ports.Announcer

	// LeaderboardSize is the number of quotes in Leaderboard views.
	LeaderboardSize int

	// QuoteOfWeekMinUpvotes defaults to DefaultQuoteOfWeekMinUpvotes when negative.
	QuoteOfWeekMinUpvotes int

	// Metrics is optional.
	Metrics *telemetry.QuoteMetrics

	// Logger is an optional logger. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// QuoteService orchestrates quote book use cases.
// It depends on port interfaces, not concrete implementations,
// following the Dependency Inversion Principle.
type QuoteService struct {
	repo        ports.QuoteRepository
	ranker      ports.QuoteRanker
	sweeper     Sweeper
	leaderboard LeaderboardRefresher
	announcer   ports.Announcer
	boardSize   int
	weeklyMin   int
	metrics     *telemetry.QuoteMetrics
	logger      *slog.Logger
}

// NewQuoteService creates a quote service.
// Panics if Repository, Ranker or Sweeper is nil.
func NewQuoteService(cfg QuoteServiceConfig) *QuoteService {
	if cfg.Repository == nil {
		panic("QuoteService: Repository is required")
	}

	if cfg.Ranker == nil {
		panic("QuoteService: Ranker is required")
	}

	if cfg.Sweeper == nil {
		panic("QuoteService: Sweeper is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	boardSize := cfg.LeaderboardSize
	if boardSize <= 0 {
		boardSize = domain.DefaultLeaderboardSize
	}

	weeklyMin := cfg.QuoteOfWeekMinUpvotes
	if weeklyMin < 0 {
		weeklyMin = DefaultQuoteOfWeekMinUpvotes
	}

	return &QuoteService{
		repo:        cfg.Repository,
		ranker:      cfg.Ranker,
		sweeper:     cfg.Sweeper,
		leaderboard: cfg.Leaderboard,
		announcer:   cfg.Announcer,
		boardSize:   boardSize,
		weeklyMin:   weeklyMin,
		metrics:     cfg.Metrics,
		logger:      logger.With(slog.String("component", "app.QuoteService")),
	}
}

// loggerFor returns the request-scoped logger when present.
func (s *QuoteService) loggerFor(ctx context.Context) *slog.Logger {
	return logging.FromContextOr(ctx, s.logger)
}

// refresh republishes the leaderboard after a mutation. Publish failures
// are logged and counted but never fail the mutation that triggered them.
func (s *QuoteService) refresh(ctx context.Context, trigger string) {
	if s.leaderboard == nil {
		return
	}

	if err := s.leaderboard.Refresh(ctx); err != nil {
		s.loggerFor(ctx).WarnContext(ctx, "leaderboard not updated",
			slog.String("trigger", trigger),
			slog.Any("error", err),
		)
	}
}
