package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jsamuelsen/quotebook/internal/platform/logging"
	"github.com/jsamuelsen/quotebook/internal/platform/telemetry"
	"github.com/jsamuelsen/quotebook/internal/ports"
)

// DefaultRetentionMaxAge is how long a quote nobody upvoted is kept.
const DefaultRetentionMaxAge = 14 * 24 * time.Hour

// SweeperConfig configures a RetentionSweeper.
type SweeperConfig struct {
	Repository ports.QuoteRepository

	// MaxAge is the retention window. Defaults to DefaultRetentionMaxAge.
	MaxAge time.Duration

	// MinUpvotes is the highest upvote count still swept. Defaults to 0.
	MinUpvotes int

	// Metrics is optional.
	Metrics *telemetry.QuoteMetrics

	// Logger is an optional logger. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// RetentionSweeper deletes quotes that stayed unpopular past the retention
// window. Sweeping twice in a row removes nothing the second time.
type RetentionSweeper struct {
	repo       ports.QuoteRepository
	maxAge     time.Duration
	minUpvotes int
	metrics    *telemetry.QuoteMetrics
	logger     *slog.Logger
}

// NewRetentionSweeper creates a sweeper.
// Panics if Repository is nil.
func NewRetentionSweeper(cfg SweeperConfig) *RetentionSweeper {
	if cfg.Repository == nil {
		panic("RetentionSweeper: Repository is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultRetentionMaxAge
	}

	return &RetentionSweeper{
		repo:       cfg.Repository,
		maxAge:     maxAge,
		minUpvotes: max(cfg.MinUpvotes, 0),
		metrics:    cfg.Metrics,
		logger:     logger.With(slog.String("component", "app.RetentionSweeper")),
	}
}

// Sweep removes stale quotes and returns how many were deleted.
func (s *RetentionSweeper) Sweep(ctx context.Context) (int64, error) {
	logger := logging.FromContextOr(ctx, s.logger)

	removed, err := s.repo.DeleteStale(ctx, s.maxAge, s.minUpvotes)
	if err != nil {
		return 0, fmt.Errorf("sweeping stale quotes: %w", err)
	}

	s.metrics.QuotesSwept(ctx, removed)

	logger.InfoContext(ctx, "retention sweep finished",
		slog.Int64("removed", removed),
		slog.Duration("max_age", s.maxAge),
		slog.Int("min_upvotes", s.minUpvotes),
	)

	return removed, nil
}
