package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jsamuelsen/quotebook/internal/domain"
	"github.com/jsamuelsen/quotebook/internal/platform/logging"
	"github.com/jsamuelsen/quotebook/internal/platform/telemetry"
	"github.com/jsamuelsen/quotebook/internal/ports"
)

const leaderboardService = "leaderboard"

// SyncStep names the stage of a leaderboard run that failed.
type SyncStep string

const (
	StepCompute SyncStep = "compute"
	StepFind    SyncStep = "find"
	StepCreate  SyncStep = "create"
	StepPin     SyncStep = "pin"
	StepEdit    SyncStep = "edit"
)

// SyncError wraps a failure with the step where it occurred.
type SyncError struct {
	Step  SyncStep
	Cause error
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	return fmt.Sprintf("leaderboard %s failed: %v", e.Step, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *SyncError) Unwrap() error {
	return e.Cause
}

// GetSyncStep extracts the failed step from a synchronizer error.
func GetSyncStep(err error) (SyncStep, bool) {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Step, true
	}

	return "", false
}

// syncState is the lifecycle of the synchronizer.
type syncState int

const (
	stateUninitialized syncState = iota
	stateReady
)

// SynchronizerConfig configures a LeaderboardSynchronizer.
type SynchronizerConfig struct {
	Ranker    ports.QuoteRanker
	Publisher ports.LeaderboardPublisher

	// Size is the number of quotes mirrored. Defaults to domain.DefaultLeaderboardSize.
	Size int

	// Metrics is optional.
	Metrics *telemetry.QuoteMetrics

	// Logger is an optional logger. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// LeaderboardSynchronizer mirrors the top quotes into one published message.
//
// It holds the last published ranking and the handle of the message. A run
// computes the ranking, compares it with the snapshot and edits the message
// only on a difference, or when the message is not known to show the
// snapshot because a publish failed. The snapshot changes only after a
// successful publish. Runs are serialized: the mutex is held across compute
// and publish so publishes never go out of order.
type LeaderboardSynchronizer struct {
	ranker    ports.QuoteRanker
	publisher ports.LeaderboardPublisher
	size      int
	metrics   *telemetry.QuoteMetrics
	logger    *slog.Logger

	mu       sync.Mutex
	state    syncState
	handle   string
	pinned   bool
	snapshot domain.Leaderboard

	// synced is true while the published message is known to show snapshot.
	synced bool
}

// NewLeaderboardSynchronizer creates a synchronizer in the uninitialized state.
// Panics if Ranker or Publisher is nil.
func NewLeaderboardSynchronizer(cfg SynchronizerConfig) *LeaderboardSynchronizer {
	if cfg.Ranker == nil {
		panic("LeaderboardSynchronizer: Ranker is required")
	}

	if cfg.Publisher == nil {
		panic("LeaderboardSynchronizer: Publisher is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	size := cfg.Size
	if size <= 0 {
		size = domain.DefaultLeaderboardSize
	}

	return &LeaderboardSynchronizer{
		ranker:    cfg.Ranker,
		publisher: cfg.Publisher,
		size:      size,
		metrics:   cfg.Metrics,
		logger:    logger.With(slog.String("component", "app.LeaderboardSynchronizer")),
	}
}

// Reconcile locates the published leaderboard, adopting it or creating and
// pinning a new one, and brings it in line with the current ranking.
// On success the synchronizer is ready.
func (s *LeaderboardSynchronizer) Reconcile(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.observe(ctx, s.reconcile)
}

// Refresh republishes the leaderboard if the ranking changed since the last
// publish. An uninitialized synchronizer reconciles first.
func (s *LeaderboardSynchronizer) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateReady {
		return s.observe(ctx, s.reconcile)
	}

	return s.observe(ctx, s.refresh)
}

// observe runs one synchronizer step and records its outcome.
func (s *LeaderboardSynchronizer) observe(ctx context.Context, run func(context.Context, *slog.Logger) (bool, error)) error {
	logger := logging.FromContextOr(ctx, s.logger)

	start := time.Now()
	published, err := run(ctx, logger)

	elapsed := time.Since(start)

	switch {
	case err != nil:
		s.metrics.LeaderboardSynced(ctx, telemetry.SyncFailed, elapsed)

		step, _ := GetSyncStep(err)
		logger.WarnContext(ctx, "leaderboard sync failed",
			slog.String("step", string(step)),
			slog.Any("error", err),
		)
	case published:
		s.metrics.LeaderboardSynced(ctx, telemetry.SyncPublished, elapsed)
		logger.DebugContext(ctx, "leaderboard published",
			slog.String("message_id", s.handle),
			slog.Duration("duration", elapsed),
		)
	default:
		s.metrics.LeaderboardSynced(ctx, telemetry.SyncUnchanged, elapsed)
	}

	return err
}

// reconcile must be called with s.mu held.
func (s *LeaderboardSynchronizer) reconcile(ctx context.Context, logger *slog.Logger) (bool, error) {
	current, err := s.compute(ctx)
	if err != nil {
		return false, err
	}

	// A message created earlier but never pinned is not visible to
	// FindOwned; finish pinning it instead of creating another one.
	if s.handle != "" && !s.pinned {
		if err := s.pin(ctx); err != nil {
			return false, err
		}

		s.state = stateReady

		if s.upToDate(current) {
			return false, nil
		}

		return s.replace(ctx, logger, current)
	}

	msg, found, err := s.publisher.FindOwned(ctx)
	if err != nil {
		return false, publishFailure(StepFind, err)
	}

	if !found {
		return s.create(ctx, logger, current)
	}

	logger.InfoContext(ctx, "adopted published leaderboard", slog.String("message_id", msg.ID))

	s.handle = msg.ID
	s.pinned = true
	s.state = stateReady

	if msg.Content == current.Render() {
		s.snapshot = current.Clone()
		s.synced = true

		return false, nil
	}

	// The adopted body matches no known ranking.
	s.snapshot = nil
	s.synced = false

	return s.replace(ctx, logger, current)
}

// refresh must be called with s.mu held and the synchronizer ready.
func (s *LeaderboardSynchronizer) refresh(ctx context.Context, logger *slog.Logger) (bool, error) {
	current, err := s.compute(ctx)
	if err != nil {
		return false, err
	}

	if s.upToDate(current) {
		return false, nil
	}

	return s.replace(ctx, logger, current)
}

// upToDate reports whether publishing current would change nothing.
func (s *LeaderboardSynchronizer) upToDate(current domain.Leaderboard) bool {
	return s.synced && current.Equal(s.snapshot)
}

// compute returns the current top-N ranking by upvotes.
func (s *LeaderboardSynchronizer) compute(ctx context.Context) (domain.Leaderboard, error) {
	view, err := s.ranker.RankedView(ctx, ports.RankedViewQuery{
		SortKey: domain.SortByUpvotes,
		Limit:   s.size,
	})
	if err != nil {
		return nil, &SyncError{Step: StepCompute, Cause: err}
	}

	return domain.Leaderboard(view), nil
}

// replace edits the message and swaps the snapshot on success. A message
// deleted externally is recreated.
func (s *LeaderboardSynchronizer) replace(ctx context.Context, logger *slog.Logger, current domain.Leaderboard) (bool, error) {
	err := s.publisher.Edit(ctx, s.handle, current.Render())

	switch {
	case err == nil:
		s.snapshot = current.Clone()
		s.synced = true

		return true, nil
	case domain.IsNotFound(err):
		logger.InfoContext(ctx, "published leaderboard is gone, recreating", slog.String("message_id", s.handle))

		s.state = stateUninitialized
		s.handle = ""
		s.pinned = false
		s.snapshot = nil
		s.synced = false

		return s.create(ctx, logger, current)
	default:
		s.synced = false

		return false, publishFailure(StepEdit, err)
	}
}

// create publishes a new message and pins it.
func (s *LeaderboardSynchronizer) create(ctx context.Context, logger *slog.Logger, current domain.Leaderboard) (bool, error) {
	msg, err := s.publisher.Create(ctx, current.Render())
	if err != nil {
		return false, publishFailure(StepCreate, err)
	}

	logger.InfoContext(ctx, "created leaderboard", slog.String("message_id", msg.ID))

	s.handle = msg.ID
	s.pinned = false
	s.snapshot = current.Clone()
	s.synced = true

	if err := s.pin(ctx); err != nil {
		return true, err
	}

	s.state = stateReady

	return true, nil
}

func (s *LeaderboardSynchronizer) pin(ctx context.Context) error {
	if err := s.publisher.Pin(ctx, s.handle); err != nil {
		return publishFailure(StepPin, err)
	}

	s.pinned = true

	return nil
}

func publishFailure(step SyncStep, err error) error {
	return &SyncError{Step: step, Cause: domain.NewExternalPublishError(leaderboardService, err)}
}
