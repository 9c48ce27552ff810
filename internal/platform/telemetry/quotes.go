package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Leaderboard sync results recorded by LeaderboardSynced.
const (
	SyncPublished = "published"
	SyncUnchanged = "unchanged"
	SyncFailed    = "failed"
)

// QuoteMetrics counts quote book activity. The zero value of each
// instrument is never used; construct with NewQuoteMetrics.
type QuoteMetrics struct {
	submitted    metric.Int64Counter
	removed      metric.Int64Counter
	votes        metric.Int64Counter
	swept        metric.Int64Counter
	syncs        metric.Int64Counter
	syncDuration metric.Float64Histogram
}

// NewQuoteMetrics creates quote book instruments on the global meter
// provider. With telemetry disabled the global provider is a noop and so
// are these.
func NewQuoteMetrics() (*QuoteMetrics, error) {
	return NewQuoteMetricsFrom(otel.GetMeterProvider())
}

// NewQuoteMetricsFrom creates quote book instruments on provider.
func NewQuoteMetricsFrom(provider metric.MeterProvider) (*QuoteMetrics, error) {
	meter := provider.Meter(instrumentationName)

	submitted, err := meter.Int64Counter(
		"quotebook.quotes.submitted",
		metric.WithDescription("Quotes submitted"),
	)
	if err != nil {
		return nil, err
	}

	removed, err := meter.Int64Counter(
		"quotebook.quotes.removed",
		metric.WithDescription("Quotes removed by a user"),
	)
	if err != nil {
		return nil, err
	}

	votes, err := meter.Int64Counter(
		"quotebook.votes",
		metric.WithDescription("Vote operations by action and status"),
	)
	if err != nil {
		return nil, err
	}

	swept, err := meter.Int64Counter(
		"quotebook.quotes.swept",
		metric.WithDescription("Stale quotes deleted by retention"),
	)
	if err != nil {
		return nil, err
	}

	syncs, err := meter.Int64Counter(
		"quotebook.leaderboard.syncs",
		metric.WithDescription("Leaderboard synchronizer runs by result"),
	)
	if err != nil {
		return nil, err
	}

	syncDuration, err := meter.Float64Histogram(
		"quotebook.leaderboard.sync.duration",
		metric.WithDescription("Leaderboard compute and publish latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &QuoteMetrics{
		submitted:    submitted,
		removed:      removed,
		votes:        votes,
		swept:        swept,
		syncs:        syncs,
		syncDuration: syncDuration,
	}, nil
}

// QuoteSubmitted records a stored quote.
func (m *QuoteMetrics) QuoteSubmitted(ctx context.Context) {
	if m == nil {
		return
	}

	m.submitted.Add(ctx, 1)
}

// QuoteRemoved records a deleted quote.
func (m *QuoteMetrics) QuoteRemoved(ctx context.Context) {
	if m == nil {
		return
	}

	m.removed.Add(ctx, 1)
}

// VoteRecorded records a vote operation. action is "cast" or "withdrawn";
// status is "ok" or the reason it was refused.
func (m *QuoteMetrics) VoteRecorded(ctx context.Context, action, status string) {
	if m == nil {
		return
	}

	m.votes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("status", status),
	))
}

// QuotesSwept records a retention pass.
func (m *QuoteMetrics) QuotesSwept(ctx context.Context, n int64) {
	if m == nil || n <= 0 {
		return
	}

	m.swept.Add(ctx, n)
}

// LeaderboardSynced records one synchronizer run with its result and duration.
func (m *QuoteMetrics) LeaderboardSynced(ctx context.Context, result string, elapsed time.Duration) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("result", result))
	m.syncs.Add(ctx, 1, attrs)
	m.syncDuration.Record(ctx, elapsed.Seconds(), attrs)
}
