package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quotebook/internal/domain"
	"github.com/jsamuelsen/quotebook/internal/mocks"
)

func TestNewRetentionSweeper_PanicsWithoutRepository(t *testing.T) {
	assert.Panics(t, func() {
		NewRetentionSweeper(SweeperConfig{})
	})
}

func TestRetentionSweeper_Defaults(t *testing.T) {
	s := NewRetentionSweeper(SweeperConfig{Repository: &mocks.MockQuoteRepository{}, MinUpvotes: -3})

	assert.Equal(t, 14*24*time.Hour, s.maxAge)
	assert.Equal(t, 0, s.minUpvotes)
}

func TestRetentionSweeper_Sweep(t *testing.T) {
	repo := mocks.NewMockQuoteRepository(t)
	ctx := context.Background()

	metrics, total := recordedMetrics(t)
	s := NewRetentionSweeper(SweeperConfig{Repository: repo, Metrics: metrics, Logger: discardLogger()})

	repo.On("DeleteStale", ctx, DefaultRetentionMaxAge, 0).Return(int64(3), nil).Once()
	repo.On("DeleteStale", ctx, DefaultRetentionMaxAge, 0).Return(int64(0), nil).Once()

	removed, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	removed, err = s.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed, "a second sweep finds nothing")

	assert.Equal(t, int64(3), total("quotebook.quotes.swept"))
}

func TestRetentionSweeper_CustomWindow(t *testing.T) {
	repo := mocks.NewMockQuoteRepository(t)
	ctx := context.Background()

	s := NewRetentionSweeper(SweeperConfig{Repository: repo, MaxAge: 48 * time.Hour, MinUpvotes: 1, Logger: discardLogger()})

	repo.On("DeleteStale", ctx, 48*time.Hour, 1).Return(int64(1), nil).Once()

	removed, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestRetentionSweeper_Error(t *testing.T) {
	repo := mocks.NewMockQuoteRepository(t)
	ctx := context.Background()

	s := NewRetentionSweeper(SweeperConfig{Repository: repo, Logger: discardLogger()})

	repo.On("DeleteStale", ctx, DefaultRetentionMaxAge, 0).
		Return(int64(0), domain.NewIntegrityError("delete stale", errors.New("locked"))).Once()

	_, err := s.Sweep(ctx)

	require.Error(t, err)
	assert.True(t, domain.IsIntegrity(err))
	assert.Contains(t, err.Error(), "sweeping stale quotes")
}
