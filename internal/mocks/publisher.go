package mocks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/jsamuelsen/quotebook/internal/ports"
)

var (
	_ ports.LeaderboardPublisher = (*MockLeaderboardPublisher)(nil)
	_ ports.Announcer            = (*MockAnnouncer)(nil)
)

// MockLeaderboardPublisher is a mock of ports.LeaderboardPublisher.
type MockLeaderboardPublisher struct {
	mock.Mock
}

// NewMockLeaderboardPublisher creates a publisher mock that asserts its
// expectations when the test finishes.
func NewMockLeaderboardPublisher(t *testing.T) *MockLeaderboardPublisher {
	m := &MockLeaderboardPublisher{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *MockLeaderboardPublisher) FindOwned(ctx context.Context) (ports.PublishedMessage, bool, error) {
	args := m.Called(ctx)

	return args.Get(0).(ports.PublishedMessage), args.Bool(1), args.Error(2)
}

func (m *MockLeaderboardPublisher) Create(ctx context.Context, content string) (ports.PublishedMessage, error) {
	args := m.Called(ctx, content)

	return args.Get(0).(ports.PublishedMessage), args.Error(1)
}

func (m *MockLeaderboardPublisher) Pin(ctx context.Context, messageID string) error {
	args := m.Called(ctx, messageID)

	return args.Error(0)
}

func (m *MockLeaderboardPublisher) Edit(ctx context.Context, messageID, content string) error {
	args := m.Called(ctx, messageID, content)

	return args.Error(0)
}

// MockAnnouncer is a mock of ports.Announcer.
type MockAnnouncer struct {
	mock.Mock
}

// NewMockAnnouncer creates an announcer mock that asserts its expectations
// when the test finishes.
func NewMockAnnouncer(t *testing.T) *MockAnnouncer {
	m := &MockAnnouncer{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *MockAnnouncer) Announce(ctx context.Context, content string) error {
	args := m.Called(ctx, content)

	return args.Error(0)
}

// MockLeaderboardRefresher mocks the synchronizer as seen by the quote service.
type MockLeaderboardRefresher struct {
	mock.Mock
}

// NewMockLeaderboardRefresher creates a refresher mock that asserts its
// expectations when the test finishes.
func NewMockLeaderboardRefresher(t *testing.T) *MockLeaderboardRefresher {
	m := &MockLeaderboardRefresher{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *MockLeaderboardRefresher) Refresh(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
