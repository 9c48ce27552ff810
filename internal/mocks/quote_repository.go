package mocks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/jsamuelsen/quotebook/internal/domain"
	"github.com/jsamuelsen/quotebook/internal/ports"
)

var _ ports.QuoteRepository = (*MockQuoteRepository)(nil)

// MockQuoteRepository is a mock of ports.QuoteRepository.
type MockQuoteRepository struct {
	mock.Mock
}

// NewMockQuoteRepository creates a repository mock that asserts its
// expectations when the test finishes.
func NewMockQuoteRepository(t *testing.T) *MockQuoteRepository {
	m := &MockQuoteRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *MockQuoteRepository) Create(ctx context.Context, quote domain.Quote) error {
	args := m.Called(ctx, quote)

	return args.Error(0)
}

func (m *MockQuoteRepository) Get(ctx context.Context, name string) (domain.Quote, bool, error) {
	args := m.Called(ctx, name)

	return args.Get(0).(domain.Quote), args.Bool(1), args.Error(2)
}

func (m *MockQuoteRepository) Delete(ctx context.Context, name string) error {
	args := m.Called(ctx, name)

	return args.Error(0)
}

func (m *MockQuoteRepository) Rename(ctx context.Context, oldName, newName string) error {
	args := m.Called(ctx, oldName, newName)

	return args.Error(0)
}

func (m *MockQuoteRepository) EditFields(ctx context.Context, name string, edit domain.QuoteEdit) error {
	args := m.Called(ctx, name, edit)

	return args.Error(0)
}

func (m *MockQuoteRepository) AttachMedia(ctx context.Context, name, path string) error {
	args := m.Called(ctx, name, path)

	return args.Error(0)
}

func (m *MockQuoteRepository) DetachMedia(ctx context.Context, name string) error {
	args := m.Called(ctx, name)

	return args.Error(0)
}

func (m *MockQuoteRepository) Upvote(ctx context.Context, userID, quoteName string) error {
	args := m.Called(ctx, userID, quoteName)

	return args.Error(0)
}

func (m *MockQuoteRepository) RemoveUpvote(ctx context.Context, userID, quoteName string) (bool, error) {
	args := m.Called(ctx, userID, quoteName)

	return args.Bool(0), args.Error(1)
}

func (m *MockQuoteRepository) HasVoted(ctx context.Context, userID, quoteName string) (bool, error) {
	args := m.Called(ctx, userID, quoteName)

	return args.Bool(0), args.Error(1)
}

func (m *MockQuoteRepository) DeleteStale(ctx context.Context, maxAge time.Duration, minUpvotes int) (int64, error) {
	args := m.Called(ctx, maxAge, minUpvotes)

	return args.Get(0).(int64), args.Error(1)
}
