package mocks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/jsamuelsen/quotebook/internal/domain"
	"github.com/jsamuelsen/quotebook/internal/ports"
)

var _ ports.QuoteRanker = (*MockQuoteRanker)(nil)

// MockQuoteRanker is a mock of ports.QuoteRanker.
type MockQuoteRanker struct {
	mock.Mock
}

// NewMockQuoteRanker creates a ranker mock that asserts its expectations
// when the test finishes.
func NewMockQuoteRanker(t *testing.T) *MockQuoteRanker {
	m := &MockQuoteRanker{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *MockQuoteRanker) RankedView(ctx context.Context, query ports.RankedViewQuery) ([]domain.RankedQuote, error) {
	args := m.Called(ctx, query)

	view, _ := args.Get(0).([]domain.RankedQuote)

	return view, args.Error(1)
}

func (m *MockQuoteRanker) RandomQuote(ctx context.Context, minUpvotes int) (domain.Quote, bool, error) {
	args := m.Called(ctx, minUpvotes)

	return args.Get(0).(domain.Quote), args.Bool(1), args.Error(2)
}

func (m *MockQuoteRanker) Culprits(ctx context.Context, fragment string, limit int) ([]string, error) {
	args := m.Called(ctx, fragment, limit)

	names, _ := args.Get(0).([]string)

	return names, args.Error(1)
}

func (m *MockQuoteRanker) SearchNames(ctx context.Context, fragment string, limit int) ([]string, error) {
	args := m.Called(ctx, fragment, limit)

	names, _ := args.Get(0).([]string)

	return names, args.Error(1)
}
