package mocks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/jsamuelsen/quotebook/internal/ports"
)

var _ ports.HealthRegistry = (*MockHealthRegistry)(nil)

// MockHealthRegistry is a mock of ports.HealthRegistry.
type MockHealthRegistry struct {
	mock.Mock
}

// NewMockHealthRegistry creates a registry mock that asserts its
// expectations when the test finishes.
func NewMockHealthRegistry(t *testing.T) *MockHealthRegistry {
	m := &MockHealthRegistry{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *MockHealthRegistry) Register(checker ports.HealthChecker) error {
	args := m.Called(checker)

	return args.Error(0)
}

func (m *MockHealthRegistry) CheckAll(ctx context.Context) *ports.HealthResult {
	args := m.Called(ctx)

	result, _ := args.Get(0).(*ports.HealthResult)

	return result
}
