package mocks

import (
	"context"

	"github.com/dukex/flowengine/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockGraphStore is a mock implementation of persistence.GraphStore interface.
type MockGraphStore struct {
	mock.Mock
}

func (m *MockGraphStore) Load(ctx context.Context, executionID string) (*models.ExecutionGraph, error) {
	args := m.Called(ctx, executionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.ExecutionGraph), args.Error(1)
}

func (m *MockGraphStore) Save(ctx context.Context, graph *models.ExecutionGraph) error {
	args := m.Called(ctx, graph)

	return args.Error(0)
}

func (m *MockGraphStore) SaveTasks(ctx context.Context, executionID string, tasks []*models.TaskNode) error {
	args := m.Called(ctx, executionID, tasks)

	return args.Error(0)
}

func (m *MockGraphStore) Delete(ctx context.Context, executionID string) error {
	args := m.Called(ctx, executionID)

	return args.Error(0)
}

func (m *MockGraphStore) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockGraphStore) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
