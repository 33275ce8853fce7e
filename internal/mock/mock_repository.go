// Package mock provides testify mocks for the repository interfaces.
package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/prime-sieve/internal/repository"
	"github.com/prime-sieve/pkg/model"
)

// MockRunRepository is a mock implementation of the RunRepository interface.
type MockRunRepository struct {
	mock.Mock
}

var _ repository.RunRepository = (*MockRunRepository)(nil)

// SaveRun mocks the SaveRun method.
func (m *MockRunRepository) SaveRun(ctx context.Context, run *model.RunRecord) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

// GetRun mocks the GetRun method.
func (m *MockRunRepository) GetRun(ctx context.Context, id int64) (*model.RunRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RunRecord), args.Error(1)
}

// ListRuns mocks the ListRuns method.
func (m *MockRunRepository) ListRuns(ctx context.Context, filter repository.RunFilter) ([]*model.RunRecord, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.RunRecord), args.Error(1)
}

// CountRuns mocks the CountRuns method.
func (m *MockRunRepository) CountRuns(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// PruneBefore mocks the PruneBefore method.
func (m *MockRunRepository) PruneBefore(ctx context.Context, t time.Time) (int64, error) {
	args := m.Called(ctx, t)
	return args.Get(0).(int64), args.Error(1)
}
