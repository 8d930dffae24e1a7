package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"floorflow/backend/internal/repository"
	"floorflow/backend/pkg/models"
)

// MockStore satisfies repository.WorkflowStore and repository.ItemStore
type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateWorkflow(ctx context.Context, w *models.Workflow) error {
	return m.Called(ctx, w).Error(0)
}

func (m *MockStore) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockStore) ListWorkflows(ctx context.Context) ([]*models.Workflow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Workflow), args.Error(1)
}

func (m *MockStore) UpdateWorkflow(ctx context.Context, w *models.Workflow) error {
	return m.Called(ctx, w).Error(0)
}

func (m *MockStore) CreateItem(ctx context.Context, item *models.Item) error {
	return m.Called(ctx, item).Error(0)
}

func (m *MockStore) GetItem(ctx context.Context, itemID string) (*models.Item, error) {
	args := m.Called(ctx, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	// Hand out a copy so the service cannot alias the fixture.
	return args.Get(0).(*models.Item).Clone(), args.Error(1)
}

func (m *MockStore) UpdateItem(ctx context.Context, item *models.Item) error {
	return m.Called(ctx, item).Error(0)
}

func (m *MockStore) FetchActiveItemsForStage(ctx context.Context, filter repository.StageFilter) ([]*models.Item, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Item), args.Error(1)
}

func (m *MockStore) PersistAdvancement(ctx context.Context, adv repository.Advancement) error {
	return m.Called(ctx, adv).Error(0)
}

func (m *MockStore) ListItemHistory(ctx context.Context, itemID string) ([]*models.AuditEntry, error) {
	args := m.Called(ctx, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AuditEntry), args.Error(1)
}
