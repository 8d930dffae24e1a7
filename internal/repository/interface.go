package repository

import (
	"context"
	"errors"

	"floorflow/backend/pkg/models"
)

var (
	// ErrNotFound is returned when the requested row does not exist in the
	// caller's tenant.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write raced another writer, for
	// example an advancement from a stale item snapshot.
	ErrConflict = errors.New("conflicting update")
	// ErrNoTenant is returned when the context carries no tenant.
	ErrNoTenant = errors.New("tenant id not found in context")
)

// StageFilter selects active items. Empty fields do not filter.
type StageFilter struct {
	WorkflowID string
	StageIDs   []string
	AssignedTo string
}

// Advancement is one engine result to persist: the new item state, the
// stage it left and its audit entry.
type Advancement struct {
	Item        *models.Item
	FromStageID string
	Audit       *models.AuditEntry
}

// TenantStore manages tenants. It is not tenant scoped.
type TenantStore interface {
	GetTenantByDomain(ctx context.Context, domain string) (*models.Tenant, error)
	CreateTenant(ctx context.Context, tenant *models.Tenant) error
	ListTenants(ctx context.Context) ([]*models.Tenant, error)
}

// WorkflowStore manages workflow definitions of the context's tenant.
type WorkflowStore interface {
	CreateWorkflow(ctx context.Context, workflow *models.Workflow) error
	GetWorkflow(ctx context.Context, id string) (*models.Workflow, error)
	ListWorkflows(ctx context.Context) ([]*models.Workflow, error)
	// UpdateWorkflow replaces a definition. It fails with ErrConflict once
	// any item references the workflow.
	UpdateWorkflow(ctx context.Context, workflow *models.Workflow) error
}

// ItemStore manages items and their history for the context's tenant.
type ItemStore interface {
	CreateItem(ctx context.Context, item *models.Item) error
	GetItem(ctx context.Context, itemID string) (*models.Item, error)
	// UpdateItem writes the editable fields: status, assignment,
	// description and metadata.
	UpdateItem(ctx context.Context, item *models.Item) error
	FetchActiveItemsForStage(ctx context.Context, filter StageFilter) ([]*models.Item, error)
	// PersistAdvancement stores an advancement atomically. Repeating a
	// call whose target state is already stored succeeds without writing.
	PersistAdvancement(ctx context.Context, adv Advancement) error
	ListItemHistory(ctx context.Context, itemID string) ([]*models.AuditEntry, error)
}

// Repository is the full persistence surface of the service.
type Repository interface {
	Ping(ctx context.Context) error
	TenantStore
	WorkflowStore
	ItemStore
}
