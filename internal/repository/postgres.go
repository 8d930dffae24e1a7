package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"floorflow/backend/internal/actor"
	"floorflow/backend/pkg/models"
)

// PostgresStore is a PostgreSQL implementation of the Repository interface.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func tenantOf(ctx context.Context) (string, error) {
	id := actor.TenantID(ctx)
	if id == "" {
		return "", ErrNoTenant
	}
	return id, nil
}

// validID reports whether id can be a uuid column value. Anything else
// cannot match a row.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// GetTenantByDomain returns the tenant owning an email domain.
func (s *PostgresStore) GetTenantByDomain(ctx context.Context, domain string) (*models.Tenant, error) {
	var t models.Tenant
	err := s.db.QueryRow(ctx,
		"SELECT id, name, domain, created_at, updated_at FROM tenants WHERE domain = $1", domain,
	).Scan(&t.ID, &t.Name, &t.Domain, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return &t, nil
}

// CreateTenant inserts a tenant, assigning its id and timestamps.
func (s *PostgresStore) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	if tenant.ID == "" {
		tenant.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	tenant.CreatedAt, tenant.UpdatedAt = now, now

	_, err := s.db.Exec(ctx,
		"INSERT INTO tenants (id, name, domain, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)",
		tenant.ID, tenant.Name, tenant.Domain, tenant.CreatedAt, tenant.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	return nil
}

// ListTenants returns every tenant.
func (s *PostgresStore) ListTenants(ctx context.Context) ([]*models.Tenant, error) {
	rows, err := s.db.Query(ctx, "SELECT id, name, domain, created_at, updated_at FROM tenants ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*models.Tenant
	for rows.Next() {
		var t models.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Domain, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tenants = append(tenants, &t)
	}
	return tenants, rows.Err()
}

const workflowColumns = "id, tenant_id, name, description, stages, created_by, created_at, updated_at"

func scanWorkflow(row pgx.Row) (*models.Workflow, error) {
	var (
		w      models.Workflow
		stages []byte
	)
	if err := row.Scan(&w.ID, &w.TenantID, &w.Name, &w.Description, &stages, &w.CreatedBy, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(stages, &w.Stages); err != nil {
		return nil, fmt.Errorf("failed to decode stages of workflow %s: %w", w.ID, err)
	}
	return &w, nil
}

// CreateWorkflow inserts a workflow for the context's tenant.
func (s *PostgresStore) CreateWorkflow(ctx context.Context, workflow *models.Workflow) error {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return err
	}
	if workflow.ID == "" {
		workflow.ID = uuid.New().String()
	}
	stages, err := json.Marshal(workflow.Stages)
	if err != nil {
		return fmt.Errorf("failed to encode stages: %w", err)
	}
	now := time.Now().UTC()
	workflow.TenantID = tenantID
	workflow.CreatedAt, workflow.UpdatedAt = now, now

	_, err = s.db.Exec(ctx,
		"INSERT INTO workflows ("+workflowColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		workflow.ID, tenantID, workflow.Name, workflow.Description, string(stages),
		workflow.CreatedBy, workflow.CreatedAt, workflow.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create workflow: %w", err)
	}
	return nil
}

// GetWorkflow returns a workflow of the context's tenant.
func (s *PostgresStore) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, err
	}
	if !validID(id) {
		return nil, ErrNotFound
	}

	w, err := scanWorkflow(s.db.QueryRow(ctx,
		"SELECT "+workflowColumns+" FROM workflows WHERE tenant_id = $1 AND id = $2", tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}
	return w, nil
}

// ListWorkflows returns the workflows of the context's tenant by name.
func (s *PostgresStore) ListWorkflows(ctx context.Context) ([]*models.Workflow, error) {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx,
		"SELECT "+workflowColumns+" FROM workflows WHERE tenant_id = $1 ORDER BY name, created_at", tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	var workflows []*models.Workflow
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, w)
	}
	return workflows, rows.Err()
}

// UpdateWorkflow replaces name, description and stages of a workflow that
// no item references yet.
func (s *PostgresStore) UpdateWorkflow(ctx context.Context, workflow *models.Workflow) error {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return err
	}
	if !validID(workflow.ID) {
		return ErrNotFound
	}
	stages, err := json.Marshal(workflow.Stages)
	if err != nil {
		return fmt.Errorf("failed to encode stages: %w", err)
	}
	now := time.Now().UTC()

	err = s.db.QueryRow(ctx, `
		UPDATE workflows SET name = $3, description = $4, stages = $5, updated_at = $6
		WHERE tenant_id = $1 AND id = $2
		  AND NOT EXISTS (SELECT 1 FROM items WHERE items.tenant_id = $1 AND items.workflow_id = $2)
		RETURNING created_by, created_at`,
		tenantID, workflow.ID, workflow.Name, workflow.Description, string(stages), now,
	).Scan(&workflow.CreatedBy, &workflow.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := s.GetWorkflow(ctx, workflow.ID); getErr != nil {
			return getErr
		}
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to update workflow: %w", err)
	}
	workflow.TenantID = tenantID
	workflow.UpdatedAt = now
	return nil
}
