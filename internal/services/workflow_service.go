package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"

	"floorflow/backend/internal/actor"
	"floorflow/backend/internal/logging"
	"floorflow/backend/internal/metrics"
	"floorflow/backend/internal/repository"
	"floorflow/backend/internal/workflow"
	"floorflow/backend/pkg/models"
)

// WorkflowService manages workflow definitions. Reads go through a
// per-tenant cache since every advancement loads the item's workflow.
type WorkflowService struct {
	store  repository.WorkflowStore
	cache  *ttlcache.Cache[string, *models.Workflow]
	logger *logging.Logger
}

// NewWorkflowService creates a WorkflowService caching up to capacity
// definitions for ttl.
func NewWorkflowService(store repository.WorkflowStore, ttl time.Duration, capacity uint64, logger *logging.Logger) *WorkflowService {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, *models.Workflow](ttl),
		ttlcache.WithCapacity[string, *models.Workflow](capacity),
	)
	return &WorkflowService{store: store, cache: cache, logger: logger}
}

func cacheKey(ctx context.Context, id string) string {
	return actor.TenantID(ctx) + "/" + id
}

// Validate checks a definition without storing it.
func (s *WorkflowService) Validate(w *models.Workflow) workflow.Issues {
	issues := workflow.Validate(w)
	if w.ID != "" {
		if _, err := uuid.Parse(w.ID); err != nil {
			issues = append(issues, workflow.Issue{
				Severity: workflow.SeverityError,
				Path:     "id",
				Message:  "workflow id must be a UUID",
			})
		}
	}
	return issues
}

// Create stores a new definition. Definitions with errors are refused
// with a *workflow.WorkflowInvalidError; warnings are returned alongside
// the stored workflow.
func (s *WorkflowService) Create(ctx context.Context, w *models.Workflow) (workflow.Issues, error) {
	issues := s.Validate(w)
	if issues.HasErrors() {
		return issues, &workflow.WorkflowInvalidError{Issues: issues}
	}
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	if w.CreatedBy == "" {
		w.CreatedBy = actor.OperatorID(ctx)
	}

	if err := s.store.CreateWorkflow(ctx, w); err != nil {
		return issues, err
	}
	metrics.WorkflowsCreatedTotal.Inc()
	s.cache.Set(cacheKey(ctx, w.ID), w, ttlcache.DefaultTTL)
	s.logger.Info("workflow created", "workflow_id", w.ID, "name", w.Name, "stages", len(w.Stages))
	return issues.Warnings(), nil
}

// Put creates the definition when its id is unknown and replaces it
// otherwise. Replacing a workflow that items reference fails with
// ErrWorkflowInUse. created reports which of the two happened.
func (s *WorkflowService) Put(ctx context.Context, w *models.Workflow) (issues workflow.Issues, created bool, err error) {
	if w.ID == "" {
		issues, err = s.Create(ctx, w)
		return issues, err == nil, err
	}

	issues = s.Validate(w)
	if issues.HasErrors() {
		return issues, false, &workflow.WorkflowInvalidError{Issues: issues}
	}

	err = s.store.UpdateWorkflow(ctx, w)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		issues, err = s.Create(ctx, w)
		return issues, err == nil, err
	case errors.Is(err, repository.ErrConflict):
		return issues, false, fmt.Errorf("workflow %s: %w", w.ID, ErrWorkflowInUse)
	case err != nil:
		return issues, false, err
	}

	s.cache.Set(cacheKey(ctx, w.ID), w, ttlcache.DefaultTTL)
	s.logger.Info("workflow updated", "workflow_id", w.ID, "stages", len(w.Stages))
	return issues.Warnings(), false, nil
}

// Get returns a definition of the caller's tenant.
func (s *WorkflowService) Get(ctx context.Context, id string) (*models.Workflow, error) {
	key := cacheKey(ctx, id)
	if it := s.cache.Get(key); it != nil {
		return it.Value(), nil
	}

	w, err := s.store.GetWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, w, ttlcache.DefaultTTL)
	return w, nil
}

// List returns every definition of the caller's tenant.
func (s *WorkflowService) List(ctx context.Context) ([]*models.Workflow, error) {
	return s.store.ListWorkflows(ctx)
}
