package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"floorflow/backend/internal/actor"
	"floorflow/backend/internal/leadtime"
	"floorflow/backend/internal/logging"
	"floorflow/backend/internal/metrics"
	"floorflow/backend/internal/repository"
	"floorflow/backend/internal/scancode"
	"floorflow/backend/internal/workflow"
	"floorflow/backend/pkg/models"
)

const instrumentationName = "floorflow/backend/internal/services"

// WorkflowReader loads workflow definitions of the caller's tenant.
type WorkflowReader interface {
	Get(ctx context.Context, id string) (*models.Workflow, error)
	List(ctx context.Context) ([]*models.Workflow, error)
}

// NewItem is the input for creating an item. ItemID is generated when
// empty.
type NewItem struct {
	ItemID      string          `json:"item_id,omitempty"`
	WorkflowID  string          `json:"workflow_id"`
	Metadata    models.Metadata `json:"metadata,omitempty"`
	AssignedTo  *string         `json:"assigned_to,omitempty"`
	Description *string         `json:"description,omitempty"`
}

// ItemPatch lists the editable fields of an item; nil fields are left
// alone. An empty AssignedTo clears the assignment. Metadata keys are
// merged into the existing metadata.
type ItemPatch struct {
	Status      *models.ItemStatus `json:"status,omitempty"`
	AssignedTo  *string            `json:"assigned_to,omitempty"`
	Description *string            `json:"description,omitempty"`
	Metadata    models.Metadata    `json:"metadata,omitempty"`
}

// ItemQuery selects active items. Team resolves to the stages that team
// works in each workflow.
type ItemQuery struct {
	WorkflowID string
	StageID    string
	Team       models.Team
	AssignedTo string
}

// ScanResult is what a scanned code resolves to. Item and Stage are only
// set for item codes.
type ScanResult struct {
	Code  scancode.Code `json:"code"`
	Item  *models.Item  `json:"item,omitempty"`
	Stage *models.Stage `json:"stage,omitempty"`
}

// ItemService runs items through their workflows.
type ItemService struct {
	items      repository.ItemStore
	workflows  WorkflowReader
	engine     *workflow.Engine
	clock      clock.Clock
	logger     *logging.Logger
	maxElapsed time.Duration
	newBackOff func() backoff.BackOff

	tracer  trace.Tracer
	latency metric.Float64Histogram
}

// ItemOption configures an ItemService.
type ItemOption func(*ItemService)

// WithClock sets the time source of the service and its engine.
func WithClock(c clock.Clock) ItemOption {
	return func(s *ItemService) { s.clock = c }
}

// WithMaxElapsed bounds how long a failed advancement write is retried.
func WithMaxElapsed(d time.Duration) ItemOption {
	return func(s *ItemService) { s.maxElapsed = d }
}

// WithBackOff replaces the retry policy of advancement writes.
func WithBackOff(f func() backoff.BackOff) ItemOption {
	return func(s *ItemService) { s.newBackOff = f }
}

// NewItemService creates an ItemService.
func NewItemService(items repository.ItemStore, workflows WorkflowReader, logger *logging.Logger, opts ...ItemOption) *ItemService {
	s := &ItemService{
		items:      items,
		workflows:  workflows,
		clock:      clock.New(),
		logger:     logger,
		maxElapsed: 5 * time.Second,
		tracer:     otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.newBackOff == nil {
		s.newBackOff = s.exponentialBackOff
	}
	s.engine = workflow.NewEngine(s.clock)

	latency, err := otel.Meter(instrumentationName).Float64Histogram(
		"floorflow.advance.duration",
		metric.WithDescription("Duration of item advancement requests."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		logger.Warn("failed to create advance latency histogram", "error", err)
	}
	s.latency = latency
	return s
}

func (s *ItemService) exponentialBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = s.maxElapsed
	return b
}

func newItemID() string {
	return "ITM-" + strings.ToUpper(uuid.New().String()[:8])
}

// CreateItem places a new item at the first stage of its workflow.
func (s *ItemService) CreateItem(ctx context.Context, in NewItem) (*models.Item, error) {
	if in.WorkflowID == "" {
		return nil, fmt.Errorf("%w: workflow_id is required", ErrInvalidInput)
	}
	w, err := s.workflows.Get(ctx, in.WorkflowID)
	if err != nil {
		return nil, err
	}
	if issues := workflow.Validate(w); issues.HasErrors() {
		return nil, &workflow.WorkflowInvalidError{Issues: issues}
	}
	first := w.FirstStage()

	now := s.clock.Now().UTC()
	item := &models.Item{
		ItemID:         strings.TrimSpace(in.ItemID),
		WorkflowID:     w.ID,
		CurrentStageID: first.ID,
		Status:         models.ItemStatusActive,
		Metadata:       in.Metadata,
		AssignedTo:     in.AssignedTo,
		Description:    in.Description,
		StartedAt:      now,
		StageEnteredAt: now,
		UpdatedAt:      now,
	}
	if item.ItemID == "" {
		item.ItemID = newItemID()
	}

	if err := s.items.CreateItem(ctx, item); err != nil {
		return nil, err
	}
	s.logger.Info("item created", "item_id", item.ItemID, "workflow_id", w.ID, "stage_id", first.ID)
	return item, nil
}

// GetItem returns an item of the caller's tenant.
func (s *ItemService) GetItem(ctx context.Context, itemID string) (*models.Item, error) {
	return s.items.GetItem(ctx, itemID)
}

// UpdateItem applies a patch. Completed and cancelled items cannot be
// edited, and completion only happens through advancement.
func (s *ItemService) UpdateItem(ctx context.Context, itemID string, patch ItemPatch) (*models.Item, error) {
	item, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.Status.Terminal() {
		return nil, fmt.Errorf("item %s is %s: %w", itemID, item.Status, ErrItemTerminal)
	}

	updated := item.Clone()
	if patch.Status != nil {
		switch *patch.Status {
		case models.ItemStatusActive, models.ItemStatusFlagged, models.ItemStatusCancelled:
			updated.Status = *patch.Status
		default:
			return nil, fmt.Errorf("%w: status %q cannot be set directly", ErrInvalidInput, *patch.Status)
		}
	}
	if patch.AssignedTo != nil {
		if *patch.AssignedTo == "" {
			updated.AssignedTo = nil
		} else {
			v := *patch.AssignedTo
			updated.AssignedTo = &v
		}
	}
	if patch.Description != nil {
		v := *patch.Description
		updated.Description = &v
	}
	if len(patch.Metadata) > 0 {
		if updated.Metadata == nil {
			updated.Metadata = make(models.Metadata, len(patch.Metadata))
		}
		for k, v := range patch.Metadata {
			updated.Metadata[k] = v
		}
	}
	updated.UpdatedAt = s.clock.Now().UTC()

	err = s.items.UpdateItem(ctx, updated)
	if errors.Is(err, repository.ErrConflict) {
		return nil, fmt.Errorf("item %s: %w", itemID, ErrItemTerminal)
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListActive returns the active items matching q.
func (s *ItemService) ListActive(ctx context.Context, q ItemQuery) ([]*models.Item, error) {
	filter := repository.StageFilter{WorkflowID: q.WorkflowID, AssignedTo: q.AssignedTo}
	if q.StageID != "" {
		filter.StageIDs = []string{q.StageID}
	}
	if q.Team == "" {
		return s.items.FetchActiveItemsForStage(ctx, filter)
	}
	if !q.Team.Valid() {
		return nil, fmt.Errorf("%w: unknown team %q", ErrInvalidInput, q.Team)
	}

	var workflows []*models.Workflow
	if q.WorkflowID != "" {
		w, err := s.workflows.Get(ctx, q.WorkflowID)
		if err != nil {
			return nil, err
		}
		workflows = []*models.Workflow{w}
	} else {
		var err error
		if workflows, err = s.workflows.List(ctx); err != nil {
			return nil, err
		}
	}

	var items []*models.Item
	for _, w := range workflows {
		stages := workflow.StagesForTeam(w, q.Team)
		if q.StageID != "" {
			stages = intersect(stages, q.StageID)
		}
		if len(stages) == 0 {
			continue
		}
		f := filter
		f.WorkflowID = w.ID
		f.StageIDs = stages
		found, err := s.items.FetchActiveItemsForStage(ctx, f)
		if err != nil {
			return nil, err
		}
		items = append(items, found...)
	}
	return items, nil
}

func intersect(ids []string, id string) []string {
	for _, v := range ids {
		if v == id {
			return []string{id}
		}
	}
	return nil
}

// AdvanceItem moves an item out of its current stage when the submitted
// completions satisfy the stage's required actions, and stores the
// result. Transient write failures are retried; when retries run out the
// error is a *PersistenceError and the item is unchanged.
func (s *ItemService) AdvanceItem(ctx context.Context, itemID string, req workflow.Request) (*workflow.AdvanceResult, error) {
	ctx, span := s.tracer.Start(ctx, "ItemService.AdvanceItem",
		trace.WithAttributes(attribute.String("floorflow.item_id", itemID)))
	defer span.End()
	start := s.clock.Now()

	res, err := s.advance(ctx, itemID, req)

	outcome := advanceOutcome(res, err)
	metrics.AdvancementsTotal.WithLabelValues(outcome).Inc()
	if s.latency != nil {
		s.latency.Record(ctx, float64(s.clock.Since(start).Milliseconds()),
			metric.WithAttributes(attribute.String("outcome", outcome)))
	}
	span.SetAttributes(attribute.String("floorflow.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return nil, err
	}
	return res, nil
}

func (s *ItemService) advance(ctx context.Context, itemID string, req workflow.Request) (*workflow.AdvanceResult, error) {
	if req.OperatorID == "" {
		req.OperatorID = actor.OperatorID(ctx)
	}

	item, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	w, err := s.workflows.Get(ctx, item.WorkflowID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("workflow %s of item %s is gone: %w", item.WorkflowID, itemID, workflow.ErrStageNotFound)
	}
	if err != nil {
		return nil, err
	}

	if req.StageID != "" && (item.Status == models.ItemStatusCompleted || item.CurrentStageID != req.StageID) {
		prior, err := s.replayed(ctx, w, item, req)
		if err != nil {
			return nil, err
		}
		if prior != nil {
			s.logger.Info("advancement replayed",
				"item_id", itemID, "from_stage", prior.FromStageID, "audit_id", prior.Audit.ID, "operator", req.OperatorID)
			return prior, nil
		}
	}

	res, err := s.engine.Advance(w, item, req)
	if err != nil {
		return nil, err
	}

	adv := repository.Advancement{Item: res.Item, FromStageID: res.FromStageID, Audit: res.Audit}
	if err := s.persist(ctx, adv); err != nil {
		return nil, err
	}

	s.logger.Info("item advanced",
		"item_id", itemID, "from_stage", res.FromStageID, "to_stage", res.Audit.ToStageID,
		"status", string(res.Status), "operator", req.OperatorID)
	return res, nil
}

// replayed rebuilds the result of a stored advancement when the item's
// latest history entry left req.StageID on behalf of the same operator and
// the item still sits where that entry put it. It returns nil when the
// request is not a repeat.
func (s *ItemService) replayed(ctx context.Context, w *models.Workflow, item *models.Item, req workflow.Request) (*workflow.AdvanceResult, error) {
	history, err := s.items.ListItemHistory(ctx, item.ItemID)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, nil
	}
	last := history[len(history)-1]
	if last.FromStageID != req.StageID || last.OperatorID != req.OperatorID {
		return nil, nil
	}

	res := &workflow.AdvanceResult{Item: item, FromStageID: last.FromStageID, Audit: last, Replayed: true}
	switch {
	case last.Completed && item.Status == models.ItemStatusCompleted:
		res.Status = workflow.StatusCompleted
	case !last.Completed && item.Status == models.ItemStatusActive && last.ToStageID == item.CurrentStageID:
		res.Status = workflow.StatusAdvanced
		if st := w.StageByID(item.CurrentStageID); st != nil {
			next := *st
			res.NextStage = &next
		}
	default:
		return nil, nil
	}
	return res, nil
}

func (s *ItemService) persist(ctx context.Context, adv repository.Advancement) error {
	op := func() error {
		err := s.items.PersistAdvancement(ctx, adv)
		if errors.Is(err, repository.ErrConflict) ||
			errors.Is(err, repository.ErrNotFound) ||
			errors.Is(err, repository.ErrNoTenant) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		metrics.PersistRetriesTotal.Inc()
		s.logger.Warn("retrying advancement write", "item_id", adv.Item.ItemID, "wait", wait, "error", err)
	}

	err := backoff.RetryNotify(op, backoff.WithContext(s.newBackOff(), ctx), notify)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrConflict),
		errors.Is(err, repository.ErrNotFound),
		errors.Is(err, repository.ErrNoTenant):
		return err
	}
	s.logger.Error("advancement not stored", "item_id", adv.Item.ItemID, "error", err)
	return &PersistenceError{ItemID: adv.Item.ItemID, Err: err}
}

func advanceOutcome(res *workflow.AdvanceResult, err error) string {
	var missing *workflow.MissingRequiredActionsError
	var invalid *workflow.WorkflowInvalidError
	var persist *PersistenceError
	switch {
	case err == nil && res.Replayed:
		return "replayed"
	case err == nil:
		return string(res.Status)
	case errors.As(err, &missing):
		return "missing_actions"
	case errors.As(err, &invalid):
		return "invalid_workflow"
	case errors.As(err, &persist):
		return "persistence_failure"
	case errors.Is(err, workflow.ErrItemNotActive):
		return "not_active"
	case errors.Is(err, workflow.ErrStageNotFound):
		return "stage_not_found"
	case errors.Is(err, workflow.ErrStageMismatch):
		return "stage_mismatch"
	case errors.Is(err, repository.ErrConflict):
		return "conflict"
	case errors.Is(err, repository.ErrNotFound):
		return "not_found"
	}
	return "error"
}

// History returns the audit trail of an item, oldest first.
func (s *ItemService) History(ctx context.Context, itemID string) ([]*models.AuditEntry, error) {
	if _, err := s.items.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	return s.items.ListItemHistory(ctx, itemID)
}

// ResolveScan turns a scanned QR payload into what it identifies. Item
// codes load the item and its current stage; location codes are returned
// as parsed.
func (s *ItemService) ResolveScan(ctx context.Context, raw string) (*ScanResult, error) {
	code, err := scancode.Parse(raw)
	if err != nil {
		return nil, err
	}
	res := &ScanResult{Code: code}
	if code.Kind != scancode.KindItem {
		return res, nil
	}

	item, err := s.items.GetItem(ctx, code.ID)
	if err != nil {
		return nil, err
	}
	res.Item = item
	if item.Status == models.ItemStatusCompleted {
		return res, nil
	}

	w, err := s.workflows.Get(ctx, item.WorkflowID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if w != nil {
		if st := w.StageByID(item.CurrentStageID); st != nil {
			stage := *st
			res.Stage = &stage
		}
	}
	return res, nil
}

// Overdue lists active items past their stage's estimated duration, most
// overdue first. An empty workflowID covers every workflow of the tenant.
func (s *ItemService) Overdue(ctx context.Context, workflowID string) ([]leadtime.Overdue, error) {
	var workflows []*models.Workflow
	if workflowID != "" {
		w, err := s.workflows.Get(ctx, workflowID)
		if err != nil {
			return nil, err
		}
		workflows = []*models.Workflow{w}
	} else {
		var err error
		if workflows, err = s.workflows.List(ctx); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now().UTC()
	out := []leadtime.Overdue{}
	for _, w := range workflows {
		items, err := s.items.FetchActiveItemsForStage(ctx, repository.StageFilter{WorkflowID: w.ID})
		if err != nil {
			return nil, err
		}
		out = append(out, leadtime.FindOverdue(w, items, now)...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OverdueMinutes > out[j].OverdueMinutes
	})
	return out, nil
}
