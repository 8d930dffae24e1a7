package workflow

import (
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"floorflow/backend/pkg/models"
)

// AdvanceStatus is the outcome of a successful advancement.
type AdvanceStatus string

const (
	StatusAdvanced  AdvanceStatus = "advanced"
	StatusCompleted AdvanceStatus = "completed"
)

// Request is what an operator submits to move an item out of its current
// stage. StageID is the stage the operator saw the item at; when set, the
// engine refuses to act on an item that has moved on.
type Request struct {
	StageID     string
	OperatorID  string
	Completions []models.ActionCompletion
	Notes       string
}

// AdvanceResult holds the new item snapshot and the audit entry to persist
// with it. NextStage is nil when the item completed. Replayed marks a
// result rebuilt from an advancement that was already stored.
type AdvanceResult struct {
	Status      AdvanceStatus
	Item        *models.Item
	FromStageID string
	NextStage   *models.Stage
	Audit       *models.AuditEntry
	Replayed    bool
}

// Engine decides whether an item may leave its current stage. It holds no
// item state, so one Engine can serve any number of goroutines.
type Engine struct {
	clock clock.Clock
}

// NewEngine creates an Engine. A nil clock uses wall time.
func NewEngine(c clock.Clock) *Engine {
	if c == nil {
		c = clock.New()
	}
	return &Engine{clock: c}
}

// Advance checks the completions against the required actions of the
// item's current stage and returns the advanced snapshot. The input item
// is never modified; on error nothing has changed.
func (e *Engine) Advance(w *models.Workflow, item *models.Item, req Request) (*AdvanceResult, error) {
	if item.Status != models.ItemStatusActive {
		return nil, ErrItemNotActive
	}
	if req.StageID != "" && req.StageID != item.CurrentStageID {
		return nil, fmt.Errorf("item %s is at %s, not %s: %w", item.ItemID, item.CurrentStageID, req.StageID, ErrStageMismatch)
	}

	if issues := structuralIssues(w); issues.HasErrors() {
		return nil, &WorkflowInvalidError{Issues: issues}
	}

	current := w.StageByID(item.CurrentStageID)
	if current == nil {
		return nil, ErrStageNotFound
	}

	if missing := MissingRequired(current, req.Completions); len(missing) > 0 {
		return nil, &MissingRequiredActionsError{StageID: current.ID, Labels: missing}
	}

	now := e.clock.Now().UTC()
	next := stageAtOrder(w, current.Order+1)

	advanced := item.Clone()
	advanced.UpdatedAt = now
	audit := &models.AuditEntry{
		ID:          uuid.New().String(),
		ItemID:      item.ItemID,
		WorkflowID:  w.ID,
		FromStageID: current.ID,
		OperatorID:  req.OperatorID,
		Completions: req.Completions,
		Notes:       req.Notes,
		CreatedAt:   now,
	}

	result := &AdvanceResult{Item: advanced, FromStageID: current.ID, Audit: audit}
	if next == nil {
		advanced.Status = models.ItemStatusCompleted
		advanced.CompletedAt = &now
		audit.Completed = true
		result.Status = StatusCompleted
		return result, nil
	}

	advanced.CurrentStageID = next.ID
	advanced.StageEnteredAt = now
	audit.ToStageID = next.ID
	nextCopy := *next
	result.Status = StatusAdvanced
	result.NextStage = &nextCopy
	return result, nil
}

// MissingRequired returns the labels of every required action in stage
// that no completion satisfies, in stage order.
func MissingRequired(stage *models.Stage, completions []models.ActionCompletion) []string {
	byID := make(map[string][]models.ActionCompletion, len(completions))
	for _, c := range completions {
		byID[c.ID] = append(byID[c.ID], c)
	}

	var missing []string
	for _, def := range stage.Actions {
		if !def.Required {
			continue
		}
		if !anySatisfies(def, byID[def.ID]) {
			missing = append(missing, def.Label)
		}
	}
	return missing
}

func anySatisfies(def models.ActionDefinition, candidates []models.ActionCompletion) bool {
	for _, c := range candidates {
		p, err := DecodeCompletion(c)
		if err != nil {
			continue
		}
		if Satisfies(def, p) {
			return true
		}
	}
	return false
}

// structuralIssues is the subset of Validate the engine cannot work
// without: stages exist and their order is unambiguous.
func structuralIssues(w *models.Workflow) Issues {
	if len(w.Stages) == 0 {
		return Issues{{Severity: SeverityError, Path: "stages", Message: "workflow needs at least one stage"}}
	}
	return validateOrder(w.Stages)
}

func stageAtOrder(w *models.Workflow, order int) *models.Stage {
	for i := range w.Stages {
		if w.Stages[i].Order == order {
			return &w.Stages[i]
		}
	}
	return nil
}
