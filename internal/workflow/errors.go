package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrItemNotActive is returned when advancing an item whose status is
	// not active (completed, flagged or cancelled).
	ErrItemNotActive = errors.New("item is not active")
	// ErrStageNotFound means the item points at a stage its workflow does
	// not contain.
	ErrStageNotFound = errors.New("current stage not found in workflow")
	// ErrStageMismatch is returned when the request names a stage the item
	// is no longer at, typically a retry of an advancement that already
	// went through.
	ErrStageMismatch = errors.New("item is not at the expected stage")
)

// MissingRequiredActionsError lists every required action of the current
// stage that the submitted completions did not satisfy.
type MissingRequiredActionsError struct {
	StageID string
	Labels  []string
}

func (e *MissingRequiredActionsError) Error() string {
	return fmt.Sprintf("missing required actions: %s", strings.Join(e.Labels, ", "))
}

// WorkflowInvalidError carries the blocking issues found in a workflow.
type WorkflowInvalidError struct {
	Issues Issues
}

func (e *WorkflowInvalidError) Error() string {
	errs := e.Issues.Errors()
	if len(errs) == 0 {
		return "workflow is invalid"
	}
	msgs := make([]string, 0, len(errs))
	for _, is := range errs {
		msgs = append(msgs, is.String())
	}
	return "workflow is invalid: " + strings.Join(msgs, "; ")
}
