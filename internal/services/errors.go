package services

import (
	"errors"
	"fmt"
)

var (
	// ErrWorkflowInUse is returned when changing a workflow that items
	// already reference.
	ErrWorkflowInUse = errors.New("workflow is referenced by items and cannot be changed")
	// ErrItemTerminal is returned when editing a completed or cancelled
	// item.
	ErrItemTerminal = errors.New("item is completed or cancelled")
	// ErrInvalidInput wraps request values the services refuse, such as an
	// unknown status or team.
	ErrInvalidInput = errors.New("invalid input")
)

// PersistenceError is returned when an advancement could not be stored
// after retrying. The item is unchanged and the request may be repeated.
type PersistenceError struct {
	ItemID string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist advancement of item %s: %v", e.ItemID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
