package models

import (
	"time"
)

// ItemStatus is the lifecycle state of an item.
type ItemStatus string

const (
	ItemStatusActive    ItemStatus = "active"
	ItemStatusCompleted ItemStatus = "completed"
	ItemStatusFlagged   ItemStatus = "flagged"
	ItemStatusCancelled ItemStatus = "cancelled"
)

// Terminal reports whether no further changes are allowed in this status.
func (s ItemStatus) Terminal() bool {
	return s == ItemStatusCompleted || s == ItemStatusCancelled
}

// Valid reports whether s is a known status.
func (s ItemStatus) Valid() bool {
	switch s {
	case ItemStatusActive, ItemStatusCompleted, ItemStatusFlagged, ItemStatusCancelled:
		return true
	}
	return false
}

// Item is a physical production item (a garment, a bundle, a roll) moving
// through a workflow.
type Item struct {
	ItemID         string     `json:"item_id"`
	TenantID       string     `json:"tenant_id"`
	WorkflowID     string     `json:"workflow_id"`
	CurrentStageID string     `json:"current_stage_id"`
	Status         ItemStatus `json:"status"`
	Metadata       Metadata   `json:"metadata,omitempty"`
	AssignedTo     *string    `json:"assigned_to,omitempty"`
	Description    *string    `json:"description,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	StageEnteredAt time.Time  `json:"stage_entered_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Clone returns a deep copy of the item.
func (i *Item) Clone() *Item {
	c := *i
	if i.Metadata != nil {
		c.Metadata = make(Metadata, len(i.Metadata))
		for k, v := range i.Metadata {
			c.Metadata[k] = v
		}
	}
	if i.AssignedTo != nil {
		v := *i.AssignedTo
		c.AssignedTo = &v
	}
	if i.Description != nil {
		v := *i.Description
		c.Description = &v
	}
	if i.CompletedAt != nil {
		v := *i.CompletedAt
		c.CompletedAt = &v
	}
	return &c
}

// AuditEntry records one successful advancement of an item.
type AuditEntry struct {
	ID          string             `json:"id"`
	ItemID      string             `json:"item_id"`
	WorkflowID  string             `json:"workflow_id"`
	FromStageID string             `json:"from_stage_id"`
	ToStageID   string             `json:"to_stage_id,omitempty"`
	Completed   bool               `json:"completed"`
	OperatorID  string             `json:"operator_id"`
	Completions []ActionCompletion `json:"completions"`
	Notes       string             `json:"notes,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}
