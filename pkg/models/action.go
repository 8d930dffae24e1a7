package models

import (
	"encoding/json"
	"fmt"
)

// ActionType is the kind of evidence an operator captures at a stage.
type ActionType string

const (
	ActionScan        ActionType = "scan"
	ActionPhoto       ActionType = "photo"
	ActionNote        ActionType = "note"
	ActionApproval    ActionType = "approval"
	ActionMeasurement ActionType = "measurement"
	ActionInspection  ActionType = "inspection"
)

// ActionTypes lists the closed set of action kinds.
var ActionTypes = []ActionType{
	ActionScan,
	ActionPhoto,
	ActionNote,
	ActionApproval,
	ActionMeasurement,
	ActionInspection,
}

// Valid reports whether t is one of the known action kinds.
func (t ActionType) Valid() bool {
	switch t {
	case ActionScan, ActionPhoto, ActionNote, ActionApproval, ActionMeasurement, ActionInspection:
		return true
	}
	return false
}

// UnmarshalJSON rejects unknown action kinds.
func (t *ActionType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	at := ActionType(s)
	if !at.Valid() {
		return fmt.Errorf("unknown action type %q", s)
	}
	*t = at
	return nil
}

// ActionDefinition describes one action a stage asks for.
type ActionDefinition struct {
	ID       string        `json:"id" yaml:"id"`
	Type     ActionType    `json:"type" yaml:"type"`
	Label    string        `json:"label" yaml:"label"`
	Required bool          `json:"required" yaml:"required"`
	Config   *ActionConfig `json:"config,omitempty" yaml:"config,omitempty"`
}

// ActionConfig holds the type-specific settings of an action.
type ActionConfig struct {
	MeasurementUnit     string   `json:"measurement_unit,omitempty" yaml:"measurement_unit,omitempty"`
	InspectionChecklist []string `json:"inspection_checklist,omitempty" yaml:"inspection_checklist,omitempty"`
	NotePrompt          string   `json:"note_prompt,omitempty" yaml:"note_prompt,omitempty"`
}

// ActionCompletion is what an operator submitted for one action.
// Data is decoded according to Type; see workflow.DecodeCompletion.
type ActionCompletion struct {
	ID    string          `json:"id"`
	Type  ActionType      `json:"type"`
	Label string          `json:"label"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ScanData is the payload of a scan action.
type ScanData struct {
	ScannedValue string `json:"scanned_value"`
}

// PhotoData is the payload of a photo action.
type PhotoData struct {
	URL      string `json:"url,omitempty"`
	Captured bool   `json:"captured"`
}

// NoteData is the payload of a note action.
type NoteData struct {
	Note string `json:"note"`
}

// MeasurementData is the payload of a measurement action.
type MeasurementData struct {
	Value *float64 `json:"value"`
	Unit  string   `json:"unit,omitempty"`
}

// ApprovalData is the payload of an approval action. A nil Approved means
// the question was not answered.
type ApprovalData struct {
	Approved *bool `json:"approved,omitempty"`
}

// ApprovalDecision is the three-valued state of an approval.
type ApprovalDecision int

const (
	ApprovalUnanswered ApprovalDecision = iota
	ApprovalApproved
	ApprovalRejected
)

// Decision folds the optional flag into a three-valued decision.
func (d ApprovalData) Decision() ApprovalDecision {
	switch {
	case d.Approved == nil:
		return ApprovalUnanswered
	case *d.Approved:
		return ApprovalApproved
	default:
		return ApprovalRejected
	}
}

// InspectionData is the payload of an inspection action, keyed by
// checklist index.
type InspectionData struct {
	Checklist map[int]bool `json:"checklist"`
}
