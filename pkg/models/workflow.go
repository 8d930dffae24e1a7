package models

import (
	"time"
)

// Workflow is the ordered list of production stages an item moves through.
type Workflow struct {
	ID          string    `json:"id" yaml:"id"`
	TenantID    string    `json:"tenant_id" yaml:"-"` // Multi-tenancy isolation
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	Stages      []Stage   `json:"stages" yaml:"stages"`
	CreatedBy   string    `json:"created_by" yaml:"-"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"-"`
}

// Stage is a single step of a workflow, gated by its actions.
type Stage struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Order       int    `json:"order" yaml:"order"`
	// EstimatedDuration is in minutes.
	EstimatedDuration int                `json:"estimated_duration" yaml:"estimated_duration"`
	Actions           []ActionDefinition `json:"actions" yaml:"actions"`
	IsActive          bool               `json:"is_active" yaml:"is_active"`
	Team              Team               `json:"team,omitempty" yaml:"team,omitempty"`
}

// StageByID returns the stage with the given id, or nil.
func (w *Workflow) StageByID(id string) *Stage {
	for i := range w.Stages {
		if w.Stages[i].ID == id {
			return &w.Stages[i]
		}
	}
	return nil
}

// FirstStage returns the stage with the lowest order, or nil for an empty workflow.
func (w *Workflow) FirstStage() *Stage {
	var first *Stage
	for i := range w.Stages {
		if first == nil || w.Stages[i].Order < first.Order {
			first = &w.Stages[i]
		}
	}
	return first
}

// Team is the factory-floor team responsible for a stage.
type Team string

const (
	TeamCutting   Team = "cutting"
	TeamSewing    Team = "sewing"
	TeamFinishing Team = "finishing"
	TeamQuality   Team = "quality"
	TeamPacking   Team = "packing"
)

// Teams lists every known team.
var Teams = []Team{TeamCutting, TeamSewing, TeamFinishing, TeamQuality, TeamPacking}

// Valid reports whether t is a known team.
func (t Team) Valid() bool {
	for _, known := range Teams {
		if t == known {
			return true
		}
	}
	return false
}
