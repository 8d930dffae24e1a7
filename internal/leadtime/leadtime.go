// Package leadtime measures how long items sit in their current stage and
// reports the ones running past the stage's estimated duration.
package leadtime

import (
	"sort"
	"time"

	"floorflow/backend/internal/workflow"
	"floorflow/backend/pkg/models"
)

// Overdue describes an active item that has been in its stage longer than
// the stage's estimate.
type Overdue struct {
	ItemID           string      `json:"item_id"`
	WorkflowID       string      `json:"workflow_id"`
	StageID          string      `json:"stage_id"`
	StageName        string      `json:"stage_name"`
	Team             models.Team `json:"team,omitempty"`
	AssignedTo       *string     `json:"assigned_to,omitempty"`
	EstimatedMinutes int         `json:"estimated_minutes"`
	InStageMinutes   int         `json:"in_stage_minutes"`
	OverdueMinutes   int         `json:"overdue_minutes"`
}

// TimeInStage is how long the item has been in its current stage at now.
func TimeInStage(item *models.Item, now time.Time) time.Duration {
	entered := item.StageEnteredAt
	if entered.IsZero() {
		entered = item.StartedAt
	}
	if now.Before(entered) {
		return 0
	}
	return now.Sub(entered)
}

// FindOverdue returns the active items of w that exceed their stage's
// estimated duration at now, most overdue first. Items of other workflows
// and items pointing at unknown stages are skipped.
func FindOverdue(w *models.Workflow, items []*models.Item, now time.Time) []Overdue {
	var out []Overdue
	for _, it := range items {
		if it.Status != models.ItemStatusActive || it.WorkflowID != w.ID {
			continue
		}
		st := w.StageByID(it.CurrentStageID)
		if st == nil || st.EstimatedDuration <= 0 {
			continue
		}

		estimate := time.Duration(st.EstimatedDuration) * time.Minute
		in := TimeInStage(it, now)
		if in <= estimate {
			continue
		}
		out = append(out, Overdue{
			ItemID:           it.ItemID,
			WorkflowID:       w.ID,
			StageID:          st.ID,
			StageName:        st.Name,
			Team:             workflow.TeamForStage(st),
			AssignedTo:       it.AssignedTo,
			EstimatedMinutes: st.EstimatedDuration,
			InStageMinutes:   int(in / time.Minute),
			OverdueMinutes:   int((in - estimate) / time.Minute),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OverdueMinutes > out[j].OverdueMinutes
	})
	return out
}
