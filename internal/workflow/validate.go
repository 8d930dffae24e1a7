package workflow

import (
	"fmt"
	"sort"
	"strings"

	"floorflow/backend/pkg/models"
)

// Severity separates blocking problems from advisory ones.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one finding of Validate. Path points into the definition, for
// example "stages[1].actions[0].type".
type Issue struct {
	Severity Severity `json:"severity"`
	Path     string   `json:"path"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	if i.Path == "" {
		return i.Message
	}
	return i.Path + ": " + i.Message
}

// Issues is the result of validating a workflow.
type Issues []Issue

// HasErrors reports whether any issue blocks use of the workflow.
func (is Issues) HasErrors() bool {
	return len(is.Errors()) > 0
}

// Errors returns the blocking issues.
func (is Issues) Errors() Issues {
	return is.filter(SeverityError)
}

// Warnings returns the advisory issues.
func (is Issues) Warnings() Issues {
	return is.filter(SeverityWarning)
}

func (is Issues) filter(sev Severity) Issues {
	var out Issues
	for _, i := range is {
		if i.Severity == sev {
			out = append(out, i)
		}
	}
	return out
}

// Validate checks a workflow definition before the engine may use it. It
// never mutates w.
func Validate(w *models.Workflow) Issues {
	var issues Issues
	add := func(sev Severity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(w.Name) == "" {
		add(SeverityError, "name", "workflow name is required")
	}
	if len(w.Stages) == 0 {
		add(SeverityError, "stages", "workflow needs at least one stage")
		return issues
	}

	issues = append(issues, validateOrder(w.Stages)...)

	stageIDs := make(map[string]bool, len(w.Stages))
	for si, st := range w.Stages {
		sp := fmt.Sprintf("stages[%d]", si)
		switch {
		case st.ID == "":
			add(SeverityError, sp+".id", "stage id is required")
		case stageIDs[st.ID]:
			add(SeverityError, sp+".id", "duplicate stage id %q", st.ID)
		}
		stageIDs[st.ID] = true

		if strings.TrimSpace(st.Name) == "" {
			add(SeverityError, sp+".name", "stage name is required")
		}
		if st.EstimatedDuration <= 0 {
			add(SeverityError, sp+".estimated_duration", "estimated duration must be positive minutes, got %d", st.EstimatedDuration)
		}
		if st.Team != "" && !st.Team.Valid() {
			add(SeverityError, sp+".team", "unknown team %q", st.Team)
		}

		actionIDs := make(map[string]bool, len(st.Actions))
		for ai, act := range st.Actions {
			ap := fmt.Sprintf("%s.actions[%d]", sp, ai)
			switch {
			case act.ID == "":
				add(SeverityError, ap+".id", "action id is required")
			case actionIDs[act.ID]:
				add(SeverityError, ap+".id", "duplicate action id %q", act.ID)
			}
			actionIDs[act.ID] = true

			if strings.TrimSpace(act.Label) == "" {
				add(SeverityError, ap+".label", "action label is required")
			}
			if !act.Type.Valid() {
				add(SeverityError, ap+".type", "unknown action type %q", act.Type)
				continue
			}
			if !act.Required {
				continue
			}
			switch act.Type {
			case models.ActionInspection:
				if act.Config == nil || len(act.Config.InspectionChecklist) == 0 {
					add(SeverityWarning, ap+".config.inspection_checklist", "required inspection %q has no checklist", act.Label)
				}
			case models.ActionMeasurement:
				if act.Config == nil || strings.TrimSpace(act.Config.MeasurementUnit) == "" {
					add(SeverityWarning, ap+".config.measurement_unit", "required measurement %q has no unit", act.Label)
				}
			}
		}
	}

	return issues
}

// validateOrder requires order values to be unique and contiguous from 0.
func validateOrder(stages []models.Stage) Issues {
	var issues Issues
	seen := make(map[int]int, len(stages))
	orders := make([]int, 0, len(stages))
	for i, st := range stages {
		if prev, dup := seen[st.Order]; dup {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("stages[%d].order", i),
				Message:  fmt.Sprintf("order %d already used by stages[%d]", st.Order, prev),
			})
			continue
		}
		seen[st.Order] = i
		orders = append(orders, st.Order)
	}

	sort.Ints(orders)
	for want, got := range orders {
		if got != want {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "stages",
				Message:  fmt.Sprintf("stage order must be contiguous from 0, expected %d but found %d", want, got),
			})
			break
		}
	}
	return issues
}
