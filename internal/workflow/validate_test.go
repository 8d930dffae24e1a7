package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"floorflow/backend/pkg/models"
)

func TestValidate_GarmentWorkflowIsClean(t *testing.T) {
	issues := Validate(garmentWorkflow())
	assert.Empty(t, issues)
}

func TestValidate_NoStages(t *testing.T) {
	issues := Validate(&models.Workflow{Name: "Empty"})
	assert.True(t, issues.HasErrors())
	assert.Equal(t, "stages", issues[0].Path)
}

func TestValidate_Order(t *testing.T) {
	t.Run("duplicate", func(t *testing.T) {
		w := garmentWorkflow()
		w.Stages[1].Order = 0
		issues := Validate(w)
		assert.True(t, issues.HasErrors())
		assert.Contains(t, issues.Errors()[0].Message, "already used")
	})

	t.Run("gap", func(t *testing.T) {
		w := garmentWorkflow()
		w.Stages[2].Order = 5
		issues := Validate(w)
		assert.True(t, issues.HasErrors())
		assert.Contains(t, issues.Errors()[0].Message, "contiguous")
	})

	t.Run("not starting at zero", func(t *testing.T) {
		w := garmentWorkflow()
		for i := range w.Stages {
			w.Stages[i].Order++
		}
		assert.True(t, Validate(w).HasErrors())
	})

	t.Run("declared out of order", func(t *testing.T) {
		w := garmentWorkflow()
		w.Stages[0], w.Stages[2] = w.Stages[2], w.Stages[0]
		assert.False(t, Validate(w).HasErrors())
	})
}

func TestValidate_Actions(t *testing.T) {
	w := garmentWorkflow()
	w.Stages[0].Actions = append(w.Stages[0].Actions,
		models.ActionDefinition{ID: "sig", Type: "signature", Label: "Sign off"},
		models.ActionDefinition{ID: "cut-scan", Type: models.ActionScan, Label: "again"},
		models.ActionDefinition{ID: "len", Type: models.ActionMeasurement, Label: "length", Required: true},
	)
	w.Stages[2].Actions[0].Config = nil

	issues := Validate(w)
	errs := issues.Errors()
	warns := issues.Warnings()

	paths := func(is Issues) []string {
		var out []string
		for _, i := range is {
			out = append(out, i.Path)
		}
		return out
	}
	assert.ElementsMatch(t, []string{"stages[0].actions[1].type", "stages[0].actions[2].id"}, paths(errs))
	assert.ElementsMatch(t, []string{
		"stages[0].actions[3].config.measurement_unit",
		"stages[2].actions[0].config.inspection_checklist",
	}, paths(warns))
}

func TestValidate_StageFields(t *testing.T) {
	w := garmentWorkflow()
	w.Name = " "
	w.Stages[1].ID = "cutting"
	w.Stages[1].EstimatedDuration = 0
	w.Stages[2].Team = "embroidery"

	issues := Validate(w)
	assert.Len(t, issues.Errors(), 4)
}

func TestWorkflowInvalidError_Message(t *testing.T) {
	err := &WorkflowInvalidError{Issues: Issues{
		{Severity: SeverityWarning, Path: "x", Message: "ignored"},
		{Severity: SeverityError, Path: "stages", Message: "workflow needs at least one stage"},
	}}
	assert.EqualError(t, err, "workflow is invalid: stages: workflow needs at least one stage")
}
