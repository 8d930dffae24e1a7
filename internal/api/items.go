package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"floorflow/backend/internal/leadtime"
	"floorflow/backend/internal/services"
	"floorflow/backend/internal/workflow"
	"floorflow/backend/pkg/models"
)

// AdvanceRequest is the body of POST /items/{itemId}/advance. StageID is
// the stage the item is being advanced out of; clients that retry must send
// it so a repeat cannot move the item a second time.
type AdvanceRequest struct {
	StageID          string                    `json:"stage_id,omitempty"`
	OperatorID       string                    `json:"operator_id,omitempty"`
	CompletedActions []models.ActionCompletion `json:"completed_actions"`
	Notes            string                    `json:"notes,omitempty"`
}

// AdvanceResponse reports where the item went.
type AdvanceResponse struct {
	Status    workflow.AdvanceStatus `json:"status"`
	NextStage *models.Stage          `json:"next_stage,omitempty"`
	Item      *models.Item           `json:"item"`
	Replayed  bool                   `json:"replayed,omitempty"`
}

// ListItems returns active items filtered by workflow, stage, team or assignee
// (GET /api/v1/items)
func (s *Server) ListItems(c echo.Context) error {
	var q services.ItemQuery
	var team string
	for name, dest := range map[string]*string{
		"workflow_id": &q.WorkflowID,
		"stage_id":    &q.StageID,
		"team":        &team,
		"assigned_to": &q.AssignedTo,
	} {
		if err := queryParam(c, name, false, dest); err != nil {
			return err
		}
	}
	q.Team = models.Team(team)

	items, err := s.Items.ListActive(c.Request().Context(), q)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*models.Item{}
	}
	return c.JSON(http.StatusOK, items)
}

// CreateItem starts an item at the first stage of its workflow
// (POST /api/v1/items)
func (s *Server) CreateItem(c echo.Context) error {
	var in services.NewItem
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	item, err := s.Items.CreateItem(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, item)
}

// ListOverdue returns items past their stage's estimated duration
// (GET /api/v1/items/overdue)
func (s *Server) ListOverdue(c echo.Context) error {
	var workflowID string
	if err := queryParam(c, "workflow_id", false, &workflowID); err != nil {
		return err
	}

	overdue, err := s.Items.Overdue(c.Request().Context(), workflowID)
	if err != nil {
		return err
	}
	if overdue == nil {
		overdue = []leadtime.Overdue{}
	}
	return c.JSON(http.StatusOK, overdue)
}

// GetItem returns one item
// (GET /api/v1/items/{itemId})
func (s *Server) GetItem(c echo.Context) error {
	itemID, err := pathParam(c, "itemId")
	if err != nil {
		return err
	}

	item, err := s.Items.GetItem(c.Request().Context(), itemID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}

// PatchItem edits status, assignment, description or metadata
// (PATCH /api/v1/items/{itemId})
func (s *Server) PatchItem(c echo.Context) error {
	itemID, err := pathParam(c, "itemId")
	if err != nil {
		return err
	}
	var patch services.ItemPatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	item, err := s.Items.UpdateItem(c.Request().Context(), itemID, patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}

// ItemHistory returns the advancement audit trail of an item
// (GET /api/v1/items/{itemId}/history)
func (s *Server) ItemHistory(c echo.Context) error {
	itemID, err := pathParam(c, "itemId")
	if err != nil {
		return err
	}

	history, err := s.Items.History(c.Request().Context(), itemID)
	if err != nil {
		return err
	}
	if history == nil {
		history = []*models.AuditEntry{}
	}
	return c.JSON(http.StatusOK, history)
}

// AdvanceItem submits the completed actions of the item's current stage
// (POST /api/v1/items/{itemId}/advance)
func (s *Server) AdvanceItem(c echo.Context) error {
	itemID, err := pathParam(c, "itemId")
	if err != nil {
		return err
	}
	var body AdvanceRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	res, err := s.Items.AdvanceItem(c.Request().Context(), itemID, workflow.Request{
		StageID:     body.StageID,
		OperatorID:  body.OperatorID,
		Completions: body.CompletedActions,
		Notes:       body.Notes,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, AdvanceResponse{
		Status:    res.Status,
		NextStage: res.NextStage,
		Item:      res.Item,
		Replayed:  res.Replayed,
	})
}

// Scan resolves a scanned QR payload
// (GET /api/v1/scan?code=...)
func (s *Server) Scan(c echo.Context) error {
	var code string
	if err := queryParam(c, "code", true, &code); err != nil {
		return err
	}

	res, err := s.Items.ResolveScan(c.Request().Context(), code)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}
