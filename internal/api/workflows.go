package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"floorflow/backend/internal/workflow"
	"floorflow/backend/pkg/models"
)

// WorkflowResponse returns a stored workflow with its non-blocking issues.
type WorkflowResponse struct {
	Workflow *models.Workflow `json:"workflow"`
	Warnings workflow.Issues  `json:"warnings,omitempty"`
}

// ValidationResponse is the result of a dry-run validation.
type ValidationResponse struct {
	Valid  bool            `json:"valid"`
	Issues workflow.Issues `json:"issues"`
}

// ListWorkflows returns a list of all workflows
// (GET /api/v1/workflows)
func (s *Server) ListWorkflows(c echo.Context) error {
	workflows, err := s.Workflows.List(c.Request().Context())
	if err != nil {
		return err
	}
	if workflows == nil {
		workflows = []*models.Workflow{}
	}
	return c.JSON(http.StatusOK, workflows)
}

// CreateWorkflow stores a new workflow definition
// (POST /api/v1/workflows)
func (s *Server) CreateWorkflow(c echo.Context) error {
	var w models.Workflow
	if err := c.Bind(&w); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	warnings, err := s.Workflows.Create(c.Request().Context(), &w)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, WorkflowResponse{Workflow: &w, Warnings: warnings})
}

// PutWorkflow creates or updates a workflow
// (PUT /api/v1/workflows)
func (s *Server) PutWorkflow(c echo.Context) error {
	var w models.Workflow
	if err := c.Bind(&w); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	warnings, created, err := s.Workflows.Put(c.Request().Context(), &w)
	if err != nil {
		return err
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, WorkflowResponse{Workflow: &w, Warnings: warnings})
}

// GetWorkflow returns one workflow
// (GET /api/v1/workflows/{workflowId})
func (s *Server) GetWorkflow(c echo.Context) error {
	id, err := pathParam(c, "workflowId")
	if err != nil {
		return err
	}

	w, err := s.Workflows.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, w)
}

// ValidateWorkflow checks a definition without storing it
// (POST /api/v1/workflows/validate)
func (s *Server) ValidateWorkflow(c echo.Context) error {
	var w models.Workflow
	if err := c.Bind(&w); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	issues := s.Workflows.Validate(&w)
	if issues == nil {
		issues = workflow.Issues{}
	}
	return c.JSON(http.StatusOK, ValidationResponse{Valid: !issues.HasErrors(), Issues: issues})
}
