// Package api contains the HTTP handlers of the floorflow REST API.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/oapi-codegen/runtime"

	"floorflow/backend/internal/leadtime"
	"floorflow/backend/internal/services"
	"floorflow/backend/internal/workflow"
	"floorflow/backend/pkg/models"
)

// WorkflowService is the workflow definition surface used by the API.
type WorkflowService interface {
	Create(ctx context.Context, w *models.Workflow) (workflow.Issues, error)
	Put(ctx context.Context, w *models.Workflow) (workflow.Issues, bool, error)
	Get(ctx context.Context, id string) (*models.Workflow, error)
	List(ctx context.Context) ([]*models.Workflow, error)
	Validate(w *models.Workflow) workflow.Issues
}

// ItemService is the item surface used by the API.
type ItemService interface {
	CreateItem(ctx context.Context, in services.NewItem) (*models.Item, error)
	GetItem(ctx context.Context, itemID string) (*models.Item, error)
	UpdateItem(ctx context.Context, itemID string, patch services.ItemPatch) (*models.Item, error)
	ListActive(ctx context.Context, q services.ItemQuery) ([]*models.Item, error)
	AdvanceItem(ctx context.Context, itemID string, req workflow.Request) (*workflow.AdvanceResult, error)
	History(ctx context.Context, itemID string) ([]*models.AuditEntry, error)
	ResolveScan(ctx context.Context, raw string) (*services.ScanResult, error)
	Overdue(ctx context.Context, workflowID string) ([]leadtime.Overdue, error)
}

// Server holds the dependencies for the API server.
type Server struct {
	Workflows WorkflowService
	Items     ItemService
}

// NewServer creates a new Server.
func NewServer(workflows WorkflowService, items ItemService) *Server {
	return &Server{Workflows: workflows, Items: items}
}

// RegisterHandlers mounts the API routes on g, normally the /api/v1 group.
func RegisterHandlers(g *echo.Group, s *Server) {
	g.GET("/workflows", s.ListWorkflows)
	g.POST("/workflows", s.CreateWorkflow)
	g.PUT("/workflows", s.PutWorkflow)
	g.POST("/workflows/validate", s.ValidateWorkflow)
	g.GET("/workflows/:workflowId", s.GetWorkflow)

	g.GET("/items", s.ListItems)
	g.POST("/items", s.CreateItem)
	g.GET("/items/overdue", s.ListOverdue)
	g.GET("/items/:itemId", s.GetItem)
	g.PATCH("/items/:itemId", s.PatchItem)
	g.GET("/items/:itemId/history", s.ItemHistory)
	g.POST("/items/:itemId/advance", s.AdvanceItem)

	g.GET("/scan", s.Scan)
}

func pathParam(c echo.Context, name string) (string, error) {
	var v string
	err := runtime.BindStyledParameterWithOptions("simple", name, c.Param(name), &v,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter %s: %s", name, err))
	}
	return v, nil
}

// queryParam binds a string query parameter. Required parameters bind
// directly; optional ones go through a pointer and leave dest untouched
// when absent.
func queryParam(c echo.Context, name string, required bool, dest *string) error {
	var err error
	if required {
		err = runtime.BindQueryParameter("form", true, true, name, c.QueryParams(), dest)
	} else {
		var v *string
		err = runtime.BindQueryParameter("form", true, false, name, c.QueryParams(), &v)
		if err == nil && v != nil {
			*dest = *v
		}
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter %s: %s", name, err))
	}
	return nil
}
