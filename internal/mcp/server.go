// Package mcp exposes floor operations as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"floorflow/backend/internal/services"
	"floorflow/backend/internal/workflow"
	"floorflow/backend/pkg/models"
)

// ItemService is the item surface the tools call.
type ItemService interface {
	AdvanceItem(ctx context.Context, itemID string, req workflow.Request) (*workflow.AdvanceResult, error)
	ResolveScan(ctx context.Context, raw string) (*services.ScanResult, error)
	ListActive(ctx context.Context, q services.ItemQuery) ([]*models.Item, error)
}

// Validator checks workflow definitions.
type Validator interface {
	Validate(w *models.Workflow) workflow.Issues
}

type Server struct {
	mcpServer *server.MCPServer
	items     ItemService
	workflows Validator
}

func NewServer(items ItemService, workflows Validator, version string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Floorflow",
			version,
			server.WithToolCapabilities(true),
		),
		items:     items,
		workflows: workflows,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"advance_item",
			mcp.WithDescription("Submit the completed actions of an item's current stage and move it to the next stage"),
			mcp.WithString("item_id", mcp.Required(), mcp.Description("The item id, e.g. ITM-1A2B3C4D")),
			mcp.WithArray("completed_actions", mcp.Required(),
				mcp.Description("Completions: objects with id, type, label and a type specific data payload"),
				mcp.Items(map[string]any{"type": "object"})),
			mcp.WithString("stage_id", mcp.Description("Stage the item is leaving; a repeated call with the same stage is answered without advancing again")),
			mcp.WithString("operator_id", mcp.Description("Operator performing the work; defaults to the caller")),
			mcp.WithString("notes", mcp.Description("Free text notes for the audit trail")),
		),
		s.handleAdvanceItem,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"lookup_scan",
			mcp.WithDescription("Resolve a scanned QR code (item:<id>, location:<id> or a bare item id)"),
			mcp.WithString("code", mcp.Required(), mcp.Description("The scanned payload")),
		),
		s.handleLookupScan,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_stage_items",
			mcp.WithDescription("List active items, filtered by workflow, stage, team or assignee"),
			mcp.WithString("workflow_id", mcp.Description("Workflow id")),
			mcp.WithString("stage_id", mcp.Description("Stage id")),
			mcp.WithString("team", mcp.Description("Team"), mcp.Enum(teamNames()...)),
			mcp.WithString("assigned_to", mcp.Description("Assignee")),
		),
		s.handleListStageItems,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"validate_workflow",
			mcp.WithDescription("Check a workflow definition and report errors and warnings without storing it"),
			mcp.WithObject("workflow", mcp.Required(), mcp.Description("The workflow definition")),
		),
		s.handleValidateWorkflow,
	)
}

func teamNames() []string {
	names := make([]string, 0, len(models.Teams))
	for _, t := range models.Teams {
		names = append(names, string(t))
	}
	return names
}

type advanceArgs struct {
	ItemID           string                    `json:"item_id"`
	StageID          string                    `json:"stage_id"`
	CompletedActions []models.ActionCompletion `json:"completed_actions"`
	OperatorID       string                    `json:"operator_id"`
	Notes            string                    `json:"notes"`
}

func (s *Server) handleAdvanceItem(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args advanceArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
	}
	if args.ItemID == "" {
		return mcp.NewToolResultError("Missing required parameter: item_id"), nil
	}

	res, err := s.items.AdvanceItem(ctx, args.ItemID, workflow.Request{
		StageID:     args.StageID,
		OperatorID:  args.OperatorID,
		Completions: args.CompletedActions,
		Notes:       args.Notes,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to advance item: %v", err)), nil
	}

	return jsonResult(struct {
		Status    workflow.AdvanceStatus `json:"status"`
		NextStage *models.Stage          `json:"next_stage,omitempty"`
		Replayed  bool                   `json:"replayed,omitempty"`
	}{res.Status, res.NextStage, res.Replayed})
}

func (s *Server) handleLookupScan(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := s.items.ResolveScan(ctx, code)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to resolve scan: %v", err)), nil
	}
	return jsonResult(res)
}

func (s *Server) handleListStageItems(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.items.ListActive(ctx, services.ItemQuery{
		WorkflowID: request.GetString("workflow_id", ""),
		StageID:    request.GetString("stage_id", ""),
		Team:       models.Team(request.GetString("team", "")),
		AssignedTo: request.GetString("assigned_to", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list items: %v", err)), nil
	}
	if items == nil {
		items = []*models.Item{}
	}
	return jsonResult(items)
}

func (s *Server) handleValidateWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Workflow *models.Workflow `json:"workflow"`
	}
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid workflow: %v", err)), nil
	}
	if args.Workflow == nil {
		return mcp.NewToolResultError("Missing required parameter: workflow"), nil
	}

	issues := s.workflows.Validate(args.Workflow)
	if issues == nil {
		issues = workflow.Issues{}
	}
	return jsonResult(struct {
		Valid  bool            `json:"valid"`
		Issues workflow.Issues `json:"issues"`
	}{!issues.HasErrors(), issues})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// MountHTTPHandlers serves the SSE transport under /mcp. Tool calls run
// on the message request's context, so the handler must sit behind the
// auth middleware to carry a tenant.
func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))

	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
