package mcpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	"taskflow/internal/service"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server is the MCP server for the taskflow app.
// It exposes tools, resources, and prompts so AI agents can manage tasks
// and edit flowcharts.
type Server struct {
	mcp      *server.MCPServer
	emitter  EventEmitter
	approval *ApprovalQueue
	layout   *LayoutEngine

	// Services (injected from app layer)
	tasks   *service.TaskService
	flows   *service.FlowService
	imports *service.ImportService

	// Active flowchart context (set by set_active_flowchart tool)
	activeFlowchartID string
}

// Deps holds all dependencies passed from the App layer to the MCP server.
type Deps struct {
	Emitter    EventEmitter
	Tasks      *service.TaskService
	Flows      *service.FlowService
	Imports    *service.ImportService
	ApprovalDB *sql.DB // When set, use SQLite-based approval (standalone mode)
}

// New creates and configures a new MCP server with all tools and resources.
func New(ctx context.Context, deps Deps) *Server {
	approval := NewApprovalQueue(ctx, deps.Emitter)
	if deps.ApprovalDB != nil {
		approval.SetDB(deps.ApprovalDB)
	}
	s := &Server{
		emitter:  deps.Emitter,
		approval: approval,
		layout:   NewLayoutEngine(),
		tasks:    deps.Tasks,
		flows:    deps.Flows,
		imports:  deps.Imports,
	}

	s.mcp = server.NewMCPServer(
		"taskflow-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerTaskTools()
	s.registerFlowTools()
	s.registerImportTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	log.Println("[MCP] Starting stdio server...")
	return server.ServeStdio(s.mcp)
}

// Approve forwards a user approval to the approval queue.
func (s *Server) Approve(actionID string) {
	s.approval.Approve(actionID)
}

// Reject forwards a user rejection to the approval queue.
func (s *Server) Reject(actionID string) {
	s.approval.Reject(actionID)
}

// ── Helpers ────────────────────────────────────────────────

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

func boolPtr(v bool) *bool { return &v }

func getFloat(args map[string]any, key string, fallback float64) float64 {
	if v, ok := args[key].(float64); ok {
		return v
	}
	return fallback
}

// parseJSON parses a JSON tool argument into the target type.
func parseJSON(data string, target any) error {
	return json.Unmarshal([]byte(data), target)
}

// resolveFlowchartID returns the flowchartId from tool args or falls back
// to the active flowchart.
func (s *Server) resolveFlowchartID(args map[string]any) (string, error) {
	if id, ok := args["flowchartId"].(string); ok && id != "" {
		return id, nil
	}
	if s.activeFlowchartID != "" {
		return s.activeFlowchartID, nil
	}
	return "", fmt.Errorf("no flowchartId provided and no active flowchart set (use set_active_flowchart first)")
}
