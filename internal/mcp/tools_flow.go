package mcpserver

import (
	"context"
	"fmt"

	"taskflow/internal/flow"
	"taskflow/internal/service"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerFlowTools() {
	// ── list_flowcharts ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_flowcharts",
		mcp.WithDescription("List all flowcharts in the workspace"),
	), s.handleListFlowcharts)

	// ── create_flowchart ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("create_flowchart",
		mcp.WithDescription("Create a new flowchart. It becomes the active flowchart for subsequent tool calls."),
		mcp.WithString("name", mcp.Description("Flowchart name (optional)")),
	), s.handleCreateFlowchart)

	// ── set_active_flowchart ───────────────────────────
	s.mcp.AddTool(mcp.NewTool("set_active_flowchart",
		mcp.WithDescription("Set the active flowchart for subsequent tool calls. Tools that accept flowchartId will default to this."),
		mcp.WithString("flowchartId", mcp.Description("ID of the flowchart to make active"), mcp.Required()),
	), s.handleSetActiveFlowchart)

	// ── get_flowchart_state ────────────────────────────
	s.mcp.AddTool(mcp.NewTool("get_flowchart_state",
		mcp.WithDescription("Get the full state of a flowchart: nodes, edges, viewport, and undo/redo availability. Nodes linked to tasks include the resolved task record."),
		mcp.WithString("flowchartId", mcp.Description("Flowchart ID (optional, defaults to active flowchart)")),
	), s.handleGetFlowchartState)

	// ── add_flow_node ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("add_flow_node",
		mcp.WithDescription("Add a node to a flowchart. When x/y are omitted the node is auto-placed on the grid next to existing nodes."),
		mcp.WithString("flowchartId", mcp.Description("Flowchart ID (optional, defaults to active flowchart)")),
		mcp.WithString("type", mcp.Description("Node shape: rectangle, diamond, circle, or text (default rectangle)")),
		mcp.WithString("label", mcp.Description("Node label (optional)")),
		mcp.WithString("taskId", mcp.Description("Task ID to link the node to (optional)")),
		mcp.WithNumber("x", mcp.Description("X position (optional, auto-placed when omitted)")),
		mcp.WithNumber("y", mcp.Description("Y position (optional, auto-placed when omitted)")),
	), s.handleAddFlowNode)

	// ── batch_add_flow_nodes ───────────────────────────
	s.mcp.AddTool(mcp.NewTool("batch_add_flow_nodes",
		mcp.WithDescription("Add several nodes at once, arranged in a column next to existing nodes. Pass a JSON array of node objects."),
		mcp.WithString("flowchartId", mcp.Description("Flowchart ID (optional, defaults to active flowchart)")),
		mcp.WithString("nodes",
			mcp.Description(`JSON array of node objects [{"type":"rectangle","label":"...","taskId":"..."}, ...]`),
			mcp.Required(),
		),
	), s.handleBatchAddFlowNodes)

	// ── update_flow_node ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("update_flow_node",
		mcp.WithDescription("Update a node's label, position, or linked task. Only provided fields change."),
		mcp.WithString("flowchartId", mcp.Description("Flowchart ID (optional, defaults to active flowchart)")),
		mcp.WithString("nodeId", mcp.Description("Node ID"), mcp.Required()),
		mcp.WithString("label", mcp.Description("New label (optional)")),
		mcp.WithString("taskId", mcp.Description("New linked task ID, empty string unlinks (optional)")),
		mcp.WithNumber("x", mcp.Description("New X position (optional, requires y)")),
		mcp.WithNumber("y", mcp.Description("New Y position (optional, requires x)")),
	), s.handleUpdateFlowNode)

	// ── connect_flow_nodes ─────────────────────────────
	s.mcp.AddTool(mcp.NewTool("connect_flow_nodes",
		mcp.WithDescription("Connect two nodes with a directed edge. Fails if the edge would close a cycle."),
		mcp.WithString("flowchartId", mcp.Description("Flowchart ID (optional, defaults to active flowchart)")),
		mcp.WithString("sourceId", mcp.Description("Source node ID"), mcp.Required()),
		mcp.WithString("targetId", mcp.Description("Target node ID"), mcp.Required()),
		mcp.WithString("label", mcp.Description("Edge label (optional)")),
	), s.handleConnectFlowNodes)

	// ── remove_flow_node ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("remove_flow_node",
		mcp.WithDescription("🛑 DESTRUCTIVE: Remove a node and all its edges from a flowchart. Requires user approval."),
		mcp.WithString("flowchartId", mcp.Description("Flowchart ID (optional, defaults to active flowchart)")),
		mcp.WithString("nodeId", mcp.Description("Node ID"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleRemoveFlowNode)

	// ── undo_flow / redo_flow ──────────────────────────
	s.mcp.AddTool(mcp.NewTool("undo_flow",
		mcp.WithDescription("Undo the last change on a flowchart"),
		mcp.WithString("flowchartId", mcp.Description("Flowchart ID (optional, defaults to active flowchart)")),
	), s.handleUndoFlow)

	s.mcp.AddTool(mcp.NewTool("redo_flow",
		mcp.WithDescription("Redo the last undone change on a flowchart"),
		mcp.WithString("flowchartId", mcp.Description("Flowchart ID (optional, defaults to active flowchart)")),
	), s.handleRedoFlow)

	// ── link_task_to_node ──────────────────────────────
	s.mcp.AddTool(mcp.NewTool("link_task_to_node",
		mcp.WithDescription("Link a task to a flowchart node. The node then renders the task's title and status."),
		mcp.WithString("flowchartId", mcp.Description("Flowchart ID (optional, defaults to active flowchart)")),
		mcp.WithString("nodeId", mcp.Description("Node ID"), mcp.Required()),
		mcp.WithString("taskId", mcp.Description("Task ID"), mcp.Required()),
	), s.handleLinkTaskToNode)

	// ── revisions ──────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("save_flow_revision",
		mcp.WithDescription("Save a named revision of a flowchart's current state"),
		mcp.WithString("flowchartId", mcp.Description("Flowchart ID (optional, defaults to active flowchart)")),
		mcp.WithString("label", mcp.Description("Revision label (optional)")),
	), s.handleSaveFlowRevision)

	s.mcp.AddTool(mcp.NewTool("list_flow_revisions",
		mcp.WithDescription("List saved revisions of a flowchart, newest first"),
		mcp.WithString("flowchartId", mcp.Description("Flowchart ID (optional, defaults to active flowchart)")),
	), s.handleListFlowRevisions)

	s.mcp.AddTool(mcp.NewTool("restore_flow_revision",
		mcp.WithDescription("🛑 DESTRUCTIVE: Replace a flowchart's current state with a saved revision. Requires user approval."),
		mcp.WithString("flowchartId", mcp.Description("Flowchart ID (optional, defaults to active flowchart)")),
		mcp.WithString("revisionId", mcp.Description("Revision ID"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleRestoreFlowRevision)
}

// openFlowchart resolves the target flowchart and makes sure its canvas is
// mounted. Charts already open in the desktop frontend are reused as-is.
func (s *Server) openFlowchart(args map[string]any) (string, *service.FlowView, error) {
	id, err := s.resolveFlowchartID(args)
	if err != nil {
		return "", nil, err
	}
	view, err := s.flows.OpenFlowchart(id)
	if err != nil {
		return "", nil, fmt.Errorf("open flowchart: %w", err)
	}
	return id, view, nil
}

// ── Handlers ───────────────────────────────────────────────

func (s *Server) handleListFlowcharts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	charts, err := s.flows.ListFlowcharts()
	if err != nil {
		return nil, fmt.Errorf("list flowcharts: %w", err)
	}
	return jsonResult(charts)
}

func (s *Server) handleCreateFlowchart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	chart, err := s.flows.CreateFlowchart(name)
	if err != nil {
		return nil, fmt.Errorf("create flowchart: %w", err)
	}
	// Auto-set as active flowchart
	s.activeFlowchartID = chart.ID
	return jsonResult(chart)
}

func (s *Server) handleSetActiveFlowchart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	flowchartID := req.GetString("flowchartId", "")
	if flowchartID == "" {
		return nil, fmt.Errorf("flowchartId is required")
	}
	view, err := s.flows.OpenFlowchart(flowchartID)
	if err != nil {
		return nil, fmt.Errorf("open flowchart: %w", err)
	}
	s.activeFlowchartID = flowchartID
	return textResult(fmt.Sprintf("Active flowchart set to %s (%d nodes, %d edges)",
		flowchartID, len(view.Nodes), len(view.Edges))), nil
}

func (s *Server) handleGetFlowchartState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, view, err := s.openFlowchart(req.GetArguments())
	if err != nil {
		return nil, err
	}
	return jsonResult(view)
}

func (s *Server) handleAddFlowNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	flowchartID, view, err := s.openFlowchart(args)
	if err != nil {
		return nil, err
	}

	nodeType := req.GetString("type", "rectangle")

	// Auto-layout if position not provided
	x, hasX := args["x"].(float64)
	y, hasY := args["y"].(float64)
	if !hasX || !hasY {
		x, y = s.layout.NextPosition(view.Nodes)
	}

	node, err := s.flows.AddNode(flowchartID, service.AddNodeInput{
		Type:   nodeType,
		X:      x,
		Y:      y,
		Label:  req.GetString("label", ""),
		TaskID: req.GetString("taskId", ""),
	})
	if err != nil {
		return nil, fmt.Errorf("add node: %w", err)
	}
	return jsonResult(node)
}

func (s *Server) handleBatchAddFlowNodes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	nodesJSON := req.GetString("nodes", "")
	if nodesJSON == "" {
		return nil, fmt.Errorf("nodes is required")
	}

	var specs []struct {
		Type   string `json:"type"`
		Label  string `json:"label"`
		TaskID string `json:"taskId"`
	}
	if err := parseJSON(nodesJSON, &specs); err != nil {
		return nil, fmt.Errorf("parse nodes: %w", err)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("nodes array is empty")
	}

	flowchartID, view, err := s.openFlowchart(args)
	if err != nil {
		return nil, err
	}

	startX, startY := s.layout.NextPosition(view.Nodes)
	positions := s.layout.ArrangeColumn(startX, startY, len(specs))

	created := make([]*flow.Node, 0, len(specs))
	for i, spec := range specs {
		nodeType := spec.Type
		if nodeType == "" {
			nodeType = "rectangle"
		}
		node, err := s.flows.AddNode(flowchartID, service.AddNodeInput{
			Type:   nodeType,
			X:      positions[i].X,
			Y:      positions[i].Y,
			Label:  spec.Label,
			TaskID: spec.TaskID,
		})
		if err != nil {
			return nil, fmt.Errorf("add node %d: %w", i, err)
		}
		created = append(created, node)
	}
	return jsonResult(created)
}

func (s *Server) handleUpdateFlowNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	nodeID, _ := args["nodeId"].(string)
	if nodeID == "" {
		return nil, fmt.Errorf("nodeId is required")
	}
	flowchartID, _, err := s.openFlowchart(args)
	if err != nil {
		return nil, err
	}

	var ch flow.NodeChanges
	if v, ok := args["label"].(string); ok {
		ch.Label = &v
	}
	if v, ok := args["taskId"].(string); ok {
		ch.TaskID = &v
	}
	x, hasX := args["x"].(float64)
	y, hasY := args["y"].(float64)
	if hasX && hasY {
		ch.Position = &flow.Position{X: x, Y: y}
	}

	if _, err := s.flows.UpdateNode(flowchartID, nodeID, ch); err != nil {
		return nil, fmt.Errorf("update node: %w", err)
	}
	return textResult(fmt.Sprintf("Node %s updated", nodeID)), nil
}

func (s *Server) handleConnectFlowNodes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	sourceID, _ := args["sourceId"].(string)
	targetID, _ := args["targetId"].(string)
	if sourceID == "" || targetID == "" {
		return nil, fmt.Errorf("sourceId and targetId are required")
	}
	flowchartID, _, err := s.openFlowchart(args)
	if err != nil {
		return nil, err
	}

	edge, err := s.flows.Connect(flowchartID, service.ConnectInput{
		Source: sourceID,
		Target: targetID,
		Label:  req.GetString("label", ""),
	})
	if err != nil {
		// Cycle rejections come back here; the caller sees the reason
		return nil, fmt.Errorf("connect nodes: %w", err)
	}
	return jsonResult(edge)
}

func (s *Server) handleRemoveFlowNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	nodeID, _ := args["nodeId"].(string)
	if nodeID == "" {
		return nil, fmt.Errorf("nodeId is required")
	}
	flowchartID, _, err := s.openFlowchart(args)
	if err != nil {
		return nil, err
	}

	approved, err := s.approval.Request("remove_flow_node",
		fmt.Sprintf("Remove node %s and its edges from flowchart %s", nodeID, flowchartID))
	if err != nil || !approved {
		return textResult("Action rejected by user"), nil
	}

	if _, err := s.flows.RemoveNode(flowchartID, nodeID); err != nil {
		return nil, fmt.Errorf("remove node: %w", err)
	}
	return textResult(fmt.Sprintf("Node %s removed", nodeID)), nil
}

func (s *Server) handleUndoFlow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	flowchartID, _, err := s.openFlowchart(req.GetArguments())
	if err != nil {
		return nil, err
	}
	view, err := s.flows.Undo(flowchartID)
	if err != nil {
		return nil, fmt.Errorf("undo: %w", err)
	}
	return jsonResult(view)
}

func (s *Server) handleRedoFlow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	flowchartID, _, err := s.openFlowchart(req.GetArguments())
	if err != nil {
		return nil, err
	}
	view, err := s.flows.Redo(flowchartID)
	if err != nil {
		return nil, fmt.Errorf("redo: %w", err)
	}
	return jsonResult(view)
}

func (s *Server) handleLinkTaskToNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	nodeID, _ := args["nodeId"].(string)
	taskID, _ := args["taskId"].(string)
	if nodeID == "" || taskID == "" {
		return nil, fmt.Errorf("nodeId and taskId are required")
	}

	task, err := s.tasks.GetTask(taskID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}

	flowchartID, _, err := s.openFlowchart(args)
	if err != nil {
		return nil, err
	}

	if _, err := s.flows.UpdateNode(flowchartID, nodeID, flow.NodeChanges{TaskID: &taskID}); err != nil {
		return nil, fmt.Errorf("link task: %w", err)
	}
	return textResult(fmt.Sprintf("Node %s linked to task %q", nodeID, task.Title)), nil
}

func (s *Server) handleSaveFlowRevision(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	flowchartID, _, err := s.openFlowchart(args)
	if err != nil {
		return nil, err
	}
	rev, err := s.flows.SaveRevision(flowchartID, req.GetString("label", ""))
	if err != nil {
		return nil, fmt.Errorf("save revision: %w", err)
	}
	return jsonResult(rev)
}

func (s *Server) handleListFlowRevisions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	flowchartID, err := s.resolveFlowchartID(req.GetArguments())
	if err != nil {
		return nil, err
	}
	revs, err := s.flows.ListRevisions(flowchartID)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	return jsonResult(revs)
}

func (s *Server) handleRestoreFlowRevision(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	revisionID, _ := args["revisionId"].(string)
	if revisionID == "" {
		return nil, fmt.Errorf("revisionId is required")
	}
	flowchartID, _, err := s.openFlowchart(args)
	if err != nil {
		return nil, err
	}

	approved, err := s.approval.Request("restore_flow_revision",
		fmt.Sprintf("Restore flowchart %s to revision %s (current state is replaced)", flowchartID, revisionID))
	if err != nil || !approved {
		return textResult("Action rejected by user"), nil
	}

	view, err := s.flows.RestoreRevision(flowchartID, revisionID)
	if err != nil {
		return nil, fmt.Errorf("restore revision: %w", err)
	}
	return jsonResult(view)
}
