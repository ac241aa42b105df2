package mcpserver

import (
	"context"
	"fmt"
	"time"

	"taskflow/internal/service"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerTaskTools() {
	// ── create_task ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("create_task",
		mcp.WithDescription("Create a new task on the board"),
		mcp.WithString("title", mcp.Description("Task title"), mcp.Required()),
		mcp.WithString("notes", mcp.Description("Free-form notes (optional)")),
		mcp.WithString("status", mcp.Description("Initial status: todo, doing, or done (default todo)")),
		mcp.WithString("priority", mcp.Description("Priority: low, medium, or high (default medium)")),
		mcp.WithString("dueAt", mcp.Description("Due date in RFC 3339 format, e.g. 2026-03-01T09:00:00Z (optional)")),
	), s.handleCreateTask)

	// ── list_tasks ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List all tasks, optionally filtered by status"),
		mcp.WithString("status", mcp.Description("Filter by status: todo, doing, or done (optional)")),
	), s.handleListTasks)

	// ── search_tasks ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("search_tasks",
		mcp.WithDescription("Search tasks by title and notes"),
		mcp.WithString("query", mcp.Description("Search text"), mcp.Required()),
	), s.handleSearchTasks)

	// ── get_task ───────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("get_task",
		mcp.WithDescription("Get a single task by ID"),
		mcp.WithString("taskId", mcp.Description("Task ID"), mcp.Required()),
	), s.handleGetTask)

	// ── list_tasks_due_soon ────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_tasks_due_soon",
		mcp.WithDescription("List tasks due within the next N days"),
		mcp.WithNumber("days", mcp.Description("Horizon in days (default 7)")),
	), s.handleListTasksDueSoon)

	// ── update_task ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("update_task",
		mcp.WithDescription("Update a task. Only provided fields change; pass an empty dueAt to clear the due date."),
		mcp.WithString("taskId", mcp.Description("Task ID"), mcp.Required()),
		mcp.WithString("title", mcp.Description("New title (optional)")),
		mcp.WithString("notes", mcp.Description("New notes (optional)")),
		mcp.WithString("status", mcp.Description("New status: todo, doing, or done (optional)")),
		mcp.WithString("priority", mcp.Description("New priority: low, medium, or high (optional)")),
		mcp.WithString("dueAt", mcp.Description("New due date in RFC 3339 format, empty string clears it (optional)")),
	), s.handleUpdateTask)

	// ── complete_task ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("complete_task",
		mcp.WithDescription("Mark a task as done"),
		mcp.WithString("taskId", mcp.Description("Task ID"), mcp.Required()),
	), s.handleCompleteTask)

	// ── delete_task ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("delete_task",
		mcp.WithDescription("🛑 DESTRUCTIVE: Permanently delete a task. Requires user approval."),
		mcp.WithString("taskId", mcp.Description("Task ID"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeleteTask)
}

// ── Handlers ───────────────────────────────────────────────

func (s *Server) handleCreateTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	title, _ := args["title"].(string)
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}

	input := service.CreateTaskInput{
		Title:    title,
		Notes:    req.GetString("notes", ""),
		Status:   req.GetString("status", ""),
		Priority: req.GetString("priority", ""),
		DueAt:    req.GetString("dueAt", ""),
	}
	task, err := s.tasks.CreateTask(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return jsonResult(task)
}

func (s *Server) handleListTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := req.GetString("status", "")
	if status != "" {
		tasks, err := s.tasks.ListTasksByStatus(status)
		if err != nil {
			return nil, fmt.Errorf("list tasks: %w", err)
		}
		return jsonResult(tasks)
	}
	tasks, err := s.tasks.ListTasks()
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return jsonResult(tasks)
}

func (s *Server) handleSearchTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	tasks, err := s.tasks.SearchTasks(query)
	if err != nil {
		return nil, fmt.Errorf("search tasks: %w", err)
	}
	return jsonResult(tasks)
}

func (s *Server) handleGetTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := req.GetString("taskId", "")
	if taskID == "" {
		return nil, fmt.Errorf("taskId is required")
	}
	task, err := s.tasks.GetTask(taskID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return jsonResult(task)
}

func (s *Server) handleListTasksDueSoon(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	days := int(getFloat(args, "days", 7))
	tasks, err := s.tasks.ListTasksDueSoon(days)
	if err != nil {
		return nil, fmt.Errorf("list due tasks: %w", err)
	}
	return jsonResult(tasks)
}

func (s *Server) handleUpdateTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	taskID, _ := args["taskId"].(string)
	if taskID == "" {
		return nil, fmt.Errorf("taskId is required")
	}

	// Start from the stored task so absent args keep their values
	existing, err := s.tasks.GetTask(taskID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	input := service.CreateTaskInput{
		Title:    existing.Title,
		Notes:    existing.Notes,
		Status:   string(existing.Status),
		Priority: string(existing.Priority),
	}
	if existing.DueAt != nil {
		input.DueAt = existing.DueAt.Format(time.RFC3339)
	}

	if v, ok := args["title"].(string); ok && v != "" {
		input.Title = v
	}
	if v, ok := args["notes"].(string); ok {
		input.Notes = v
	}
	if v, ok := args["status"].(string); ok && v != "" {
		input.Status = v
	}
	if v, ok := args["priority"].(string); ok && v != "" {
		input.Priority = v
	}
	if v, ok := args["dueAt"].(string); ok {
		input.DueAt = v
	}

	task, err := s.tasks.UpdateTask(ctx, taskID, input)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return jsonResult(task)
}

func (s *Server) handleCompleteTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := req.GetString("taskId", "")
	if taskID == "" {
		return nil, fmt.Errorf("taskId is required")
	}
	task, err := s.tasks.SetTaskStatus(ctx, taskID, "done")
	if err != nil {
		return nil, fmt.Errorf("complete task: %w", err)
	}
	return jsonResult(task)
}

func (s *Server) handleDeleteTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := req.GetString("taskId", "")
	if taskID == "" {
		return nil, fmt.Errorf("taskId is required")
	}

	task, err := s.tasks.GetTask(taskID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}

	approved, err := s.approval.Request("delete_task",
		fmt.Sprintf("Delete task %q", task.Title))
	if err != nil || !approved {
		return textResult("Action rejected by user"), nil
	}

	if err := s.tasks.DeleteTask(ctx, taskID); err != nil {
		return nil, fmt.Errorf("delete task: %w", err)
	}
	return textResult(fmt.Sprintf("Task %q deleted", task.Title)), nil
}
