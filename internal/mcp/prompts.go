package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("plan_day",
		mcp.WithPromptDescription("Plan the day from the task board: pick what to work on and sketch the order as a flowchart"),
		mcp.WithArgument("focus",
			mcp.ArgumentDescription("Main focus or theme for the day (optional)"),
		),
	), s.handlePlanDayPrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("board_summary",
		mcp.WithPromptDescription("Summarize the current state of the task board and its flowcharts"),
	), s.handleBoardSummaryPrompt)
}

func (s *Server) handlePlanDayPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	focus := req.Params.Arguments["focus"]
	focusLine := ""
	if focus != "" {
		focusLine = fmt.Sprintf("\nToday's focus is: %s. Weigh tasks related to it higher.\n", focus)
	}
	return &mcp.GetPromptResult{
		Description: "Plan today's work from the task board",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Help me plan my day from the task board.%s
1. Use list_tasks_due_soon (days=2) and list_tasks (status=doing) to see what is urgent and what is already in flight
2. Pick a realistic set of tasks for today, high priority and overdue first
3. Move the chosen tasks to "doing" with update_task where that is not already the case
4. Create a flowchart named "Plan <today's date>" with create_flowchart
5. Add one node per chosen task with batch_add_flow_nodes, linking each node via its taskId
6. Connect the nodes in working order with connect_flow_nodes (the chart is a DAG, so no cycles)

Finish with a short summary of the plan and anything that had to be left out.`, focusLine),
				},
			},
		},
	}, nil
}

func (s *Server) handleBoardSummaryPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Summarize the task board",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: `Give me a summary of my task board.

1. Read the taskflow://tasks resource (or use list_tasks) and count tasks per status and priority
2. Use list_tasks_due_soon (days=7) to find upcoming deadlines
3. Use list_flowcharts and get_flowchart_state to see which charts reference open tasks
4. Call out tasks that look stale: in "doing" with no due date, or overdue

Keep it short: a few lines on overall state, then the three most urgent items.`,
				},
			},
		},
	}, nil
}
