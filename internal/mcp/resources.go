package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerResources() {
	// ── taskflow://tasks ───────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		"taskflow://tasks",
		"All Tasks",
		mcp.WithMIMEType("application/json"),
	), s.handleTasksResource)

	// ── taskflow://flowcharts ──────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		"taskflow://flowcharts",
		"All Flowcharts",
		mcp.WithMIMEType("application/json"),
	), s.handleFlowchartsResource)

	// ── taskflow://flowchart/{id}/state ────────────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"taskflow://flowchart/{id}/state",
			"Flowchart State",
		),
		s.handleFlowchartStateResource,
	)
}

func (s *Server) handleTasksResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	tasks, err := s.tasks.ListTasks()
	if err != nil {
		return nil, err
	}

	type taskSummary struct {
		ID       string     `json:"id"`
		Title    string     `json:"title"`
		Status   string     `json:"status"`
		Priority string     `json:"priority"`
		DueAt    *time.Time `json:"dueAt,omitempty"`
	}

	var summaries []taskSummary
	for _, t := range tasks {
		summaries = append(summaries, taskSummary{
			ID:       t.ID,
			Title:    t.Title,
			Status:   string(t.Status),
			Priority: string(t.Priority),
			DueAt:    t.DueAt,
		})
	}

	data, _ := json.MarshalIndent(summaries, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "taskflow://tasks",
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleFlowchartsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	charts, err := s.flows.ListFlowcharts()
	if err != nil {
		return nil, err
	}

	type chartSummary struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	var summaries []chartSummary
	for _, c := range charts {
		summaries = append(summaries, chartSummary{ID: c.ID, Name: c.Name})
	}

	data, _ := json.MarshalIndent(summaries, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "taskflow://flowcharts",
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleFlowchartStateResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	flowchartID := extractFlowchartIDFromURI(uri)
	if flowchartID == "" {
		return nil, fmt.Errorf("could not extract flowchart ID from URI: %s", uri)
	}

	view, err := s.flows.OpenFlowchart(flowchartID)
	if err != nil {
		return nil, err
	}

	data, _ := json.MarshalIndent(view, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// extractFlowchartIDFromURI extracts the ID from "taskflow://flowchart/{id}/state".
func extractFlowchartIDFromURI(uri string) string {
	const prefix = "taskflow://flowchart/"
	const suffix = "/state"
	if !strings.HasPrefix(uri, prefix) || !strings.HasSuffix(uri, suffix) {
		return ""
	}
	id := strings.TrimSuffix(strings.TrimPrefix(uri, prefix), suffix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
