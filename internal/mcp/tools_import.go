package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"taskflow/internal/service"
	"taskflow/internal/taskio"

	"github.com/mark3labs/mcp-go/mcp"
)

const importTransformsDescription = `Optional JSON array of transforms applied in sequence between source and task board. Each transform has {type, config}. Available types:
- filter: {field, op (eq|neq|gt|lt|contains), value} — drop rows not matching condition
- rename: {mapping: {oldName: newName}} — rename columns
- select: {fields: ["col1","col2"]} — keep only specified columns
- compute: {columns: [{name, expression}]} — add computed columns, use {field} refs
- status_map: {field?, mapping: {sourceValue: "todo"|"doing"|"done"}, default?} — map source values to task statuses
- default_value: {field, value} — fill missing fields
- sort: {field, direction (asc|desc)} — sort rows
- limit: {count} — cap number of rows
- type_cast: {field, castType (number|string|bool)} — convert types
- dedupe: use dedupeKey param instead
Example: [{"type":"filter","config":{"field":"done","op":"eq","value":"false"}},{"type":"rename","config":{"mapping":{"summary":"title"}}}]`

func (s *Server) registerImportTools() {
	s.mcp.AddTool(mcp.NewTool("create_import_job",
		mcp.WithDescription("Create an import job that pulls tasks from an external source (CSV, JSON, YAML, HTTP, or a database query). Transforms reshape rows before they land on the board."),
		mcp.WithString("name", mcp.Description("Job name"), mcp.Required()),
		mcp.WithString("sourceType", mcp.Description("Source type (use list_import_sources to see available types)"), mcp.Required()),
		mcp.WithString("sourceConfigJSON", mcp.Description("Source configuration as JSON"), mcp.Required()),
		mcp.WithString("transformsJSON", mcp.Description(importTransformsDescription)),
		mcp.WithString("syncMode", mcp.Description("append (default) adds tasks, replace wipes the board first")),
		mcp.WithString("dedupeKey", mcp.Description("Column name for deduplication (optional)")),
		mcp.WithString("triggerType", mcp.Description("manual (default), schedule, or file_watch")),
		mcp.WithString("triggerConfig", mcp.Description("Cron expression for schedule, file path for file_watch")),
	), s.handleCreateImportJob)

	s.mcp.AddTool(mcp.NewTool("list_import_jobs",
		mcp.WithDescription("List all import jobs with their status and trigger configuration"),
	), s.handleListImportJobs)

	s.mcp.AddTool(mcp.NewTool("list_import_sources",
		mcp.WithDescription("List available import source types with their configuration schemas"),
	), s.handleListImportSources)

	s.mcp.AddTool(mcp.NewTool("run_import_job",
		mcp.WithDescription("🛑 DESTRUCTIVE: Execute an import job. In replace mode this wipes existing tasks. Requires user approval."),
		mcp.WithString("jobId", mcp.Description("Import job ID"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleRunImportJob)

	s.mcp.AddTool(mcp.NewTool("preview_import_source",
		mcp.WithDescription("Preview rows from an import source without writing anything to the board"),
		mcp.WithString("sourceType", mcp.Description("Source type"), mcp.Required()),
		mcp.WithString("sourceConfigJSON", mcp.Description("Source configuration as JSON"), mcp.Required()),
	), s.handlePreviewImportSource)

	s.mcp.AddTool(mcp.NewTool("list_import_runs",
		mcp.WithDescription("List recent run logs for an import job, newest first"),
		mcp.WithString("jobId", mcp.Description("Import job ID"), mcp.Required()),
	), s.handleListImportRuns)
}

// ── Handlers ───────────────────────────────────────────────

func (s *Server) handleCreateImportJob(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	name, _ := args["name"].(string)
	sourceType, _ := args["sourceType"].(string)
	sourceConfigStr, _ := args["sourceConfigJSON"].(string)
	if name == "" || sourceType == "" || sourceConfigStr == "" {
		return nil, fmt.Errorf("name, sourceType and sourceConfigJSON are required")
	}

	var sourceConfig map[string]any
	if err := parseJSON(sourceConfigStr, &sourceConfig); err != nil {
		return nil, fmt.Errorf("parse sourceConfig: %w", err)
	}

	// transformsJSON may come as a string or as a raw JSON array
	var transformsStr string
	switch v := args["transformsJSON"].(type) {
	case string:
		transformsStr = v
	default:
		if v != nil {
			b, _ := json.Marshal(v)
			transformsStr = string(b)
		}
	}
	var transforms []taskio.TransformConfig
	if transformsStr != "" {
		if err := parseJSON(transformsStr, &transforms); err != nil {
			return nil, fmt.Errorf("parse transforms: %w", err)
		}
	}

	input := service.CreateImportJobInput{
		Name:          name,
		SourceType:    sourceType,
		SourceConfig:  sourceConfig,
		Transforms:    transforms,
		SyncMode:      req.GetString("syncMode", ""),
		DedupeKey:     req.GetString("dedupeKey", ""),
		TriggerType:   req.GetString("triggerType", ""),
		TriggerConfig: req.GetString("triggerConfig", ""),
		Enabled:       true,
	}
	job, err := s.imports.CreateJob(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("create import job: %w", err)
	}
	return jsonResult(job)
}

func (s *Server) handleListImportJobs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobs, err := s.imports.ListJobs()
	if err != nil {
		return nil, fmt.Errorf("list import jobs: %w", err)
	}
	return jsonResult(jobs)
}

func (s *Server) handleListImportSources(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sources := s.imports.ListSources()
	return jsonResult(sources)
}

func (s *Server) handleRunImportJob(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := req.GetString("jobId", "")
	if jobID == "" {
		return nil, fmt.Errorf("jobId is required")
	}

	job, err := s.imports.GetJob(jobID)
	if err != nil {
		return nil, fmt.Errorf("get import job: %w", err)
	}

	detail := "adds tasks to the board"
	if job.SyncMode == taskio.SyncReplace {
		detail = "replaces all tasks on the board"
	}
	approved, err := s.approval.Request("run_import_job",
		fmt.Sprintf("Run import job %q (%s)", job.Name, detail))
	if err != nil || !approved {
		return textResult("Action rejected by user"), nil
	}

	result, err := s.imports.RunJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("run import job: %w", err)
	}
	return jsonResult(result)
}

func (s *Server) handlePreviewImportSource(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sourceType := req.GetString("sourceType", "")
	sourceConfigStr := req.GetString("sourceConfigJSON", "")
	if sourceType == "" || sourceConfigStr == "" {
		return nil, fmt.Errorf("sourceType and sourceConfigJSON are required")
	}

	preview, err := s.imports.PreviewSource(ctx, sourceType, sourceConfigStr)
	if err != nil {
		return nil, fmt.Errorf("preview source: %w", err)
	}
	return jsonResult(preview)
}

func (s *Server) handleListImportRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := req.GetString("jobId", "")
	if jobID == "" {
		return nil, fmt.Errorf("jobId is required")
	}
	runs, err := s.imports.ListRunLogs(jobID)
	if err != nil {
		return nil, fmt.Errorf("list run logs: %w", err)
	}
	return jsonResult(runs)
}
