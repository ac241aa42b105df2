package app

import (
	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"taskflow/internal/service"
	"taskflow/internal/taskio"
	_ "taskflow/internal/taskio/sources" // register all sources via init()
)

// ============================================================
// Import jobs
// ============================================================

func (a *App) CreateImportJob(input service.CreateImportJobInput) (*taskio.ImportJob, error) {
	return a.imports.CreateJob(a.ctx, input)
}

func (a *App) GetImportJob(id string) (*taskio.ImportJob, error) {
	return a.imports.GetJob(id)
}

func (a *App) ListImportJobs() ([]taskio.ImportJob, error) {
	return a.imports.ListJobs()
}

func (a *App) UpdateImportJob(id string, input service.CreateImportJobInput) error {
	return a.imports.UpdateJob(a.ctx, id, input)
}

func (a *App) DeleteImportJob(id string) error {
	return a.imports.DeleteJob(a.ctx, id)
}

// RunImportJob executes a job immediately, regardless of its trigger.
func (a *App) RunImportJob(id string) (*taskio.RunResult, error) {
	return a.imports.RunJob(a.ctx, id)
}

// PreviewImportSource reads a handful of rows from a source without
// touching the board.
func (a *App) PreviewImportSource(sourceType, sourceConfigJSON string) (*service.PreviewResult, error) {
	return a.imports.PreviewSource(a.ctx, sourceType, sourceConfigJSON)
}

// DiscoverImportSchema returns the source's column names and types
// without reading data. Used by the mapping editor for autocomplete.
func (a *App) DiscoverImportSchema(sourceType, sourceConfigJSON string) (*taskio.Schema, error) {
	return a.imports.DiscoverSchema(a.ctx, sourceType, sourceConfigJSON)
}

func (a *App) ListImportRunLogs(jobID string) ([]taskio.RunLog, error) {
	return a.imports.ListRunLogs(jobID)
}

func (a *App) ListImportSources() []taskio.SourceSpec {
	return a.imports.ListSources()
}

// RestartImportWatchers re-arms schedule and file-watch triggers after
// job edits.
func (a *App) RestartImportWatchers() {
	a.imports.RestartWatchers(a.ctx)
}

// ── File picker ────────────────────────────────────────────

// PickImportFile opens a native file dialog for selecting data files.
func (a *App) PickImportFile() (string, error) {
	path, err := wailsRuntime.OpenFileDialog(a.ctx, wailsRuntime.OpenDialogOptions{
		Title: "Select Data File",
		Filters: []wailsRuntime.FileFilter{
			{DisplayName: "CSV Files", Pattern: "*.csv;*.tsv"},
			{DisplayName: "JSON Files", Pattern: "*.json;*.jsonl"},
			{DisplayName: "YAML Files", Pattern: "*.yaml;*.yml"},
			{DisplayName: "All Files", Pattern: "*.*"},
		},
	})
	return path, err
}
