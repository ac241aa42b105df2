package taskio

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"taskflow/internal/domain"
)

// ── Export ─────────────────────────────────────────────────
// Serializes tasks to CSV, JSON, or YAML files under the data directory.

// ExportFormat names a supported export encoding.
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
	FormatYAML ExportFormat = "yaml"
)

// exportRow is the flat shape written by all three encoders.
type exportRow struct {
	ID       string `json:"id" yaml:"id"`
	Title    string `json:"title" yaml:"title"`
	Notes    string `json:"notes,omitempty" yaml:"notes,omitempty"`
	Status   string `json:"status" yaml:"status"`
	Priority string `json:"priority" yaml:"priority"`
	DueAt    string `json:"dueAt,omitempty" yaml:"dueAt,omitempty"`
}

func toExportRows(tasks []domain.Task) []exportRow {
	rows := make([]exportRow, 0, len(tasks))
	for _, t := range tasks {
		row := exportRow{
			ID:       t.ID,
			Title:    t.Title,
			Notes:    t.Notes,
			Status:   string(t.Status),
			Priority: string(t.Priority),
		}
		if t.DueAt != nil {
			row.DueAt = t.DueAt.Format(time.RFC3339)
		}
		rows = append(rows, row)
	}
	return rows
}

// WriteTasks writes the given tasks to path in the given format.
// The parent directory is created if missing.
func WriteTasks(path string, format ExportFormat, tasks []domain.Task) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}

	rows := toExportRows(tasks)

	switch format {
	case FormatCSV:
		return writeCSV(path, rows)
	case FormatJSON:
		return writeJSON(path, rows)
	case FormatYAML:
		return writeYAML(path, rows)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// FormatForPath guesses the export format from a file extension.
func FormatForPath(path string) (ExportFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("cannot infer export format from %q", filepath.Base(path))
	}
}

func writeCSV(path string, rows []exportRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"id", "title", "notes", "status", "priority", "dueAt"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		rec := []string{r.ID, r.Title, r.Notes, r.Status, r.Priority, r.DueAt}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

func writeJSON(path string, rows []exportRow) error {
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tasks: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func writeYAML(path string, rows []exportRow) error {
	data, err := yaml.Marshal(rows)
	if err != nil {
		return fmt.Errorf("marshal tasks: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
