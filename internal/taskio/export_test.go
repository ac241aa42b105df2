package taskio_test

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"taskflow/internal/domain"
	"taskflow/internal/taskio"
)

// ─────────────────────────────────────────────────────────────
// Task export tests
// ─────────────────────────────────────────────────────────────

func exportFixture() []domain.Task {
	due := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	return []domain.Task{
		{ID: "t1", Title: "write report", Status: domain.TaskStatusDoing, Priority: domain.TaskPriorityHigh, DueAt: &due},
		{ID: "t2", Title: "file expenses", Status: domain.TaskStatusTodo, Priority: domain.TaskPriorityLow},
	}
}

func TestWriteTasks_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.csv")
	if err := taskio.WriteTasks(path, taskio.FormatCSV, exportFixture()); err != nil {
		t.Fatalf("WriteTasks: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parse export: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(rows))
	}
	if rows[0][1] != "title" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][1] != "write report" || rows[1][3] != "doing" {
		t.Errorf("row 1 = %v", rows[1])
	}
	if rows[1][5] != "2026-09-01T12:00:00Z" {
		t.Errorf("dueAt column = %q", rows[1][5])
	}
	if rows[2][5] != "" {
		t.Errorf("task without due date should export empty dueAt, got %q", rows[2][5])
	}
}

func TestWriteTasks_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	if err := taskio.WriteTasks(path, taskio.FormatJSON, exportFixture()); err != nil {
		t.Fatalf("WriteTasks: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}

	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		t.Fatalf("parse export: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0]["title"] != "write report" || rows[0]["priority"] != "high" {
		t.Errorf("row 0 = %v", rows[0])
	}
	if _, exists := rows[1]["dueAt"]; exists {
		t.Error("empty dueAt should be omitted from JSON")
	}
}

func TestWriteTasks_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	if err := taskio.WriteTasks(path, taskio.FormatYAML, exportFixture()); err != nil {
		t.Fatalf("WriteTasks: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}

	var rows []map[string]any
	if err := yaml.Unmarshal(data, &rows); err != nil {
		t.Fatalf("parse export: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[1]["title"] != "file expenses" || rows[1]["status"] != "todo" {
		t.Errorf("row 1 = %v", rows[1])
	}
}

func TestWriteTasks_UnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.xml")
	err := taskio.WriteTasks(path, taskio.ExportFormat("xml"), exportFixture())
	if err == nil {
		t.Fatal("expected unsupported format error")
	}
	if !strings.Contains(err.Error(), "unsupported export format") {
		t.Errorf("err = %v", err)
	}
}

func TestFormatForPath(t *testing.T) {
	tests := []struct {
		path    string
		want    taskio.ExportFormat
		wantErr bool
	}{
		{"out/tasks.csv", taskio.FormatCSV, false},
		{"tasks.JSON", taskio.FormatJSON, false},
		{"backup.yml", taskio.FormatYAML, false},
		{"backup.yaml", taskio.FormatYAML, false},
		{"tasks.txt", "", true},
	}
	for _, tt := range tests {
		got, err := taskio.FormatForPath(tt.path)
		if tt.wantErr {
			if err == nil {
				t.Errorf("FormatForPath(%q) expected error", tt.path)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("FormatForPath(%q) = %v, %v", tt.path, got, err)
		}
	}
}
