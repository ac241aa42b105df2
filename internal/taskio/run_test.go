package taskio_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"taskflow/internal/taskio"
)

// ─────────────────────────────────────────────────────────────
// Engine tests
// A stub source feeds fixed records so no file or network I/O
// is involved.
// ─────────────────────────────────────────────────────────────

type stubSource struct {
	records []taskio.Record
	readErr error
}

func (s *stubSource) Spec() taskio.SourceSpec {
	return taskio.SourceSpec{Type: "stub", Label: "Stub"}
}

func (s *stubSource) Discover(ctx context.Context, cfg taskio.SourceConfig) (*taskio.Schema, error) {
	return &taskio.Schema{Fields: []taskio.Field{{Name: "title", Type: "text"}}}, nil
}

func (s *stubSource) Read(ctx context.Context, cfg taskio.SourceConfig) (<-chan taskio.Record, <-chan error) {
	out := make(chan taskio.Record, len(s.records))
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		for _, r := range s.records {
			out <- r
		}
		if s.readErr != nil {
			errCh <- s.readErr
		}
	}()
	return out, errCh
}

// feed swaps the stub source's records. The registry keeps the same
// instance, so each test re-registers to avoid leakage between tests.
func feed(records []taskio.Record, readErr error) {
	taskio.RegisterSource(&stubSource{records: records, readErr: readErr})
}

func stubJob(transforms ...taskio.TransformConfig) *taskio.ImportJob {
	return &taskio.ImportJob{
		ID:         "job-1",
		Name:       "stub import",
		SourceType: "stub",
		SourceCfg:  taskio.SourceConfig{},
		Transforms: transforms,
		SyncMode:   taskio.SyncAppend,
	}
}

func TestEngine_RunImport_HappyPath(t *testing.T) {
	feed([]taskio.Record{
		rec(map[string]any{"title": "one"}),
		rec(map[string]any{"title": "two"}),
	}, nil)

	store := &memTaskStore{}
	engine := &taskio.Engine{Dest: &taskio.TaskWriter{Store: store}}

	result, err := engine.RunImport(context.Background(), stubJob())
	if err != nil {
		t.Fatalf("RunImport: %v", err)
	}
	if result.Status != "success" {
		t.Errorf("status = %q", result.Status)
	}
	if result.RowsRead != 2 || result.RowsWritten != 2 || result.RowsSkipped != 0 {
		t.Errorf("read/written/skipped = %d/%d/%d, want 2/2/0",
			result.RowsRead, result.RowsWritten, result.RowsSkipped)
	}
	if len(store.tasks) != 2 {
		t.Errorf("store holds %d tasks", len(store.tasks))
	}
}

func TestEngine_RunImport_SkipsInvalidRecords(t *testing.T) {
	feed([]taskio.Record{
		rec(map[string]any{"title": "good"}),
		rec(map[string]any{"notes": "no title here"}),
		rec(map[string]any{"title": "also good"}),
	}, nil)

	store := &memTaskStore{}
	engine := &taskio.Engine{Dest: &taskio.TaskWriter{Store: store}}

	result, err := engine.RunImport(context.Background(), stubJob())
	if err != nil {
		t.Fatalf("RunImport: %v", err)
	}
	if result.Status != "success" {
		t.Errorf("status = %q, invalid rows must not fail the run", result.Status)
	}
	if result.RowsSkipped != 1 || result.RowsWritten != 2 {
		t.Errorf("skipped/written = %d/%d, want 1/2", result.RowsSkipped, result.RowsWritten)
	}
	if !strings.Contains(result.Error, "skipped 1 invalid record") {
		t.Errorf("result.Error = %q, want skip summary", result.Error)
	}
}

func TestEngine_RunImport_TransformChain(t *testing.T) {
	feed([]taskio.Record{
		rec(map[string]any{"summary": "rotate certs", "state": "In Progress"}),
		rec(map[string]any{"summary": "old chore", "state": "Archived"}),
	}, nil)

	store := &memTaskStore{}
	engine := &taskio.Engine{Dest: &taskio.TaskWriter{Store: store}}

	job := stubJob(
		taskio.TransformConfig{Type: "filter", Config: map[string]any{
			"field": "state", "op": "neq", "value": "Archived",
		}},
		taskio.TransformConfig{Type: "rename", Config: map[string]any{
			"mapping": map[string]any{"summary": "title", "state": "status"},
		}},
		taskio.TransformConfig{Type: "status_map", Config: map[string]any{
			"field":   "status",
			"mapping": map[string]any{"In Progress": "doing"},
			"default": "todo",
		}},
	)

	result, err := engine.RunImport(context.Background(), job)
	if err != nil {
		t.Fatalf("RunImport: %v", err)
	}
	if result.RowsRead != 2 || result.RowsWritten != 1 {
		t.Errorf("read/written = %d/%d, want 2/1", result.RowsRead, result.RowsWritten)
	}
	if got := store.tasks[0]; got.Title != "rotate certs" || string(got.Status) != "doing" {
		t.Errorf("task = %q/%s", got.Title, got.Status)
	}
}

func TestEngine_RunImport_DedupeKey(t *testing.T) {
	feed([]taskio.Record{
		rec(map[string]any{"title": "same"}),
		rec(map[string]any{"title": "same"}),
		rec(map[string]any{"title": "different"}),
	}, nil)

	store := &memTaskStore{}
	engine := &taskio.Engine{Dest: &taskio.TaskWriter{Store: store}}

	job := stubJob()
	job.DedupeKey = "title"

	result, err := engine.RunImport(context.Background(), job)
	if err != nil {
		t.Fatalf("RunImport: %v", err)
	}
	if result.RowsWritten != 2 {
		t.Errorf("written = %d, want 2 after dedupe", result.RowsWritten)
	}
}

func TestEngine_RunImport_SourceError(t *testing.T) {
	feed(nil, fmt.Errorf("connection refused"))

	store := &memTaskStore{}
	engine := &taskio.Engine{Dest: &taskio.TaskWriter{Store: store}}

	result, err := engine.RunImport(context.Background(), stubJob())
	if err == nil {
		t.Fatal("expected source error to surface")
	}
	if result.Status != "error" {
		t.Errorf("status = %q, want error", result.Status)
	}
	if !strings.Contains(result.Error, "read:") {
		t.Errorf("result.Error = %q, want read stage prefix", result.Error)
	}
}

func TestEngine_RunImport_UnknownSource(t *testing.T) {
	engine := &taskio.Engine{Dest: &taskio.TaskWriter{Store: &memTaskStore{}}}
	job := stubJob()
	job.SourceType = "no_such_source"

	if _, err := engine.RunImport(context.Background(), job); err == nil {
		t.Fatal("expected unknown source type error")
	}
}

func TestEngine_Preview(t *testing.T) {
	feed([]taskio.Record{
		rec(map[string]any{"title": "a"}),
		rec(map[string]any{"title": "b"}),
		rec(map[string]any{"title": "c"}),
	}, nil)

	engine := &taskio.Engine{}
	records, schema, err := engine.Preview(context.Background(), "stub", taskio.SourceConfig{}, 2)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("preview returned %d records, want capped 2", len(records))
	}
	if schema == nil || len(schema.Fields) == 0 {
		t.Error("preview should include the discovered schema")
	}
}
