package service_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"taskflow/internal/service"
)

// ─────────────────────────────────────────────────────────────
// TaskService unit tests
// Backed by the in-memory fake store; no SQLite involved.
// ─────────────────────────────────────────────────────────────

func newTaskService(t *testing.T) (*service.TaskService, *fakeTaskStore, *service.MockEmitter) {
	t.Helper()
	store := &fakeTaskStore{}
	emitter := &service.MockEmitter{}
	return service.NewTaskService(store, t.TempDir(), emitter), store, emitter
}

func TestTaskService_CreateTask_Defaults(t *testing.T) {
	svc, _, emitter := newTaskService(t)

	task, err := svc.CreateTask(context.Background(), service.CreateTaskInput{Title: "  write release notes  "})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.ID == "" {
		t.Error("expected a minted task id")
	}
	if task.Title != "write release notes" {
		t.Errorf("expected trimmed title, got %q", task.Title)
	}
	if string(task.Status) != "todo" || string(task.Priority) != "medium" {
		t.Errorf("expected todo/medium defaults, got %s/%s", task.Status, task.Priority)
	}
	if task.SortOrder != 0 {
		t.Errorf("expected first task at sort order 0, got %d", task.SortOrder)
	}
	if len(emitter.Events) != 1 || emitter.Events[0].Event != "tasks:changed" {
		t.Errorf("expected one tasks:changed event, got %+v", emitter.Events)
	}
}

func TestTaskService_CreateTask_AppendsToEnd(t *testing.T) {
	svc, _, _ := newTaskService(t)
	ctx := context.Background()

	svc.CreateTask(ctx, service.CreateTaskInput{Title: "first"})
	second, err := svc.CreateTask(ctx, service.CreateTaskInput{Title: "second"})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if second.SortOrder != 1 {
		t.Errorf("expected sort order 1, got %d", second.SortOrder)
	}
}

func TestTaskService_CreateTask_Validation(t *testing.T) {
	svc, _, emitter := newTaskService(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		input service.CreateTaskInput
	}{
		{"empty title", service.CreateTaskInput{Title: "   "}},
		{"bad status", service.CreateTaskInput{Title: "x", Status: "blocked"}},
		{"bad priority", service.CreateTaskInput{Title: "x", Priority: "urgent"}},
		{"bad due date", service.CreateTaskInput{Title: "x", DueAt: "tomorrow"}},
	}
	for _, tc := range cases {
		if _, err := svc.CreateTask(ctx, tc.input); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
	if len(emitter.Events) != 0 {
		t.Errorf("expected no events on rejected creates, got %d", len(emitter.Events))
	}
}

func TestTaskService_UpdateTask_ClearsDueDate(t *testing.T) {
	svc, _, _ := newTaskService(t)
	ctx := context.Background()

	due := time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339)
	task, err := svc.CreateTask(ctx, service.CreateTaskInput{Title: "ship it", DueAt: due})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.DueAt == nil {
		t.Fatal("expected due date set")
	}

	updated, err := svc.UpdateTask(ctx, task.ID, service.CreateTaskInput{Title: "ship it"})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if updated.DueAt != nil {
		t.Error("expected empty DueAt input to clear the due date")
	}
}

func TestTaskService_SetTaskStatus(t *testing.T) {
	svc, store, emitter := newTaskService(t)
	ctx := context.Background()

	task, _ := svc.CreateTask(ctx, service.CreateTaskInput{Title: "triage bugs"})

	moved, err := svc.SetTaskStatus(ctx, task.ID, "doing")
	if err != nil {
		t.Fatalf("SetTaskStatus: %v", err)
	}
	if string(moved.Status) != "doing" {
		t.Errorf("expected doing, got %s", moved.Status)
	}
	stored, _ := store.GetTask(task.ID)
	if string(stored.Status) != "doing" {
		t.Errorf("expected store updated, got %s", stored.Status)
	}

	if _, err := svc.SetTaskStatus(ctx, task.ID, "paused"); err == nil {
		t.Error("expected error for unknown status")
	}
	// create + move = 2 events
	if len(emitter.Events) != 2 {
		t.Errorf("expected 2 events, got %d", len(emitter.Events))
	}
}

func TestTaskService_SearchTasks_EmptyQueryListsAll(t *testing.T) {
	svc, _, _ := newTaskService(t)
	ctx := context.Background()

	svc.CreateTask(ctx, service.CreateTaskInput{Title: "alpha"})
	svc.CreateTask(ctx, service.CreateTaskInput{Title: "beta"})

	all, err := svc.SearchTasks("   ")
	if err != nil {
		t.Fatalf("SearchTasks: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected blank query to list all 2 tasks, got %d", len(all))
	}

	hits, err := svc.SearchTasks("alp")
	if err != nil {
		t.Fatalf("SearchTasks: %v", err)
	}
	if len(hits) != 1 || hits[0].Title != "alpha" {
		t.Errorf("expected one hit for alpha, got %+v", hits)
	}
}

func TestTaskService_ListTasksDueSoon(t *testing.T) {
	svc, _, _ := newTaskService(t)
	ctx := context.Background()

	soon := time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339)
	far := time.Now().AddDate(0, 2, 0).UTC().Format(time.RFC3339)
	svc.CreateTask(ctx, service.CreateTaskInput{Title: "due soon", DueAt: soon})
	svc.CreateTask(ctx, service.CreateTaskInput{Title: "due later", DueAt: far})
	svc.CreateTask(ctx, service.CreateTaskInput{Title: "no due date"})

	due, err := svc.ListTasksDueSoon(7)
	if err != nil {
		t.Fatalf("ListTasksDueSoon: %v", err)
	}
	if len(due) != 1 || due[0].Title != "due soon" {
		t.Errorf("expected only the 48h task, got %+v", due)
	}
}

func TestTaskService_ReorderTasks(t *testing.T) {
	svc, store, _ := newTaskService(t)
	ctx := context.Background()

	a, _ := svc.CreateTask(ctx, service.CreateTaskInput{Title: "a"})
	b, _ := svc.CreateTask(ctx, service.CreateTaskInput{Title: "b"})

	if err := svc.ReorderTasks(ctx, []string{b.ID, a.ID}); err != nil {
		t.Fatalf("ReorderTasks: %v", err)
	}
	gotA, _ := store.GetTask(a.ID)
	gotB, _ := store.GetTask(b.ID)
	if gotB.SortOrder != 0 || gotA.SortOrder != 1 {
		t.Errorf("expected b before a, got a=%d b=%d", gotA.SortOrder, gotB.SortOrder)
	}

	// Empty reorder is a no-op, not an error.
	if err := svc.ReorderTasks(ctx, nil); err != nil {
		t.Errorf("expected nil for empty reorder, got %v", err)
	}
}

func TestTaskService_ExportTasks(t *testing.T) {
	store := &fakeTaskStore{}
	dataDir := t.TempDir()
	svc := service.NewTaskService(store, dataDir, &service.MockEmitter{})
	ctx := context.Background()

	svc.CreateTask(ctx, service.CreateTaskInput{Title: "export me"})

	path, err := svc.ExportTasks("tasks.json")
	if err != nil {
		t.Fatalf("ExportTasks: %v", err)
	}
	if filepath.Dir(path) != filepath.Join(dataDir, "exports") {
		t.Errorf("expected file under exports dir, got %s", path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(raw), "export me") {
		t.Errorf("expected exported task title in file, got %s", raw)
	}

	if _, err := svc.ExportTasks("tasks.xml"); err == nil {
		t.Error("expected error for unsupported export format")
	}
}

func TestTaskService_ExportTasks_StripsDirectories(t *testing.T) {
	store := &fakeTaskStore{}
	dataDir := t.TempDir()
	svc := service.NewTaskService(store, dataDir, &service.MockEmitter{})

	path, err := svc.ExportTasks("../../escape.csv")
	if err != nil {
		t.Fatalf("ExportTasks: %v", err)
	}
	if filepath.Dir(path) != filepath.Join(dataDir, "exports") {
		t.Errorf("expected path confined to exports dir, got %s", path)
	}
}

func TestTaskService_DeleteTask(t *testing.T) {
	svc, store, _ := newTaskService(t)
	ctx := context.Background()

	task, _ := svc.CreateTask(ctx, service.CreateTaskInput{Title: "doomed"})
	if err := svc.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if n, _ := store.CountTasks(); n != 0 {
		t.Errorf("expected empty store, got %d", n)
	}
	if err := svc.DeleteTask(ctx, "missing"); err == nil {
		t.Error("expected error deleting unknown task")
	}
}
