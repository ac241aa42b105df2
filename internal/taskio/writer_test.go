package taskio_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"taskflow/internal/domain"
	"taskflow/internal/taskio"
)

// ─────────────────────────────────────────────────────────────
// TaskWriter tests
// Uses an in-memory TaskStore so no database is involved.
// ─────────────────────────────────────────────────────────────

type memTaskStore struct {
	tasks   []domain.Task
	deleted []string
}

func (m *memTaskStore) CreateTask(t *domain.Task) error {
	m.tasks = append(m.tasks, *t)
	return nil
}

func (m *memTaskStore) GetTask(id string) (*domain.Task, error) {
	for i := range m.tasks {
		if m.tasks[i].ID == id {
			t := m.tasks[i]
			return &t, nil
		}
	}
	return nil, fmt.Errorf("task not found")
}

func (m *memTaskStore) ListTasks() ([]domain.Task, error) {
	out := make([]domain.Task, len(m.tasks))
	copy(out, m.tasks)
	return out, nil
}

func (m *memTaskStore) ListTasksByStatus(status domain.TaskStatus) ([]domain.Task, error) {
	var out []domain.Task
	for _, t := range m.tasks {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTaskStore) SearchTasks(query string) ([]domain.Task, error) {
	var out []domain.Task
	for _, t := range m.tasks {
		if strings.Contains(t.Title, query) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTaskStore) ListTasksDueBetween(from, to time.Time) ([]domain.Task, error) {
	var out []domain.Task
	for _, t := range m.tasks {
		if t.DueAt != nil && !t.DueAt.Before(from) && t.DueAt.Before(to) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTaskStore) UpdateTask(t *domain.Task) error {
	for i := range m.tasks {
		if m.tasks[i].ID == t.ID {
			m.tasks[i] = *t
			return nil
		}
	}
	return fmt.Errorf("task not found")
}

func (m *memTaskStore) DeleteTask(id string) error {
	for i := range m.tasks {
		if m.tasks[i].ID == id {
			m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
			m.deleted = append(m.deleted, id)
			return nil
		}
	}
	return nil
}

func (m *memTaskStore) ReorderTasks(ids []string) error { return nil }

func (m *memTaskStore) CountTasks() (int, error) { return len(m.tasks), nil }

func seededStore(titles ...string) *memTaskStore {
	store := &memTaskStore{}
	for i, title := range titles {
		store.tasks = append(store.tasks, domain.Task{
			ID:        fmt.Sprintf("seed-%d", i),
			Title:     title,
			Status:    domain.TaskStatusTodo,
			Priority:  domain.TaskPriorityMedium,
			SortOrder: i,
		})
	}
	return store
}

func TestTaskWriter_Append(t *testing.T) {
	store := seededStore("existing one", "existing two")
	w := &taskio.TaskWriter{Store: store}

	written, err := w.Write(context.Background(), []taskio.Record{
		rec(map[string]any{"title": "imported"}),
	}, taskio.SyncAppend)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if written != 1 {
		t.Errorf("written = %d, want 1", written)
	}
	if len(store.tasks) != 3 {
		t.Fatalf("store holds %d tasks, want 3", len(store.tasks))
	}

	// Appended task continues the sort order after the existing rows.
	got := store.tasks[2]
	if got.Title != "imported" || got.SortOrder != 2 {
		t.Errorf("appended task = %q order %d, want %q order 2", got.Title, got.SortOrder, "imported")
	}
}

func TestTaskWriter_Replace(t *testing.T) {
	store := seededStore("old a", "old b")
	w := &taskio.TaskWriter{Store: store}

	written, err := w.Write(context.Background(), []taskio.Record{
		rec(map[string]any{"title": "new a"}),
		rec(map[string]any{"title": "new b"}),
		rec(map[string]any{"title": "new c"}),
	}, taskio.SyncReplace)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if written != 3 {
		t.Errorf("written = %d, want 3", written)
	}
	if len(store.deleted) != 2 {
		t.Errorf("deleted %d existing tasks, want 2", len(store.deleted))
	}
	if len(store.tasks) != 3 {
		t.Fatalf("store holds %d tasks, want 3", len(store.tasks))
	}
	if store.tasks[0].SortOrder != 0 {
		t.Errorf("replace should restart sort order at 0, got %d", store.tasks[0].SortOrder)
	}
}

func TestTaskWriter_FieldMapping(t *testing.T) {
	store := &memTaskStore{}
	w := &taskio.TaskWriter{Store: store}

	_, err := w.Write(context.Background(), []taskio.Record{
		rec(map[string]any{
			"title":    "review patch",
			"notes":    "see thread",
			"status":   "doing",
			"priority": "high",
			"dueAt":    "2026-09-15",
		}),
	}, taskio.SyncAppend)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	got := store.tasks[0]
	if got.ID == "" {
		t.Error("writer should mint a task id")
	}
	if got.Status != domain.TaskStatusDoing || got.Priority != domain.TaskPriorityHigh {
		t.Errorf("status/priority = %s/%s", got.Status, got.Priority)
	}
	if got.Notes != "see thread" {
		t.Errorf("notes = %q", got.Notes)
	}
	if got.DueAt == nil || got.DueAt.Format("2006-01-02") != "2026-09-15" {
		t.Errorf("dueAt = %v", got.DueAt)
	}
}

func TestTaskWriter_DefaultsApplied(t *testing.T) {
	store := &memTaskStore{}
	w := &taskio.TaskWriter{Store: store}

	_, err := w.Write(context.Background(), []taskio.Record{
		rec(map[string]any{"title": "bare"}),
	}, taskio.SyncAppend)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	got := store.tasks[0]
	if got.Status != domain.TaskStatusTodo {
		t.Errorf("default status = %s, want todo", got.Status)
	}
	if got.Priority != domain.TaskPriorityMedium {
		t.Errorf("default priority = %s, want medium", got.Priority)
	}
	if got.DueAt != nil {
		t.Errorf("dueAt should stay nil, got %v", got.DueAt)
	}
}

func TestTaskWriter_EmptyBatchTouchesNothing(t *testing.T) {
	store := seededStore("keep me")
	w := &taskio.TaskWriter{Store: store}

	written, err := w.Write(context.Background(), nil, taskio.SyncReplace)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if written != 0 {
		t.Errorf("written = %d, want 0", written)
	}
	if len(store.tasks) != 1 || len(store.deleted) != 0 {
		t.Error("empty replace batch must not delete existing tasks")
	}
}

func TestTaskWriter_CancelledContext(t *testing.T) {
	store := &memTaskStore{}
	w := &taskio.TaskWriter{Store: store}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Write(ctx, []taskio.Record{
		rec(map[string]any{"title": "never lands"}),
	}, taskio.SyncAppend)
	if err == nil {
		t.Fatal("expected context error")
	}
}
