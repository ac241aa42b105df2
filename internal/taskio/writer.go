package taskio

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskflow/internal/domain"
)

// ── Writer ─────────────────────────────────────────────────
// The write side of an import: validated records become tasks.

// SyncMode determines how records are written into the task list.
type SyncMode string

const (
	SyncReplace SyncMode = "replace" // delete all existing tasks, insert fresh
	SyncAppend  SyncMode = "append"  // add tasks without deleting existing
)

// Destination writes records into a target.
type Destination interface {
	Write(ctx context.Context, records []Record, mode SyncMode) (int, error)
}

// TaskWriter implements Destination over the task store.
type TaskWriter struct {
	Store domain.TaskStore
}

func (w *TaskWriter) Write(ctx context.Context, records []Record, mode SyncMode) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	startOrder := 0
	if mode == SyncReplace {
		existing, err := w.Store.ListTasks()
		if err != nil {
			return 0, fmt.Errorf("list existing: %w", err)
		}
		for _, t := range existing {
			if err := w.Store.DeleteTask(t.ID); err != nil {
				return 0, fmt.Errorf("clear target: %w", err)
			}
		}
	} else {
		count, err := w.Store.CountTasks()
		if err != nil {
			return 0, fmt.Errorf("count existing: %w", err)
		}
		startOrder = count
	}

	written := 0
	for i, rec := range records {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		task := recordToTask(rec)
		task.SortOrder = startOrder + i
		if err := w.Store.CreateTask(task); err != nil {
			return written, fmt.Errorf("create task %d: %w", i, err)
		}
		written++
	}

	return written, nil
}

// recordToTask maps the well-known record fields onto a task. Validation
// has already run, so title is present and status/priority, when set, are
// legal values.
func recordToTask(rec Record) *domain.Task {
	task := &domain.Task{
		ID:       uuid.New().String(),
		Status:   domain.TaskStatusTodo,
		Priority: domain.TaskPriorityMedium,
	}
	if v, ok := rec.Data["title"]; ok {
		task.Title = fmt.Sprint(v)
	}
	if v, ok := rec.Data["notes"]; ok && v != nil {
		task.Notes = fmt.Sprint(v)
	}
	if v, ok := rec.Data["status"]; ok && v != nil {
		task.Status = domain.TaskStatus(fmt.Sprint(v))
	}
	if v, ok := rec.Data["priority"]; ok && v != nil {
		task.Priority = domain.TaskPriority(fmt.Sprint(v))
	}
	if v, ok := rec.Data["dueAt"]; ok && v != nil {
		if due := parseDue(fmt.Sprint(v)); due != nil {
			task.DueAt = due
		}
	}
	return task
}

// parseDue accepts RFC 3339 timestamps and bare dates.
func parseDue(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
