package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskflow/internal/domain"
	"taskflow/internal/taskio"
)

// ─────────────────────────────────────────────────────────────
// Task Service — business logic for the todo list
// ─────────────────────────────────────────────────────────────

// TaskService manages the lifecycle of tasks.
type TaskService struct {
	store   domain.TaskStore
	dataDir string
	emitter EventEmitter
}

// NewTaskService creates a TaskService.
func NewTaskService(store domain.TaskStore, dataDir string, emitter EventEmitter) *TaskService {
	return &TaskService{store: store, dataDir: dataDir, emitter: emitter}
}

// CreateTaskInput is the service-layer DTO for creating/updating tasks.
type CreateTaskInput struct {
	Title    string `json:"title"`
	Notes    string `json:"notes"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
	DueAt    string `json:"dueAt"` // RFC 3339 or empty
}

func (s *TaskService) CreateTask(ctx context.Context, input CreateTaskInput) (*domain.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("task title is required")
	}

	t := &domain.Task{
		ID:       uuid.New().String(),
		Title:    title,
		Notes:    input.Notes,
		Status:   domain.TaskStatusTodo,
		Priority: domain.TaskPriorityMedium,
	}
	if input.Status != "" {
		if !domain.ValidTaskStatus(domain.TaskStatus(input.Status)) {
			return nil, fmt.Errorf("unknown task status %q", input.Status)
		}
		t.Status = domain.TaskStatus(input.Status)
	}
	if input.Priority != "" {
		if !domain.ValidTaskPriority(domain.TaskPriority(input.Priority)) {
			return nil, fmt.Errorf("unknown task priority %q", input.Priority)
		}
		t.Priority = domain.TaskPriority(input.Priority)
	}
	if input.DueAt != "" {
		due, err := time.Parse(time.RFC3339, input.DueAt)
		if err != nil {
			return nil, fmt.Errorf("parse due date: %w", err)
		}
		t.DueAt = &due
	}

	// New tasks go to the end of the list.
	count, err := s.store.CountTasks()
	if err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}
	t.SortOrder = count

	if err := s.store.CreateTask(t); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	s.emitChanged(ctx)
	return t, nil
}

func (s *TaskService) GetTask(id string) (*domain.Task, error) {
	return s.store.GetTask(id)
}

func (s *TaskService) ListTasks() ([]domain.Task, error) {
	return s.store.ListTasks()
}

func (s *TaskService) ListTasksByStatus(status string) ([]domain.Task, error) {
	if !domain.ValidTaskStatus(domain.TaskStatus(status)) {
		return nil, fmt.Errorf("unknown task status %q", status)
	}
	return s.store.ListTasksByStatus(domain.TaskStatus(status))
}

func (s *TaskService) SearchTasks(query string) ([]domain.Task, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.store.ListTasks()
	}
	return s.store.SearchTasks(query)
}

// ListTasksDueSoon returns tasks due within the given number of days.
func (s *TaskService) ListTasksDueSoon(days int) ([]domain.Task, error) {
	if days <= 0 {
		days = 7
	}
	now := time.Now()
	return s.store.ListTasksDueBetween(now, now.AddDate(0, 0, days))
}

func (s *TaskService) UpdateTask(ctx context.Context, id string, input CreateTaskInput) (*domain.Task, error) {
	t, err := s.store.GetTask(id)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("task title is required")
	}
	t.Title = title
	t.Notes = input.Notes

	if input.Status != "" {
		if !domain.ValidTaskStatus(domain.TaskStatus(input.Status)) {
			return nil, fmt.Errorf("unknown task status %q", input.Status)
		}
		t.Status = domain.TaskStatus(input.Status)
	}
	if input.Priority != "" {
		if !domain.ValidTaskPriority(domain.TaskPriority(input.Priority)) {
			return nil, fmt.Errorf("unknown task priority %q", input.Priority)
		}
		t.Priority = domain.TaskPriority(input.Priority)
	}
	t.DueAt = nil
	if input.DueAt != "" {
		due, err := time.Parse(time.RFC3339, input.DueAt)
		if err != nil {
			return nil, fmt.Errorf("parse due date: %w", err)
		}
		t.DueAt = &due
	}

	if err := s.store.UpdateTask(t); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	s.emitChanged(ctx)
	return t, nil
}

// SetTaskStatus moves a task between the todo/doing/done columns.
func (s *TaskService) SetTaskStatus(ctx context.Context, id, status string) (*domain.Task, error) {
	if !domain.ValidTaskStatus(domain.TaskStatus(status)) {
		return nil, fmt.Errorf("unknown task status %q", status)
	}
	t, err := s.store.GetTask(id)
	if err != nil {
		return nil, err
	}
	t.Status = domain.TaskStatus(status)
	if err := s.store.UpdateTask(t); err != nil {
		return nil, fmt.Errorf("update task status: %w", err)
	}
	s.emitChanged(ctx)
	return t, nil
}

func (s *TaskService) DeleteTask(ctx context.Context, id string) error {
	if err := s.store.DeleteTask(id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	s.emitChanged(ctx)
	return nil
}

// ReorderTasks persists a new manual ordering for the whole list.
func (s *TaskService) ReorderTasks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.store.ReorderTasks(ids); err != nil {
		return fmt.Errorf("reorder tasks: %w", err)
	}
	s.emitChanged(ctx)
	return nil
}

// ExportTasks writes the current task list to a file under the exports
// directory. The format is inferred from the file name extension.
func (s *TaskService) ExportTasks(fileName string) (string, error) {
	format, err := taskio.FormatForPath(fileName)
	if err != nil {
		return "", err
	}
	tasks, err := s.store.ListTasks()
	if err != nil {
		return "", fmt.Errorf("list tasks: %w", err)
	}
	path := filepath.Join(s.dataDir, "exports", filepath.Base(fileName))
	if err := taskio.WriteTasks(path, format, tasks); err != nil {
		return "", err
	}
	return path, nil
}

func (s *TaskService) emitChanged(ctx context.Context) {
	if s.emitter != nil {
		s.emitter.Emit(ctx, "tasks:changed", nil)
	}
}
