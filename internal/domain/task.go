package domain

import "time"

type TaskStatus string

const (
	TaskStatusTodo  TaskStatus = "todo"
	TaskStatusDoing TaskStatus = "doing"
	TaskStatusDone  TaskStatus = "done"
)

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

type Task struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	Notes     string       `json:"notes"`
	Status    TaskStatus   `json:"status"`
	Priority  TaskPriority `json:"priority"`
	DueAt     *time.Time   `json:"dueAt,omitempty"`
	SortOrder int          `json:"sortOrder"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

type TaskStore interface {
	CreateTask(t *Task) error
	GetTask(id string) (*Task, error)
	ListTasks() ([]Task, error)
	ListTasksByStatus(status TaskStatus) ([]Task, error)
	SearchTasks(query string) ([]Task, error)
	ListTasksDueBetween(from, to time.Time) ([]Task, error)
	UpdateTask(t *Task) error
	DeleteTask(id string) error
	ReorderTasks(ids []string) error
	CountTasks() (int, error)
}

// ValidTaskStatus reports whether s is one of the known statuses.
func ValidTaskStatus(s TaskStatus) bool {
	switch s {
	case TaskStatusTodo, TaskStatusDoing, TaskStatusDone:
		return true
	}
	return false
}

// ValidTaskPriority reports whether p is one of the known priorities.
func ValidTaskPriority(p TaskPriority) bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	}
	return false
}
