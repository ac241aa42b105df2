package storage

import (
	"fmt"
	"time"

	"taskflow/internal/domain"
)

// TaskStore implements domain.TaskStore using SQLite.
type TaskStore struct {
	db *DB
}

func NewTaskStore(db *DB) *TaskStore {
	return &TaskStore{db: db}
}

const taskColumns = `id, title, notes, status, priority, due_at, sort_order, created_at, updated_at`

func scanTask(scan func(dest ...any) error) (domain.Task, error) {
	var t domain.Task
	err := scan(&t.ID, &t.Title, &t.Notes, &t.Status, &t.Priority, &t.DueAt, &t.SortOrder, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (s *TaskStore) CreateTask(t *domain.Task) error {
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	_, err := s.db.conn.Exec(
		`INSERT INTO tasks (id, title, notes, status, priority, due_at, sort_order, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Notes, t.Status, t.Priority, t.DueAt, t.SortOrder, t.CreatedAt, t.UpdatedAt,
	)
	return err
}

func (s *TaskStore) GetTask(id string) (*domain.Task, error) {
	row := s.db.conn.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return &t, nil
}

func (s *TaskStore) ListTasks() ([]domain.Task, error) {
	return s.queryTasks(`SELECT ` + taskColumns + ` FROM tasks ORDER BY sort_order ASC, created_at ASC`)
}

func (s *TaskStore) ListTasksByStatus(status domain.TaskStatus) ([]domain.Task, error) {
	return s.queryTasks(
		`SELECT `+taskColumns+` FROM tasks WHERE status = ? ORDER BY sort_order ASC, created_at ASC`,
		status,
	)
}

func (s *TaskStore) SearchTasks(query string) ([]domain.Task, error) {
	like := "%" + query + "%"
	return s.queryTasks(
		`SELECT `+taskColumns+` FROM tasks WHERE title LIKE ? OR notes LIKE ? ORDER BY sort_order ASC`,
		like, like,
	)
}

func (s *TaskStore) ListTasksDueBetween(from, to time.Time) ([]domain.Task, error) {
	return s.queryTasks(
		`SELECT `+taskColumns+` FROM tasks WHERE due_at IS NOT NULL AND due_at >= ? AND due_at < ? ORDER BY due_at ASC`,
		from, to,
	)
}

func (s *TaskStore) UpdateTask(t *domain.Task) error {
	t.UpdatedAt = time.Now()
	_, err := s.db.conn.Exec(
		`UPDATE tasks SET title = ?, notes = ?, status = ?, priority = ?, due_at = ?, sort_order = ?, updated_at = ? WHERE id = ?`,
		t.Title, t.Notes, t.Status, t.Priority, t.DueAt, t.SortOrder, t.UpdatedAt, t.ID,
	)
	return err
}

func (s *TaskStore) DeleteTask(id string) error {
	_, err := s.db.conn.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	return err
}

// ReorderTasks rewrites sort_order to match the given id order.
func (s *TaskStore) ReorderTasks(ids []string) error {
	tx, err := s.db.conn.Begin()
	if err != nil {
		return err
	}
	for i, id := range ids {
		if _, err := tx.Exec(`UPDATE tasks SET sort_order = ? WHERE id = ?`, i, id); err != nil {
			tx.Rollback()
			return fmt.Errorf("reorder task %s: %w", id, err)
		}
	}
	return tx.Commit()
}

func (s *TaskStore) CountTasks() (int, error) {
	var n int
	err := s.db.conn.QueryRow(`SELECT COUNT(*) FROM tasks`).Scan(&n)
	return n, err
}

func (s *TaskStore) queryTasks(query string, args ...any) ([]domain.Task, error) {
	rows, err := s.db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
