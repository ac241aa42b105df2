package service_test

import (
	"fmt"
	"strings"
	"time"

	"taskflow/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// Shared in-memory fakes
// Mirror the SQLite stores closely enough for service-level tests.
// ─────────────────────────────────────────────────────────────

type fakeTaskStore struct {
	tasks []domain.Task
}

func (s *fakeTaskStore) CreateTask(t *domain.Task) error {
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	s.tasks = append(s.tasks, *t)
	return nil
}

func (s *fakeTaskStore) GetTask(id string) (*domain.Task, error) {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			t := s.tasks[i]
			return &t, nil
		}
	}
	return nil, fmt.Errorf("task not found: %s", id)
}

func (s *fakeTaskStore) ListTasks() ([]domain.Task, error) {
	out := make([]domain.Task, len(s.tasks))
	copy(out, s.tasks)
	return out, nil
}

func (s *fakeTaskStore) ListTasksByStatus(status domain.TaskStatus) ([]domain.Task, error) {
	var out []domain.Task
	for _, t := range s.tasks {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeTaskStore) SearchTasks(query string) ([]domain.Task, error) {
	q := strings.ToLower(query)
	var out []domain.Task
	for _, t := range s.tasks {
		if strings.Contains(strings.ToLower(t.Title), q) || strings.Contains(strings.ToLower(t.Notes), q) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeTaskStore) ListTasksDueBetween(from, to time.Time) ([]domain.Task, error) {
	var out []domain.Task
	for _, t := range s.tasks {
		if t.DueAt == nil {
			continue
		}
		if !t.DueAt.Before(from) && !t.DueAt.After(to) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeTaskStore) UpdateTask(t *domain.Task) error {
	for i := range s.tasks {
		if s.tasks[i].ID == t.ID {
			t.UpdatedAt = time.Now()
			s.tasks[i] = *t
			return nil
		}
	}
	return fmt.Errorf("task not found: %s", t.ID)
}

func (s *fakeTaskStore) DeleteTask(id string) error {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("task not found: %s", id)
}

func (s *fakeTaskStore) ReorderTasks(ids []string) error {
	order := make(map[string]int, len(ids))
	for i, id := range ids {
		order[id] = i
	}
	for i := range s.tasks {
		if pos, ok := order[s.tasks[i].ID]; ok {
			s.tasks[i].SortOrder = pos
		}
	}
	return nil
}

func (s *fakeTaskStore) CountTasks() (int, error) {
	return len(s.tasks), nil
}

type fakeFlowchartStore struct {
	charts map[string]domain.Flowchart
	saves  int
}

func newFakeFlowchartStore() *fakeFlowchartStore {
	return &fakeFlowchartStore{charts: make(map[string]domain.Flowchart)}
}

func (s *fakeFlowchartStore) CreateFlowchart(f *domain.Flowchart) error {
	now := time.Now()
	f.CreatedAt = now
	f.UpdatedAt = now
	if f.StateJSON == "" {
		f.StateJSON = `{"nodes":[],"edges":[],"viewport":{"x":0,"y":0,"zoom":1}}`
	}
	s.charts[f.ID] = *f
	return nil
}

func (s *fakeFlowchartStore) GetFlowchart(id string) (*domain.Flowchart, error) {
	f, ok := s.charts[id]
	if !ok {
		return nil, fmt.Errorf("get flowchart: not found: %s", id)
	}
	return &f, nil
}

func (s *fakeFlowchartStore) ListFlowcharts() ([]domain.Flowchart, error) {
	var out []domain.Flowchart
	for _, f := range s.charts {
		out = append(out, f)
	}
	return out, nil
}

func (s *fakeFlowchartStore) UpdateFlowchart(f *domain.Flowchart) error {
	if _, ok := s.charts[f.ID]; !ok {
		return fmt.Errorf("update flowchart: not found: %s", f.ID)
	}
	f.UpdatedAt = time.Now()
	s.charts[f.ID] = *f
	return nil
}

func (s *fakeFlowchartStore) SaveState(id, stateJSON string) error {
	f, ok := s.charts[id]
	if !ok {
		return fmt.Errorf("save state: not found: %s", id)
	}
	f.StateJSON = stateJSON
	f.UpdatedAt = time.Now()
	s.charts[id] = f
	s.saves++
	return nil
}

func (s *fakeFlowchartStore) DeleteFlowchart(id string) error {
	delete(s.charts, id)
	return nil
}
