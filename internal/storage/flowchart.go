package storage

import (
	"fmt"
	"time"

	"taskflow/internal/domain"
)

// FlowchartStore implements domain.FlowchartStore using SQLite. The diagram
// body is the engine's serialized state tuple, stored opaque in state_json.
type FlowchartStore struct {
	db *DB
}

func NewFlowchartStore(db *DB) *FlowchartStore {
	return &FlowchartStore{db: db}
}

func (s *FlowchartStore) CreateFlowchart(f *domain.Flowchart) error {
	now := time.Now()
	f.CreatedAt = now
	f.UpdatedAt = now
	if f.StateJSON == "" {
		f.StateJSON = `{"nodes":[],"edges":[],"viewport":{"x":0,"y":0,"zoom":1}}`
	}
	_, err := s.db.conn.Exec(
		`INSERT INTO flowcharts (id, name, state_json, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		f.ID, f.Name, f.StateJSON, f.CreatedAt, f.UpdatedAt,
	)
	return err
}

func (s *FlowchartStore) GetFlowchart(id string) (*domain.Flowchart, error) {
	f := &domain.Flowchart{}
	err := s.db.conn.QueryRow(
		`SELECT id, name, state_json, created_at, updated_at FROM flowcharts WHERE id = ?`, id,
	).Scan(&f.ID, &f.Name, &f.StateJSON, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get flowchart: %w", err)
	}
	return f, nil
}

func (s *FlowchartStore) ListFlowcharts() ([]domain.Flowchart, error) {
	rows, err := s.db.conn.Query(
		`SELECT id, name, state_json, created_at, updated_at FROM flowcharts ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var charts []domain.Flowchart
	for rows.Next() {
		var f domain.Flowchart
		if err := rows.Scan(&f.ID, &f.Name, &f.StateJSON, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		charts = append(charts, f)
	}
	return charts, rows.Err()
}

func (s *FlowchartStore) UpdateFlowchart(f *domain.Flowchart) error {
	f.UpdatedAt = time.Now()
	_, err := s.db.conn.Exec(
		`UPDATE flowcharts SET name = ?, updated_at = ? WHERE id = ?`,
		f.Name, f.UpdatedAt, f.ID,
	)
	return err
}

// SaveState overwrites the serialized diagram. Called after every applied
// patch batch, so it stays a single cheap write.
func (s *FlowchartStore) SaveState(id, stateJSON string) error {
	_, err := s.db.conn.Exec(
		`UPDATE flowcharts SET state_json = ?, updated_at = ? WHERE id = ?`,
		stateJSON, time.Now(), id,
	)
	return err
}

func (s *FlowchartStore) DeleteFlowchart(id string) error {
	if _, err := s.db.conn.Exec(`DELETE FROM flow_revisions WHERE flowchart_id = ?`, id); err != nil {
		return err
	}
	_, err := s.db.conn.Exec(`DELETE FROM flowcharts WHERE id = ?`, id)
	return err
}
