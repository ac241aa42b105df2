package storage

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Revision is a named checkpoint of a flowchart's serialized state. Undo
// and redo live in memory per open canvas; revisions are the durable
// fallback for "restore how the chart looked before".
type Revision struct {
	ID          string    `json:"id"`
	FlowchartID string    `json:"flowchartId"`
	Label       string    `json:"label"`
	StateJSON   string    `json:"stateJson"`
	CreatedAt   time.Time `json:"createdAt"`
}

// maxRevisionsPerChart bounds stored checkpoints per flowchart; oldest are
// pruned first.
const maxRevisionsPerChart = 40

// RevisionStore manages flowchart revision checkpoints in SQLite.
type RevisionStore struct {
	db *DB
}

func NewRevisionStore(db *DB) *RevisionStore {
	return &RevisionStore{db: db}
}

// CreateRevision stores a new checkpoint and prunes the oldest entries
// past the cap.
func (s *RevisionStore) CreateRevision(flowchartID, label, stateJSON string) (*Revision, error) {
	rev := &Revision{
		ID:          uuid.New().String(),
		FlowchartID: flowchartID,
		Label:       label,
		StateJSON:   stateJSON,
		CreatedAt:   time.Now(),
	}
	_, err := s.db.conn.Exec(
		`INSERT INTO flow_revisions (id, flowchart_id, label, state_json, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rev.ID, rev.FlowchartID, rev.Label, rev.StateJSON, rev.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert revision: %w", err)
	}

	s.pruneIfNeeded(flowchartID, maxRevisionsPerChart)
	return rev, nil
}

// GetRevision returns one checkpoint including its state payload.
func (s *RevisionStore) GetRevision(id string) (*Revision, error) {
	rev := &Revision{}
	err := s.db.conn.QueryRow(
		`SELECT id, flowchart_id, label, state_json, created_at FROM flow_revisions WHERE id = ?`, id,
	).Scan(&rev.ID, &rev.FlowchartID, &rev.Label, &rev.StateJSON, &rev.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get revision: %w", err)
	}
	return rev, nil
}

// ListRevisions returns the checkpoints for a flowchart, newest first,
// without the state payloads.
func (s *RevisionStore) ListRevisions(flowchartID string) ([]Revision, error) {
	rows, err := s.db.conn.Query(
		`SELECT id, flowchart_id, label, created_at
		 FROM flow_revisions WHERE flowchart_id = ? ORDER BY created_at DESC`, flowchartID,
	)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer rows.Close()

	var revs []Revision
	for rows.Next() {
		var r Revision
		if err := rows.Scan(&r.ID, &r.FlowchartID, &r.Label, &r.CreatedAt); err != nil {
			return nil, err
		}
		revs = append(revs, r)
	}
	return revs, rows.Err()
}

// DeleteRevisions removes all checkpoints for a flowchart.
func (s *RevisionStore) DeleteRevisions(flowchartID string) error {
	_, err := s.db.conn.Exec(`DELETE FROM flow_revisions WHERE flowchart_id = ?`, flowchartID)
	return err
}

// pruneIfNeeded removes the oldest checkpoints when count exceeds max.
func (s *RevisionStore) pruneIfNeeded(flowchartID string, max int) {
	var count int
	s.db.conn.QueryRow(`SELECT COUNT(*) FROM flow_revisions WHERE flowchart_id = ?`, flowchartID).Scan(&count)
	if count <= max {
		return
	}

	// Collect IDs to delete first, close the cursor before writing
	rows, err := s.db.conn.Query(
		`SELECT id FROM flow_revisions WHERE flowchart_id = ?
		 ORDER BY created_at ASC LIMIT ?`, flowchartID, count-max,
	)
	if err != nil {
		return
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	rows.Close()

	for _, id := range ids {
		s.db.conn.Exec(`DELETE FROM flow_revisions WHERE id = ?`, id)
	}
}
