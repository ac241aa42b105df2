package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"taskflow/internal/taskio"

	"github.com/google/uuid"
)

// ImportStore implements persistence for task import jobs and run logs.
type ImportStore struct {
	db *DB
}

// NewImportStore creates a new ImportStore.
func NewImportStore(db *DB) *ImportStore {
	return &ImportStore{db: db}
}

// ── ImportJob CRUD ─────────────────────────────────────────

const importJobColumns = `id, name, source_type, source_config, transforms,
	 sync_mode, dedupe_key, trigger_type, trigger_config, enabled,
	 last_run_at, last_status, last_error, created_at, updated_at`

func (s *ImportStore) CreateJob(job *taskio.ImportJob) error {
	now := time.Now()
	job.ID = uuid.New().String()
	job.CreatedAt = now
	job.UpdatedAt = now

	srcCfg, _ := json.Marshal(job.SourceCfg)
	transforms, _ := json.Marshal(job.Transforms)

	_, err := s.db.conn.Exec(
		`INSERT INTO import_jobs (id, name, source_type, source_config, transforms,
		 sync_mode, dedupe_key, trigger_type, trigger_config, enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Name, job.SourceType, string(srcCfg), string(transforms),
		job.SyncMode, job.DedupeKey, job.TriggerType, job.TriggerConfig, job.Enabled,
		job.CreatedAt, job.UpdatedAt,
	)
	return err
}

func (s *ImportStore) GetJob(id string) (*taskio.ImportJob, error) {
	row := s.db.conn.QueryRow(`SELECT `+importJobColumns+` FROM import_jobs WHERE id = ?`, id)
	job, err := scanImportJob(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("import job not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (s *ImportStore) UpdateJob(job *taskio.ImportJob) error {
	job.UpdatedAt = time.Now()
	srcCfg, _ := json.Marshal(job.SourceCfg)
	transforms, _ := json.Marshal(job.Transforms)

	_, err := s.db.conn.Exec(
		`UPDATE import_jobs SET name=?, source_type=?, source_config=?, transforms=?,
		 sync_mode=?, dedupe_key=?, trigger_type=?, trigger_config=?,
		 enabled=?, updated_at=? WHERE id=?`,
		job.Name, job.SourceType, string(srcCfg), string(transforms),
		job.SyncMode, job.DedupeKey, job.TriggerType, job.TriggerConfig,
		job.Enabled, job.UpdatedAt, job.ID,
	)
	return err
}

func (s *ImportStore) UpdateJobStatus(id, status, errMsg string) error {
	_, err := s.db.conn.Exec(
		`UPDATE import_jobs SET last_run_at=?, last_status=?, last_error=?, updated_at=? WHERE id=?`,
		time.Now(), status, errMsg, time.Now(), id,
	)
	return err
}

func (s *ImportStore) DeleteJob(id string) error {
	// Delete run logs first.
	if _, err := s.db.conn.Exec(`DELETE FROM import_run_logs WHERE job_id = ?`, id); err != nil {
		return err
	}
	_, err := s.db.conn.Exec(`DELETE FROM import_jobs WHERE id = ?`, id)
	return err
}

func (s *ImportStore) ListJobs() ([]taskio.ImportJob, error) {
	return s.queryJobs(`SELECT ` + importJobColumns + ` FROM import_jobs ORDER BY created_at ASC`)
}

// ListEnabledTriggeredJobs returns enabled jobs with a schedule or
// file-watch trigger, for the service to arm at startup.
func (s *ImportStore) ListEnabledTriggeredJobs() ([]taskio.ImportJob, error) {
	return s.queryJobs(
		`SELECT ` + importJobColumns + ` FROM import_jobs
		 WHERE enabled = 1 AND trigger_type IN ('schedule', 'file_watch')
		 ORDER BY created_at ASC`,
	)
}

func (s *ImportStore) queryJobs(query string, args ...any) ([]taskio.ImportJob, error) {
	rows, err := s.db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []taskio.ImportJob
	for rows.Next() {
		job, err := scanImportJob(rows.Scan)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func scanImportJob(scan func(dest ...any) error) (*taskio.ImportJob, error) {
	job := &taskio.ImportJob{}
	var srcCfg, transforms string
	err := scan(
		&job.ID, &job.Name, &job.SourceType, &srcCfg, &transforms,
		&job.SyncMode, &job.DedupeKey, &job.TriggerType, &job.TriggerConfig, &job.Enabled,
		&job.LastRunAt, &job.LastStatus, &job.LastError,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	json.Unmarshal([]byte(srcCfg), &job.SourceCfg)
	json.Unmarshal([]byte(transforms), &job.Transforms)
	return job, nil
}

// ── Run Logs ───────────────────────────────────────────────

func (s *ImportStore) CreateRunLog(log *taskio.RunLog) error {
	log.ID = uuid.New().String()
	_, err := s.db.conn.Exec(
		`INSERT INTO import_run_logs (id, job_id, started_at, finished_at, status, rows_read, rows_written, rows_skipped, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.JobID, log.StartedAt, log.FinishedAt, log.Status, log.RowsRead, log.RowsWritten, log.RowsSkipped, log.Error,
	)
	return err
}

func (s *ImportStore) ListRunLogs(jobID string, limit int) ([]taskio.RunLog, error) {
	rows, err := s.db.conn.Query(
		`SELECT id, job_id, started_at, finished_at, status, rows_read, rows_written, rows_skipped, error
		 FROM import_run_logs WHERE job_id = ? ORDER BY started_at DESC LIMIT ?`,
		jobID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []taskio.RunLog
	for rows.Next() {
		var l taskio.RunLog
		if err := rows.Scan(&l.ID, &l.JobID, &l.StartedAt, &l.FinishedAt, &l.Status, &l.RowsRead, &l.RowsWritten, &l.RowsSkipped, &l.Error); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
