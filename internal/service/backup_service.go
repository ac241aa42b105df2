package service

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"taskflow/internal/domain"
	"taskflow/internal/taskio"
)

// ─────────────────────────────────────────────────────────────
// Backup Service — compressed snapshots of the app data
// ─────────────────────────────────────────────────────────────

// maxBackups bounds how many snapshot files are kept; oldest are pruned
// first.
const maxBackups = 10

// Snapshot is the backup payload: everything needed to reconstruct the
// user's data, serialized as JSON and compressed with zstd.
type Snapshot struct {
	Version    int                `json:"version"`
	CreatedAt  time.Time          `json:"createdAt"`
	Tasks      []domain.Task      `json:"tasks"`
	Flowcharts []domain.Flowchart `json:"flowcharts"`
	Jobs       []taskio.ImportJob `json:"jobs"`
}

// BackupInfo describes one snapshot file on disk.
type BackupInfo struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

// JobLister is the slice of the import store the backup needs.
type JobLister interface {
	ListJobs() ([]taskio.ImportJob, error)
}

// BackupService writes zstd-compressed JSON snapshots of tasks,
// flowcharts and import jobs into the data directory.
type BackupService struct {
	tasks  domain.TaskStore
	charts domain.FlowchartStore
	jobs   JobLister
	dir    string
}

// NewBackupService creates a BackupService writing under dataDir/backups.
func NewBackupService(tasks domain.TaskStore, charts domain.FlowchartStore, jobs JobLister, dataDir string) *BackupService {
	return &BackupService{
		tasks:  tasks,
		charts: charts,
		jobs:   jobs,
		dir:    filepath.Join(dataDir, "backups"),
	}
}

// CreateBackup snapshots the current data into a new compressed file and
// prunes old snapshots past the cap.
func (s *BackupService) CreateBackup() (*BackupInfo, error) {
	snap := Snapshot{Version: 1, CreatedAt: time.Now()}

	var err error
	if snap.Tasks, err = s.tasks.ListTasks(); err != nil {
		return nil, fmt.Errorf("collect tasks: %w", err)
	}
	if snap.Flowcharts, err = s.charts.ListFlowcharts(); err != nil {
		return nil, fmt.Errorf("collect flowcharts: %w", err)
	}
	if s.jobs != nil {
		if snap.Jobs, err = s.jobs.ListJobs(); err != nil {
			return nil, fmt.Errorf("collect import jobs: %w", err)
		}
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	name := "backup-" + snap.CreatedAt.Format("20060102-150405") + ".json.zst"
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create backup file: %w", err)
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	if _, err := enc.Write(raw); err != nil {
		enc.Close()
		f.Close()
		return nil, fmt.Errorf("write snapshot: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close backup file: %w", err)
	}

	s.prune()

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &BackupInfo{Name: name, Path: path, Size: info.Size(), CreatedAt: snap.CreatedAt}, nil
}

// ListBackups returns the snapshot files on disk, newest first.
func (s *BackupService) ListBackups() ([]BackupInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup dir: %w", err)
	}

	var backups []BackupInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json.zst") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{
			Name:      e.Name(),
			Path:      filepath.Join(s.dir, e.Name()),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Name > backups[j].Name
	})
	return backups, nil
}

// ReadBackup decompresses and decodes one snapshot file by name.
func (s *BackupService) ReadBackup(name string) (*Snapshot, error) {
	// Names come from ListBackups; refuse anything path-like.
	if name != filepath.Base(name) {
		return nil, fmt.Errorf("invalid backup name: %s", name)
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("open backup: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("decompress backup: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// prune removes the oldest snapshots past maxBackups. Failures are
// silent; the next backup retries.
func (s *BackupService) prune() {
	backups, err := s.ListBackups()
	if err != nil || len(backups) <= maxBackups {
		return
	}
	for _, old := range backups[maxBackups:] {
		os.Remove(old.Path)
	}
}
