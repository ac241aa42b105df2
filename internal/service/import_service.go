package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"taskflow/internal/domain"
	"taskflow/internal/storage"
	"taskflow/internal/taskio"
)

// ─────────────────────────────────────────────────────────────
// Import Service — business logic for task import jobs
// ─────────────────────────────────────────────────────────────

// RecordRefresher re-projects the task list into open flowcharts after an
// import lands. FlowService satisfies it.
type RecordRefresher interface {
	RefreshRecords(ctx context.Context)
}

// ImportService manages import jobs, scheduling, and file watching.
// It is decoupled from the Wails App struct via the EventEmitter interface.
type ImportService struct {
	store       *storage.ImportStore
	tasks       domain.TaskStore
	flows       RecordRefresher
	emitter     EventEmitter
	runningJobs runningJobsGuard

	// watcher / cron lifecycle
	watchCancel context.CancelFunc
	watcher     *fsnotify.Watcher
	cronSched   *cron.Cron
}

// NewImportService creates an ImportService ready for use.
func NewImportService(
	store *storage.ImportStore,
	tasks domain.TaskStore,
	flows RecordRefresher,
	emitter EventEmitter,
) *ImportService {
	return &ImportService{
		store:   store,
		tasks:   tasks,
		flows:   flows,
		emitter: emitter,
	}
}

// ── Job CRUD ───────────────────────────────────────────────

type CreateImportJobInput struct {
	Name          string                   `json:"name"`
	SourceType    string                   `json:"sourceType"`
	SourceConfig  map[string]any           `json:"sourceConfig"`
	Transforms    []taskio.TransformConfig `json:"transforms"`
	SyncMode      string                   `json:"syncMode"`
	DedupeKey     string                   `json:"dedupeKey"`
	TriggerType   string                   `json:"triggerType"`
	TriggerConfig string                   `json:"triggerConfig"`
	Enabled       bool                     `json:"enabled"`
}

func (s *ImportService) CreateJob(ctx context.Context, input CreateImportJobInput) (*taskio.ImportJob, error) {
	if _, err := taskio.GetSource(input.SourceType); err != nil {
		return nil, err
	}

	job := &taskio.ImportJob{
		Name:          input.Name,
		SourceType:    input.SourceType,
		SourceCfg:     input.SourceConfig,
		Transforms:    input.Transforms,
		SyncMode:      taskio.SyncMode(input.SyncMode),
		DedupeKey:     input.DedupeKey,
		TriggerType:   input.TriggerType,
		TriggerConfig: input.TriggerConfig,
		Enabled:       input.Enabled,
	}
	if job.SyncMode == "" {
		job.SyncMode = taskio.SyncAppend
	}
	if job.TriggerType == "" {
		job.TriggerType = "manual"
	}

	if err := s.store.CreateJob(job); err != nil {
		return nil, fmt.Errorf("create import job: %w", err)
	}
	s.RestartWatchers(ctx)
	return job, nil
}

func (s *ImportService) GetJob(id string) (*taskio.ImportJob, error) {
	return s.store.GetJob(id)
}

func (s *ImportService) ListJobs() ([]taskio.ImportJob, error) {
	return s.store.ListJobs()
}

func (s *ImportService) UpdateJob(ctx context.Context, id string, input CreateImportJobInput) error {
	job, err := s.store.GetJob(id)
	if err != nil {
		return err
	}
	job.Name = input.Name
	job.SourceType = input.SourceType
	job.SourceCfg = input.SourceConfig
	job.Transforms = input.Transforms
	job.SyncMode = taskio.SyncMode(input.SyncMode)
	job.DedupeKey = input.DedupeKey
	job.TriggerType = input.TriggerType
	job.TriggerConfig = input.TriggerConfig
	job.Enabled = input.Enabled

	if err := s.store.UpdateJob(job); err != nil {
		return err
	}
	s.RestartWatchers(ctx)
	return nil
}

func (s *ImportService) DeleteJob(ctx context.Context, id string) error {
	err := s.store.DeleteJob(id)
	if err == nil {
		s.RestartWatchers(ctx)
	}
	return err
}

// ── Run ────────────────────────────────────────────────────

// RunJob executes a single import job synchronously and refreshes the
// task projections on success.
func (s *ImportService) RunJob(ctx context.Context, id string) (*taskio.RunResult, error) {
	// Prevent concurrent execution of the same job.
	if !s.runningJobs.TryLock(id) {
		return nil, fmt.Errorf("job %s is already running", id)
	}
	defer s.runningJobs.Unlock(id)

	job, err := s.store.GetJob(id)
	if err != nil {
		return nil, err
	}

	s.store.UpdateJobStatus(id, "running", "")

	engine := &taskio.Engine{
		Dest: &taskio.TaskWriter{Store: s.tasks},
	}

	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	start := time.Now()
	result, runErr := engine.RunImport(runCtx, job)

	runLog := &taskio.RunLog{
		JobID:       id,
		StartedAt:   start,
		FinishedAt:  time.Now(),
		Status:      result.Status,
		RowsRead:    result.RowsRead,
		RowsWritten: result.RowsWritten,
		RowsSkipped: result.RowsSkipped,
	}
	if runErr != nil {
		runLog.Error = runErr.Error()
	}
	s.store.CreateRunLog(runLog)

	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}
	s.store.UpdateJobStatus(id, result.Status, errMsg)

	// Imported tasks change what linked nodes resolve to, so open
	// canvases re-project and the frontend reloads its lists.
	if result.Status == "success" {
		if s.flows != nil {
			s.flows.RefreshRecords(ctx)
		}
		if s.emitter != nil {
			s.emitter.Emit(ctx, "tasks:changed", map[string]string{"jobId": id})
		}
	}
	if s.emitter != nil {
		s.emitter.Emit(ctx, "import:job-finished", map[string]string{
			"jobId":  id,
			"status": result.Status,
		})
	}

	return result, runErr
}

// ListSources returns the available import source descriptors.
func (s *ImportService) ListSources() []taskio.SourceSpec {
	return taskio.ListSources()
}

// ListRunLogs returns the last 50 run logs for a job.
func (s *ImportService) ListRunLogs(jobID string) ([]taskio.RunLog, error) {
	return s.store.ListRunLogs(jobID, 50)
}

// ── Preview / Schema Discovery ─────────────────────────────

func (s *ImportService) PreviewSource(ctx context.Context, sourceType string, cfgJSON string) (*PreviewResult, error) {
	var cfg taskio.SourceConfig
	if err := json.Unmarshal([]byte(cfgJSON), &cfg); err != nil {
		return nil, fmt.Errorf("parse source config: %w", err)
	}

	engine := &taskio.Engine{
		Dest: &taskio.TaskWriter{Store: s.tasks},
	}

	previewCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	records, schema, err := engine.Preview(previewCtx, sourceType, cfg, 10)
	if err != nil {
		return nil, err
	}
	return &PreviewResult{Schema: schema, Records: records}, nil
}

// PreviewResult is the response from PreviewSource.
type PreviewResult struct {
	Schema  *taskio.Schema  `json:"schema"`
	Records []taskio.Record `json:"records"`
}

func (s *ImportService) DiscoverSchema(ctx context.Context, sourceType string, cfgJSON string) (*taskio.Schema, error) {
	var cfg taskio.SourceConfig
	if err := json.Unmarshal([]byte(cfgJSON), &cfg); err != nil {
		return nil, fmt.Errorf("parse source config: %w", err)
	}

	source, err := taskio.GetSource(sourceType)
	if err != nil {
		return nil, err
	}

	discCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	return source.Discover(discCtx, cfg)
}

// ── Watchers (cron + file_watch) ──────────────────────────

// RestartWatchers tears down the current watcher/cron and rebuilds them
// from scratch.
func (s *ImportService) RestartWatchers(ctx context.Context) {
	s.stopWatchers()

	jobs, err := s.store.ListEnabledTriggeredJobs()
	if err != nil {
		log.Printf("import watcher: failed to list jobs: %v", err)
		return
	}

	// ── Cron jobs ──
	var cronJobs []struct {
		jobID string
		expr  string
	}
	for _, j := range jobs {
		if j.TriggerType == "schedule" && j.TriggerConfig != "" {
			cronJobs = append(cronJobs, struct {
				jobID string
				expr  string
			}{jobID: j.ID, expr: j.TriggerConfig})
		}
	}

	if len(cronJobs) > 0 {
		c := cron.New()
		for _, cj := range cronJobs {
			jid := cj.jobID
			_, err := c.AddFunc(cj.expr, func() {
				log.Printf("import cron: running job %s", jid)
				if _, err := s.RunJob(ctx, jid); err != nil {
					log.Printf("import cron: job %s failed: %v", jid, err)
				}
			})
			if err != nil {
				log.Printf("import cron: invalid expression %q for job %s: %v", cj.expr, cj.jobID, err)
			}
		}
		c.Start()
		s.cronSched = c
		log.Printf("import cron: scheduled %d job(s)", len(cronJobs))
	}

	// ── File watchers ──
	type watchEntry struct {
		jobID string
		path  string
	}
	var entries []watchEntry
	for _, j := range jobs {
		if j.TriggerType == "file_watch" && j.TriggerConfig != "" {
			entries = append(entries, watchEntry{jobID: j.ID, path: j.TriggerConfig})
		}
	}

	if len(entries) == 0 {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("import watcher: failed to create watcher: %v", err)
		return
	}
	s.watcher = watcher

	pathToJob := make(map[string]string)
	watchedDirs := make(map[string]bool)
	for _, e := range entries {
		absPath, err := filepath.Abs(e.path)
		if err != nil {
			log.Printf("import watcher: bad path %q: %v", e.path, err)
			continue
		}
		pathToJob[absPath] = e.jobID

		dir := filepath.Dir(absPath)
		if !watchedDirs[dir] {
			if err := watcher.Add(dir); err != nil {
				log.Printf("import watcher: failed to watch dir %q: %v", dir, err)
			} else {
				watchedDirs[dir] = true
			}
		}
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	s.watchCancel = cancel

	go func() {
		timers := make(map[string]*time.Timer)
		for {
			select {
			case <-watchCtx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				absPath, _ := filepath.Abs(event.Name)
				jobID, ok := pathToJob[absPath]
				if !ok {
					continue
				}
				if t, exists := timers[jobID]; exists {
					t.Stop()
				}
				jid := jobID
				timers[jobID] = time.AfterFunc(500*time.Millisecond, func() {
					log.Printf("import watcher: file changed %q, running job %s", absPath, jid)
					if _, err := s.RunJob(ctx, jid); err != nil {
						log.Printf("import watcher: run failed for job %s: %v", jid, err)
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("import watcher: error: %v", err)
			}
		}
	}()

	log.Printf("import watcher: watching %d file(s)", len(pathToJob))
}

// WaitRunning blocks until all running jobs finish or ctx is cancelled.
// Used for graceful shutdown.
func (s *ImportService) WaitRunning(ctx context.Context) {
	s.runningJobs.WaitAll(ctx)
}

// Stop tears down all watchers and schedulers.
func (s *ImportService) Stop() {
	s.stopWatchers()
}

func (s *ImportService) stopWatchers() {
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
	if s.cronSched != nil {
		s.cronSched.Stop()
		s.cronSched = nil
	}
}
