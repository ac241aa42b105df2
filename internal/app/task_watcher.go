package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// taskWatcher polls the database for changes made outside the UI, such
// as the standalone MCP process or a cron-triggered import, and emits
// Wails events so the frontend auto-refreshes. Changed task records are
// also pushed into the open canvases so linked nodes re-resolve.
type taskWatcher struct {
	ctx context.Context
	app *App
	mu  sync.Mutex

	lastTasks  string // tasks fingerprint (count + max updated_at)
	lastCharts string // flowcharts fingerprint (count + max updated_at)
	stopCh     chan struct{}

	// Track emitted approval IDs to avoid infinite re-emission
	emittedApprovals map[string]bool
}

func newTaskWatcher(ctx context.Context, app *App) *taskWatcher {
	return &taskWatcher{ctx: ctx, app: app, emittedApprovals: map[string]bool{}}
}

// Start begins the polling loop. Should be called once on app startup.
func (w *taskWatcher) Start() {
	w.stopCh = make(chan struct{})
	go w.pollLoop()
}

// Stop terminates the polling loop.
func (w *taskWatcher) Stop() {
	if w.stopCh != nil {
		close(w.stopCh)
	}
}

func (w *taskWatcher) pollLoop() {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.check()
		case <-w.stopCh:
			return
		case <-w.ctx.Done():
			return
		}
	}
}

func (w *taskWatcher) check() {
	db := w.app.db.Conn()

	// ── Tasks fingerprint (count + max updated_at) ──────
	var taskCount int
	var taskUpdated string
	err := db.QueryRow(
		`SELECT COUNT(*), COALESCE(MAX(updated_at), '') FROM tasks`,
	).Scan(&taskCount, &taskUpdated)
	if err != nil {
		return
	}
	taskFingerprint := fmt.Sprintf("%d:%s", taskCount, taskUpdated)

	// ── Flowcharts fingerprint ──────────────────────────
	var chartCount int
	var chartUpdated string
	chartFingerprint := ""
	err = db.QueryRow(
		`SELECT COUNT(*), COALESCE(MAX(updated_at), '') FROM flowcharts`,
	).Scan(&chartCount, &chartUpdated)
	if err == nil {
		chartFingerprint = fmt.Sprintf("%d:%s", chartCount, chartUpdated)
	}

	w.mu.Lock()
	tasksChanged := w.lastTasks != "" && w.lastTasks != taskFingerprint
	chartsChanged := w.lastCharts != "" && chartFingerprint != "" && w.lastCharts != chartFingerprint
	w.lastTasks = taskFingerprint
	if chartFingerprint != "" {
		w.lastCharts = chartFingerprint
	}
	w.mu.Unlock()

	// ── Emit events and refresh canvases ────────────────
	if tasksChanged {
		wailsRuntime.EventsEmit(w.ctx, "tasks:changed", map[string]string{"source": "watcher"})
		// Linked nodes on open charts pick up new titles and statuses.
		w.app.flows.RefreshRecords(w.ctx)
	}
	if chartsChanged {
		wailsRuntime.EventsEmit(w.ctx, "flowcharts:changed", nil)
	}

	// ── Pending MCP approvals (cross-process IPC) ───────
	rows, err := db.Query(`SELECT id, tool, description, created_at, metadata FROM mcp_approvals WHERE status = 'pending'`)
	if err == nil {
		for rows.Next() {
			var id, tool, desc, createdAt, metadata string
			if rows.Scan(&id, &tool, &desc, &createdAt, &metadata) == nil {
				w.mu.Lock()
				alreadySent := w.emittedApprovals[id]
				if !alreadySent {
					w.emittedApprovals[id] = true
				}
				w.mu.Unlock()
				if !alreadySent {
					wailsRuntime.EventsEmit(w.ctx, "mcp:approval-required", map[string]string{
						"id":          id,
						"tool":        tool,
						"description": desc,
						"createdAt":   createdAt,
						"metadata":    metadata,
					})
				}
			}
		}
		rows.Close()
	}

	// Clean up tracking for resolved/deleted approvals (standalone MCP deletes after reading)
	w.mu.Lock()
	for id := range w.emittedApprovals {
		var count int
		if db.QueryRow(`SELECT COUNT(*) FROM mcp_approvals WHERE id = ? AND status = 'pending'`, id).Scan(&count) == nil && count == 0 {
			delete(w.emittedApprovals, id)
		}
	}
	w.mu.Unlock()
}
