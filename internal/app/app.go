package app

import (
	"context"
	"os"
	"path/filepath"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"taskflow/internal/secret"
	"taskflow/internal/service"
	"taskflow/internal/storage"
)

// App is the main Wails application struct.
// All exported methods are available as Wails bindings.
type App struct {
	ctx context.Context

	db          *storage.DB
	taskStore   *storage.TaskStore
	chartStore  *storage.FlowchartStore
	revisions   *storage.RevisionStore
	importStore *storage.ImportStore
	dbConnStore *storage.DBConnectionStore

	secrets secret.SecretStore

	tasks    *service.TaskService
	flows    *service.FlowService
	imports  *service.ImportService
	database *service.DatabaseService
	backups  *service.BackupService
	window   *service.WindowSettingsService

	watcher *taskWatcher
}

// New creates a new App.
func New() *App {
	return &App{}
}

// wailsEmitter bridges service events onto the Wails event bus. Services
// hold the interface so they stay testable without a Wails context.
type wailsEmitter struct {
	app *App
}

func (e *wailsEmitter) Emit(_ context.Context, event string, data any) {
	if e.app.ctx == nil {
		return
	}
	wailsRuntime.EventsEmit(e.app.ctx, event, data)
}

// DataDir returns the root data directory (~/.local/share/taskflow).
func DataDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".local", "share", "taskflow")
}

// Startup is called when the app starts.
func (a *App) Startup(ctx context.Context) {
	a.ctx = ctx

	dataDir := DataDir()
	dbPath := filepath.Join(dataDir, "taskflow.db")

	db, err := storage.New(dbPath, dataDir)
	if err != nil {
		wailsRuntime.LogFatalf(ctx, "Failed to open database: %v", err)
		return
	}
	a.db = db

	a.taskStore = storage.NewTaskStore(db)
	a.chartStore = storage.NewFlowchartStore(db)
	a.revisions = storage.NewRevisionStore(db)
	a.importStore = storage.NewImportStore(db)
	a.dbConnStore = storage.NewDBConnectionStore(db)
	a.secrets = secret.NewKeychainStore()

	emitter := &wailsEmitter{app: a}

	a.tasks = service.NewTaskService(a.taskStore, dataDir, emitter)
	a.flows = service.NewFlowService(a.chartStore, a.revisions, a.taskStore, emitter)
	a.imports = service.NewImportService(a.importStore, a.taskStore, a.flows, emitter)
	a.database = service.NewDatabaseService(a.dbConnStore, a.secrets)
	a.backups = service.NewBackupService(a.taskStore, a.chartStore, a.imports, dataDir)
	a.window = service.NewWindowSettingsService(db)

	// Import sources that query saved connections go through the
	// database service.
	setupImportAdapters(a)

	// Arm schedule and file-watch triggers for enabled jobs.
	a.imports.RestartWatchers(ctx)

	// Restore the saved window size.
	size := a.window.LoadWindowSize()
	wailsRuntime.WindowSetSize(ctx, size.Width, size.Height)

	// Poll for task changes made outside the UI (standalone MCP, imports
	// from cron) and relay pending approval requests.
	a.watcher = newTaskWatcher(ctx, a)
	a.watcher.Start()
}

// Shutdown is called when the app is closing. Teardown mirrors Startup
// in reverse.
func (a *App) Shutdown(ctx context.Context) {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.imports != nil {
		a.imports.Stop()
		a.imports.WaitRunning(ctx)
	}
	if a.flows != nil {
		a.flows.CloseAll()
	}
	if a.database != nil {
		a.database.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

// ── Window settings ────────────────────────────────────────

// SaveWindowSize persists the current window dimensions.
func (a *App) SaveWindowSize(width, height int) error {
	return a.window.SaveWindowSize(width, height)
}

// SaveLastOpenFlowchart remembers which flowchart to reopen next launch.
func (a *App) SaveLastOpenFlowchart(id string) error {
	return a.window.SaveLastOpenFlowchart(id)
}

// GetLastOpenFlowchart returns the flowchart id saved by the previous
// session, or "" when none was saved.
func (a *App) GetLastOpenFlowchart() string {
	return a.window.LoadLastOpenFlowchart()
}

// ── MCP approval relay ─────────────────────────────────────

// ResolveMCPApproval records the user's answer to a pending approval
// request raised by the standalone MCP process. The MCP side polls the
// row and picks the answer up.
func (a *App) ResolveMCPApproval(actionID string, approved bool) error {
	status := "rejected"
	if approved {
		status = "approved"
	}
	_, err := a.db.Conn().Exec(
		`UPDATE mcp_approvals SET status = ? WHERE id = ? AND status = 'pending'`,
		status, actionID,
	)
	return err
}
