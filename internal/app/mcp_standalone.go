package app

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	mcpserver "taskflow/internal/mcp"
	"taskflow/internal/secret"
	"taskflow/internal/service"
	"taskflow/internal/storage"
)

// noopEmitter is a no-op EventEmitter used in MCP-only mode (no Wails frontend).
type noopEmitter struct{}

func (noopEmitter) Emit(_ context.Context, _ string, _ any) {}

// ServeMCP runs the app as a standalone MCP server on stdin/stdout with no GUI.
// It initializes storage, services, and runs the MCP server until interrupted.
// Schedule and file-watch triggers stay off here; the GUI process owns them,
// so a job never double-runs when both processes share the database.
func ServeMCP() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	dataDir := DataDir()
	dbPath := filepath.Join(dataDir, "taskflow.db")

	db, err := storage.New(dbPath, dataDir)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// Storage stores
	taskStore := storage.NewTaskStore(db)
	chartStore := storage.NewFlowchartStore(db)
	revisions := storage.NewRevisionStore(db)
	importStore := storage.NewImportStore(db)
	dbConnStore := storage.NewDBConnectionStore(db)

	secretStore := secret.NewKeychainStore()
	emitter := noopEmitter{}

	// Services
	tasksSvc := service.NewTaskService(taskStore, dataDir, emitter)
	flowsSvc := service.NewFlowService(chartStore, revisions, taskStore, emitter)
	importsSvc := service.NewImportService(importStore, taskStore, flowsSvc, emitter)
	databaseSvc := service.NewDatabaseService(dbConnStore, secretStore)
	defer databaseSvc.Close()
	defer flowsSvc.CloseAll()

	// Wire import adapters so the database source can query saved connections
	setupImportAdapters(&App{
		database: databaseSvc,
	})

	// Create and serve MCP
	mcpSrv := mcpserver.New(ctx, mcpserver.Deps{
		Emitter:    emitter,
		Tasks:      tasksSvc,
		Flows:      flowsSvc,
		Imports:    importsSvc,
		ApprovalDB: db.Conn(), // Enable SQLite-based approval IPC
	})

	log.Println("[MCP] Starting standalone stdio server...")
	if err := mcpSrv.ServeStdio(); err != nil {
		log.Fatalf("MCP server error: %v", err)
	}
}
