package app

import (
	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"taskflow/internal/dbclient"
	"taskflow/internal/domain"
	"taskflow/internal/service"
)

// ============================================================
// Database connections (import sources)
// ============================================================
// Connections are read-only sources for the import engine. Passwords
// live in the OS keychain, never in the store, so the domain struct is
// safe to hand to the frontend as-is.

func (a *App) ListDatabaseConnections() ([]domain.DatabaseConnection, error) {
	return a.database.ListConnections()
}

func (a *App) CreateDatabaseConnection(input service.CreateDBConnInput) (*domain.DatabaseConnection, error) {
	return a.database.CreateConnection(input)
}

func (a *App) UpdateDatabaseConnection(id string, input service.CreateDBConnInput) error {
	return a.database.UpdateConnection(id, input)
}

func (a *App) DeleteDatabaseConnection(id string) error {
	return a.database.DeleteConnection(id)
}

func (a *App) TestDatabaseConnection(id string) error {
	return a.database.TestConnection(a.ctx, id)
}

// IntrospectDatabase lists schemas, tables and columns so the import
// editor can offer query scaffolding.
func (a *App) IntrospectDatabase(connectionID string) (*dbclient.SchemaInfo, error) {
	return a.database.Introspect(a.ctx, connectionID)
}

// PickDatabaseFile opens a native file picker for selecting a SQLite
// database file.
func (a *App) PickDatabaseFile() (string, error) {
	path, err := wailsRuntime.OpenFileDialog(a.ctx, wailsRuntime.OpenDialogOptions{
		Title: "Select Database File",
		Filters: []wailsRuntime.FileFilter{
			{DisplayName: "Database Files", Pattern: "*.db;*.sqlite;*.sqlite3;*.s3db"},
			{DisplayName: "All Files", Pattern: "*.*"},
		},
	})
	return path, err
}
