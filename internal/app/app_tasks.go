package app

import (
	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"taskflow/internal/domain"
	"taskflow/internal/service"
)

// ============================================================
// Task board
// ============================================================

func (a *App) ListTasks() ([]domain.Task, error) {
	return a.tasks.ListTasks()
}

func (a *App) ListTasksByStatus(status string) ([]domain.Task, error) {
	return a.tasks.ListTasksByStatus(status)
}

func (a *App) GetTask(id string) (*domain.Task, error) {
	return a.tasks.GetTask(id)
}

func (a *App) SearchTasks(query string) ([]domain.Task, error) {
	return a.tasks.SearchTasks(query)
}

func (a *App) ListTasksDueSoon(days int) ([]domain.Task, error) {
	return a.tasks.ListTasksDueSoon(days)
}

func (a *App) CreateTask(input service.CreateTaskInput) (*domain.Task, error) {
	return a.tasks.CreateTask(a.ctx, input)
}

func (a *App) UpdateTask(id string, input service.CreateTaskInput) (*domain.Task, error) {
	return a.tasks.UpdateTask(a.ctx, id, input)
}

func (a *App) SetTaskStatus(id, status string) (*domain.Task, error) {
	return a.tasks.SetTaskStatus(a.ctx, id, status)
}

func (a *App) DeleteTask(id string) error {
	return a.tasks.DeleteTask(a.ctx, id)
}

// ReorderTasks persists a new manual ordering. ids holds every task in
// the desired order.
func (a *App) ReorderTasks(ids []string) error {
	return a.tasks.ReorderTasks(a.ctx, ids)
}

// ExportTasks writes the board to a CSV file under the data directory
// and returns the full path.
func (a *App) ExportTasks(fileName string) (string, error) {
	return a.tasks.ExportTasks(fileName)
}

// PickExportDirectory opens a native directory picker for choosing where
// to copy an export.
func (a *App) PickExportDirectory() (string, error) {
	return wailsRuntime.OpenDirectoryDialog(a.ctx, wailsRuntime.OpenDialogOptions{
		Title: "Select Export Directory",
	})
}
