package app

import "taskflow/internal/service"

// ============================================================
// Backups
// ============================================================

// CreateBackup snapshots tasks, flowcharts and import jobs into a
// compressed file under the data directory.
func (a *App) CreateBackup() (*service.BackupInfo, error) {
	return a.backups.CreateBackup()
}

func (a *App) ListBackups() ([]service.BackupInfo, error) {
	return a.backups.ListBackups()
}

// ReadBackup loads a snapshot so the frontend can show what a restore
// would bring back.
func (a *App) ReadBackup(name string) (*service.Snapshot, error) {
	return a.backups.ReadBackup(name)
}
