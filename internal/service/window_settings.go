package service

import (
	"database/sql"
	"fmt"

	"taskflow/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Window Settings Persistence
// ─────────────────────────────────────────────────────────────
//
// Saves and restores the main Wails window size and the last open
// flowchart between sessions. Stored in SQLite as simple key-value
// rows in app_settings.
//
// The app_settings table is created via the storage layer migration.

// WindowSize holds the saved window dimensions.
type WindowSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// WindowSettingsService persists window size between sessions.
type WindowSettingsService struct {
	db *storage.DB
}

// NewWindowSettingsService creates a WindowSettingsService.
func NewWindowSettingsService(db *storage.DB) *WindowSettingsService {
	return &WindowSettingsService{db: db}
}

const (
	settingWindowWidth   = "window_width"
	settingWindowHeight  = "window_height"
	settingLastFlowchart = "last_open_flowchart"
	defaultWindowWidth   = 1280
	defaultWindowHeight  = 800
)

// LoadWindowSize returns the saved window dimensions, or sensible defaults.
func (s *WindowSettingsService) LoadWindowSize() WindowSize {
	if s.db == nil {
		return WindowSize{Width: defaultWindowWidth, Height: defaultWindowHeight}
	}
	conn := s.db.Conn()
	// Try to create settings table (idempotent)
	conn.Exec(`CREATE TABLE IF NOT EXISTS app_settings (key TEXT PRIMARY KEY, value TEXT NOT NULL DEFAULT '')`)

	w := defaultWindowWidth
	h := defaultWindowHeight
	row := conn.QueryRow(`SELECT value FROM app_settings WHERE key = ?`, settingWindowWidth)
	row.Scan(&w)
	row = conn.QueryRow(`SELECT value FROM app_settings WHERE key = ?`, settingWindowHeight)
	row.Scan(&h)

	if w < 800 {
		w = defaultWindowWidth
	}
	if h < 600 {
		h = defaultWindowHeight
	}
	return WindowSize{Width: w, Height: h}
}

// SaveWindowSize persists the current window dimensions.
func (s *WindowSettingsService) SaveWindowSize(width, height int) error {
	if s.db == nil {
		return fmt.Errorf("window settings: no db")
	}
	conn := s.db.Conn()
	if err := upsertSetting(conn, settingWindowWidth, width); err != nil {
		return err
	}
	return upsertSetting(conn, settingWindowHeight, height)
}

// LoadLastOpenFlowchart returns the id of the flowchart that was open when
// the app last closed, or "" when none was saved.
func (s *WindowSettingsService) LoadLastOpenFlowchart() string {
	if s.db == nil {
		return ""
	}
	var id string
	row := s.db.Conn().QueryRow(`SELECT value FROM app_settings WHERE key = ?`, settingLastFlowchart)
	row.Scan(&id)
	return id
}

// SaveLastOpenFlowchart remembers which flowchart to reopen next launch.
// An empty id clears the setting.
func (s *WindowSettingsService) SaveLastOpenFlowchart(id string) error {
	if s.db == nil {
		return fmt.Errorf("window settings: no db")
	}
	return upsertSetting(s.db.Conn(), settingLastFlowchart, id)
}

func upsertSetting(conn *sql.DB, key string, value any) error {
	_, err := conn.Exec(
		`INSERT INTO app_settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}
