package taskio_test

import (
	"strings"
	"testing"
	"time"

	"taskflow/internal/taskio"
)

// ─────────────────────────────────────────────────────────────
// Record validation tests
// ─────────────────────────────────────────────────────────────

func TestValidateRecord_Valid(t *testing.T) {
	err := taskio.ValidateRecord(rec(map[string]any{
		"title":    "ship release",
		"status":   "doing",
		"priority": "high",
		"dueAt":    "2026-09-01",
	}))
	if err != nil {
		t.Fatalf("valid record rejected: %v", err)
	}
}

func TestValidateRecord_MinimalRecord(t *testing.T) {
	// Only title is required.
	if err := taskio.ValidateRecord(rec(map[string]any{"title": "x"})); err != nil {
		t.Fatalf("minimal record rejected: %v", err)
	}
}

func TestValidateRecord_MissingTitle(t *testing.T) {
	err := taskio.ValidateRecord(rec(map[string]any{"status": "todo"}))
	if err == nil {
		t.Fatal("record without title passed validation")
	}
}

func TestValidateRecord_EmptyTitle(t *testing.T) {
	err := taskio.ValidateRecord(rec(map[string]any{"title": ""}))
	if err == nil {
		t.Fatal("record with empty title passed validation")
	}
	if !strings.Contains(err.Error(), "title") {
		t.Errorf("error should name the offending field, got %q", err)
	}
}

func TestValidateRecord_BadStatus(t *testing.T) {
	err := taskio.ValidateRecord(rec(map[string]any{"title": "a", "status": "blocked"}))
	if err == nil {
		t.Fatal("unknown status passed validation")
	}
}

func TestValidateRecord_BadPriority(t *testing.T) {
	err := taskio.ValidateRecord(rec(map[string]any{"title": "a", "priority": "urgent"}))
	if err == nil {
		t.Fatal("unknown priority passed validation")
	}
}

func TestValidateRecord_ExtraFieldsAllowed(t *testing.T) {
	// Source columns that never map to a task field are fine.
	err := taskio.ValidateRecord(rec(map[string]any{
		"title":       "a",
		"assignee":    "sam",
		"story_point": 3.0,
	}))
	if err != nil {
		t.Fatalf("extra fields rejected: %v", err)
	}
}

func TestValidateRecord_DriverTypesNormalized(t *testing.T) {
	// Database drivers hand back int64 and time.Time; the JSON round-trip
	// inside validation must make those look like wire values.
	err := taskio.ValidateRecord(rec(map[string]any{
		"title":     "from db",
		"sortOrder": int64(4),
		"dueAt":     time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
	}))
	if err != nil {
		t.Fatalf("driver-typed record rejected: %v", err)
	}
}
