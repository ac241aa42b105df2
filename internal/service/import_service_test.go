package service_test

import (
	"context"
	"testing"
	"time"

	"taskflow/internal/service"
)

// ─────────────────────────────────────────────────────────────
// ImportService unit tests
// Uses only the pure logic paths that don't require I/O:
//   - RunningJobsGuard prevents double-run
//   - WaitRunning / Stop
// Pipeline behavior is covered in internal/taskio.
// ─────────────────────────────────────────────────────────────

func TestImportService_NewImportService(t *testing.T) {
	emitter := &service.MockEmitter{}
	svc := service.NewImportService(nil, nil, nil, emitter)
	if svc == nil {
		t.Fatal("expected non-nil ImportService")
	}
}

func TestImportService_WaitRunning_Immediate(t *testing.T) {
	// With no running jobs, WaitRunning should return immediately
	emitter := &service.MockEmitter{}
	svc := service.NewImportService(nil, nil, nil, emitter)

	done := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		svc.WaitRunning(ctx)
		close(done)
	}()

	select {
	case <-done:
		// expected, no jobs running
	case <-time.After(500 * time.Millisecond):
		t.Fatal("WaitRunning hung with no running jobs")
	}
}

func TestImportService_Stop_Idempotent(t *testing.T) {
	// Stop with nothing started should not panic
	emitter := &service.MockEmitter{}
	svc := service.NewImportService(nil, nil, nil, emitter)
	svc.Stop()
	svc.Stop() // second call should also be safe
}

func TestImportService_CreateJob_UnknownSource(t *testing.T) {
	emitter := &service.MockEmitter{}
	svc := service.NewImportService(nil, nil, nil, emitter)

	_, err := svc.CreateJob(context.Background(), service.CreateImportJobInput{
		Name:       "bad",
		SourceType: "carrier_pigeon",
	})
	if err == nil {
		t.Fatal("expected error for unregistered source type")
	}
}

func TestImportService_PreviewSource_BadConfigJSON(t *testing.T) {
	emitter := &service.MockEmitter{}
	svc := service.NewImportService(nil, nil, nil, emitter)

	if _, err := svc.PreviewSource(context.Background(), "csv_file", "{broken"); err == nil {
		t.Fatal("expected error for malformed config JSON")
	}
}
