package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"taskflow/internal/domain"
	"taskflow/internal/flow"
	"taskflow/internal/service"
)

// ─────────────────────────────────────────────────────────────
// FlowService unit tests
// Fake stores, real canvas engine underneath.
// ─────────────────────────────────────────────────────────────

func newFlowService(t *testing.T) (*service.FlowService, *fakeFlowchartStore, *fakeTaskStore, *service.MockEmitter) {
	t.Helper()
	charts := newFakeFlowchartStore()
	tasks := &fakeTaskStore{}
	emitter := &service.MockEmitter{}
	svc := service.NewFlowService(charts, nil, tasks, emitter)
	return svc, charts, tasks, emitter
}

func openChart(t *testing.T, svc *service.FlowService) string {
	t.Helper()
	f, err := svc.CreateFlowchart("test chart")
	if err != nil {
		t.Fatalf("CreateFlowchart: %v", err)
	}
	if _, err := svc.OpenFlowchart(f.ID); err != nil {
		t.Fatalf("OpenFlowchart: %v", err)
	}
	return f.ID
}

func TestFlowService_CreateFlowchart(t *testing.T) {
	svc, charts, _, _ := newFlowService(t)

	f, err := svc.CreateFlowchart("")
	if err != nil {
		t.Fatalf("CreateFlowchart: %v", err)
	}
	if f.ID == "" {
		t.Error("expected a minted flowchart id")
	}
	if f.Name != "Untitled flowchart" {
		t.Errorf("expected default name, got %q", f.Name)
	}
	if _, err := charts.GetFlowchart(f.ID); err != nil {
		t.Errorf("expected chart persisted: %v", err)
	}
}

func TestFlowService_OpenFlowchart_FreshChartNeedsFit(t *testing.T) {
	svc, _, _, _ := newFlowService(t)
	f, _ := svc.CreateFlowchart("fresh")

	view, err := svc.OpenFlowchart(f.ID)
	if err != nil {
		t.Fatalf("OpenFlowchart: %v", err)
	}
	if view.Viewport.Zoom != 1 {
		t.Errorf("expected identity zoom, got %v", view.Viewport.Zoom)
	}
	if len(view.Nodes) != 0 || len(view.Edges) != 0 {
		t.Errorf("expected empty chart, got %d nodes %d edges", len(view.Nodes), len(view.Edges))
	}
	if view.CanUndo || view.CanRedo {
		t.Error("expected empty history on open")
	}
}

func TestFlowService_OpenFlowchart_MalformedState(t *testing.T) {
	svc, charts, _, _ := newFlowService(t)
	f, _ := svc.CreateFlowchart("broken")
	charts.SaveState(f.ID, "{not json")

	if _, err := svc.OpenFlowchart(f.ID); err == nil {
		t.Fatal("expected error for malformed state")
	}
}

func TestFlowService_OpenFlowchart_Unknown(t *testing.T) {
	svc, _, _, _ := newFlowService(t)
	if _, err := svc.OpenFlowchart("nope"); err == nil {
		t.Fatal("expected error for unknown flowchart")
	}
}

func TestFlowService_OperationsRequireOpenChart(t *testing.T) {
	svc, _, _, _ := newFlowService(t)
	f, _ := svc.CreateFlowchart("closed")

	if _, err := svc.AddNode(f.ID, service.AddNodeInput{Type: "rectangle"}); err == nil {
		t.Error("expected AddNode on closed chart to fail")
	}
	if _, err := svc.Undo(f.ID); err == nil {
		t.Error("expected Undo on closed chart to fail")
	}
	if _, _, err := svc.ApplyPatches(f.ID, nil); err == nil {
		t.Error("expected ApplyPatches on closed chart to fail")
	}
}

func TestFlowService_AddNode_PersistsState(t *testing.T) {
	svc, charts, _, _ := newFlowService(t)
	id := openChart(t, svc)

	n, err := svc.AddNode(id, service.AddNodeInput{Type: "rectangle", X: 100, Y: 50, Label: "build"})
	if err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	if n.ID == "" {
		t.Error("expected minted node id")
	}

	stored, _ := charts.GetFlowchart(id)
	if !strings.Contains(stored.StateJSON, n.ID) {
		t.Error("expected committed node in persisted state")
	}
	if charts.saves == 0 {
		t.Error("expected persistence callback to fire")
	}
}

func TestFlowService_Connect_RejectsCycle(t *testing.T) {
	svc, _, _, _ := newFlowService(t)
	id := openChart(t, svc)

	a, _ := svc.AddNode(id, service.AddNodeInput{Type: "rectangle", Label: "a"})
	b, _ := svc.AddNode(id, service.AddNodeInput{Type: "rectangle", Label: "b"})

	if _, err := svc.Connect(id, service.ConnectInput{Source: a.ID, Target: b.ID}); err != nil {
		t.Fatalf("Connect a->b: %v", err)
	}
	_, err := svc.Connect(id, service.ConnectInput{Source: b.ID, Target: a.ID})
	if !errors.Is(err, flow.ErrWouldCycle) {
		t.Fatalf("expected ErrWouldCycle, got %v", err)
	}
}

func TestFlowService_UndoRedo(t *testing.T) {
	svc, _, _, _ := newFlowService(t)
	id := openChart(t, svc)

	n, _ := svc.AddNode(id, service.AddNodeInput{Type: "text", Label: "scratch"})

	view, err := svc.Undo(id)
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if len(view.Nodes) != 0 {
		t.Fatalf("expected node removed by undo, got %d nodes", len(view.Nodes))
	}
	if !view.CanRedo {
		t.Error("expected redo available after undo")
	}

	view, err = svc.Redo(id)
	if err != nil {
		t.Fatalf("Redo: %v", err)
	}
	if len(view.Nodes) != 1 || view.Nodes[0].ID != n.ID {
		t.Errorf("expected node restored by redo, got %+v", view.Nodes)
	}
}

func TestFlowService_TaskLinkResolution(t *testing.T) {
	svc, _, tasks, _ := newFlowService(t)
	tasks.CreateTask(&domain.Task{ID: "t1", Title: "rotate certs", Status: domain.TaskStatusTodo})
	id := openChart(t, svc)

	n, err := svc.AddNode(id, service.AddNodeInput{Type: "rectangle", Label: "placeholder", TaskID: "t1"})
	if err != nil {
		t.Fatalf("AddNode: %v", err)
	}

	view, _ := svc.Select(id, n.ID, true)
	var got *flow.RuntimeNode
	for i := range view.Nodes {
		if view.Nodes[i].ID == n.ID {
			got = &view.Nodes[i]
		}
	}
	if got == nil {
		t.Fatal("node missing from view")
	}
	if got.Data.Label != "rotate certs" {
		t.Errorf("expected resolved task title as label, got %q", got.Data.Label)
	}
	if got.Data.Resolved == nil || got.Data.Resolved.Status != "todo" {
		t.Errorf("expected resolved record with status, got %+v", got.Data.Resolved)
	}
	if !got.Selected {
		t.Error("expected selection flag in view")
	}
}

func TestFlowService_RefreshRecords(t *testing.T) {
	svc, _, tasks, emitter := newFlowService(t)
	tasks.CreateTask(&domain.Task{ID: "t1", Title: "old title", Status: domain.TaskStatusTodo})
	id := openChart(t, svc)

	n, _ := svc.AddNode(id, service.AddNodeInput{Type: "rectangle", TaskID: "t1"})

	// Rename the task outside the canvas, then refresh projections.
	stored, _ := tasks.GetTask("t1")
	stored.Title = "new title"
	tasks.UpdateTask(stored)
	svc.RefreshRecords(context.Background())

	view, _ := svc.Select(id, n.ID, false)
	if view.Nodes[0].Data.Label != "new title" {
		t.Errorf("expected refreshed label, got %q", view.Nodes[0].Data.Label)
	}

	found := false
	for _, e := range emitter.Events {
		if e.Event == "flow:records-refreshed" {
			found = true
		}
	}
	if !found {
		t.Error("expected flow:records-refreshed event")
	}
}

func TestFlowService_DeletedTaskLeavesNodeStale(t *testing.T) {
	svc, _, tasks, _ := newFlowService(t)
	tasks.CreateTask(&domain.Task{ID: "t1", Title: "doomed", Status: domain.TaskStatusTodo})
	id := openChart(t, svc)

	n, _ := svc.AddNode(id, service.AddNodeInput{Type: "rectangle", Label: "fallback", TaskID: "t1"})

	tasks.DeleteTask("t1")
	svc.RefreshRecords(context.Background())

	view, _ := svc.Select(id, n.ID, false)
	node := view.Nodes[0]
	if node.Data.Resolved != nil {
		t.Error("expected nil Resolved after task deletion")
	}
	if node.Data.Label != "fallback" {
		t.Errorf("expected stored label to survive, got %q", node.Data.Label)
	}
}

func TestFlowService_DragLifecycle(t *testing.T) {
	svc, charts, _, _ := newFlowService(t)
	id := openChart(t, svc)

	n, _ := svc.AddNode(id, service.AddNodeInput{Type: "rectangle", X: 10, Y: 10})
	savesBefore := charts.saves

	ok, err := svc.DragStart(id, n.ID)
	if err != nil || !ok {
		t.Fatalf("DragStart: ok=%v err=%v", ok, err)
	}
	if err := svc.DragMove(id, n.ID, 200, 300); err != nil {
		t.Fatalf("DragMove: %v", err)
	}
	// Intermediate frames never persist.
	if charts.saves != savesBefore {
		t.Errorf("expected no persistence during drag, saves went %d -> %d", savesBefore, charts.saves)
	}

	view, err := svc.DragEnd(id, n.ID)
	if err != nil {
		t.Fatalf("DragEnd: %v", err)
	}
	if view.Nodes[0].Position.X != 200 || view.Nodes[0].Position.Y != 300 {
		t.Errorf("expected final position committed, got %+v", view.Nodes[0].Position)
	}
	if charts.saves == savesBefore {
		t.Error("expected drag end to persist")
	}
	if !view.CanUndo {
		t.Error("expected drag recorded as one undoable step")
	}
}

func TestFlowService_ApplyPatches_ReportsRejected(t *testing.T) {
	svc, _, _, _ := newFlowService(t)
	id := openChart(t, svc)

	label := "renamed"
	view, rejected, err := svc.ApplyPatches(id, []flow.Patch{
		{Op: flow.OpUpdateNode, ID: "ghost", NodeChanges: &flow.NodeChanges{Label: &label}},
	})
	if err != nil {
		t.Fatalf("ApplyPatches: %v", err)
	}
	if len(rejected) != 1 || rejected[0].Index != 0 {
		t.Fatalf("expected one rejection at index 0, got %+v", rejected)
	}
	if view == nil {
		t.Fatal("expected view even when patches are rejected")
	}
}

func TestFlowService_DeleteFlowchartClosesCanvas(t *testing.T) {
	svc, _, _, _ := newFlowService(t)
	id := openChart(t, svc)

	if err := svc.DeleteFlowchart(id); err != nil {
		t.Fatalf("DeleteFlowchart: %v", err)
	}
	if _, err := svc.AddNode(id, service.AddNodeInput{Type: "rectangle"}); err == nil {
		t.Error("expected operations to fail after delete")
	}
}

func TestFlowService_CloseFlowchart_PersistsFinalState(t *testing.T) {
	svc, charts, _, _ := newFlowService(t)
	id := openChart(t, svc)

	svc.AddNode(id, service.AddNodeInput{Type: "rectangle", Label: "keep me"})
	savesBefore := charts.saves

	svc.CloseFlowchart(id)
	if charts.saves != savesBefore+1 {
		t.Errorf("expected one final save on close, saves went %d -> %d", savesBefore, charts.saves)
	}
	if _, err := svc.Undo(id); err == nil {
		t.Error("expected chart closed")
	}
}

func TestFlowService_ReopenKeepsHistory(t *testing.T) {
	svc, _, _, _ := newFlowService(t)
	id := openChart(t, svc)

	svc.AddNode(id, service.AddNodeInput{Type: "rectangle", Label: "first"})

	// Opening an already open chart is idempotent.
	view, err := svc.OpenFlowchart(id)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if !view.CanUndo {
		t.Error("expected history to survive a redundant open")
	}
}

func TestFlowService_RevisionsUnavailableWithoutStore(t *testing.T) {
	svc, _, _, _ := newFlowService(t)
	id := openChart(t, svc)

	if _, err := svc.SaveRevision(id, "checkpoint"); err == nil {
		t.Error("expected error without a revision store")
	}
	if _, err := svc.ListRevisions(id); err == nil {
		t.Error("expected error without a revision store")
	}
}
