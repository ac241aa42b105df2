package flow_test

import (
	"errors"
	"testing"

	"taskflow/internal/flow"
)

// ─────────────────────────────────────────────────────────────
// Canvas controller tests: patch orchestration, undo/redo,
// drag lifecycle, reconciliation and the change callbacks.
// ─────────────────────────────────────────────────────────────

type canvasRecorder struct {
	batches      [][]flow.Patch
	contentFires int
}

func (r *canvasRecorder) callbacks() flow.Callbacks {
	return flow.Callbacks{
		OnPatchesApplied: func(applied []flow.Patch) {
			batch := make([]flow.Patch, len(applied))
			copy(batch, applied)
			r.batches = append(r.batches, batch)
		},
		OnNodesEdgesChange: func([]flow.Node, []flow.Edge) {
			r.contentFires++
		},
	}
}

func (r *canvasRecorder) appliedOps() []flow.PatchOp {
	var ops []flow.PatchOp
	for _, batch := range r.batches {
		for _, p := range batch {
			ops = append(ops, p.Op)
		}
	}
	return ops
}

func newTestCanvas(t *testing.T) (*flow.Canvas, *canvasRecorder) {
	t.Helper()
	rec := &canvasRecorder{}
	c := flow.NewCanvas(flow.State{Viewport: flow.Viewport{Zoom: 1}}, rec.callbacks())
	return c, rec
}

func TestNewCanvas_ZeroViewportNeedsFit(t *testing.T) {
	c := flow.NewCanvas(flow.State{}, flow.Callbacks{})
	if !c.NeedsFit() {
		t.Error("a document without a usable viewport must request a fit")
	}
	if v := c.Viewport(); v != (flow.Viewport{Zoom: 1}) {
		t.Errorf("viewport = %+v, want identity", v)
	}
}

func TestNewCanvas_RestoresViewport(t *testing.T) {
	c := flow.NewCanvas(flow.State{Viewport: flow.Viewport{X: 5, Y: 6, Zoom: 1.5}}, flow.Callbacks{})
	if c.NeedsFit() {
		t.Error("a saved viewport must be restored, not refit")
	}
	if v := c.Viewport(); v != (flow.Viewport{X: 5, Y: 6, Zoom: 1.5}) {
		t.Errorf("viewport = %+v", v)
	}
}

func TestNewCanvas_NormalizesOnMount(t *testing.T) {
	c := flow.NewCanvas(flow.State{
		Nodes:    []flow.Node{rectNode("a", 0, 0)},
		Edges:    []flow.Edge{edgeBetween("dangling", "a", "ghost")},
		Viewport: flow.Viewport{Zoom: 1},
	}, flow.Callbacks{})
	if len(c.Edges()) != 0 {
		t.Error("dangling edge survived the mount normalization")
	}
}

func TestCanvas_AddNode_MintsID(t *testing.T) {
	c, _ := newTestCanvas(t)
	n, err := c.AddNode(flow.Node{Type: flow.NodeRectangle})
	if err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	if n.ID == "" {
		t.Error("expected a minted id")
	}
}

func TestCanvas_Connect_UnknownEndpoint(t *testing.T) {
	c, _ := newTestCanvas(t)
	if _, err := c.AddNode(rectNode("a", 0, 0)); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Connect(flow.Edge{Source: "a", Target: "ghost"}); err == nil {
		t.Error("connecting to a missing node must fail")
	}
}

func TestCanvas_Connect_RejectsCycle(t *testing.T) {
	c, _ := newTestCanvas(t)
	for _, n := range []flow.Node{rectNode("a", 0, 0), rectNode("b", 100, 0)} {
		if _, err := c.AddNode(n); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := c.Connect(flow.Edge{Source: "a", Target: "b"}); err != nil {
		t.Fatalf("a->b should connect: %v", err)
	}
	_, err := c.Connect(flow.Edge{Source: "b", Target: "a"})
	if !errors.Is(err, flow.ErrWouldCycle) {
		t.Errorf("b->a error = %v, want ErrWouldCycle", err)
	}
	_, err = c.Connect(flow.Edge{Source: "a", Target: "a"})
	if !errors.Is(err, flow.ErrWouldCycle) {
		t.Errorf("self-loop error = %v, want ErrWouldCycle", err)
	}
}

// After two edits, two undos and a redo, the canvas applies exactly the
// inverse of the second edit, the inverse of the first, then the first
// again.
func TestCanvas_UndoRedo_AppliedSequence(t *testing.T) {
	c, rec := newTestCanvas(t)
	if _, err := c.AddNode(rectNode("a", 0, 0)); err != nil {
		t.Fatal(err)
	}
	pos := flow.Position{X: 50, Y: 60}
	if err := c.UpdateNode("a", flow.NodeChanges{Position: &pos}); err != nil {
		t.Fatal(err)
	}
	rec.batches = nil

	if !c.Undo() {
		t.Fatal("first undo failed")
	}
	if got := c.Nodes()[0].Position; got != (flow.Position{X: 0, Y: 0}) {
		t.Errorf("after undo of move, position = %+v", got)
	}
	if !c.Undo() {
		t.Fatal("second undo failed")
	}
	if len(c.Nodes()) != 0 {
		t.Error("after undo of add, node should be gone")
	}
	if !c.Redo() {
		t.Fatal("redo failed")
	}
	if len(c.Nodes()) != 1 || c.Nodes()[0].Position != (flow.Position{X: 0, Y: 0}) {
		t.Errorf("redo should restore the node at its pre-move position, got %+v", c.Nodes())
	}

	want := []flow.PatchOp{flow.OpUpdateNode, flow.OpRemoveNode, flow.OpAddNode}
	got := rec.appliedOps()
	if len(got) != len(want) {
		t.Fatalf("applied ops = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("applied op %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestCanvas_EditAfterUndoDiscardsRedo(t *testing.T) {
	c, _ := newTestCanvas(t)
	if _, err := c.AddNode(rectNode("a", 0, 0)); err != nil {
		t.Fatal(err)
	}
	if !c.Undo() {
		t.Fatal("undo failed")
	}
	if !c.CanRedo() {
		t.Fatal("redo stack should hold the undone add")
	}
	if _, err := c.AddNode(rectNode("b", 0, 0)); err != nil {
		t.Fatal(err)
	}
	if c.CanRedo() {
		t.Error("a fresh edit must discard the redo stack")
	}
}

func TestCanvas_UndoEmptyIsNoOp(t *testing.T) {
	c, rec := newTestCanvas(t)
	if c.Undo() || c.Redo() {
		t.Error("undo/redo on empty history must report false")
	}
	if len(rec.batches) != 0 {
		t.Error("no patches should have been applied")
	}
}

func TestCanvas_ViewportUndo(t *testing.T) {
	c, _ := newTestCanvas(t)
	if err := c.SetViewport(flow.Viewport{X: 100, Y: 50, Zoom: 2}); err != nil {
		t.Fatal(err)
	}
	if !c.Undo() {
		t.Fatal("undo failed")
	}
	if v := c.Viewport(); v != (flow.Viewport{Zoom: 1}) {
		t.Errorf("viewport after undo = %+v, want the prior transform", v)
	}
	if !c.Redo() {
		t.Fatal("redo failed")
	}
	if v := c.Viewport(); v != (flow.Viewport{X: 100, Y: 50, Zoom: 2}) {
		t.Errorf("viewport after redo = %+v", v)
	}
}

func TestCanvas_ViewportOnlyBatchSkipsContentCallback(t *testing.T) {
	c, rec := newTestCanvas(t)
	if err := c.SetViewport(flow.Viewport{X: 1, Y: 2, Zoom: 1}); err != nil {
		t.Fatal(err)
	}
	if len(rec.batches) != 1 {
		t.Fatalf("OnPatchesApplied fired %d times, want 1", len(rec.batches))
	}
	if rec.contentFires != 0 {
		t.Error("a viewport-only batch must not fire OnNodesEdgesChange")
	}
	if _, err := c.AddNode(rectNode("a", 0, 0)); err != nil {
		t.Fatal(err)
	}
	if rec.contentFires != 1 {
		t.Errorf("content callback fired %d times after a node add, want 1", rec.contentFires)
	}
}

func TestCanvas_SelectionIsNotUndoable(t *testing.T) {
	c, rec := newTestCanvas(t)
	if _, err := c.AddNode(rectNode("a", 0, 0)); err != nil {
		t.Fatal(err)
	}
	rec.batches = nil

	c.Select("a", true)
	c.Highlight("a", true)
	if len(rec.batches) != 0 {
		t.Error("interaction state must not produce patches")
	}
	if !c.RuntimeNodes()[0].Selected || !c.RuntimeNodes()[0].Highlighted {
		t.Error("flags not visible on the runtime node")
	}
}

// Reconciliation: a record refresh must not disturb selection, drag state
// or the live position; only the displayed label follows the record.
func TestCanvas_RecordRefreshPreservesEphemera(t *testing.T) {
	c, rec := newTestCanvas(t)
	n := linkedNode("a", "t1")
	if _, err := c.AddNode(n); err != nil {
		t.Fatal(err)
	}
	c.SetRecords([]flow.TaskRecord{{ID: "t1", Title: "Before", Status: "todo"}})
	c.Select("a", true)
	if !c.DragStart("a") {
		t.Fatal("drag refused")
	}
	c.DragMove("a", flow.Position{X: 10, Y: 20})
	rec.batches = nil

	c.SetRecords([]flow.TaskRecord{{ID: "t1", Title: "After", Status: "todo"}})

	rn := c.RuntimeNodes()[0]
	if !rn.Selected || !rn.Dragging {
		t.Errorf("ephemeral flags lost across record refresh: %+v", rn)
	}
	if rn.Position != (flow.Position{X: 10, Y: 20}) {
		t.Errorf("live position lost across record refresh: %+v", rn.Position)
	}
	if rn.Data.Label != "After" {
		t.Errorf("label = %q, want the refreshed title", rn.Data.Label)
	}
	if len(rec.batches) != 0 {
		t.Error("a record refresh is not an edit and must not apply patches")
	}
}

// End-to-end: build a two-node chart, reject the cycle, drag and release,
// then undo and redo the move.
func TestCanvas_DragMoveUndoRedo(t *testing.T) {
	c, rec := newTestCanvas(t)
	if _, err := c.AddNode(rectNode("a", 0, 0)); err != nil {
		t.Fatal(err)
	}
	if _, err := c.AddNode(rectNode("b", 100, 0)); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Connect(flow.Edge{Source: "a", Target: "b"}); err != nil {
		t.Fatalf("a->b should connect: %v", err)
	}
	if _, err := c.Connect(flow.Edge{Source: "b", Target: "a"}); !errors.Is(err, flow.ErrWouldCycle) {
		t.Fatalf("b->a should be rejected as a cycle, got %v", err)
	}
	rec.batches = nil

	if !c.DragStart("b") {
		t.Fatal("drag refused")
	}
	c.DragMove("b", flow.Position{X: 100, Y: 25})
	if got := c.Nodes()[1].Position; got != (flow.Position{X: 100, Y: 0}) {
		t.Errorf("persisted position moved mid-drag: %+v", got)
	}
	if len(rec.batches) != 0 {
		t.Fatal("intermediate drag frames must not emit patches")
	}
	c.DragMove("b", flow.Position{X: 100, Y: 50})
	c.DragEnd("b")

	if len(rec.batches) != 1 || len(rec.batches[0]) != 1 {
		t.Fatalf("expected exactly one patch from the drag, got %+v", rec.batches)
	}
	p := rec.batches[0][0]
	if p.Op != flow.OpUpdateNode || p.NodeChanges == nil || p.NodeChanges.Position == nil {
		t.Fatalf("drag patch = %+v, want a position update", p)
	}
	if *p.NodeChanges.Position != (flow.Position{X: 100, Y: 50}) {
		t.Errorf("patch position = %+v", *p.NodeChanges.Position)
	}

	if !c.Undo() {
		t.Fatal("undo failed")
	}
	if got := c.Nodes()[1].Position; got != (flow.Position{X: 100, Y: 0}) {
		t.Errorf("after undo, position = %+v", got)
	}
	if !c.Redo() {
		t.Fatal("redo failed")
	}
	if got := c.Nodes()[1].Position; got != (flow.Position{X: 100, Y: 50}) {
		t.Errorf("after redo, position = %+v", got)
	}
}

// End-to-end: removing a node prunes its edges lazily, and undoing the
// removal restores the node but not the pruned edges.
func TestCanvas_RemoveNodeUndoDoesNotRestoreEdges(t *testing.T) {
	c, _ := newTestCanvas(t)
	if _, err := c.AddNode(rectNode("a", 0, 0)); err != nil {
		t.Fatal(err)
	}
	if _, err := c.AddNode(rectNode("b", 100, 0)); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Connect(flow.Edge{ID: "e1", Source: "a", Target: "b"}); err != nil {
		t.Fatal(err)
	}

	if err := c.RemoveNode("a"); err != nil {
		t.Fatal(err)
	}
	for _, e := range c.Edges() {
		if e.Source == "a" || e.Target == "a" {
			t.Fatalf("edge %s still references the removed node", e.ID)
		}
	}
	if len(c.Edges()) != 0 {
		t.Fatalf("expected the dangling edge pruned, got %+v", c.Edges())
	}

	if !c.Undo() {
		t.Fatal("undo failed")
	}
	if c.State().FindNode("a") == nil {
		t.Error("undo did not restore the removed node")
	}
	if len(c.Edges()) != 0 {
		t.Error("undo of a node removal must not resurrect pruned edges")
	}
}

func TestCanvas_DragLockedNodeRefused(t *testing.T) {
	c, rec := newTestCanvas(t)
	n := rectNode("a", 0, 0)
	n.Data.IsLocked = true
	if _, err := c.AddNode(n); err != nil {
		t.Fatal(err)
	}
	rec.batches = nil

	if c.DragStart("a") {
		t.Error("locked node must refuse the drag")
	}
	c.DragMove("a", flow.Position{X: 9, Y: 9})
	c.DragEnd("a")
	if len(rec.batches) != 0 {
		t.Error("locked node emitted patches from a refused drag")
	}
	if got := c.Nodes()[0].Position; got != (flow.Position{X: 0, Y: 0}) {
		t.Errorf("locked node moved: %+v", got)
	}
}

func TestCanvas_DragBackToStartCommitsNothing(t *testing.T) {
	c, rec := newTestCanvas(t)
	if _, err := c.AddNode(rectNode("a", 10, 10)); err != nil {
		t.Fatal(err)
	}
	rec.batches = nil

	if !c.DragStart("a") {
		t.Fatal("drag refused")
	}
	c.DragMove("a", flow.Position{X: 50, Y: 50})
	c.DragMove("a", flow.Position{X: 10, Y: 10})
	c.DragEnd("a")
	if len(rec.batches) != 0 {
		t.Error("a drag that returns to its origin must not commit a patch")
	}
	if !c.CanUndo() {
		t.Error("the original add should still be undoable")
	}
}

func TestCanvas_RejectedPatchReported(t *testing.T) {
	c, _ := newTestCanvas(t)
	rej := c.ApplyPatches([]flow.Patch{{Op: flow.PatchOp("bogus")}})
	if len(rej) != 1 {
		t.Fatalf("expected one rejection, got %d", len(rej))
	}
	var malformed *flow.MalformedPatchError
	if !errors.As(rej[0].Err, &malformed) {
		t.Errorf("expected MalformedPatchError, got %v", rej[0].Err)
	}
}
