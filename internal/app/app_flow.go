package app

import (
	"taskflow/internal/domain"
	"taskflow/internal/flow"
	"taskflow/internal/service"
	"taskflow/internal/storage"
)

// ============================================================
// Flowcharts
// ============================================================

func (a *App) ListFlowcharts() ([]domain.Flowchart, error) {
	return a.flows.ListFlowcharts()
}

func (a *App) CreateFlowchart(name string) (*domain.Flowchart, error) {
	return a.flows.CreateFlowchart(name)
}

func (a *App) RenameFlowchart(id, name string) error {
	return a.flows.RenameFlowchart(id, name)
}

func (a *App) DeleteFlowchart(id string) error {
	return a.flows.DeleteFlowchart(id)
}

// OpenFlowchart mounts the chart's canvas and returns the renderable
// view. Opening an already open chart returns its current view.
func (a *App) OpenFlowchart(id string) (*service.FlowView, error) {
	return a.flows.OpenFlowchart(id)
}

// CloseFlowchart persists the final state and releases the canvas.
func (a *App) CloseFlowchart(id string) {
	a.flows.CloseFlowchart(id)
}

// ── Editing ────────────────────────────────────────────────

// RejectedPatch is the frontend view of a patch the engine refused.
// The rest of the batch still applies.
type RejectedPatch struct {
	Index  int    `json:"index"`
	Op     string `json:"op"`
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
}

// ApplyPatchesResult bundles the post-batch view with the rejections.
type ApplyPatchesResult struct {
	View     *service.FlowView `json:"view"`
	Rejected []RejectedPatch   `json:"rejected"`
}

// ApplyFlowPatches applies a patch batch to an open chart. Rejected
// patches are reported; applied ones stand.
func (a *App) ApplyFlowPatches(id string, patches []flow.Patch) (*ApplyPatchesResult, error) {
	view, rejected, err := a.flows.ApplyPatches(id, patches)
	if err != nil {
		return nil, err
	}

	out := make([]RejectedPatch, 0, len(rejected))
	for _, r := range rejected {
		rp := RejectedPatch{Index: r.Index, Op: string(r.Patch.Op), ID: r.Patch.ID}
		if r.Err != nil {
			rp.Reason = r.Err.Error()
		}
		out = append(out, rp)
	}
	return &ApplyPatchesResult{View: view, Rejected: out}, nil
}

func (a *App) AddFlowNode(id string, input service.AddNodeInput) (*flow.Node, error) {
	return a.flows.AddNode(id, input)
}

func (a *App) UpdateFlowNode(id, nodeID string, ch flow.NodeChanges) (*service.FlowView, error) {
	return a.flows.UpdateNode(id, nodeID, ch)
}

func (a *App) RemoveFlowNode(id, nodeID string) (*service.FlowView, error) {
	return a.flows.RemoveNode(id, nodeID)
}

// ConnectFlowNodes wires two nodes. Edges that would close a cycle are
// refused.
func (a *App) ConnectFlowNodes(id string, input service.ConnectInput) (*flow.Edge, error) {
	return a.flows.Connect(id, input)
}

func (a *App) UpdateFlowEdge(id, edgeID string, ch flow.EdgeChanges) (*service.FlowView, error) {
	return a.flows.UpdateEdge(id, edgeID, ch)
}

func (a *App) RemoveFlowEdge(id, edgeID string) (*service.FlowView, error) {
	return a.flows.RemoveEdge(id, edgeID)
}

func (a *App) SetFlowViewport(id string, v flow.Viewport) error {
	return a.flows.SetViewport(id, v)
}

func (a *App) UndoFlow(id string) (*service.FlowView, error) {
	return a.flows.Undo(id)
}

func (a *App) RedoFlow(id string) (*service.FlowView, error) {
	return a.flows.Redo(id)
}

// ── Interaction state ──────────────────────────────────────

func (a *App) SelectFlowElement(id, elementID string, selected bool) (*service.FlowView, error) {
	return a.flows.Select(id, elementID, selected)
}

func (a *App) HighlightFlowElement(id, elementID string, on bool) (*service.FlowView, error) {
	return a.flows.Highlight(id, elementID, on)
}

// FlowDragStart begins a node drag. Returns false when the node is
// locked or missing; the frontend then skips the gesture.
func (a *App) FlowDragStart(id, nodeID string) (bool, error) {
	return a.flows.DragStart(id, nodeID)
}

// FlowDragMove updates the in-flight drag position. No history entry
// and no persistence until FlowDragEnd.
func (a *App) FlowDragMove(id, nodeID string, x, y float64) error {
	return a.flows.DragMove(id, nodeID, x, y)
}

// FlowDragEnd commits the drag as a single undoable move.
func (a *App) FlowDragEnd(id, nodeID string) (*service.FlowView, error) {
	return a.flows.DragEnd(id, nodeID)
}

// ── Revisions ──────────────────────────────────────────────

func (a *App) SaveFlowRevision(id, label string) (*storage.Revision, error) {
	return a.flows.SaveRevision(id, label)
}

func (a *App) ListFlowRevisions(id string) ([]storage.Revision, error) {
	return a.flows.ListRevisions(id)
}

func (a *App) RestoreFlowRevision(id, revisionID string) (*service.FlowView, error) {
	return a.flows.RestoreRevision(id, revisionID)
}
