package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"taskflow/internal/domain"
	"taskflow/internal/flow"
	"taskflow/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Flow Service — flowchart lifecycle and open canvases
// ─────────────────────────────────────────────────────────────
//
// The flow.Canvas engine is single-threaded by contract. This service
// owns one canvas per open flowchart and serializes every call through
// a per-canvas mutex, so the frontend and the MCP server can both talk
// to the same chart safely.

// FlowService manages flowcharts and their open canvases.
type FlowService struct {
	store     domain.FlowchartStore
	revisions *storage.RevisionStore
	tasks     domain.TaskStore
	emitter   EventEmitter

	mu   sync.Mutex
	open map[string]*openCanvas
}

type openCanvas struct {
	mu     sync.Mutex
	canvas *flow.Canvas
}

// NewFlowService creates a FlowService.
func NewFlowService(
	store domain.FlowchartStore,
	revisions *storage.RevisionStore,
	tasks domain.TaskStore,
	emitter EventEmitter,
) *FlowService {
	return &FlowService{
		store:     store,
		revisions: revisions,
		tasks:     tasks,
		emitter:   emitter,
		open:      make(map[string]*openCanvas),
	}
}

// FlowView is the renderable snapshot handed to the frontend after every
// operation: runtime nodes and edges plus camera and history flags.
type FlowView struct {
	FlowchartID string             `json:"flowchartId"`
	Nodes       []flow.RuntimeNode `json:"nodes"`
	Edges       []flow.RuntimeEdge `json:"edges"`
	Viewport    flow.Viewport      `json:"viewport"`
	NeedsFit    bool               `json:"needsFit"`
	CanUndo     bool               `json:"canUndo"`
	CanRedo     bool               `json:"canRedo"`
}

// ── Flowchart CRUD ─────────────────────────────────────────

func (s *FlowService) CreateFlowchart(name string) (*domain.Flowchart, error) {
	if name == "" {
		name = "Untitled flowchart"
	}
	f := &domain.Flowchart{ID: uuid.New().String(), Name: name}
	if err := s.store.CreateFlowchart(f); err != nil {
		return nil, fmt.Errorf("create flowchart: %w", err)
	}
	return f, nil
}

func (s *FlowService) ListFlowcharts() ([]domain.Flowchart, error) {
	return s.store.ListFlowcharts()
}

func (s *FlowService) RenameFlowchart(id, name string) error {
	f, err := s.store.GetFlowchart(id)
	if err != nil {
		return err
	}
	f.Name = name
	return s.store.UpdateFlowchart(f)
}

func (s *FlowService) DeleteFlowchart(id string) error {
	s.mu.Lock()
	delete(s.open, id)
	s.mu.Unlock()
	return s.store.DeleteFlowchart(id)
}

// ── Open / Close ───────────────────────────────────────────

// OpenFlowchart mounts a flowchart into an in-memory canvas. Opening an
// already open chart returns its current view; history and selection
// survive.
func (s *FlowService) OpenFlowchart(id string) (*FlowView, error) {
	s.mu.Lock()
	if entry, ok := s.open[id]; ok {
		s.mu.Unlock()
		entry.mu.Lock()
		defer entry.mu.Unlock()
		return s.viewLocked(id, entry.canvas), nil
	}
	s.mu.Unlock()

	f, err := s.store.GetFlowchart(id)
	if err != nil {
		return nil, err
	}

	var state flow.State
	if f.StateJSON != "" {
		if err := json.Unmarshal([]byte(f.StateJSON), &state); err != nil {
			return nil, fmt.Errorf("decode flowchart state: %w", err)
		}
	}

	entry := &openCanvas{}
	entry.canvas = flow.NewCanvas(state, flow.Callbacks{
		OnPatchesApplied: func(applied []flow.Patch) {
			s.persistState(id, entry.canvas)
		},
		OnNodesEdgesChange: func(nodes []flow.Node, edges []flow.Edge) {
			if s.emitter != nil {
				s.emitter.Emit(context.Background(), "flow:state-changed", map[string]any{
					"flowchartId": id,
					"nodeCount":   len(nodes),
					"edgeCount":   len(edges),
				})
			}
		},
	})
	entry.canvas.SetRecords(s.taskRecords())

	s.mu.Lock()
	// Another caller may have opened the same chart between unlocks.
	if existing, ok := s.open[id]; ok {
		s.mu.Unlock()
		existing.mu.Lock()
		defer existing.mu.Unlock()
		return s.viewLocked(id, existing.canvas), nil
	}
	s.open[id] = entry
	s.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return s.viewLocked(id, entry.canvas), nil
}

// CloseFlowchart persists the final state and drops the in-memory
// canvas. The undo history goes with it.
func (s *FlowService) CloseFlowchart(id string) {
	s.mu.Lock()
	entry, ok := s.open[id]
	delete(s.open, id)
	s.mu.Unlock()
	if ok {
		entry.mu.Lock()
		s.persistState(id, entry.canvas)
		entry.mu.Unlock()
	}
}

// CloseAll persists and drops every open canvas. Called on shutdown.
func (s *FlowService) CloseAll() {
	s.mu.Lock()
	entries := make(map[string]*openCanvas, len(s.open))
	for id, entry := range s.open {
		entries[id] = entry
	}
	s.open = make(map[string]*openCanvas)
	s.mu.Unlock()

	for id, entry := range entries {
		entry.mu.Lock()
		s.persistState(id, entry.canvas)
		entry.mu.Unlock()
	}
}

// openEntry returns the canvas entry for an open flowchart.
func (s *FlowService) openEntry(id string) (*openCanvas, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.open[id]
	if !ok {
		return nil, fmt.Errorf("flowchart %s is not open", id)
	}
	return entry, nil
}

// withCanvas runs fn with the canvas entry locked and returns the
// resulting view.
func (s *FlowService) withCanvas(id string, fn func(c *flow.Canvas) error) (*FlowView, error) {
	entry, err := s.openEntry(id)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if err := fn(entry.canvas); err != nil {
		return nil, err
	}
	return s.viewLocked(id, entry.canvas), nil
}

// viewLocked snapshots the canvas into a FlowView. Caller holds the
// entry lock.
func (s *FlowService) viewLocked(id string, c *flow.Canvas) *FlowView {
	return &FlowView{
		FlowchartID: id,
		Nodes:       c.RuntimeNodes(),
		Edges:       c.RuntimeEdges(),
		Viewport:    c.Viewport(),
		NeedsFit:    c.NeedsFit(),
		CanUndo:     c.CanUndo(),
		CanRedo:     c.CanRedo(),
	}
}

// persistState writes the canvas state back to storage. Runs inside the
// patch callback: failures are logged, never surfaced to the edit that
// triggered them.
func (s *FlowService) persistState(id string, c *flow.Canvas) {
	raw, err := json.Marshal(c.State())
	if err != nil {
		log.Printf("flow: encode state for %s: %v", id, err)
		return
	}
	if err := s.store.SaveState(id, string(raw)); err != nil {
		log.Printf("flow: persist %s: %v", id, err)
	}
}

// taskRecords projects the task list into the record shape the canvas
// resolves node links against.
func (s *FlowService) taskRecords() []flow.TaskRecord {
	tasks, err := s.tasks.ListTasks()
	if err != nil {
		log.Printf("flow: list tasks for projection: %v", err)
		return nil
	}
	records := make([]flow.TaskRecord, len(tasks))
	for i, t := range tasks {
		records[i] = flow.TaskRecord{ID: t.ID, Title: t.Title, Status: string(t.Status)}
	}
	return records
}

// RefreshRecords re-projects the task list into every open canvas.
// Called after task edits and after import runs.
func (s *FlowService) RefreshRecords(ctx context.Context) {
	records := s.taskRecords()

	s.mu.Lock()
	entries := make(map[string]*openCanvas, len(s.open))
	for id, e := range s.open {
		entries[id] = e
	}
	s.mu.Unlock()

	for _, entry := range entries {
		entry.mu.Lock()
		entry.canvas.SetRecords(records)
		entry.mu.Unlock()
	}
	if len(entries) > 0 && s.emitter != nil {
		s.emitter.Emit(ctx, "flow:records-refreshed", nil)
	}
}

// ── Editing ────────────────────────────────────────────────

// ApplyPatches folds a raw patch batch into an open canvas and reports
// both the new view and any rejected entries.
func (s *FlowService) ApplyPatches(id string, patches []flow.Patch) (*FlowView, []flow.Rejected, error) {
	entry, err := s.openEntry(id)
	if err != nil {
		return nil, nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	rejected := entry.canvas.ApplyPatches(patches)
	return s.viewLocked(id, entry.canvas), rejected, nil
}

// AddNodeInput carries the fields for placing a new node.
type AddNodeInput struct {
	Type   string  `json:"type"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Label  string  `json:"label"`
	TaskID string  `json:"taskId"`
}

func (s *FlowService) AddNode(id string, input AddNodeInput) (*flow.Node, error) {
	entry, err := s.openEntry(id)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.canvas.AddNode(flow.Node{
		Type:     flow.NodeType(input.Type),
		Position: flow.Position{X: input.X, Y: input.Y},
		Data:     flow.NodeData{Label: input.Label, TaskID: input.TaskID},
	})
}

func (s *FlowService) UpdateNode(id, nodeID string, ch flow.NodeChanges) (*FlowView, error) {
	return s.withCanvas(id, func(c *flow.Canvas) error {
		return c.UpdateNode(nodeID, ch)
	})
}

func (s *FlowService) RemoveNode(id, nodeID string) (*FlowView, error) {
	return s.withCanvas(id, func(c *flow.Canvas) error {
		return c.RemoveNode(nodeID)
	})
}

// ConnectInput carries the fields for wiring two nodes.
type ConnectInput struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle"`
	TargetHandle string `json:"targetHandle"`
	Label        string `json:"label"`
}

func (s *FlowService) Connect(id string, input ConnectInput) (*flow.Edge, error) {
	entry, err := s.openEntry(id)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.canvas.Connect(flow.Edge{
		Source:       input.Source,
		Target:       input.Target,
		SourceHandle: input.SourceHandle,
		TargetHandle: input.TargetHandle,
		Label:        input.Label,
	})
}

func (s *FlowService) UpdateEdge(id, edgeID string, ch flow.EdgeChanges) (*FlowView, error) {
	return s.withCanvas(id, func(c *flow.Canvas) error {
		return c.UpdateEdge(edgeID, ch)
	})
}

func (s *FlowService) RemoveEdge(id, edgeID string) (*FlowView, error) {
	return s.withCanvas(id, func(c *flow.Canvas) error {
		return c.RemoveEdge(edgeID)
	})
}

func (s *FlowService) SetViewport(id string, v flow.Viewport) error {
	_, err := s.withCanvas(id, func(c *flow.Canvas) error {
		return c.SetViewport(v)
	})
	return err
}

func (s *FlowService) Undo(id string) (*FlowView, error) {
	return s.withCanvas(id, func(c *flow.Canvas) error {
		c.Undo()
		return nil
	})
}

func (s *FlowService) Redo(id string) (*FlowView, error) {
	return s.withCanvas(id, func(c *flow.Canvas) error {
		c.Redo()
		return nil
	})
}

// ── Interaction ────────────────────────────────────────────

func (s *FlowService) Select(id, elementID string, selected bool) (*FlowView, error) {
	return s.withCanvas(id, func(c *flow.Canvas) error {
		c.Select(elementID, selected)
		return nil
	})
}

func (s *FlowService) Highlight(id, elementID string, on bool) (*FlowView, error) {
	return s.withCanvas(id, func(c *flow.Canvas) error {
		c.Highlight(elementID, on)
		return nil
	})
}

func (s *FlowService) DragStart(id, nodeID string) (bool, error) {
	entry, err := s.openEntry(id)
	if err != nil {
		return false, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.canvas.DragStart(nodeID), nil
}

func (s *FlowService) DragMove(id, nodeID string, x, y float64) error {
	entry, err := s.openEntry(id)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.canvas.DragMove(nodeID, flow.Position{X: x, Y: y})
	return nil
}

func (s *FlowService) DragEnd(id, nodeID string) (*FlowView, error) {
	return s.withCanvas(id, func(c *flow.Canvas) error {
		c.DragEnd(nodeID)
		return nil
	})
}

// ── Revisions ──────────────────────────────────────────────

// SaveRevision checkpoints the current state of an open flowchart under
// a label.
func (s *FlowService) SaveRevision(id, label string) (*storage.Revision, error) {
	if s.revisions == nil {
		return nil, fmt.Errorf("revisions unavailable")
	}
	entry, err := s.openEntry(id)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	raw, err := json.Marshal(entry.canvas.State())
	entry.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return s.revisions.CreateRevision(id, label, string(raw))
}

func (s *FlowService) ListRevisions(id string) ([]storage.Revision, error) {
	if s.revisions == nil {
		return nil, fmt.Errorf("revisions unavailable")
	}
	return s.revisions.ListRevisions(id)
}

// RestoreRevision replaces a flowchart's state with a stored checkpoint.
// The canvas is remounted, which clears its undo history.
func (s *FlowService) RestoreRevision(id, revisionID string) (*FlowView, error) {
	if s.revisions == nil {
		return nil, fmt.Errorf("revisions unavailable")
	}
	rev, err := s.revisions.GetRevision(revisionID)
	if err != nil {
		return nil, err
	}
	if rev.FlowchartID != id {
		return nil, fmt.Errorf("revision %s belongs to another flowchart", revisionID)
	}
	if err := s.store.SaveState(id, rev.StateJSON); err != nil {
		return nil, fmt.Errorf("restore state: %w", err)
	}
	s.CloseFlowchart(id)
	return s.OpenFlowchart(id)
}
