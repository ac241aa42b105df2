package flow

import (
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
)

// ErrWouldCycle is returned by Connect when the requested edge would close
// a directed cycle.
var ErrWouldCycle = errors.New("edge would create a cycle")

// Callbacks receive change notifications after a batch commits. They are
// fire-and-forget: the canvas does not wait on their results and they must
// not mutate the canvas. Reading the committed state is fine.
type Callbacks struct {
	// OnPatchesApplied fires with the patches that actually applied,
	// including those synthesized by undo and redo.
	OnPatchesApplied func(applied []Patch)

	// OnNodesEdgesChange fires when node or edge content changed. Batches
	// that only moved the viewport skip it.
	OnNodesEdgesChange func(nodes []Node, edges []Edge)
}

// Canvas owns the state of one open flowchart: the persisted document, the
// task records it references, the ephemeral interaction table and the undo
// history. It is not safe for concurrent use; the owning service
// serializes access.
type Canvas struct {
	state   State
	records []TaskRecord
	eph     *EphemeralTable
	history *History
	cb      Callbacks

	domainNodes  []DomainNode
	runtimeNodes []RuntimeNode
	runtimeEdges []RuntimeEdge

	needsFit bool
}

// NewCanvas mounts a persisted document. A document saved before any
// viewport existed carries a zero viewport; it is replaced with the
// identity transform and flagged so the front end can fit the graph into
// view once.
func NewCanvas(initial State, cb Callbacks) *Canvas {
	c := &Canvas{
		state:   Normalize(initial.Clone()),
		eph:     NewEphemeralTable(),
		history: NewHistory(DefaultHistoryLimit),
		cb:      cb,
	}
	if c.state.Viewport.Zoom <= 0 {
		c.state.Viewport = Viewport{Zoom: 1}
		c.needsFit = true
	}
	c.rebuild()
	return c
}

// NeedsFit reports whether the mounted document had no usable viewport and
// the view should be fitted to content.
func (c *Canvas) NeedsFit() bool { return c.needsFit }

// ApplyPatches folds a batch into the canvas. Each applied patch records
// its inverse for undo; rejected patches are logged and reported, and do
// not disturb the rest of the batch.
func (c *Canvas) ApplyPatches(patches []Patch) []Rejected {
	var (
		applied  []Patch
		rejected []Rejected
	)
	for i, p := range patches {
		inv := Invert(p, c.state)
		next, err := applyOne(c.state, p)
		if err != nil {
			log.Printf("flow: patch %d (%s) rejected: %v", i, p.Op, err)
			rejected = append(rejected, Rejected{Index: i, Patch: p, Err: err})
			continue
		}
		c.state = next
		if inv != nil {
			c.history.Record(*inv)
		}
		applied = append(applied, p)
	}
	if len(applied) > 0 {
		c.commit(applied)
	}
	return rejected
}

func (c *Canvas) commit(applied []Patch) {
	c.rebuild()
	if c.cb.OnPatchesApplied != nil {
		c.cb.OnPatchesApplied(applied)
	}
	if c.cb.OnNodesEdgesChange != nil && !viewportOnly(applied) {
		c.cb.OnNodesEdgesChange(c.Nodes(), c.Edges())
	}
}

func viewportOnly(patches []Patch) bool {
	for _, p := range patches {
		if p.Op != OpUpdateViewport {
			return false
		}
	}
	return true
}

// rebuild recomputes the derived tiers from the persisted state: prune
// dangling edges, drop stale ephemera, project task records and merge the
// runtime view.
func (c *Canvas) rebuild() {
	c.state = Normalize(c.state)

	keep := make(map[string]struct{}, len(c.state.Nodes)+len(c.state.Edges))
	for i := range c.state.Nodes {
		keep[c.state.Nodes[i].ID] = struct{}{}
	}
	for i := range c.state.Edges {
		keep[c.state.Edges[i].ID] = struct{}{}
	}
	c.eph.Prune(keep)

	c.domainNodes = Project(c.state.Nodes, c.records)
	c.remerge()
}

// remerge refreshes only the runtime tier. Interaction updates take this
// path since they touch neither the persisted state nor the projection.
func (c *Canvas) remerge() {
	c.runtimeNodes, c.runtimeEdges = BuildRuntime(c.domainNodes, c.state.Edges, c.eph)
}

// AddNode inserts a node, minting an id when none is given, and returns
// the stored node.
func (c *Canvas) AddNode(n Node) (*Node, error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if rej := c.ApplyPatches([]Patch{{Op: OpAddNode, Node: &n}}); len(rej) > 0 {
		return nil, rej[0].Err
	}
	return c.state.FindNode(n.ID), nil
}

// UpdateNode applies field changes to one node.
func (c *Canvas) UpdateNode(id string, ch NodeChanges) error {
	if rej := c.ApplyPatches([]Patch{{Op: OpUpdateNode, ID: id, NodeChanges: &ch}}); len(rej) > 0 {
		return rej[0].Err
	}
	return nil
}

// RemoveNode deletes a node. Its edges are pruned on the rebuild that
// follows, not by this patch.
func (c *Canvas) RemoveNode(id string) error {
	if rej := c.ApplyPatches([]Patch{{Op: OpRemoveNode, ID: id}}); len(rej) > 0 {
		return rej[0].Err
	}
	return nil
}

// Connect adds an edge after checking that both endpoints exist and that
// the edge would not close a cycle. An id is minted when none is given.
func (c *Canvas) Connect(e Edge) (*Edge, error) {
	if c.state.FindNode(e.Source) == nil {
		return nil, fmt.Errorf("source node %s not found", e.Source)
	}
	if c.state.FindNode(e.Target) == nil {
		return nil, fmt.Errorf("target node %s not found", e.Target)
	}
	if WouldCreateCycle(c.state.Edges, e.Source, e.Target) {
		return nil, fmt.Errorf("connect %s -> %s: %w", e.Source, e.Target, ErrWouldCycle)
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if rej := c.ApplyPatches([]Patch{{Op: OpAddEdge, Edge: &e}}); len(rej) > 0 {
		return nil, rej[0].Err
	}
	return c.state.FindEdge(e.ID), nil
}

// UpdateEdge applies field changes to one edge. Endpoints cannot change
// this way; rewiring is a remove followed by a Connect.
func (c *Canvas) UpdateEdge(id string, ch EdgeChanges) error {
	if rej := c.ApplyPatches([]Patch{{Op: OpUpdateEdge, ID: id, EdgeChanges: &ch}}); len(rej) > 0 {
		return rej[0].Err
	}
	return nil
}

// RemoveEdge deletes an edge.
func (c *Canvas) RemoveEdge(id string) error {
	if rej := c.ApplyPatches([]Patch{{Op: OpRemoveEdge, ID: id}}); len(rej) > 0 {
		return rej[0].Err
	}
	return nil
}

// SetViewport moves the camera.
func (c *Canvas) SetViewport(v Viewport) error {
	if rej := c.ApplyPatches([]Patch{{Op: OpUpdateViewport, Viewport: &v}}); len(rej) > 0 {
		return rej[0].Err
	}
	return nil
}

// Undo pops the most recent undo entry and applies it, pushing its inverse
// onto the redo stack. Returns false when there was nothing to undo or the
// entry could not be applied; a consumed entry is not restored.
func (c *Canvas) Undo() bool {
	p, ok := c.history.PopUndo()
	if !ok {
		return false
	}
	inv := Invert(p, c.state)
	if inv == nil {
		// The entity this entry touches is already gone; the entry is
		// consumed and nothing changes.
		return false
	}
	next, err := applyOne(c.state, p)
	if err != nil {
		log.Printf("flow: undo (%s) failed: %v", p.Op, err)
		return false
	}
	c.state = next
	c.history.PushRedo(*inv)
	c.commit([]Patch{p})
	return true
}

// Redo re-applies the most recently undone edit.
func (c *Canvas) Redo() bool {
	p, ok := c.history.PopRedo()
	if !ok {
		return false
	}
	inv := Invert(p, c.state)
	if inv == nil {
		return false
	}
	next, err := applyOne(c.state, p)
	if err != nil {
		log.Printf("flow: redo (%s) failed: %v", p.Op, err)
		return false
	}
	c.state = next
	c.history.PushUndo(*inv)
	c.commit([]Patch{p})
	return true
}

// Select sets or clears selection on a node or edge. Interaction state is
// ephemeral and never recorded in history.
func (c *Canvas) Select(id string, selected bool) {
	c.eph.Select(id, selected)
	c.remerge()
}

// Highlight sets or clears the highlight flag on a node or edge.
func (c *Canvas) Highlight(id string, on bool) {
	c.eph.Highlight(id, on)
	c.remerge()
}

// DragStart begins dragging a node. Locked and unknown nodes refuse the
// drag.
func (c *Canvas) DragStart(id string) bool {
	n := c.state.FindNode(id)
	if n == nil || n.Data.IsLocked {
		return false
	}
	c.eph.StartDrag(id, n.Position)
	c.remerge()
	return true
}

// DragMove streams an intermediate drag frame. Only the runtime tier
// moves; the persisted position is untouched and nothing is recorded.
func (c *Canvas) DragMove(id string, at Position) {
	c.eph.MoveDrag(id, at)
	c.remerge()
}

// DragEnd finishes a drag. The whole gesture collapses into one position
// patch, so undo restores the pre-drag position in a single step. Drags
// that end where they began, or on a node locked mid-drag, commit nothing.
func (c *Canvas) DragEnd(id string) {
	final, ok := c.eph.EndDrag(id)
	if !ok {
		c.remerge()
		return
	}
	n := c.state.FindNode(id)
	if n == nil || n.Data.IsLocked || n.Position == final {
		c.remerge()
		return
	}
	pos := final
	c.ApplyPatches([]Patch{{Op: OpUpdateNode, ID: id, NodeChanges: &NodeChanges{Position: &pos}}})
}

// SetRecords replaces the task records and reprojects. Record refreshes
// are not edits: no patch, no history entry, no change callbacks.
func (c *Canvas) SetRecords(records []TaskRecord) {
	c.records = make([]TaskRecord, len(records))
	copy(c.records, records)
	c.domainNodes = Project(c.state.Nodes, c.records)
	c.remerge()
}

// State returns a copy of the persisted document.
func (c *Canvas) State() State { return c.state.Clone() }

// Nodes returns a copy of the persisted nodes.
func (c *Canvas) Nodes() []Node {
	out := make([]Node, len(c.state.Nodes))
	copy(out, c.state.Nodes)
	return out
}

// Edges returns a copy of the persisted edges.
func (c *Canvas) Edges() []Edge {
	out := make([]Edge, len(c.state.Edges))
	copy(out, c.state.Edges)
	return out
}

// Viewport returns the current camera transform.
func (c *Canvas) Viewport() Viewport { return c.state.Viewport }

// RuntimeNodes returns the renderable nodes from the last recompute.
func (c *Canvas) RuntimeNodes() []RuntimeNode {
	out := make([]RuntimeNode, len(c.runtimeNodes))
	copy(out, c.runtimeNodes)
	return out
}

// RuntimeEdges returns the renderable edges from the last recompute.
func (c *Canvas) RuntimeEdges() []RuntimeEdge {
	out := make([]RuntimeEdge, len(c.runtimeEdges))
	copy(out, c.runtimeEdges)
	return out
}

func (c *Canvas) CanUndo() bool { return c.history.CanUndo() }
func (c *Canvas) CanRedo() bool { return c.history.CanRedo() }
