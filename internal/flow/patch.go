package flow

import (
	"encoding/json"
	"fmt"
)

// PatchOp tags the patch union.
type PatchOp string

const (
	OpAddNode        PatchOp = "addNode"
	OpUpdateNode     PatchOp = "updateNode"
	OpRemoveNode     PatchOp = "removeNode"
	OpAddEdge        PatchOp = "addEdge"
	OpUpdateEdge     PatchOp = "updateEdge"
	OpRemoveEdge     PatchOp = "removeEdge"
	OpUpdateViewport PatchOp = "updateViewport"
)

// Patch is the sole unit of mutation and of undo granularity: a closed
// tagged union over the seven operations. Only the payload fields for the
// tagged op are set; the rest stay nil.
type Patch struct {
	Op PatchOp `json:"op"`

	// addNode / addEdge payloads.
	Node *Node `json:"node,omitempty"`
	Edge *Edge `json:"edge,omitempty"`

	// Target of the update and remove ops.
	ID string `json:"id,omitempty"`

	// Field-level changes for the update ops.
	NodeChanges *NodeChanges `json:"nodeChanges,omitempty"`
	EdgeChanges *EdgeChanges `json:"edgeChanges,omitempty"`

	// updateViewport payload.
	Viewport *Viewport `json:"viewport,omitempty"`
}

// NodeChanges lists the node fields an updateNode patch touches. Nil fields
// are left alone, so edits to unrelated fields survive inversion.
type NodeChanges struct {
	Position *Position        `json:"position,omitempty"`
	Label    *string          `json:"label,omitempty"`
	TaskID   *string          `json:"taskId,omitempty"`
	Style    *json.RawMessage `json:"style,omitempty"`
	IsLocked *bool            `json:"isLocked,omitempty"`
}

// EdgeChanges lists the edge fields an updateEdge patch touches. Endpoints
// are deliberately absent: rewiring is remove plus connect, so the cycle
// check always runs.
type EdgeChanges struct {
	Label        *string          `json:"label,omitempty"`
	Type         *string          `json:"type,omitempty"`
	SourceHandle *string          `json:"sourceHandle,omitempty"`
	TargetHandle *string          `json:"targetHandle,omitempty"`
	Style        *json.RawMessage `json:"style,omitempty"`
	MarkerStart  *string          `json:"markerStart,omitempty"`
	MarkerEnd    *string          `json:"markerEnd,omitempty"`
	Animated     *bool            `json:"animated,omitempty"`
}

// MalformedPatchError reports a patch whose shape is invalid: unknown op,
// missing payload, empty target id, unknown node type, self-loop edge, or
// non-positive zoom.
type MalformedPatchError struct {
	Op     PatchOp
	Reason string
}

func (e *MalformedPatchError) Error() string {
	return fmt.Sprintf("malformed patch %q: %s", e.Op, e.Reason)
}

func malformed(op PatchOp, reason string) error {
	return &MalformedPatchError{Op: op, Reason: reason}
}

// Rejected records one patch from a batch that did not apply.
type Rejected struct {
	Index int
	Patch Patch
	Err   error
}

// Apply folds patches over s in array order, returning the resulting state
// and the rejections. Each patch applies all-or-nothing, but a rejection
// neither rolls back earlier patches nor stops later ones.
func Apply(s State, patches []Patch) (State, []Rejected) {
	var rejected []Rejected
	for i, p := range patches {
		next, err := applyOne(s, p)
		if err != nil {
			rejected = append(rejected, Rejected{Index: i, Patch: p, Err: err})
			continue
		}
		s = next
	}
	return s, rejected
}

// applyOne applies a single patch, returning a new state. The input state
// is never mutated, whatever the outcome.
func applyOne(s State, p Patch) (State, error) {
	switch p.Op {
	case OpAddNode:
		if p.Node == nil {
			return s, malformed(p.Op, "missing node payload")
		}
		if p.Node.ID == "" {
			return s, malformed(p.Op, "node id is empty")
		}
		if !ValidNodeType(p.Node.Type) {
			return s, malformed(p.Op, fmt.Sprintf("unknown node type %q", p.Node.Type))
		}
		if s.FindNode(p.Node.ID) != nil {
			return s, fmt.Errorf("node %s already exists", p.Node.ID)
		}
		out := s.Clone()
		out.Nodes = append(out.Nodes, *p.Node)
		return out, nil

	case OpUpdateNode:
		if p.ID == "" {
			return s, malformed(p.Op, "node id is empty")
		}
		if p.NodeChanges == nil {
			return s, malformed(p.Op, "missing changes payload")
		}
		out := s.Clone()
		for i := range out.Nodes {
			if out.Nodes[i].ID == p.ID {
				applyNodeChanges(&out.Nodes[i], p.NodeChanges)
				return out, nil
			}
		}
		return s, fmt.Errorf("node %s not found", p.ID)

	case OpRemoveNode:
		if p.ID == "" {
			return s, malformed(p.Op, "node id is empty")
		}
		out := s.Clone()
		for i := range out.Nodes {
			if out.Nodes[i].ID == p.ID {
				out.Nodes = append(out.Nodes[:i], out.Nodes[i+1:]...)
				return out, nil
			}
		}
		// Removing an absent node is a no-op: deletes in one batch may
		// arrive in any order relative to normalization.
		return s, nil

	case OpAddEdge:
		if p.Edge == nil {
			return s, malformed(p.Op, "missing edge payload")
		}
		if p.Edge.ID == "" {
			return s, malformed(p.Op, "edge id is empty")
		}
		if p.Edge.Source == "" || p.Edge.Target == "" {
			return s, malformed(p.Op, "edge endpoint is empty")
		}
		if p.Edge.Source == p.Edge.Target {
			return s, malformed(p.Op, "edge source and target are identical")
		}
		if s.FindEdge(p.Edge.ID) != nil {
			return s, fmt.Errorf("edge %s already exists", p.Edge.ID)
		}
		out := s.Clone()
		out.Edges = append(out.Edges, *p.Edge)
		return out, nil

	case OpUpdateEdge:
		if p.ID == "" {
			return s, malformed(p.Op, "edge id is empty")
		}
		if p.EdgeChanges == nil {
			return s, malformed(p.Op, "missing changes payload")
		}
		out := s.Clone()
		for i := range out.Edges {
			if out.Edges[i].ID == p.ID {
				applyEdgeChanges(&out.Edges[i], p.EdgeChanges)
				return out, nil
			}
		}
		return s, fmt.Errorf("edge %s not found", p.ID)

	case OpRemoveEdge:
		if p.ID == "" {
			return s, malformed(p.Op, "edge id is empty")
		}
		out := s.Clone()
		for i := range out.Edges {
			if out.Edges[i].ID == p.ID {
				out.Edges = append(out.Edges[:i], out.Edges[i+1:]...)
				return out, nil
			}
		}
		// The edge may already have been pruned by normalization.
		return s, nil

	case OpUpdateViewport:
		if p.Viewport == nil {
			return s, malformed(p.Op, "missing viewport payload")
		}
		if p.Viewport.Zoom <= 0 {
			return s, malformed(p.Op, "viewport zoom must be positive")
		}
		out := s.Clone()
		out.Viewport = *p.Viewport
		return out, nil

	default:
		return s, malformed(p.Op, "unknown op")
	}
}

func applyNodeChanges(n *Node, ch *NodeChanges) {
	if ch.Position != nil {
		n.Position = *ch.Position
	}
	if ch.Label != nil {
		n.Data.Label = *ch.Label
	}
	if ch.TaskID != nil {
		n.Data.TaskID = *ch.TaskID
	}
	if ch.Style != nil {
		n.Data.Style = *ch.Style
	}
	if ch.IsLocked != nil {
		n.Data.IsLocked = *ch.IsLocked
	}
}

func applyEdgeChanges(e *Edge, ch *EdgeChanges) {
	if ch.Label != nil {
		e.Label = *ch.Label
	}
	if ch.Type != nil {
		e.Type = *ch.Type
	}
	if ch.SourceHandle != nil {
		e.SourceHandle = *ch.SourceHandle
	}
	if ch.TargetHandle != nil {
		e.TargetHandle = *ch.TargetHandle
	}
	if ch.Style != nil {
		e.Style = *ch.Style
	}
	if ch.MarkerStart != nil {
		e.MarkerStart = *ch.MarkerStart
	}
	if ch.MarkerEnd != nil {
		e.MarkerEnd = *ch.MarkerEnd
	}
	if ch.Animated != nil {
		e.Animated = *ch.Animated
	}
}

// Invert returns the patch that undoes p, given the state as it was before
// p applied. Remove inversions need the prior entity payload, since a
// remove patch alone does not carry it; update inversions restore only the
// fields the forward patch touched. A nil return means the prior snapshot
// is unavailable and the undo becomes a no-op rather than an error.
func Invert(p Patch, prior State) *Patch {
	switch p.Op {
	case OpAddNode:
		if p.Node == nil {
			return nil
		}
		return &Patch{Op: OpRemoveNode, ID: p.Node.ID}

	case OpUpdateNode:
		if p.NodeChanges == nil {
			return nil
		}
		n := prior.FindNode(p.ID)
		if n == nil {
			return nil
		}
		return &Patch{Op: OpUpdateNode, ID: p.ID, NodeChanges: invertNodeChanges(p.NodeChanges, n)}

	case OpRemoveNode:
		n := prior.FindNode(p.ID)
		if n == nil {
			return nil
		}
		return &Patch{Op: OpAddNode, Node: n}

	case OpAddEdge:
		if p.Edge == nil {
			return nil
		}
		return &Patch{Op: OpRemoveEdge, ID: p.Edge.ID}

	case OpUpdateEdge:
		if p.EdgeChanges == nil {
			return nil
		}
		e := prior.FindEdge(p.ID)
		if e == nil {
			return nil
		}
		return &Patch{Op: OpUpdateEdge, ID: p.ID, EdgeChanges: invertEdgeChanges(p.EdgeChanges, e)}

	case OpRemoveEdge:
		e := prior.FindEdge(p.ID)
		if e == nil {
			return nil
		}
		return &Patch{Op: OpAddEdge, Edge: e}

	case OpUpdateViewport:
		v := prior.Viewport
		return &Patch{Op: OpUpdateViewport, Viewport: &v}
	}
	return nil
}

// invertNodeChanges builds the changes that restore the fields ch touched
// to their values on the prior node.
func invertNodeChanges(ch *NodeChanges, prior *Node) *NodeChanges {
	inv := &NodeChanges{}
	if ch.Position != nil {
		pos := prior.Position
		inv.Position = &pos
	}
	if ch.Label != nil {
		label := prior.Data.Label
		inv.Label = &label
	}
	if ch.TaskID != nil {
		taskID := prior.Data.TaskID
		inv.TaskID = &taskID
	}
	if ch.Style != nil {
		style := prior.Data.Style
		inv.Style = &style
	}
	if ch.IsLocked != nil {
		locked := prior.Data.IsLocked
		inv.IsLocked = &locked
	}
	return inv
}

func invertEdgeChanges(ch *EdgeChanges, prior *Edge) *EdgeChanges {
	inv := &EdgeChanges{}
	if ch.Label != nil {
		label := prior.Label
		inv.Label = &label
	}
	if ch.Type != nil {
		typ := prior.Type
		inv.Type = &typ
	}
	if ch.SourceHandle != nil {
		h := prior.SourceHandle
		inv.SourceHandle = &h
	}
	if ch.TargetHandle != nil {
		h := prior.TargetHandle
		inv.TargetHandle = &h
	}
	if ch.Style != nil {
		style := prior.Style
		inv.Style = &style
	}
	if ch.MarkerStart != nil {
		m := prior.MarkerStart
		inv.MarkerStart = &m
	}
	if ch.MarkerEnd != nil {
		m := prior.MarkerEnd
		inv.MarkerEnd = &m
	}
	if ch.Animated != nil {
		a := prior.Animated
		inv.Animated = &a
	}
	return inv
}

// Normalize drops edges whose endpoints no longer resolve to nodes.
// Pruning is lazy: it runs on every canvas rebuild, never synchronously
// inside a node-removal patch, so deleting a node and deleting its edges
// stay independent patches. A pruned edge is not restored by undoing the
// node removal.
func Normalize(s State) State {
	ids := make(map[string]struct{}, len(s.Nodes))
	for i := range s.Nodes {
		ids[s.Nodes[i].ID] = struct{}{}
	}
	out := State{Viewport: s.Viewport}
	if s.Nodes != nil {
		out.Nodes = make([]Node, len(s.Nodes))
		copy(out.Nodes, s.Nodes)
	}
	for _, e := range s.Edges {
		if _, ok := ids[e.Source]; !ok {
			continue
		}
		if _, ok := ids[e.Target]; !ok {
			continue
		}
		out.Edges = append(out.Edges, e)
	}
	return out
}
