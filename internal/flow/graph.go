// Package flow implements the state engine behind the embedded flowchart
// editor: a patch-based mutation protocol over a persisted node/edge/viewport
// tuple, bounded undo/redo, cycle-safe connections, task-record enrichment,
// and reconciliation into the live objects the rendering surface manipulates.
//
// The engine is deliberately self-contained: it knows nothing about Wails,
// storage, or the task tables. Collaborators feed it task records and a
// persistence callback; it feeds them patches and change notifications.
package flow

import "encoding/json"

// NodeType enumerates the closed set of node shapes.
type NodeType string

const (
	NodeRectangle NodeType = "rectangle"
	NodeDiamond   NodeType = "diamond"
	NodeCircle    NodeType = "circle"
	NodeText      NodeType = "text"
)

// ValidNodeType reports whether t is a known node type.
func ValidNodeType(t NodeType) bool {
	switch t {
	case NodeRectangle, NodeDiamond, NodeCircle, NodeText:
		return true
	}
	return false
}

// Position is a point in diagram coordinates.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData is the persisted node payload. TaskID references an external
// task record; resolution happens in the projector, never here.
type NodeData struct {
	Label    string          `json:"label"`
	TaskID   string          `json:"taskId,omitempty"`
	Style    json.RawMessage `json:"style,omitempty"`
	IsLocked bool            `json:"isLocked,omitempty"`
}

// Node is a persisted node. Owned exclusively by the Canvas; mutated only
// through patches.
type Node struct {
	ID       string   `json:"id"`
	Type     NodeType `json:"type"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// Edge is a persisted directed edge. Source and target must reference
// existing node ids; an edge whose endpoint is gone is dropped during
// normalization, not synchronously on node removal.
type Edge struct {
	ID           string          `json:"id"`
	Source       string          `json:"source"`
	Target       string          `json:"target"`
	SourceHandle string          `json:"sourceHandle,omitempty"`
	TargetHandle string          `json:"targetHandle,omitempty"`
	Type         string          `json:"type,omitempty"`
	Label        string          `json:"label,omitempty"`
	Style        json.RawMessage `json:"style,omitempty"`
	MarkerStart  string          `json:"markerStart,omitempty"`
	MarkerEnd    string          `json:"markerEnd,omitempty"`
	Animated     bool            `json:"animated,omitempty"`
}

// Viewport is the persisted pan/zoom of the rendering surface. Zoom must
// stay positive.
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// State is the persisted tuple. Its JSON form is the compatibility surface
// for storage and the frontend; nothing outside this tuple survives a
// reload.
type State struct {
	Nodes    []Node   `json:"nodes"`
	Edges    []Edge   `json:"edges"`
	Viewport Viewport `json:"viewport"`
}

// FindNode returns a copy of the node with the given id, or nil.
func (s State) FindNode(id string) *Node {
	for i := range s.Nodes {
		if s.Nodes[i].ID == id {
			n := s.Nodes[i]
			return &n
		}
	}
	return nil
}

// FindEdge returns a copy of the edge with the given id, or nil.
func (s State) FindEdge(id string) *Edge {
	for i := range s.Edges {
		if s.Edges[i].ID == id {
			e := s.Edges[i]
			return &e
		}
	}
	return nil
}

// Clone returns a state whose slices are independent of the receiver.
// Style payloads are shared: they are treated as immutable once set.
func (s State) Clone() State {
	out := State{Viewport: s.Viewport}
	if s.Nodes != nil {
		out.Nodes = make([]Node, len(s.Nodes))
		copy(out.Nodes, s.Nodes)
	}
	if s.Edges != nil {
		out.Edges = make([]Edge, len(s.Edges))
		copy(out.Edges, s.Edges)
	}
	return out
}

// TaskRecord is the read-only slice of an external task the projector
// consumes. The engine never writes these.
type TaskRecord struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

// DomainNode is a persisted node enriched with its resolved task record.
// Purely derived, never persisted; a nil Resolved is the normal state for
// a node whose task was deleted, not an error.
type DomainNode struct {
	Node
	Resolved *TaskRecord `json:"resolved,omitempty"`
}
