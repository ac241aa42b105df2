package flow

// Renderer names the front-end component a node type maps to.
const (
	RendererShape = "shape"
	RendererText  = "text"
)

// rendererFor maps a node type to its renderer. Unknown types fall back to
// the shape renderer so a newer persisted document still draws.
func rendererFor(t NodeType) string {
	switch t {
	case NodeRectangle, NodeDiamond, NodeCircle:
		return RendererShape
	case NodeText:
		return RendererText
	default:
		return RendererShape
	}
}

// RuntimeData is the node payload handed to the renderer: the persisted
// data plus the resolved task record, if any.
type RuntimeData struct {
	NodeData
	Resolved *TaskRecord `json:"resolved,omitempty"`
}

// RuntimeNode is one renderable node: persisted fields merged with the
// ephemeral interaction flags. Ephemera never reach storage; they are
// re-merged on every recompute.
type RuntimeNode struct {
	ID          string      `json:"id"`
	Type        NodeType    `json:"type"`
	Renderer    string      `json:"renderer"`
	Position    Position    `json:"position"`
	Data        RuntimeData `json:"data"`
	Selected    bool        `json:"selected,omitempty"`
	Dragging    bool        `json:"dragging,omitempty"`
	Highlighted bool        `json:"isHighlighted,omitempty"`
}

// RuntimeEdge is one renderable edge.
type RuntimeEdge struct {
	Edge
	Selected    bool `json:"selected,omitempty"`
	Highlighted bool `json:"isHighlighted,omitempty"`
}

type ephemera struct {
	selected    bool
	dragging    bool
	highlighted bool
	dragPos     *Position
}

// EphemeralTable is the side table of interaction state, keyed by node or
// edge id. Entries live outside the persisted state so selection, hover
// and in-flight drags never dirty the document.
type EphemeralTable struct {
	entries map[string]*ephemera
}

func NewEphemeralTable() *EphemeralTable {
	return &EphemeralTable{entries: make(map[string]*ephemera)}
}

func (t *EphemeralTable) get(id string) *ephemera {
	e, ok := t.entries[id]
	if !ok {
		e = &ephemera{}
		t.entries[id] = e
	}
	return e
}

// Select sets or clears the selected flag for an element.
func (t *EphemeralTable) Select(id string, selected bool) {
	t.get(id).selected = selected
}

// Highlight sets or clears the highlight flag for an element.
func (t *EphemeralTable) Highlight(id string, on bool) {
	t.get(id).highlighted = on
}

// StartDrag marks a node as dragging, seeding the live position with its
// persisted one.
func (t *EphemeralTable) StartDrag(id string, at Position) {
	e := t.get(id)
	e.dragging = true
	pos := at
	e.dragPos = &pos
}

// MoveDrag updates the live drag position. Ignored when no drag is active
// for the node.
func (t *EphemeralTable) MoveDrag(id string, at Position) {
	e, ok := t.entries[id]
	if !ok || !e.dragging {
		return
	}
	pos := at
	e.dragPos = &pos
}

// EndDrag clears the drag and returns the final live position.
func (t *EphemeralTable) EndDrag(id string) (Position, bool) {
	e, ok := t.entries[id]
	if !ok || !e.dragging || e.dragPos == nil {
		return Position{}, false
	}
	final := *e.dragPos
	e.dragging = false
	e.dragPos = nil
	return final, true
}

// Prune drops entries whose element no longer exists, so stale flags never
// leak onto a later element that reuses an id.
func (t *EphemeralTable) Prune(keep map[string]struct{}) {
	for id := range t.entries {
		if _, ok := keep[id]; !ok {
			delete(t.entries, id)
		}
	}
}

// BuildRuntime merges the domain tier with the ephemeral table into the
// renderable tier. A dragging node draws at its live position while its
// persisted position stays untouched until the drag commits. A node linked
// to a resolved task shows the task title as its label; the persisted
// label is the fallback for unlinked and stale nodes.
func BuildRuntime(nodes []DomainNode, edges []Edge, eph *EphemeralTable) ([]RuntimeNode, []RuntimeEdge) {
	outNodes := make([]RuntimeNode, len(nodes))
	for i, dn := range nodes {
		rn := RuntimeNode{
			ID:       dn.ID,
			Type:     dn.Type,
			Renderer: rendererFor(dn.Type),
			Position: dn.Position,
			Data:     RuntimeData{NodeData: dn.Data, Resolved: dn.Resolved},
		}
		if dn.Resolved != nil {
			rn.Data.Label = dn.Resolved.Title
		}
		if e, ok := eph.entries[dn.ID]; ok {
			rn.Selected = e.selected
			rn.Dragging = e.dragging
			rn.Highlighted = e.highlighted
			if e.dragging && e.dragPos != nil {
				rn.Position = *e.dragPos
			}
		}
		outNodes[i] = rn
	}

	outEdges := make([]RuntimeEdge, len(edges))
	for i, ed := range edges {
		re := RuntimeEdge{Edge: ed}
		if e, ok := eph.entries[ed.ID]; ok {
			re.Selected = e.selected
			re.Highlighted = e.highlighted
		}
		outEdges[i] = re
	}
	return outNodes, outEdges
}
