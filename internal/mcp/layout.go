package mcpserver

import (
	"math"

	"taskflow/internal/flow"
)

const (
	GridSize = 20.0 // matches the canvas snap grid
	Padding  = 40.0 // 2 grid cells between nodes
	MaxRowW  = 1600.0
	MaxColH  = 1000.0

	// Flow nodes carry only a position; placement assumes the default
	// footprint the canvas renders them with.
	NodeW = 180.0
	NodeH = 80.0
)

// LayoutEngine handles automatic placement of nodes on the canvas so that
// MCP-created nodes don't land on top of existing ones.
type LayoutEngine struct {
	gridSize float64
	padding  float64
	maxRowW  float64
	maxColH  float64
}

func NewLayoutEngine() *LayoutEngine {
	return &LayoutEngine{
		gridSize: GridSize,
		padding:  Padding,
		maxRowW:  MaxRowW,
		maxColH:  MaxColH,
	}
}

// snap rounds v to the nearest grid point.
func (le *LayoutEngine) snap(v float64) float64 {
	return math.Round(v/le.gridSize) * le.gridSize
}

// rect is a simple axis-aligned bounding box.
type rect struct {
	x, y, w, h float64
}

func (a rect) intersects(b rect) bool {
	return a.x < b.x+b.w && a.x+a.w > b.x &&
		a.y < b.y+b.h && a.y+a.h > b.y
}

// NextPosition finds the next free grid position for a new node given the
// nodes already on the chart.
func (le *LayoutEngine) NextPosition(existing []flow.RuntimeNode) (float64, float64) {
	if len(existing) == 0 {
		return 0, 0
	}

	// Build occupancy set from existing nodes
	occupied := make([]rect, len(existing))
	for i, n := range existing {
		occupied[i] = rect{n.Position.X, n.Position.Y, NodeW, NodeH}
	}

	// Scan rows top-to-bottom, columns left-to-right
	candidate := rect{w: NodeW, h: NodeH}
	for y := 0.0; y < 100000; y += le.gridSize {
		for x := 0.0; x < le.maxRowW; x += le.gridSize {
			candidate.x = le.snap(x)
			candidate.y = le.snap(y)

			overlaps := false
			for _, occ := range occupied {
				// Add padding around existing nodes
				padded := rect{
					x: occ.x - le.padding,
					y: occ.y - le.padding,
					w: occ.w + le.padding*2,
					h: occ.h + le.padding*2,
				}
				if candidate.intersects(padded) {
					overlaps = true
					break
				}
			}
			if !overlaps {
				return candidate.x, candidate.y
			}
		}
	}

	// Fallback: place below all existing nodes
	maxY := 0.0
	for _, n := range existing {
		if n.Position.Y+NodeH > maxY {
			maxY = n.Position.Y + NodeH
		}
	}
	return 0, le.snap(maxY + le.padding)
}

// ArrangeColumn returns count positions stacked in a column starting at
// (startX, startY), wrapping to a fresh column when it grows too tall.
// Used when a single tool call fans out several nodes at once.
func (le *LayoutEngine) ArrangeColumn(startX, startY float64, count int) []flow.Position {
	positions := make([]flow.Position, 0, count)
	x := le.snap(startX)
	y := le.snap(startY)
	colTop := y

	for i := 0; i < count; i++ {
		positions = append(positions, flow.Position{X: x, Y: y})
		y += le.snap(NodeH + le.padding)

		// Wrap to next column
		if y-colTop+NodeH > le.maxColH {
			y = colTop
			x += le.snap(NodeW + le.padding)
		}
	}

	return positions
}
