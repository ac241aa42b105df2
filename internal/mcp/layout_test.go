package mcpserver

import (
	"testing"

	"taskflow/internal/flow"
)

func nodeAt(x, y float64) flow.RuntimeNode {
	return flow.RuntimeNode{Position: flow.Position{X: x, Y: y}}
}

func TestNextPosition_EmptyChart(t *testing.T) {
	le := NewLayoutEngine()
	x, y := le.NextPosition(nil)
	if x != 0 || y != 0 {
		t.Errorf("expected (0, 0) for empty chart, got (%.0f, %.0f)", x, y)
	}
}

func TestNextPosition_AvoidsExistingNode(t *testing.T) {
	le := NewLayoutEngine()
	existing := []flow.RuntimeNode{nodeAt(0, 0)}
	x, y := le.NextPosition(existing)

	r := rect{x, y, NodeW, NodeH}
	padded := rect{-Padding, -Padding, NodeW + Padding*2, NodeH + Padding*2}
	if r.intersects(padded) {
		t.Errorf("position (%.0f, %.0f) overlaps existing node", x, y)
	}
}

func TestNextPosition_MultipleNodes(t *testing.T) {
	le := NewLayoutEngine()
	existing := []flow.RuntimeNode{
		nodeAt(0, 0),
		nodeAt(220, 0),
	}
	x, y := le.NextPosition(existing)

	// Should find a position that doesn't overlap either node
	for _, n := range existing {
		r := rect{x, y, NodeW, NodeH}
		padded := rect{n.Position.X - Padding, n.Position.Y - Padding, NodeW + Padding*2, NodeH + Padding*2}
		if r.intersects(padded) {
			t.Errorf("position (%.0f, %.0f) overlaps node at (%.0f, %.0f)", x, y, n.Position.X, n.Position.Y)
		}
	}
}

func TestNextPosition_SnapsToGrid(t *testing.T) {
	le := NewLayoutEngine()
	existing := []flow.RuntimeNode{nodeAt(13, 7)}
	x, y := le.NextPosition(existing)

	if x != le.snap(x) || y != le.snap(y) {
		t.Errorf("position (%.2f, %.2f) is off-grid", x, y)
	}
}

func TestArrangeColumn(t *testing.T) {
	le := NewLayoutEngine()
	positions := le.ArrangeColumn(0, 0, 3)

	if len(positions) != 3 {
		t.Fatalf("expected 3 positions, got %d", len(positions))
	}

	// Stacked vertically in one column
	for i, p := range positions {
		if p.X != 0 {
			t.Errorf("position %d drifted to x=%.0f", i, p.X)
		}
		if i > 0 && p.Y <= positions[i-1].Y {
			t.Errorf("position %d not below position %d: y=%.0f vs %.0f", i, i-1, p.Y, positions[i-1].Y)
		}
	}

	// No overlaps
	for i := 0; i < len(positions); i++ {
		for j := i + 1; j < len(positions); j++ {
			a := rect{positions[i].X, positions[i].Y, NodeW, NodeH}
			b := rect{positions[j].X, positions[j].Y, NodeW, NodeH}
			if a.intersects(b) {
				t.Errorf("positions %d and %d overlap: (%.0f,%.0f) and (%.0f,%.0f)",
					i, j, a.x, a.y, b.x, b.y)
			}
		}
	}
}

func TestArrangeColumn_WrapsTallColumns(t *testing.T) {
	le := NewLayoutEngine()
	positions := le.ArrangeColumn(0, 0, 9)

	if len(positions) != 9 {
		t.Fatalf("expected 9 positions, got %d", len(positions))
	}
	last := positions[8]
	if last.X == 0 {
		t.Errorf("expected column wrap for 9th node, still at x=0 (y=%.0f)", last.Y)
	}
	if last.Y != 0 {
		t.Errorf("wrapped column should restart at the top, got y=%.0f", last.Y)
	}
}

func TestSnap(t *testing.T) {
	le := NewLayoutEngine()
	tests := []struct {
		input, want float64
	}{
		{0, 0},
		{9, 0},
		{15, 20},
		{30, 40},
		{45, 40},
		{100, 100},
	}
	for _, tt := range tests {
		got := le.snap(tt.input)
		if got != tt.want {
			t.Errorf("snap(%.0f) = %.0f, want %.0f", tt.input, got, tt.want)
		}
	}
}
