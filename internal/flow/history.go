package flow

// DefaultHistoryLimit bounds each history stack. Oldest entries are evicted
// first once the limit is reached.
const DefaultHistoryLimit = 40

// History holds the undo and redo stacks for one canvas. Both stacks store
// ready-to-apply inverse patches, not state snapshots, so memory stays
// proportional to the number of edits rather than graph size.
type History struct {
	limit int
	undo  []Patch
	redo  []Patch
}

// NewHistory returns a history bounded to limit entries per stack. A
// non-positive limit falls back to DefaultHistoryLimit.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit}
}

// Record pushes the inverse of a freshly applied patch onto the undo stack
// and clears the redo stack, since a new edit forks away from any
// previously undone future.
func (h *History) Record(p Patch) {
	h.undo = pushBounded(h.undo, p, h.limit)
	h.redo = h.redo[:0]
}

// PopUndo removes and returns the most recent undo entry.
func (h *History) PopUndo() (Patch, bool) {
	return pop(&h.undo)
}

// PopRedo removes and returns the most recent redo entry.
func (h *History) PopRedo() (Patch, bool) {
	return pop(&h.redo)
}

// PushUndo pushes onto the undo stack without clearing redo. Used when a
// redo is unwound back into the undo stack.
func (h *History) PushUndo(p Patch) {
	h.undo = pushBounded(h.undo, p, h.limit)
}

// PushRedo pushes the patch that re-applies an undone edit.
func (h *History) PushRedo(p Patch) {
	h.redo = pushBounded(h.redo, p, h.limit)
}

func (h *History) CanUndo() bool { return len(h.undo) > 0 }
func (h *History) CanRedo() bool { return len(h.redo) > 0 }

// Clear drops both stacks, e.g. when a different flowchart is loaded.
func (h *History) Clear() {
	h.undo = h.undo[:0]
	h.redo = h.redo[:0]
}

func pushBounded(stack []Patch, p Patch, limit int) []Patch {
	if len(stack) >= limit {
		n := copy(stack, stack[len(stack)-limit+1:])
		stack = stack[:n]
	}
	return append(stack, p)
}

func pop(stack *[]Patch) (Patch, bool) {
	s := *stack
	if len(s) == 0 {
		return Patch{}, false
	}
	p := s[len(s)-1]
	*stack = s[:len(s)-1]
	return p, true
}
