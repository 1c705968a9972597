// ABOUTME: Linear undo/redo history over the annotation collection
// ABOUTME: Complete snapshots with an index pointer, redo discarded on branch

package history

import "github.com/pagemark/pagemark/pkg/annotation"

// History keeps an ordered list of complete snapshots of the
// annotation collection plus an index into that list. The snapshot at
// the index always equals the live collection; recording after an undo
// truncates the abandoned redo tail.
type History struct {
	snapshots [][]annotation.Annotation
	index     int
}

// New returns an empty history with the index at -1.
func New() *History {
	return &History{index: -1}
}

// Record truncates any redo tail, appends a deep-copied snapshot of
// annots, and advances the index to it.
func (h *History) Record(annots []annotation.Annotation) {
	h.snapshots = h.snapshots[:h.index+1]
	h.snapshots = append(h.snapshots, annotation.CloneAll(annots))
	h.index++
}

// Undo steps the index back one snapshot and returns a copy of it.
// The second return is false at the lower bound, with no state change.
func (h *History) Undo() ([]annotation.Annotation, bool) {
	if !h.CanUndo() {
		return nil, false
	}
	h.index--
	return annotation.CloneAll(h.snapshots[h.index]), true
}

// Redo steps the index forward one snapshot and returns a copy of it.
// The second return is false at the upper bound, with no state change.
func (h *History) Redo() ([]annotation.Annotation, bool) {
	if !h.CanRedo() {
		return nil, false
	}
	h.index++
	return annotation.CloneAll(h.snapshots[h.index]), true
}

// CanUndo reports whether an earlier snapshot exists.
func (h *History) CanUndo() bool {
	return h.index > 0
}

// CanRedo reports whether a later snapshot exists.
func (h *History) CanRedo() bool {
	return h.index < len(h.snapshots)-1
}

// Len returns the number of stored snapshots.
func (h *History) Len() int {
	return len(h.snapshots)
}

// Index returns the current snapshot position, -1 when empty.
func (h *History) Index() int {
	return h.index
}

// Reset drops every snapshot and returns the index to -1.
func (h *History) Reset() {
	h.snapshots = nil
	h.index = -1
}
