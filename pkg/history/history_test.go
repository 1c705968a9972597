// ABOUTME: Tests for linear undo/redo history
// ABOUTME: Verifies inverse undo/redo pairs and truncation on branch

package history

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pagemark/pagemark/pkg/annotation"
	"github.com/pagemark/pagemark/pkg/geometry"
)

func shape(x float64) annotation.Annotation {
	return annotation.NewShape(annotation.KindRect, 0,
		geometry.Rect{X: x, Y: x, Width: 10, Height: 10}, "#FF0000", 2)
}

func TestEmptyHistory(t *testing.T) {
	h := New()
	if h.CanUndo() || h.CanRedo() {
		t.Error("Empty history should allow neither undo nor redo")
	}
	if h.Index() != -1 {
		t.Errorf("Expected index -1, got %d", h.Index())
	}
	if _, ok := h.Undo(); ok {
		t.Error("Undo on empty history should fail")
	}
	if _, ok := h.Redo(); ok {
		t.Error("Redo on empty history should fail")
	}
}

func TestUndoRedoInversePair(t *testing.T) {
	h := New()

	// Initial empty state, then N edits.
	states := [][]annotation.Annotation{{}}
	h.Record(states[0])
	for i := 1; i <= 4; i++ {
		next := append(annotation.CloneAll(states[i-1]), shape(float64(i)))
		states = append(states, next)
		h.Record(next)
	}

	// Undo N times walks back to the pre-sequence state.
	var got []annotation.Annotation
	for i := 3; i >= 0; i-- {
		snap, ok := h.Undo()
		if !ok {
			t.Fatalf("Undo %d failed", i)
		}
		got = snap
		if diff := cmp.Diff(states[i], got); diff != "" {
			t.Errorf("Undo to state %d mismatch (-want +got):\n%s", i, diff)
		}
	}
	if h.CanUndo() {
		t.Error("Should be at the lower bound after undoing everything")
	}

	// Redo N times restores the post-sequence state.
	for i := 1; i <= 4; i++ {
		snap, ok := h.Redo()
		if !ok {
			t.Fatalf("Redo %d failed", i)
		}
		got = snap
		if diff := cmp.Diff(states[i], got); diff != "" {
			t.Errorf("Redo to state %d mismatch (-want +got):\n%s", i, diff)
		}
	}
	if h.CanRedo() {
		t.Error("Should be at the upper bound after redoing everything")
	}
}

func TestTruncationOnBranch(t *testing.T) {
	h := New()
	h.Record([]annotation.Annotation{})
	h.Record([]annotation.Annotation{shape(1)})
	h.Record([]annotation.Annotation{shape(1), shape(2)})

	if _, ok := h.Undo(); !ok {
		t.Fatal("Undo failed")
	}
	if !h.CanRedo() {
		t.Fatal("Redo should be available after an undo")
	}

	// A new edit discards the redo tail.
	h.Record([]annotation.Annotation{shape(1), shape(3)})
	if h.CanRedo() {
		t.Error("Redo should be unavailable after a new edit")
	}
	if h.Len() != 3 {
		t.Errorf("Expected 3 snapshots after truncation, got %d", h.Len())
	}
}

func TestSnapshotsAreIsolated(t *testing.T) {
	h := New()
	live := []annotation.Annotation{shape(1)}
	h.Record(live)

	// Mutating the live slice must not reach the stored snapshot.
	live[0].X = 99
	snap, ok := h.Redo()
	if ok {
		t.Fatal("Redo should fail at the upper bound")
	}
	_ = snap

	h.Record(append(live, shape(2)))
	restored, ok := h.Undo()
	if !ok {
		t.Fatal("Undo failed")
	}
	if restored[0].X != 1 {
		t.Errorf("Snapshot was corrupted by live mutation: x=%v", restored[0].X)
	}
}

func TestReset(t *testing.T) {
	h := New()
	h.Record([]annotation.Annotation{})
	h.Record([]annotation.Annotation{shape(1)})

	h.Reset()
	if h.Len() != 0 || h.Index() != -1 || h.CanUndo() || h.CanRedo() {
		t.Errorf("Reset left state behind: len=%d index=%d", h.Len(), h.Index())
	}
}
