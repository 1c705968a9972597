// ABOUTME: Pointer/keyboard state machine for the annotation tools
// ABOUTME: Turns gestures into annotation mutations with explicit transition results

package gesture

import (
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pagemark/pagemark/pkg/annotation"
	"github.com/pagemark/pagemark/pkg/geometry"
	"github.com/pagemark/pagemark/pkg/session"
)

// State names one mode of the gesture machine.
type State string

const (
	StateIdle             State = "idle"
	StateDrawingShape     State = "drawing-shape"
	StateDrawingHighlight State = "drawing-highlight"
	StateEditingText      State = "editing-text"
	StateAwaitingComment  State = "awaiting-comment-text"
)

const (
	// Shape drags with either delta at or below this many display
	// pixels are accidental clicks and create nothing.
	minShapeDelta = 5

	// Freeform highlights need more than two captured points.
	minHighlightPoints = 3

	highlightOpacity = 0.4
)

// Result is the observable output of one transition: the state after
// it, any annotation it created or deleted, and the side effects it
// triggered. Tool is non-empty when the transition switched the active
// tool, so exit actions stay enumerable instead of hiding in callbacks.
type Result struct {
	State            State
	CreatedID        string
	DeletedID        string
	Tool             session.Tool
	SelectionCleared bool
	PopoversClosed   bool
}

// Machine interprets pointer and keyboard input against the session's
// active tool. Pointer coordinates arrive in raw display pixels and
// are divided by the session zoom so captured geometry lives at the
// zoom=1 reference scale.
type Machine struct {
	s     *session.Session
	state State

	anchorX float64
	anchorY float64
	draft   geometry.Rect

	points []float64

	editingID string

	commentX float64
	commentY float64

	log zerolog.Logger
}

// NewMachine creates an idle machine bound to one session.
func NewMachine(s *session.Session, log zerolog.Logger) *Machine {
	return &Machine{
		s:     s,
		state: StateIdle,
		log:   log.With().Str("component", "gesture").Logger(),
	}
}

// State returns the current machine state.
func (m *Machine) State() State { return m.state }

// Draft returns the in-progress shape box while drawing. Width and
// height may be negative until commit.
func (m *Machine) Draft() (geometry.Rect, bool) {
	return m.draft, m.state == StateDrawingShape
}

// Path returns the in-progress highlight polyline.
func (m *Machine) Path() []float64 { return m.points }

// EditingID returns the annotation under inline text edit, if any.
func (m *Machine) EditingID() string { return m.editingID }

func (m *Machine) at() Result { return Result{State: m.state} }

func (m *Machine) adjust(x, y float64) (float64, float64) {
	z := m.s.Zoom()
	return x / z, y / z
}

// PointerDown starts a gesture on empty background. Hits on existing
// annotations go through Session.Select instead; only the background
// paths live here.
func (m *Machine) PointerDown(x, y float64) Result {
	if m.state != StateIdle {
		return m.at()
	}

	px, py := m.adjust(x, y)

	switch m.s.Tool() {
	case session.ToolRect, session.ToolCircle:
		m.state = StateDrawingShape
		m.anchorX, m.anchorY = px, py
		m.draft = geometry.Rect{X: px, Y: py}
		return m.at()

	case session.ToolHighlight:
		m.state = StateDrawingHighlight
		m.points = []float64{px, py}
		return m.at()

	case session.ToolText:
		style := m.s.Style()
		a := annotation.NewText(m.s.CurrentPage(), px, py, style.TextColor, style.TextSize, style.FontFamily)
		m.s.Add(a)
		m.state = StateEditingText
		m.editingID = a.ID
		m.log.Debug().Str("id", a.ID).Msg("text annotation created, editing")
		res := m.at()
		res.CreatedID = a.ID
		return res

	case session.ToolComment:
		m.state = StateAwaitingComment
		m.commentX, m.commentY = px, py
		return m.at()

	case session.ToolSelect:
		m.s.ClearSelection()
		res := m.at()
		res.SelectionCleared = true
		res.PopoversClosed = true
		return res
	}

	// pan and anything else: the host scrolls, nothing to capture
	return m.at()
}

// PointerMove extends the in-progress gesture.
func (m *Machine) PointerMove(x, y float64) Result {
	px, py := m.adjust(x, y)

	switch m.state {
	case StateDrawingShape:
		m.draft.Width = px - m.anchorX
		m.draft.Height = py - m.anchorY
	case StateDrawingHighlight:
		m.points = append(m.points, px, py)
	}
	return m.at()
}

// PointerUp finishes the in-progress gesture, committing or discarding
// the draft.
func (m *Machine) PointerUp() Result {
	switch m.state {
	case StateDrawingShape:
		return m.finishShape()
	case StateDrawingHighlight:
		return m.finishHighlight()
	}
	return m.at()
}

func (m *Machine) finishShape() Result {
	draft := m.draft
	tool := m.s.Tool()
	m.state = StateIdle
	m.draft = geometry.Rect{}

	if math.Abs(draft.Width) <= minShapeDelta || math.Abs(draft.Height) <= minShapeDelta {
		m.log.Debug().Float64("w", draft.Width).Float64("h", draft.Height).Msg("shape below threshold, discarded")
		return m.at()
	}

	kind := annotation.KindRect
	if tool == session.ToolCircle {
		kind = annotation.KindCircle
	}
	style := m.s.Style()
	a := annotation.NewShape(kind, m.s.CurrentPage(), geometry.Normalize(draft), style.ShapeColor, style.StrokeWidth)
	m.s.Add(a)

	res := m.at()
	res.CreatedID = a.ID
	return res
}

func (m *Machine) finishHighlight() Result {
	points := m.points
	m.state = StateIdle
	m.points = nil

	if len(points)/2 < minHighlightPoints {
		m.log.Debug().Int("points", len(points)/2).Msg("highlight path too short, discarded")
		return m.at()
	}

	box := geometry.BoundingBox(points)
	rel := make([]float64, len(points))
	for i := 0; i < len(points); i += 2 {
		rel[i] = points[i] - box.X
		rel[i+1] = points[i+1] - box.Y
	}

	style := m.s.Style()
	a := annotation.NewHighlight(m.s.CurrentPage(), box, style.HighlightColor, highlightOpacity, rel)
	m.s.Add(a)

	res := m.at()
	res.CreatedID = a.ID
	return res
}

// BeginTextEdit reopens inline editing on an existing text or comment
// annotation, e.g. from a double-click. Legal only from idle.
func (m *Machine) BeginTextEdit(id string) Result {
	if m.state != StateIdle {
		return m.at()
	}
	a, ok := m.s.Get(id)
	if !ok || (a.Kind != annotation.KindText && a.Kind != annotation.KindComment) {
		return m.at()
	}
	m.state = StateEditingText
	m.editingID = id
	return m.at()
}

// CommitText finishes inline text editing with the entered text. A
// whitespace-only commit deletes the annotation. Either way the
// machine returns to idle and the active tool becomes select.
func (m *Machine) CommitText(text string) Result {
	if m.state != StateEditingText {
		return m.at()
	}
	id := m.editingID
	m.state = StateIdle
	m.editingID = ""

	res := m.at()
	if strings.TrimSpace(text) == "" {
		if m.s.Delete(id) {
			res.DeletedID = id
		}
	} else {
		if err := m.s.Update(id, annotation.Patch{Text: annotation.String(text)}); err != nil {
			m.log.Error().Err(err).Str("id", id).Msg("text commit failed")
		}
	}

	m.s.SetTool(session.ToolSelect)
	res.Tool = session.ToolSelect
	return res
}

// CancelText abandons inline text editing. An annotation whose text is
// still empty (the just-created case) is deleted; one that had text
// before editing keeps it. Returns to idle with the select tool.
func (m *Machine) CancelText() Result {
	if m.state != StateEditingText {
		return m.at()
	}
	id := m.editingID
	m.state = StateIdle
	m.editingID = ""

	res := m.at()
	if a, ok := m.s.Get(id); ok && strings.TrimSpace(a.Text) == "" {
		if m.s.Delete(id) {
			res.DeletedID = id
		}
	}

	m.s.SetTool(session.ToolSelect)
	res.Tool = session.ToolSelect
	return res
}

// CommitComment creates a comment annotation at the position captured
// on pointer-down. An empty trimmed text cancels the pending comment
// instead; only a real commit switches the tool to select.
func (m *Machine) CommitComment(text string) Result {
	if m.state != StateAwaitingComment {
		return m.at()
	}
	m.state = StateIdle

	res := m.at()
	if strings.TrimSpace(text) == "" {
		return res
	}

	a := annotation.NewComment(m.s.CurrentPage(), m.commentX, m.commentY, strings.TrimSpace(text))
	m.s.Add(a)
	m.s.SetTool(session.ToolSelect)

	res.CreatedID = a.ID
	res.Tool = session.ToolSelect
	return res
}

// CancelComment abandons the pending comment session.
func (m *Machine) CancelComment() Result {
	if m.state == StateAwaitingComment {
		m.state = StateIdle
	}
	return m.at()
}

// KeyDown handles keyboard input. Single letters with no modifier
// switch tools while not editing text; Escape cancels the current
// gesture or clears selection; Delete/Backspace removes the selected
// annotation.
func (m *Machine) KeyDown(key string, modifier bool) Result {
	if m.state == StateEditingText {
		if key == "Escape" {
			return m.CancelText()
		}
		return m.at()
	}

	switch key {
	case "Escape":
		return m.escape()
	case "Delete", "Backspace":
		res := m.at()
		if id := m.s.SelectedID(); id != "" {
			if m.s.Delete(id) {
				res.DeletedID = id
			}
		}
		return res
	}

	if modifier {
		return m.at()
	}

	tools := map[string]session.Tool{
		"v": session.ToolSelect,
		"t": session.ToolText,
		"h": session.ToolHighlight,
		"r": session.ToolRect,
		"c": session.ToolCircle,
		"n": session.ToolComment,
	}
	if tool, ok := tools[key]; ok && m.state == StateIdle {
		m.s.SetTool(tool)
		res := m.at()
		res.Tool = tool
		return res
	}
	return m.at()
}

func (m *Machine) escape() Result {
	switch m.state {
	case StateDrawingShape:
		m.state = StateIdle
		m.draft = geometry.Rect{}
		return m.at()
	case StateDrawingHighlight:
		m.state = StateIdle
		m.points = nil
		return m.at()
	case StateAwaitingComment:
		return m.CancelComment()
	}

	m.s.ClearSelection()
	res := m.at()
	res.SelectionCleared = true
	res.PopoversClosed = true
	return res
}
