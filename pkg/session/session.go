// ABOUTME: Editor session state for one open document
// ABOUTME: Owns the annotation collection, history, tool, zoom, selection, and page cache

package session

import (
	"image"

	"github.com/rs/zerolog"

	"github.com/pagemark/pagemark/pkg/annotation"
	"github.com/pagemark/pagemark/pkg/geometry"
	"github.com/pagemark/pagemark/pkg/history"
	"github.com/pagemark/pagemark/pkg/raster"
)

// Tool is the current interaction mode.
type Tool string

const (
	ToolSelect    Tool = "select"
	ToolPan       Tool = "pan"
	ToolText      Tool = "text"
	ToolHighlight Tool = "highlight"
	ToolRect      Tool = "rect"
	ToolCircle    Tool = "circle"
	ToolComment   Tool = "comment"
)

// Valid reports whether t names a known tool.
func (t Tool) Valid() bool {
	switch t {
	case ToolSelect, ToolPan, ToolText, ToolHighlight, ToolRect, ToolCircle, ToolComment:
		return true
	}
	return false
}

// Defaults holds the style values applied to newly created annotations.
type Defaults struct {
	TextColor      string
	TextSize       float64
	FontFamily     string
	HighlightColor string
	ShapeColor     string
	StrokeWidth    float64
}

// DefaultStyle returns the style a fresh session starts with.
func DefaultStyle() Defaults {
	return Defaults{
		TextColor:      "#000000",
		TextSize:       16,
		FontFamily:     "Helvetica",
		HighlightColor: "#FFFF00",
		ShapeColor:     "#FF0000",
		StrokeWidth:    2,
	}
}

// PageInfo describes one page of the open document in document space.
type PageInfo struct {
	PageNum  int
	Width    float64
	Height   float64
	Rotation float64
}

// Session is the aggregate mutable state for one open document. It is
// the single owner of the annotation collection and the history stack;
// no other component mutates them directly. Callers serialize access —
// the session itself is not goroutine safe, matching the one-owner
// event loop it models.
type Session struct {
	documentID  string
	pageCount   int
	pages       []PageInfo
	currentPage int
	pendingPage int
	zoom        float64
	metrics     geometry.PageMetrics
	tool        Tool
	style       Defaults
	annotations []annotation.Annotation
	history     *history.History
	selectedID  string
	images      *raster.Cache
	log         zerolog.Logger
}

// New creates a session for a freshly opened document. The history
// starts with a snapshot of the empty collection so the first edit can
// be undone back to it.
func New(documentID string, log zerolog.Logger) *Session {
	s := &Session{
		documentID:  documentID,
		pendingPage: -1,
		zoom:        1,
		tool:        ToolSelect,
		style:       DefaultStyle(),
		history:     history.New(),
		images:      raster.NewCache(),
		log:         log.With().Str("component", "session").Str("document", documentID).Logger(),
	}
	s.history.Record(s.annotations)
	return s
}

// DocumentID returns the id of the open document.
func (s *Session) DocumentID() string { return s.documentID }

// CurrentPage returns the active zero-indexed page.
func (s *Session) CurrentPage() int { return s.currentPage }

// PageCount returns the number of pages reported by the document.
func (s *Session) PageCount() int { return s.pageCount }

// Pages returns the document-space page descriptions.
func (s *Session) Pages() []PageInfo { return s.pages }

// Zoom returns the display scale factor.
func (s *Session) Zoom() float64 { return s.zoom }

// Tool returns the active interaction mode.
func (s *Session) Tool() Tool { return s.tool }

// Style returns the defaults applied to new annotations.
func (s *Session) Style() Defaults { return s.style }

// Metrics returns the canvas/document metrics of the active page.
func (s *Session) Metrics() geometry.PageMetrics { return s.metrics }

// SelectedID returns the selected annotation id, empty for none.
func (s *Session) SelectedID() string { return s.selectedID }

// Images returns the page raster cache.
func (s *Session) Images() *raster.Cache { return s.images }

// Annotations returns a deep copy of the full ordered collection.
// Insertion order is display z-order.
func (s *Session) Annotations() []annotation.Annotation {
	return annotation.CloneAll(s.annotations)
}

// AnnotationsOnPage returns copies of the annotations on one page.
func (s *Session) AnnotationsOnPage(page int) []annotation.Annotation {
	var out []annotation.Annotation
	for _, a := range s.annotations {
		if a.Page == page {
			out = append(out, a.Clone())
		}
	}
	return out
}

// Get returns a copy of the annotation with the given id.
func (s *Session) Get(id string) (annotation.Annotation, bool) {
	for _, a := range s.annotations {
		if a.ID == id {
			return a.Clone(), true
		}
	}
	return annotation.Annotation{}, false
}

// Count returns the number of annotations across all pages.
func (s *Session) Count() int { return len(s.annotations) }

// Add appends an annotation and records a history snapshot.
func (s *Session) Add(a annotation.Annotation) {
	s.annotations = append(s.annotations, a.Clone())
	s.history.Record(s.annotations)
	s.log.Debug().Str("id", a.ID).Str("kind", string(a.Kind)).Int("page", a.Page).Msg("annotation added")
}

// Update applies a patch to the annotation with the given id and
// records a history snapshot. An unknown id is a defensive no-op; an
// invalid patch for the annotation's kind is an error and nothing is
// recorded.
func (s *Session) Update(id string, p annotation.Patch) error {
	for i := range s.annotations {
		if s.annotations[i].ID != id {
			continue
		}
		if err := p.Validate(s.annotations[i].Kind); err != nil {
			return err
		}
		s.annotations[i].Apply(p)
		s.history.Record(s.annotations)
		s.log.Debug().Str("id", id).Msg("annotation updated")
		return nil
	}
	s.log.Warn().Str("id", id).Msg("update for unknown annotation ignored")
	return nil
}

// Delete removes the annotation with the given id and records a
// history snapshot. An unknown id is a defensive no-op returning false.
func (s *Session) Delete(id string) bool {
	for i := range s.annotations {
		if s.annotations[i].ID != id {
			continue
		}
		s.annotations = append(s.annotations[:i], s.annotations[i+1:]...)
		if s.selectedID == id {
			s.selectedID = ""
		}
		s.history.Record(s.annotations)
		s.log.Debug().Str("id", id).Msg("annotation deleted")
		return true
	}
	s.log.Warn().Str("id", id).Msg("delete for unknown annotation ignored")
	return false
}

// Undo steps the collection back one snapshot. Selection is cleared if
// the selected annotation no longer exists in the restored state.
func (s *Session) Undo() bool {
	snap, ok := s.history.Undo()
	if !ok {
		return false
	}
	s.annotations = snap
	s.reconcileSelection()
	s.log.Debug().Int("index", s.history.Index()).Msg("undo")
	return true
}

// Redo steps the collection forward one snapshot.
func (s *Session) Redo() bool {
	snap, ok := s.history.Redo()
	if !ok {
		return false
	}
	s.annotations = snap
	s.reconcileSelection()
	s.log.Debug().Int("index", s.history.Index()).Msg("redo")
	return true
}

// CanUndo reports whether an undo step is available.
func (s *Session) CanUndo() bool { return s.history.CanUndo() }

// CanRedo reports whether a redo step is available.
func (s *Session) CanRedo() bool { return s.history.CanRedo() }

// HistoryLen returns the number of history snapshots.
func (s *Session) HistoryLen() int { return s.history.Len() }

// HistoryIndex returns the history position.
func (s *Session) HistoryIndex() int { return s.history.Index() }

func (s *Session) reconcileSelection() {
	if s.selectedID == "" {
		return
	}
	if _, ok := s.Get(s.selectedID); !ok {
		s.selectedID = ""
	}
}

// Select marks the annotation with the given id as selected. Selection
// changes are not part of history. Unknown ids return false and leave
// the selection alone.
func (s *Session) Select(id string) bool {
	if _, ok := s.Get(id); !ok {
		return false
	}
	s.selectedID = id
	return true
}

// ClearSelection deselects any selected annotation.
func (s *Session) ClearSelection() {
	s.selectedID = ""
}

// SetTool switches the active tool. Tool switches are not part of
// history. Unknown tools return false.
func (s *Session) SetTool(t Tool) bool {
	if !t.Valid() {
		return false
	}
	s.tool = t
	return true
}

// SetZoom sets the display scale factor; non-positive factors are
// rejected.
func (s *Session) SetZoom(z float64) bool {
	if z <= 0 {
		return false
	}
	s.zoom = z
	return true
}

// SetStyle replaces the defaults for new annotations. Style changes
// are not part of history.
func (s *Session) SetStyle(d Defaults) {
	s.style = d
}

// SetDocumentInfo records the page count and per-page document-space
// dimensions reported on open.
func (s *Session) SetDocumentInfo(pageCount int, pages []PageInfo) {
	s.pageCount = pageCount
	s.pages = pages
}

// RequestPage marks page as the page whose render the session is
// waiting for. Only the matching CompletePage may set the active page
// and its metrics; responses for other pages are stale.
func (s *Session) RequestPage(page int) {
	s.pendingPage = page
}

// CompletePage delivers a finished render. The raster is always cached
// under its page number, but the current page and canvas/document
// metrics change only when the response matches the in-flight request;
// a late response for a page the user has navigated away from returns
// false.
func (s *Session) CompletePage(page int, img image.Image, m geometry.PageMetrics) bool {
	if img != nil {
		s.images.Put(page, img)
	}
	if page != s.pendingPage {
		s.log.Debug().Int("page", page).Int("pending", s.pendingPage).Msg("stale page render cached only")
		return false
	}
	s.currentPage = page
	s.metrics = m
	s.pendingPage = -1
	return true
}

// AbortPage clears the in-flight marker after a failed render so the
// session state stays exactly as it was.
func (s *Session) AbortPage(page int) {
	if s.pendingPage == page {
		s.pendingPage = -1
	}
}

// Reset returns the session to its just-opened state: no annotations,
// fresh history, cleared selection, empty caches, default tool, style,
// and zoom.
func (s *Session) Reset() {
	s.annotations = nil
	s.history.Reset()
	s.history.Record(s.annotations)
	s.selectedID = ""
	s.images.Reset()
	s.tool = ToolSelect
	s.style = DefaultStyle()
	s.zoom = 1
	s.currentPage = 0
	s.pendingPage = -1
	s.metrics = geometry.PageMetrics{}
	s.log.Info().Msg("session reset")
}
