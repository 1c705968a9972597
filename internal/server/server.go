// Package server implements the HTTP surface of the annotation editor
package server

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pagemark/pagemark/internal/docservice"
	"github.com/pagemark/pagemark/internal/metrics"
	"github.com/pagemark/pagemark/pkg/geometry"
	"github.com/pagemark/pagemark/pkg/persist"
	"github.com/pagemark/pagemark/pkg/raster"
	"github.com/pagemark/pagemark/pkg/session"
)

// Server hosts editor sessions and routes imperative editing operations
// onto them. Each session carries its own mutex; every handler touching
// session state holds it for the duration of the operation, so the
// session itself stays single-owner.
type Server struct {
	docs      *docservice.Client
	metrics   *metrics.Metrics
	log       zerolog.Logger
	dpi       float64
	startTime time.Time

	mu       sync.RWMutex
	sessions map[string]*editorSession
}

type editorSession struct {
	mu   sync.Mutex
	id   string
	sess *session.Session

	// raw render bytes by page, so cache hits can answer without
	// re-encoding the decoded raster
	rawPages map[int][]byte
}

// NewServer creates an editor server backed by the given document
// service client.
func NewServer(docs *docservice.Client, m *metrics.Metrics, log zerolog.Logger, dpi float64) *Server {
	if dpi <= 0 {
		dpi = 150
	}
	return &Server{
		docs:      docs,
		metrics:   m,
		log:       log.With().Str("component", "server").Logger(),
		dpi:       dpi,
		startTime: time.Now(),
		sessions:  make(map[string]*editorSession),
	}
}

func newSessionID() string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return "sess_" + hex.EncodeToString(b)
}

// Handler returns the full route table wrapped in the observability
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/documents/open", s.handleOpen)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleState)
	mux.HandleFunc("POST /api/sessions/{id}/close", s.handleClose)
	mux.HandleFunc("POST /api/sessions/{id}/reset", s.handleReset)
	mux.HandleFunc("POST /api/sessions/{id}/page", s.handlePage)
	mux.HandleFunc("POST /api/sessions/{id}/zoom", s.handleZoom)
	mux.HandleFunc("POST /api/sessions/{id}/tool", s.handleTool)
	mux.HandleFunc("POST /api/sessions/{id}/select", s.handleSelect)
	mux.HandleFunc("POST /api/sessions/{id}/annotations", s.handleCreateAnnotation)
	mux.HandleFunc("PATCH /api/sessions/{id}/annotations/{annotationID}", s.handleUpdateAnnotation)
	mux.HandleFunc("DELETE /api/sessions/{id}/annotations/{annotationID}", s.handleDeleteAnnotation)
	mux.HandleFunc("POST /api/sessions/{id}/undo", s.handleUndo)
	mux.HandleFunc("POST /api/sessions/{id}/redo", s.handleRedo)
	mux.HandleFunc("POST /api/sessions/{id}/save", s.handleSave)

	s.registerObservability(mux)

	return s.withObservability(mux)
}

// lookup resolves the session from the request path, replying 404 if it
// does not exist.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*editorSession, bool) {
	id := r.PathValue("id")
	s.mu.RLock()
	es, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		writeError(w, http.StatusNotFound, "session_not_found", fmt.Sprintf("no open session %q", id))
		return nil, false
	}
	return es, true
}

type stateResponse struct {
	SessionID    string           `json:"sessionId"`
	Document     string           `json:"document"`
	PageCount    int              `json:"pageCount"`
	Page         int              `json:"page"`
	Zoom         float64          `json:"zoom"`
	Tool         string           `json:"tool"`
	SelectedID   string           `json:"selectedId,omitempty"`
	CanUndo      bool             `json:"canUndo"`
	CanRedo      bool             `json:"canRedo"`
	CanvasWidth  float64          `json:"canvasWidth"`
	CanvasHeight float64          `json:"canvasHeight"`
	PageWidth    float64          `json:"pageWidth"`
	PageHeight   float64          `json:"pageHeight"`
	Annotations  []annotationJSON `json:"annotations"`
	Image        []byte           `json:"image,omitempty"`
}

// state builds the client-visible snapshot. Caller holds the session
// lock.
func (es *editorSession) state() stateResponse {
	sess := es.sess
	m := sess.Metrics()
	return stateResponse{
		SessionID:    es.id,
		Document:     sess.DocumentID(),
		PageCount:    sess.PageCount(),
		Page:         sess.CurrentPage(),
		Zoom:         sess.Zoom(),
		Tool:         string(sess.Tool()),
		SelectedID:   sess.SelectedID(),
		CanUndo:      sess.CanUndo(),
		CanRedo:      sess.CanRedo(),
		CanvasWidth:  m.CanvasWidth,
		CanvasHeight: m.CanvasHeight,
		PageWidth:    m.PDFWidth,
		PageHeight:   m.PDFHeight,
		Annotations:  toAnnotationListJSON(sess.Annotations()),
	}
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Document string  `json:"document"`
		DPI      float64 `json:"dpi"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if req.Document == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "document is required")
		return
	}
	dpi := req.DPI
	if dpi <= 0 {
		dpi = s.dpi
	}

	ctx := r.Context()
	info, err := s.docs.DocumentInfo(ctx, req.Document)
	if err != nil {
		s.log.Error().Err(err).Str("document", req.Document).Msg("open failed fetching document info")
		writeError(w, http.StatusBadGateway, "docservice_error", err.Error())
		return
	}

	sess := session.New(req.Document, s.log)
	pages := make([]session.PageInfo, len(info.Pages))
	for i, p := range info.Pages {
		pages[i] = session.PageInfo{PageNum: p.PageNum, Width: p.Width, Height: p.Height, Rotation: p.Rotation}
	}
	sess.SetDocumentInfo(info.PageCount, pages)

	sess.RequestPage(0)
	start := time.Now()
	render, err := s.docs.RenderPage(ctx, req.Document, 0, dpi)
	if err != nil {
		sess.AbortPage(0)
		s.log.Error().Err(err).Str("document", req.Document).Msg("open failed rendering first page")
		writeError(w, http.StatusBadGateway, "docservice_error", err.Error())
		return
	}
	s.metrics.RenderDuration.Observe(time.Since(start).Seconds())

	img, err := raster.Decode(render.Image)
	if err != nil {
		sess.AbortPage(0)
		writeError(w, http.StatusBadGateway, "docservice_error", err.Error())
		return
	}
	sess.CompletePage(0, img, geometry.PageMetrics{
		CanvasWidth:  render.Width,
		CanvasHeight: render.Height,
		PDFWidth:     render.PageWidth,
		PDFHeight:    render.PageHeight,
	})

	// Annotations already stored in the document are fetched for
	// visibility but not merged into the fresh session.
	if records, err := s.docs.LoadAnnotations(ctx, req.Document); err != nil {
		s.log.Warn().Err(err).Str("document", req.Document).Msg("could not load existing annotations")
	} else if len(records) > 0 {
		s.log.Info().Str("document", req.Document).Int("count", len(records)).
			Msg("document has existing annotations; not loaded into session")
	}

	es := &editorSession{
		id:       newSessionID(),
		sess:     sess,
		rawPages: map[int][]byte{0: render.Image},
	}
	s.mu.Lock()
	s.sessions[es.id] = es
	s.mu.Unlock()
	s.metrics.OpenSessions.Inc()

	s.log.Info().Str("session", es.id).Str("document", req.Document).
		Int("pages", info.PageCount).Msg("document opened")

	resp := es.state()
	resp.Image = render.Image
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	es, ok := s.lookup(w, r)
	if !ok {
		return
	}
	es.mu.Lock()
	defer es.mu.Unlock()
	writeJSON(w, http.StatusOK, es.state())
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.Lock()
	es, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "session_not_found", fmt.Sprintf("no open session %q", id))
		return
	}
	s.metrics.OpenSessions.Dec()
	s.log.Info().Str("session", es.id).Str("document", es.sess.DocumentID()).Msg("session closed")
	writeJSON(w, http.StatusOK, map[string]bool{"closed": true})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	es, ok := s.lookup(w, r)
	if !ok {
		return
	}
	es.mu.Lock()
	defer es.mu.Unlock()
	es.sess.Reset()
	es.rawPages = make(map[int][]byte)
	writeJSON(w, http.StatusOK, es.state())
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	es, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req struct {
		Page int     `json:"page"`
		DPI  float64 `json:"dpi"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	es.mu.Lock()
	defer es.mu.Unlock()

	sess := es.sess
	if req.Page < 0 || req.Page >= sess.PageCount() {
		writeError(w, http.StatusBadRequest, "bad_request",
			fmt.Sprintf("page %d out of range [0, %d)", req.Page, sess.PageCount()))
		return
	}

	sess.RequestPage(req.Page)

	if img, cached := sess.Images().Get(req.Page); cached {
		s.metrics.PageCacheHits.Inc()
		info := sess.Pages()[req.Page]
		sess.CompletePage(req.Page, img, geometry.PageMetrics{
			CanvasWidth:  float64(img.Bounds().Dx()),
			CanvasHeight: float64(img.Bounds().Dy()),
			PDFWidth:     info.Width,
			PDFHeight:    info.Height,
		})
		resp := es.state()
		resp.Image = es.rawPages[req.Page]
		writeJSON(w, http.StatusOK, resp)
		return
	}

	s.metrics.PageCacheMisses.Inc()
	dpi := req.DPI
	if dpi <= 0 {
		dpi = s.dpi
	}
	start := time.Now()
	render, err := s.docs.RenderPage(r.Context(), sess.DocumentID(), req.Page, dpi)
	if err != nil {
		sess.AbortPage(req.Page)
		writeError(w, http.StatusBadGateway, "docservice_error", err.Error())
		return
	}
	s.metrics.RenderDuration.Observe(time.Since(start).Seconds())

	img, err := raster.Decode(render.Image)
	if err != nil {
		sess.AbortPage(req.Page)
		writeError(w, http.StatusBadGateway, "docservice_error", err.Error())
		return
	}
	sess.CompletePage(req.Page, img, geometry.PageMetrics{
		CanvasWidth:  render.Width,
		CanvasHeight: render.Height,
		PDFWidth:     render.PageWidth,
		PDFHeight:    render.PageHeight,
	})
	es.rawPages[req.Page] = render.Image

	resp := es.state()
	resp.Image = render.Image
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleZoom(w http.ResponseWriter, r *http.Request) {
	es, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req struct {
		Zoom float64 `json:"zoom"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	es.mu.Lock()
	defer es.mu.Unlock()
	if !es.sess.SetZoom(req.Zoom) {
		writeError(w, http.StatusBadRequest, "bad_request",
			fmt.Sprintf("zoom must be positive, got %v", req.Zoom))
		return
	}
	writeJSON(w, http.StatusOK, es.state())
}

func (s *Server) handleTool(w http.ResponseWriter, r *http.Request) {
	es, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req struct {
		Tool string `json:"tool"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	es.mu.Lock()
	defer es.mu.Unlock()
	if !es.sess.SetTool(session.Tool(req.Tool)) {
		writeError(w, http.StatusBadRequest, "bad_request",
			fmt.Sprintf("unknown tool %q", req.Tool))
		return
	}
	writeJSON(w, http.StatusOK, es.state())
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	es, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req struct {
		ID *string `json:"id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	es.mu.Lock()
	defer es.mu.Unlock()
	if req.ID == nil {
		es.sess.ClearSelection()
		writeJSON(w, http.StatusOK, es.state())
		return
	}
	if !es.sess.Select(*req.ID) {
		writeError(w, http.StatusNotFound, "annotation_not_found",
			fmt.Sprintf("no annotation %q", *req.ID))
		return
	}
	writeJSON(w, http.StatusOK, es.state())
}

func (s *Server) handleCreateAnnotation(w http.ResponseWriter, r *http.Request) {
	es, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req createAnnotationRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	a, err := req.build()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	es.mu.Lock()
	defer es.mu.Unlock()
	if a.Page >= es.sess.PageCount() {
		writeError(w, http.StatusBadRequest, "bad_request",
			fmt.Sprintf("page %d out of range [0, %d)", a.Page, es.sess.PageCount()))
		return
	}
	es.sess.Add(a)
	s.metrics.AnnotationsCreated.WithLabelValues(string(a.Kind)).Inc()
	s.metrics.HistoryDepth.Set(float64(es.sess.HistoryLen()))
	writeJSON(w, http.StatusCreated, toAnnotationJSON(a))
}

func (s *Server) handleUpdateAnnotation(w http.ResponseWriter, r *http.Request) {
	es, ok := s.lookup(w, r)
	if !ok {
		return
	}
	annID := r.PathValue("annotationID")
	var req patchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	es.mu.Lock()
	defer es.mu.Unlock()
	if _, exists := es.sess.Get(annID); !exists {
		writeError(w, http.StatusNotFound, "annotation_not_found",
			fmt.Sprintf("no annotation %q", annID))
		return
	}
	if err := es.sess.Update(annID, req.toPatch()); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_patch", err.Error())
		return
	}
	s.metrics.AnnotationsUpdated.Inc()
	s.metrics.HistoryDepth.Set(float64(es.sess.HistoryLen()))
	updated, _ := es.sess.Get(annID)
	writeJSON(w, http.StatusOK, toAnnotationJSON(updated))
}

func (s *Server) handleDeleteAnnotation(w http.ResponseWriter, r *http.Request) {
	es, ok := s.lookup(w, r)
	if !ok {
		return
	}
	annID := r.PathValue("annotationID")

	es.mu.Lock()
	defer es.mu.Unlock()
	if !es.sess.Delete(annID) {
		writeError(w, http.StatusNotFound, "annotation_not_found",
			fmt.Sprintf("no annotation %q", annID))
		return
	}
	s.metrics.AnnotationsDeleted.Inc()
	s.metrics.HistoryDepth.Set(float64(es.sess.HistoryLen()))
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	es, ok := s.lookup(w, r)
	if !ok {
		return
	}
	es.mu.Lock()
	defer es.mu.Unlock()
	if es.sess.Undo() {
		s.metrics.UndosTotal.Inc()
	}
	writeJSON(w, http.StatusOK, es.state())
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	es, ok := s.lookup(w, r)
	if !ok {
		return
	}
	es.mu.Lock()
	defer es.mu.Unlock()
	if es.sess.Redo() {
		s.metrics.RedosTotal.Inc()
	}
	writeJSON(w, http.StatusOK, es.state())
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	es, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req struct {
		Flatten bool `json:"flatten"`
	}
	if r.ContentLength > 0 {
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
	}

	es.mu.Lock()
	defer es.mu.Unlock()

	sess := es.sess
	records, err := persist.ToRecords(sess.Annotations(), sess.Metrics())
	if err != nil {
		writeError(w, http.StatusConflict, "no_page_metrics", err.Error())
		return
	}

	start := time.Now()
	docBytes, err := s.docs.SaveAnnotations(r.Context(), sess.DocumentID(), records, req.Flatten)
	if err != nil {
		// The in-memory collection is untouched; the user can retry.
		s.log.Error().Err(err).Str("session", es.id).Msg("save failed")
		writeError(w, http.StatusBadGateway, "docservice_error", err.Error())
		return
	}
	s.metrics.SaveDuration.Observe(time.Since(start).Seconds())

	s.log.Info().Str("session", es.id).Int("records", len(records)).Msg("annotations saved")
	writeJSON(w, http.StatusOK, map[string]any{
		"saved":    len(records),
		"document": docBytes,
	})
}
