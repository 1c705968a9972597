// Integration tests for the editor HTTP server
package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/pagemark/pagemark/internal/docservice"
	"github.com/pagemark/pagemark/internal/metrics"
	"github.com/pagemark/pagemark/pkg/persist"
)

// fakeDocService stands in for the external document processing
// service.
type fakeDocService struct {
	mu          sync.Mutex
	renderCalls int
	saveBody    []byte

	failInfo   bool
	failRender bool
	failSave   bool

	pageCount        int
	canvasW, canvasH int
	pageW, pageH     float64
}

func (f *fakeDocService) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failInfo {
			http.Error(w, "info unavailable", http.StatusInternalServerError)
			return
		}
		pages := make([]map[string]any, f.pageCount)
		for i := range pages {
			pages[i] = map[string]any{
				"pageNum": i,
				"width":   f.pageW,
				"height":  f.pageH,
			}
		}
		json.NewEncoder(w).Encode(map[string]any{
			"pageCount": f.pageCount,
			"pages":     pages,
		})
	})

	mux.HandleFunc("/render", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failRender {
			http.Error(w, "render failed", http.StatusInternalServerError)
			return
		}
		f.renderCalls++

		var buf bytes.Buffer
		img := image.NewRGBA(image.Rect(0, 0, f.canvasW, f.canvasH))
		if err := png.Encode(&buf, img); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"image":      buf.Bytes(),
			"width":      float64(f.canvasW),
			"height":     float64(f.canvasH),
			"pageWidth":  f.pageW,
			"pageHeight": f.pageH,
			"dpi":        150,
			"zoom":       1,
		})
	})

	mux.HandleFunc("/save", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failSave {
			http.Error(w, "save failed", http.StatusInternalServerError)
			return
		}
		body, _ := io.ReadAll(r.Body)
		f.saveBody = body
		w.Write([]byte("%PDF-1.7 saved"))
	})

	mux.HandleFunc("/annotations", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"annotations": []any{}})
	})

	return mux
}

func setupTestServer(t *testing.T, fake *fakeDocService) (*Server, *httptest.Server) {
	t.Helper()
	if fake.pageCount == 0 {
		fake.pageCount = 2
	}
	if fake.canvasW == 0 {
		fake.canvasW = 816
		fake.canvasH = 1056
	}
	if fake.pageW == 0 {
		fake.pageW = 612
		fake.pageH = 792
	}

	docSrv := httptest.NewServer(fake.handler())
	t.Cleanup(docSrv.Close)

	log := zerolog.Nop()
	srv := NewServer(
		docservice.NewClient(docSrv.URL, log),
		metrics.New(prometheus.NewRegistry()),
		log,
		150,
	)

	editorSrv := httptest.NewServer(srv.Handler())
	t.Cleanup(editorSrv.Close)
	return srv, editorSrv
}

func doJSON(t *testing.T, method, url string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to encode request: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && err != io.EOF {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return resp.StatusCode, out
}

func openDocument(t *testing.T, baseURL string) (string, map[string]any) {
	t.Helper()
	status, body := doJSON(t, http.MethodPost, baseURL+"/api/documents/open",
		map[string]any{"document": "report.pdf"})
	if status != http.StatusCreated {
		t.Fatalf("Open failed with status %d: %v", status, body)
	}
	id, _ := body["sessionId"].(string)
	if id == "" {
		t.Fatal("Open returned no session id")
	}
	return id, body
}

func TestOpenDocument(t *testing.T) {
	_, srv := setupTestServer(t, &fakeDocService{})
	id, body := openDocument(t, srv.URL)

	if len(id) < 5 || id[:5] != "sess_" {
		t.Errorf("Expected sess_ prefix, got %q", id)
	}
	if body["pageCount"].(float64) != 2 || body["page"].(float64) != 0 {
		t.Errorf("Unexpected page state: %v", body)
	}
	if body["canvasWidth"].(float64) != 816 || body["pageWidth"].(float64) != 612 {
		t.Errorf("Unexpected metrics: %v", body)
	}
	if body["tool"].(string) != "select" || body["zoom"].(float64) != 1 {
		t.Errorf("Unexpected defaults: %v", body)
	}
	if body["canUndo"].(bool) {
		t.Error("Fresh session should have nothing to undo")
	}
	if body["image"] == nil {
		t.Error("Open response should carry the first page raster")
	}
}

func TestOpenFailsWhenServiceDown(t *testing.T) {
	srv, editorSrv := setupTestServer(t, &fakeDocService{failInfo: true})
	status, _ := doJSON(t, http.MethodPost, editorSrv.URL+"/api/documents/open",
		map[string]any{"document": "report.pdf"})
	if status != http.StatusBadGateway {
		t.Fatalf("Expected 502, got %d", status)
	}
	if len(srv.sessions) != 0 {
		t.Errorf("Failed open must not leave a session behind, got %d", len(srv.sessions))
	}
}

func TestAnnotationLifecycle(t *testing.T) {
	_, srv := setupTestServer(t, &fakeDocService{})
	id, _ := openDocument(t, srv.URL)
	base := srv.URL + "/api/sessions/" + id

	status, created := doJSON(t, http.MethodPost, base+"/annotations", map[string]any{
		"kind": "rect", "page": 0,
		"x": 100.0, "y": 100.0, "width": 200.0, "height": 150.0,
		"color": "#FF0000", "strokeWidth": 2.0,
	})
	if status != http.StatusCreated {
		t.Fatalf("Create failed with status %d: %v", status, created)
	}
	annID := created["id"].(string)
	if len(annID) < 4 || annID[:4] != "ann_" {
		t.Errorf("Expected ann_ prefix, got %q", annID)
	}

	status, updated := doJSON(t, http.MethodPatch, base+"/annotations/"+annID,
		map[string]any{"x": 120.0})
	if status != http.StatusOK || updated["x"].(float64) != 120 {
		t.Errorf("Update failed: status %d body %v", status, updated)
	}

	// text does not apply to a rect
	status, _ = doJSON(t, http.MethodPatch, base+"/annotations/"+annID,
		map[string]any{"text": "nope"})
	if status != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid patch, got %d", status)
	}

	status, _ = doJSON(t, http.MethodDelete, base+"/annotations/"+annID, nil)
	if status != http.StatusOK {
		t.Errorf("Delete failed with status %d", status)
	}
	status, _ = doJSON(t, http.MethodDelete, base+"/annotations/"+annID, nil)
	if status != http.StatusNotFound {
		t.Errorf("Deleting a gone annotation should 404, got %d", status)
	}
}

func TestUnknownKindRejected(t *testing.T) {
	_, srv := setupTestServer(t, &fakeDocService{})
	id, _ := openDocument(t, srv.URL)

	status, _ := doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+id+"/annotations",
		map[string]any{"kind": "arrow", "page": 0})
	if status != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown kind, got %d", status)
	}
}

func TestUndoRedo(t *testing.T) {
	_, srv := setupTestServer(t, &fakeDocService{})
	id, _ := openDocument(t, srv.URL)
	base := srv.URL + "/api/sessions/" + id

	for i := 0; i < 2; i++ {
		status, _ := doJSON(t, http.MethodPost, base+"/annotations", map[string]any{
			"kind": "rect", "page": 0,
			"x": float64(10 * i), "y": 10.0, "width": 20.0, "height": 20.0,
			"color": "#FF0000", "strokeWidth": 2.0,
		})
		if status != http.StatusCreated {
			t.Fatalf("Create %d failed with status %d", i, status)
		}
	}

	status, state := doJSON(t, http.MethodPost, base+"/undo", nil)
	if status != http.StatusOK {
		t.Fatalf("Undo failed with status %d", status)
	}
	if n := len(state["annotations"].([]any)); n != 1 {
		t.Errorf("Expected 1 annotation after undo, got %d", n)
	}
	if !state["canRedo"].(bool) {
		t.Error("Redo should be available after undo")
	}

	_, state = doJSON(t, http.MethodPost, base+"/redo", nil)
	if n := len(state["annotations"].([]any)); n != 2 {
		t.Errorf("Expected 2 annotations after redo, got %d", n)
	}

	// Walk back to the empty initial snapshot, then once more past it.
	doJSON(t, http.MethodPost, base+"/undo", nil)
	_, state = doJSON(t, http.MethodPost, base+"/undo", nil)
	if n := len(state["annotations"].([]any)); n != 0 {
		t.Errorf("Expected empty collection at history floor, got %d", n)
	}
	if state["canUndo"].(bool) {
		t.Error("Undo should be exhausted at the initial snapshot")
	}
	status, state = doJSON(t, http.MethodPost, base+"/undo", nil)
	if status != http.StatusOK || len(state["annotations"].([]any)) != 0 {
		t.Errorf("Undo at the floor should be a no-op, got %d %v", status, state)
	}
}

func TestSaveWritesDocumentSpaceRecords(t *testing.T) {
	fake := &fakeDocService{}
	_, srv := setupTestServer(t, fake)
	id, _ := openDocument(t, srv.URL)
	base := srv.URL + "/api/sessions/" + id

	doJSON(t, http.MethodPost, base+"/annotations", map[string]any{
		"kind": "rect", "page": 0,
		"x": 100.0, "y": 100.0, "width": 200.0, "height": 150.0,
		"color": "#FF0000", "strokeWidth": 2.0,
	})

	status, body := doJSON(t, http.MethodPost, base+"/save", map[string]any{"flatten": true})
	if status != http.StatusOK {
		t.Fatalf("Save failed with status %d: %v", status, body)
	}
	if body["saved"].(float64) != 1 {
		t.Errorf("Expected 1 saved record, got %v", body["saved"])
	}

	fake.mu.Lock()
	saveBody := fake.saveBody
	fake.mu.Unlock()

	var req struct {
		Document    string           `json:"document"`
		Annotations []persist.Record `json:"annotations"`
		Flatten     bool             `json:"flatten"`
	}
	if err := json.Unmarshal(saveBody, &req); err != nil {
		t.Fatalf("Failed to decode save payload: %v", err)
	}
	if req.Document != "report.pdf" || !req.Flatten {
		t.Errorf("Unexpected save envelope: %+v", req)
	}
	if len(req.Annotations) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(req.Annotations))
	}
	// Display 100,100 200x150 on a 816x1056 canvas of a 612x792 page.
	r := req.Annotations[0]
	if r.X != 75 || r.Y != 75 || r.Width != 150 || r.Height != 112.5 {
		t.Errorf("Expected document box 75,75 150x112.5, got %v,%v %vx%v",
			r.X, r.Y, r.Width, r.Height)
	}
}

func TestSaveFailureLeavesCollectionIntact(t *testing.T) {
	fake := &fakeDocService{}
	_, srv := setupTestServer(t, fake)
	id, _ := openDocument(t, srv.URL)
	base := srv.URL + "/api/sessions/" + id

	doJSON(t, http.MethodPost, base+"/annotations", map[string]any{
		"kind": "rect", "page": 0,
		"x": 10.0, "y": 10.0, "width": 20.0, "height": 20.0,
		"color": "#FF0000", "strokeWidth": 2.0,
	})

	fake.mu.Lock()
	fake.failSave = true
	fake.mu.Unlock()

	status, _ := doJSON(t, http.MethodPost, base+"/save", nil)
	if status != http.StatusBadGateway {
		t.Fatalf("Expected 502, got %d", status)
	}

	_, state := doJSON(t, http.MethodGet, base, nil)
	if n := len(state["annotations"].([]any)); n != 1 {
		t.Errorf("Failed save must not touch the collection, got %d annotations", n)
	}
}

func TestChangePageUsesCache(t *testing.T) {
	fake := &fakeDocService{}
	_, srv := setupTestServer(t, fake)
	id, _ := openDocument(t, srv.URL)
	base := srv.URL + "/api/sessions/" + id

	status, state := doJSON(t, http.MethodPost, base+"/page", map[string]any{"page": 1})
	if status != http.StatusOK || state["page"].(float64) != 1 {
		t.Fatalf("Page change failed: %d %v", status, state)
	}

	fake.mu.Lock()
	calls := fake.renderCalls
	fake.mu.Unlock()
	if calls != 2 {
		t.Fatalf("Expected 2 renders (open + page 1), got %d", calls)
	}

	// Back to page 0: served from cache, no extra round trip.
	status, state = doJSON(t, http.MethodPost, base+"/page", map[string]any{"page": 0})
	if status != http.StatusOK || state["page"].(float64) != 0 {
		t.Fatalf("Cached page change failed: %d %v", status, state)
	}
	fake.mu.Lock()
	calls = fake.renderCalls
	fake.mu.Unlock()
	if calls != 2 {
		t.Errorf("Cached page should not re-render, got %d calls", calls)
	}

	status, _ = doJSON(t, http.MethodPost, base+"/page", map[string]any{"page": 5})
	if status != http.StatusBadRequest {
		t.Errorf("Out-of-range page should 400, got %d", status)
	}
}

func TestRenderFailureLeavesPageUnchanged(t *testing.T) {
	fake := &fakeDocService{}
	_, srv := setupTestServer(t, fake)
	id, _ := openDocument(t, srv.URL)
	base := srv.URL + "/api/sessions/" + id

	fake.mu.Lock()
	fake.failRender = true
	fake.mu.Unlock()

	status, _ := doJSON(t, http.MethodPost, base+"/page", map[string]any{"page": 1})
	if status != http.StatusBadGateway {
		t.Fatalf("Expected 502, got %d", status)
	}

	_, state := doJSON(t, http.MethodGet, base, nil)
	if state["page"].(float64) != 0 {
		t.Errorf("Failed render must leave the page unchanged, got %v", state["page"])
	}
}

func TestZoomToolAndSelection(t *testing.T) {
	_, srv := setupTestServer(t, &fakeDocService{})
	id, _ := openDocument(t, srv.URL)
	base := srv.URL + "/api/sessions/" + id

	status, state := doJSON(t, http.MethodPost, base+"/zoom", map[string]any{"zoom": 2.0})
	if status != http.StatusOK || state["zoom"].(float64) != 2 {
		t.Errorf("Zoom failed: %d %v", status, state)
	}
	status, _ = doJSON(t, http.MethodPost, base+"/zoom", map[string]any{"zoom": 0.0})
	if status != http.StatusBadRequest {
		t.Errorf("Zero zoom should 400, got %d", status)
	}

	status, state = doJSON(t, http.MethodPost, base+"/tool", map[string]any{"tool": "rect"})
	if status != http.StatusOK || state["tool"].(string) != "rect" {
		t.Errorf("Tool switch failed: %d %v", status, state)
	}
	status, _ = doJSON(t, http.MethodPost, base+"/tool", map[string]any{"tool": "laser"})
	if status != http.StatusBadRequest {
		t.Errorf("Unknown tool should 400, got %d", status)
	}

	_, created := doJSON(t, http.MethodPost, base+"/annotations", map[string]any{
		"kind": "comment", "page": 0, "x": 50.0, "y": 60.0, "text": "check this",
	})
	annID := created["id"].(string)

	status, state = doJSON(t, http.MethodPost, base+"/select", map[string]any{"id": annID})
	if status != http.StatusOK || state["selectedId"].(string) != annID {
		t.Errorf("Select failed: %d %v", status, state)
	}
	status, _ = doJSON(t, http.MethodPost, base+"/select", map[string]any{"id": "ann_missing"})
	if status != http.StatusNotFound {
		t.Errorf("Selecting an unknown id should 404, got %d", status)
	}
	_, state = doJSON(t, http.MethodPost, base+"/select", map[string]any{"id": nil})
	if sel, ok := state["selectedId"]; ok && sel != "" {
		t.Errorf("Null select should clear the selection, got %v", sel)
	}
}

func TestCloseSession(t *testing.T) {
	_, srv := setupTestServer(t, &fakeDocService{})
	id, _ := openDocument(t, srv.URL)
	base := srv.URL + "/api/sessions/" + id

	status, _ := doJSON(t, http.MethodPost, base+"/close", nil)
	if status != http.StatusOK {
		t.Fatalf("Close failed with status %d", status)
	}
	status, _ = doJSON(t, http.MethodGet, base, nil)
	if status != http.StatusNotFound {
		t.Errorf("Closed session should 404, got %d", status)
	}
}
