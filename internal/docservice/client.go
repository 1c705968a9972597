// Package docservice is the HTTP client for the external document
// processing service: page rendering, document info, and annotation
// save/load. The editor core never mutates its own state on a failed
// call; errors from here surface to the user and the session stays as
// it was.
package docservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/pagemark/pagemark/pkg/persist"
)

// RenderResult is the response to a page render request. Width and
// Height are the raster's display-space pixel dimensions; PageWidth
// and PageHeight are the document-space point dimensions that seed the
// coordinate transforms.
type RenderResult struct {
	Image      []byte  `json:"image"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	PageWidth  float64 `json:"pageWidth"`
	PageHeight float64 `json:"pageHeight"`
	DPI        float64 `json:"dpi"`
	Zoom       float64 `json:"zoom"`
}

// PageInfo describes one page in document space.
type PageInfo struct {
	PageNum  int     `json:"pageNum"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation"`
}

// DocumentInfo is the response to a document info request.
type DocumentInfo struct {
	PageCount int        `json:"pageCount"`
	Pages     []PageInfo `json:"pages"`
}

// Client talks to the document processing service.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     log.With().Str("component", "docservice").Logger(),
	}
}

func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("document service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("document service returned %s for %s", resp.Status, path)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

// RenderPage rasterizes one page of the document at the given dpi.
func (c *Client) RenderPage(ctx context.Context, document string, page int, dpi float64) (*RenderResult, error) {
	start := time.Now()
	var result RenderResult
	err := c.postJSON(ctx, "/render", map[string]any{
		"document": document,
		"page":     page,
		"dpi":      dpi,
	}, &result)
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", page, err)
	}

	c.log.Debug().
		Str("document", document).
		Int("page", page).
		Dur("duration_ms", time.Since(start)).
		Float64("canvas_w", result.Width).
		Float64("canvas_h", result.Height).
		Msg("page rendered")
	return &result, nil
}

// DocumentInfo fetches the page count and per-page dimensions.
func (c *Client) DocumentInfo(ctx context.Context, document string) (*DocumentInfo, error) {
	var info DocumentInfo
	if err := c.postJSON(ctx, "/info", map[string]any{"document": document}, &info); err != nil {
		return nil, fmt.Errorf("document info: %w", err)
	}
	return &info, nil
}

// SaveAnnotations writes the document-space records into the document
// and returns the resulting document bytes.
func (c *Client) SaveAnnotations(ctx context.Context, document string, records []persist.Record, flatten bool) ([]byte, error) {
	payload, err := json.Marshal(map[string]any{
		"document":    document,
		"annotations": records,
		"flatten":     flatten,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode save request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/save", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build save request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("save annotations: document service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("save annotations: document service returned %s", resp.Status)
	}

	docBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("save annotations: failed to read document bytes: %w", err)
	}

	c.log.Info().
		Str("document", document).
		Int("records", len(records)).
		Int("bytes", len(docBytes)).
		Msg("annotations saved")
	return docBytes, nil
}

// LoadAnnotations fetches annotations previously stored in the
// document. Reconciling them into an open session is not implemented;
// callers currently log the count and discard the records.
func (c *Client) LoadAnnotations(ctx context.Context, document string) ([]persist.Record, error) {
	var out struct {
		Annotations []persist.Record `json:"annotations"`
	}
	if err := c.postJSON(ctx, "/annotations", map[string]any{"document": document}, &out); err != nil {
		return nil, fmt.Errorf("load annotations: %w", err)
	}
	return out.Annotations, nil
}
