// JSON codec helpers and wire types for the editor HTTP surface
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pagemark/pagemark/pkg/annotation"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}

func decodeBody(r *http.Request, out any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// annotationJSON is the wire form of one annotation.
type annotationJSON struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Page        int       `json:"page"`
	X           float64   `json:"x"`
	Y           float64   `json:"y"`
	Width       float64   `json:"width"`
	Height      float64   `json:"height"`
	Rotation    float64   `json:"rotation"`
	Text        string    `json:"text,omitempty"`
	FontSize    float64   `json:"fontSize,omitempty"`
	FontFamily  string    `json:"fontFamily,omitempty"`
	Color       string    `json:"color,omitempty"`
	FillColor   string    `json:"fillColor,omitempty"`
	Opacity     float64   `json:"opacity,omitempty"`
	StrokeWidth float64   `json:"strokeWidth,omitempty"`
	Points      []float64 `json:"points,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	ModifiedAt  time.Time `json:"modifiedAt"`
}

func toAnnotationJSON(a annotation.Annotation) annotationJSON {
	return annotationJSON{
		ID:          a.ID,
		Kind:        string(a.Kind),
		Page:        a.Page,
		X:           a.X,
		Y:           a.Y,
		Width:       a.Width,
		Height:      a.Height,
		Rotation:    a.Rotation,
		Text:        a.Text,
		FontSize:    a.FontSize,
		FontFamily:  a.FontFamily,
		Color:       a.Color,
		FillColor:   a.FillColor,
		Opacity:     a.Opacity,
		StrokeWidth: a.StrokeWidth,
		Points:      a.Points,
		CreatedAt:   a.CreatedAt,
		ModifiedAt:  a.ModifiedAt,
	}
}

func toAnnotationListJSON(annots []annotation.Annotation) []annotationJSON {
	out := make([]annotationJSON, len(annots))
	for i, a := range annots {
		out[i] = toAnnotationJSON(a)
	}
	return out
}

// createAnnotationRequest is the body of an add-annotation call.
type createAnnotationRequest struct {
	Kind        string    `json:"kind"`
	Page        int       `json:"page"`
	X           float64   `json:"x"`
	Y           float64   `json:"y"`
	Width       float64   `json:"width"`
	Height      float64   `json:"height"`
	Rotation    float64   `json:"rotation"`
	Text        string    `json:"text"`
	FontSize    float64   `json:"fontSize"`
	FontFamily  string    `json:"fontFamily"`
	Color       string    `json:"color"`
	FillColor   string    `json:"fillColor"`
	Opacity     float64   `json:"opacity"`
	StrokeWidth float64   `json:"strokeWidth"`
	Points      []float64 `json:"points"`
}

func (req createAnnotationRequest) build() (annotation.Annotation, error) {
	kind := annotation.Kind(req.Kind)
	if !kind.Valid() {
		return annotation.Annotation{}, fmt.Errorf("unknown annotation kind %q", req.Kind)
	}
	if req.Page < 0 {
		return annotation.Annotation{}, fmt.Errorf("page must be non-negative, got %d", req.Page)
	}
	if req.Width < 0 || req.Height < 0 {
		return annotation.Annotation{}, fmt.Errorf("width and height must be non-negative")
	}
	if req.Points != nil {
		if kind != annotation.KindHighlight {
			return annotation.Annotation{}, fmt.Errorf("points only apply to highlight annotations")
		}
		if len(req.Points)%2 != 0 || len(req.Points) < 6 {
			return annotation.Annotation{}, fmt.Errorf("points must hold at least 3 x,y pairs")
		}
	}

	now := time.Now()
	a := annotation.Annotation{
		ID:          annotation.NewID(),
		Kind:        kind,
		Page:        req.Page,
		X:           req.X,
		Y:           req.Y,
		Width:       req.Width,
		Height:      req.Height,
		Rotation:    req.Rotation,
		CreatedAt:   now,
		ModifiedAt:  now,
		Text:        req.Text,
		FontSize:    req.FontSize,
		FontFamily:  req.FontFamily,
		Color:       req.Color,
		FillColor:   req.FillColor,
		Opacity:     req.Opacity,
		StrokeWidth: req.StrokeWidth,
		Points:      req.Points,
	}
	if kind == annotation.KindComment {
		a.Width = annotation.CommentSize
		a.Height = annotation.CommentSize
	}
	return a, nil
}

// patchRequest is the body of an update-annotation call. Absent fields
// stay untouched; validation against the annotation's kind happens in
// the session.
type patchRequest struct {
	X           *float64  `json:"x"`
	Y           *float64  `json:"y"`
	Width       *float64  `json:"width"`
	Height      *float64  `json:"height"`
	Rotation    *float64  `json:"rotation"`
	Text        *string   `json:"text"`
	FontSize    *float64  `json:"fontSize"`
	FontFamily  *string   `json:"fontFamily"`
	Color       *string   `json:"color"`
	FillColor   *string   `json:"fillColor"`
	Opacity     *float64  `json:"opacity"`
	StrokeWidth *float64  `json:"strokeWidth"`
	Points      []float64 `json:"points"`
}

func (req patchRequest) toPatch() annotation.Patch {
	return annotation.Patch{
		X:           req.X,
		Y:           req.Y,
		Width:       req.Width,
		Height:      req.Height,
		Rotation:    req.Rotation,
		Text:        req.Text,
		FontSize:    req.FontSize,
		FontFamily:  req.FontFamily,
		Color:       req.Color,
		FillColor:   req.FillColor,
		Opacity:     req.Opacity,
		StrokeWidth: req.StrokeWidth,
		Points:      req.Points,
	}
}
