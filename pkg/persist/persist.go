// ABOUTME: Converts the in-memory annotation collection into save payloads
// ABOUTME: Maps display-space boxes into document space for the document service

package persist

import (
	"fmt"

	"github.com/pagemark/pagemark/pkg/annotation"
	"github.com/pagemark/pagemark/pkg/geometry"
)

// Record is the flat document-space form of one annotation sent to
// the document service on save. Freeform highlight points are not part
// of the save contract; only the resulting bounding box is persisted.
type Record struct {
	Page        int     `json:"page"`
	Kind        string  `json:"kind"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	Text        string  `json:"text,omitempty"`
	Color       string  `json:"color,omitempty"`
	FillColor   string  `json:"fillColor,omitempty"`
	Opacity     float64 `json:"opacity,omitempty"`
	FontSize    float64 `json:"fontSize,omitempty"`
	FontFamily  string  `json:"fontFamily,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`
}

// ToRecords converts every annotation through the current page's
// canvas/document metrics into its document-space save record. The
// metrics must be loaded: converting before the page is known is a
// caller bug surfaced as an error rather than bad output.
func ToRecords(annots []annotation.Annotation, m geometry.PageMetrics) ([]Record, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("page metrics not loaded: %+v", m)
	}

	records := make([]Record, len(annots))
	for i, a := range annots {
		box := m.RectToDocument(a.Box())
		r := Record{
			Page:   a.Page,
			Kind:   string(a.Kind),
			X:      box.X,
			Y:      box.Y,
			Width:  box.Width,
			Height: box.Height,
		}

		switch a.Kind {
		case annotation.KindText:
			r.Text = a.Text
			r.Color = a.Color
			r.FontSize = a.FontSize
			r.FontFamily = a.FontFamily
		case annotation.KindHighlight:
			r.Color = a.Color
			r.Opacity = a.Opacity
		case annotation.KindRect, annotation.KindCircle:
			r.Color = a.Color
			r.FillColor = a.FillColor
			r.Opacity = a.Opacity
			r.StrokeWidth = a.StrokeWidth
		case annotation.KindComment:
			r.Text = a.Text
		}

		records[i] = r
	}
	return records, nil
}
