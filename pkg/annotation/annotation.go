// ABOUTME: Annotation data model for page overlays
// ABOUTME: Defines the five annotation kinds, their envelope, and constructors

package annotation

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/pagemark/pagemark/pkg/geometry"
)

// Kind identifies one of the five annotation variants.
type Kind string

const (
	KindText      Kind = "text"
	KindHighlight Kind = "highlight"
	KindRect      Kind = "rect"
	KindCircle    Kind = "circle"
	KindComment   Kind = "comment"
)

// Valid reports whether k names a known annotation kind.
func (k Kind) Valid() bool {
	switch k {
	case KindText, KindHighlight, KindRect, KindCircle, KindComment:
		return true
	}
	return false
}

// Comment annotations occupy a fixed box.
const (
	CommentSize = 32

	// Defaults for a freshly created text annotation.
	TextBoxWidth  = 200
	TextBoxHeight = 30
)

// Annotation is one overlay object on a document page. The envelope
// fields apply to every kind; the remaining fields are variant-specific
// and validated through Patch. The bounding box is display space at the
// zoom=1 reference scale; for circles it encloses the circle.
type Annotation struct {
	ID         string
	Kind       Kind
	Page       int
	X          float64
	Y          float64
	Width      float64
	Height     float64
	Rotation   float64
	CreatedAt  time.Time
	ModifiedAt time.Time

	// text, comment
	Text string

	// text
	FontSize   float64
	FontFamily string

	// text, highlight, rect, circle
	Color string

	// highlight, rect, circle
	Opacity float64

	// rect, circle
	FillColor   string
	StrokeWidth float64

	// Freeform highlight path: flattened x,y pairs relative to the
	// bounding box origin. Nil means a plain translucent rounded
	// rectangle. When present, even length with at least 3 vertices.
	Points []float64
}

// NewID returns a fresh annotation identifier.
func NewID() string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	return "ann_" + hex.EncodeToString(bytes)
}

// Clone returns a deep copy of a, including its point list.
func (a Annotation) Clone() Annotation {
	c := a
	if a.Points != nil {
		c.Points = make([]float64, len(a.Points))
		copy(c.Points, a.Points)
	}
	return c
}

// CloneAll deep-copies an annotation collection.
func CloneAll(annots []Annotation) []Annotation {
	out := make([]Annotation, len(annots))
	for i, a := range annots {
		out[i] = a.Clone()
	}
	return out
}

// NewText creates an empty text annotation at the given display
// position, sized to the default text box.
func NewText(page int, x, y float64, color string, fontSize float64, fontFamily string) Annotation {
	now := time.Now()
	return Annotation{
		ID:         NewID(),
		Kind:       KindText,
		Page:       page,
		X:          x,
		Y:          y,
		Width:      TextBoxWidth,
		Height:     TextBoxHeight,
		CreatedAt:  now,
		ModifiedAt: now,
		Text:       "",
		FontSize:   fontSize,
		FontFamily: fontFamily,
		Color:      color,
	}
}

// NewHighlight creates a highlight annotation. Points may be nil for
// the plain rectangular form.
func NewHighlight(page int, box geometry.Rect, color string, opacity float64, points []float64) Annotation {
	now := time.Now()
	return Annotation{
		ID:         NewID(),
		Kind:       KindHighlight,
		Page:       page,
		X:          box.X,
		Y:          box.Y,
		Width:      box.Width,
		Height:     box.Height,
		CreatedAt:  now,
		ModifiedAt: now,
		Color:      color,
		Opacity:    opacity,
		Points:     points,
	}
}

// NewShape creates a rect or circle annotation. kind must be KindRect
// or KindCircle; the box must already be normalized.
func NewShape(kind Kind, page int, box geometry.Rect, color string, strokeWidth float64) Annotation {
	now := time.Now()
	return Annotation{
		ID:          NewID(),
		Kind:        kind,
		Page:        page,
		X:           box.X,
		Y:           box.Y,
		Width:       box.Width,
		Height:      box.Height,
		CreatedAt:   now,
		ModifiedAt:  now,
		Color:       color,
		StrokeWidth: strokeWidth,
		Opacity:     1,
	}
}

// NewComment creates a comment annotation with its fixed 32x32 box.
func NewComment(page int, x, y float64, text string) Annotation {
	now := time.Now()
	return Annotation{
		ID:         NewID(),
		Kind:       KindComment,
		Page:       page,
		X:          x,
		Y:          y,
		Width:      CommentSize,
		Height:     CommentSize,
		CreatedAt:  now,
		ModifiedAt: now,
		Text:       text,
	}
}

// Box returns a's display-space bounding box.
func (a Annotation) Box() geometry.Rect {
	return geometry.Rect{X: a.X, Y: a.Y, Width: a.Width, Height: a.Height}
}
