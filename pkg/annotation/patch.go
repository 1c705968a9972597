// ABOUTME: Partial-update payloads for annotations
// ABOUTME: Validates patch fields against the target annotation kind

package annotation

import (
	"fmt"
	"time"
)

// Patch is a partial update for one annotation. Nil pointer fields are
// left untouched. A patch is validated against the target kind before
// it is applied, so a field that does not exist on that variant is
// rejected rather than silently accepted.
type Patch struct {
	X        *float64
	Y        *float64
	Width    *float64
	Height   *float64
	Rotation *float64

	Text        *string
	FontSize    *float64
	FontFamily  *string
	Color       *string
	FillColor   *string
	Opacity     *float64
	StrokeWidth *float64

	// Replacement point list for freeform highlights. Nil leaves the
	// existing list alone.
	Points []float64
}

// Validate checks that every set field applies to the given kind and
// that geometry stays well formed.
func (p Patch) Validate(kind Kind) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown annotation kind %q", kind)
	}

	if p.Width != nil && *p.Width < 0 {
		return fmt.Errorf("width must be non-negative, got %v", *p.Width)
	}
	if p.Height != nil && *p.Height < 0 {
		return fmt.Errorf("height must be non-negative, got %v", *p.Height)
	}

	if p.Text != nil && kind != KindText && kind != KindComment {
		return fmt.Errorf("text does not apply to %s annotations", kind)
	}
	if (p.FontSize != nil || p.FontFamily != nil) && kind != KindText {
		return fmt.Errorf("font fields do not apply to %s annotations", kind)
	}
	if p.Color != nil && kind == KindComment {
		return fmt.Errorf("color does not apply to %s annotations", kind)
	}
	if p.Opacity != nil && (kind == KindText || kind == KindComment) {
		return fmt.Errorf("opacity does not apply to %s annotations", kind)
	}
	if (p.FillColor != nil || p.StrokeWidth != nil) && kind != KindRect && kind != KindCircle {
		return fmt.Errorf("shape style fields do not apply to %s annotations", kind)
	}
	if p.Points != nil {
		if kind != KindHighlight {
			return fmt.Errorf("points do not apply to %s annotations", kind)
		}
		if len(p.Points)%2 != 0 || len(p.Points) < 6 {
			return fmt.Errorf("points must hold at least 3 x,y pairs, got %d values", len(p.Points))
		}
	}

	return nil
}

// Apply writes the set fields of p into a and stamps ModifiedAt.
// Callers validate first; Apply itself does not re-check kinds.
func (a *Annotation) Apply(p Patch) {
	if p.X != nil {
		a.X = *p.X
	}
	if p.Y != nil {
		a.Y = *p.Y
	}
	if p.Width != nil {
		a.Width = *p.Width
	}
	if p.Height != nil {
		a.Height = *p.Height
	}
	if p.Rotation != nil {
		a.Rotation = *p.Rotation
	}
	if p.Text != nil {
		a.Text = *p.Text
	}
	if p.FontSize != nil {
		a.FontSize = *p.FontSize
	}
	if p.FontFamily != nil {
		a.FontFamily = *p.FontFamily
	}
	if p.Color != nil {
		a.Color = *p.Color
	}
	if p.FillColor != nil {
		a.FillColor = *p.FillColor
	}
	if p.Opacity != nil {
		a.Opacity = *p.Opacity
	}
	if p.StrokeWidth != nil {
		a.StrokeWidth = *p.StrokeWidth
	}
	if p.Points != nil {
		a.Points = make([]float64, len(p.Points))
		copy(a.Points, p.Points)
	}
	a.ModifiedAt = time.Now()
}

// Float returns a pointer to v, for building patches.
func Float(v float64) *float64 { return &v }

// String returns a pointer to v, for building patches.
func String(v string) *string { return &v }
