// ABOUTME: Selection and transform controller for the shared handle overlay
// ABOUTME: Binds one selected annotation and commits drag/resize/rotate results

package handles

import (
	"github.com/rs/zerolog"

	"github.com/pagemark/pagemark/pkg/annotation"
	"github.com/pagemark/pagemark/pkg/geometry"
	"github.com/pagemark/pagemark/pkg/session"
)

// Resize gestures never shrink an annotation below this size, so a
// degenerate drag cannot produce a zero-size box.
const MinSize = 5

// Controller synchronizes the single shared resize/rotate handle
// overlay with the selected annotation. It is the overlay's only
// owner: binding goes through Sync, so two selections can never hold
// handles at once.
type Controller struct {
	s       *session.Session
	boundID string
	log     zerolog.Logger
}

// NewController creates a controller over one session.
func NewController(s *session.Session, log zerolog.Logger) *Controller {
	return &Controller{
		s:   s,
		log: log.With().Str("component", "handles").Logger(),
	}
}

// BoundID returns the annotation the overlay is attached to, empty
// when detached.
func (c *Controller) BoundID() string { return c.boundID }

// Sync rebinds the overlay to the session's current selection. While a
// text edit is in progress the overlay stays where it is; clearing the
// selection detaches it. Returns the bound id after the sync.
func (c *Controller) Sync(textEditing bool) string {
	if textEditing {
		return c.boundID
	}
	c.boundID = c.s.SelectedID()
	return c.boundID
}

// Box returns the bound annotation's current box and rotation for the
// overlay to draw.
func (c *Controller) Box() (geometry.Rect, float64, bool) {
	if c.boundID == "" {
		return geometry.Rect{}, 0, false
	}
	a, ok := c.s.Get(c.boundID)
	if !ok {
		return geometry.Rect{}, 0, false
	}
	return a.Box(), a.Rotation, true
}

// DragEnd commits a completed move. For circle annotations x,y report
// the dragged center and are converted back to the stored top-left
// box origin; every other kind reports the origin directly.
func (c *Controller) DragEnd(x, y float64) bool {
	if c.boundID == "" {
		return false
	}
	a, ok := c.s.Get(c.boundID)
	if !ok {
		return false
	}

	if a.Kind == annotation.KindCircle {
		x -= a.Width / 2
		y -= a.Height / 2
	}

	err := c.s.Update(c.boundID, annotation.Patch{
		X: annotation.Float(x),
		Y: annotation.Float(y),
	})
	if err != nil {
		c.log.Error().Err(err).Str("id", c.boundID).Msg("drag commit failed")
		return false
	}
	return true
}

// TransformEnd commits a completed resize/rotate. The overlay reports
// its accumulated scale factors and rotation; the scale is baked into
// width/height here (and reset to 1 by the overlay), so scale itself
// is never persisted. Width and height are floored at MinSize.
func (c *Controller) TransformEnd(x, y, scaleX, scaleY, rotation float64) bool {
	if c.boundID == "" {
		return false
	}
	a, ok := c.s.Get(c.boundID)
	if !ok {
		return false
	}

	width := a.Width * scaleX
	if width < MinSize {
		width = MinSize
	}
	height := a.Height * scaleY
	if height < MinSize {
		height = MinSize
	}

	err := c.s.Update(c.boundID, annotation.Patch{
		X:        annotation.Float(x),
		Y:        annotation.Float(y),
		Width:    annotation.Float(width),
		Height:   annotation.Float(height),
		Rotation: annotation.Float(rotation),
	})
	if err != nil {
		c.log.Error().Err(err).Str("id", c.boundID).Msg("transform commit failed")
		return false
	}
	return true
}
