// ABOUTME: Coordinate transforms between display-canvas pixels and PDF point space
// ABOUTME: Pure functions over per-page metrics, both directions, points and rects

package geometry

// Rect is an axis-aligned box keyed by its top-left origin and size.
// Width and Height are non-negative at rest; Normalize resolves the
// negative deltas that occur mid-drag.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// PageMetrics holds the two sizes of one rendered page: the raster's
// display dimensions in pixels and the document page's dimensions in
// PDF points.
type PageMetrics struct {
	CanvasWidth  float64
	CanvasHeight float64
	PDFWidth     float64
	PDFHeight    float64
}

// Valid reports whether all four dimensions are positive. Transforms
// must not be invoked on invalid metrics; callers check Valid before
// page metrics have been loaded.
func (m PageMetrics) Valid() bool {
	return m.CanvasWidth > 0 && m.CanvasHeight > 0 && m.PDFWidth > 0 && m.PDFHeight > 0
}

// PointToDocument maps a display-space point into document space.
func (m PageMetrics) PointToDocument(x, y float64) (float64, float64) {
	return x * m.PDFWidth / m.CanvasWidth, y * m.PDFHeight / m.CanvasHeight
}

// PointToDisplay maps a document-space point into display space.
func (m PageMetrics) PointToDisplay(x, y float64) (float64, float64) {
	return x * m.CanvasWidth / m.PDFWidth, y * m.CanvasHeight / m.PDFHeight
}

// RectToDocument maps a display-space rect into document space.
// Both corners go through the point transform and the size is derived
// from the corner deltas, so the far corner lands exactly where the
// point transform would place it.
func (m PageMetrics) RectToDocument(r Rect) Rect {
	x1, y1 := m.PointToDocument(r.X, r.Y)
	x2, y2 := m.PointToDocument(r.X+r.Width, r.Y+r.Height)
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// RectToDisplay maps a document-space rect into display space.
func (m PageMetrics) RectToDisplay(r Rect) Rect {
	x1, y1 := m.PointToDisplay(r.X, r.Y)
	x2, y2 := m.PointToDisplay(r.X+r.Width, r.Y+r.Height)
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// Normalize returns r with negative width/height folded back into the
// origin, so the result has a non-negative size.
func Normalize(r Rect) Rect {
	if r.Width < 0 {
		r.X += r.Width
		r.Width = -r.Width
	}
	if r.Height < 0 {
		r.Y += r.Height
		r.Height = -r.Height
	}
	return r
}

// BoundingBox computes the axis-aligned bounding box of a flattened
// x,y point list. An empty or odd-length list yields the zero Rect.
func BoundingBox(points []float64) Rect {
	if len(points) < 2 || len(points)%2 != 0 {
		return Rect{}
	}

	minX, minY := points[0], points[1]
	maxX, maxY := minX, minY
	for i := 2; i < len(points); i += 2 {
		x, y := points[i], points[i+1]
		if x < minX {
			minX = x
		}
		if y < minY {
			minY = y
		}
		if x > maxX {
			maxX = x
		}
		if y > maxY {
			maxY = y
		}
	}

	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}
