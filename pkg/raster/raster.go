// ABOUTME: Cache of rendered page rasters keyed by page number
// ABOUTME: Decodes service images and scales cached rasters for display zoom

package raster

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// Cache stores decoded page rasters at the zoom=1 reference scale.
// Entries are filled lazily and never evicted during a session; writes
// target distinct page keys, so late responses for other pages cannot
// corrupt earlier entries.
type Cache struct {
	images map[int]image.Image
}

// NewCache returns an empty page raster cache.
func NewCache() *Cache {
	return &Cache{images: make(map[int]image.Image)}
}

// Get returns the cached raster for a page, if present.
func (c *Cache) Get(page int) (image.Image, bool) {
	img, ok := c.images[page]
	return img, ok
}

// Put stores the reference raster for a page, replacing any earlier
// entry for the same page.
func (c *Cache) Put(page int, img image.Image) {
	c.images[page] = img
}

// Len returns the number of cached pages.
func (c *Cache) Len() int {
	return len(c.images)
}

// Reset drops every cached raster.
func (c *Cache) Reset() {
	c.images = make(map[int]image.Image)
}

// Decode turns raw image bytes from the render service into an image.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode page raster: %w", err)
	}
	return img, nil
}

// ScaleForZoom returns the raster scaled by the display zoom factor.
// Zoom 1 returns the reference raster unchanged; other factors produce
// a bilinear-scaled copy. Non-positive zoom is treated as 1.
func ScaleForZoom(img image.Image, zoom float64) image.Image {
	if zoom == 1 || zoom <= 0 {
		return img
	}

	bounds := img.Bounds()
	w := int(float64(bounds.Dx()) * zoom)
	h := int(float64(bounds.Dy()) * zoom)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
