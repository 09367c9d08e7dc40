// Package canvas shows the service's plot in the terminal. Each cell is a
// half block, so a cols×rows grid displays a cols×2rows downscale of the
// frame.
package canvas

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"sync"

	"golang.org/x/image/draw"
)

// Surface holds the most recently painted frame. Paint is called from the
// goroutine running a service request; everything else from the UI loop.
type Surface struct {
	mu      sync.Mutex
	frame   image.Image
	version int
}

// NewSurface creates an empty surface.
func NewSurface() *Surface {
	return &Surface{}
}

// Paint decodes a PNG and makes it the current frame.
func (s *Surface) Paint(data []byte) error {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	s.mu.Lock()
	s.frame = img
	s.version++
	s.mu.Unlock()
	return nil
}

// Version increases on every successful Paint.
func (s *Surface) Version() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Scaled returns the current frame resampled to w×h, or nil before the first
// Paint.
func (s *Surface) Scaled(w, h int) *image.RGBA {
	s.mu.Lock()
	frame := s.frame
	s.mu.Unlock()
	if frame == nil || w <= 0 || h <= 0 {
		return nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), frame, frame.Bounds(), draw.Src, nil)
	return dst
}
