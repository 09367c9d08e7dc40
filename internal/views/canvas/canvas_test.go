package canvas

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"strings"
	"testing"

	"github.com/kmeans-viz/kmeans-viz/internal/coords"
)

func solidPNG(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 50, 50))
	for y := 0; y < 50; y++ {
		for x := 0; x < 50; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestSurfacePaint(t *testing.T) {
	s := NewSurface()
	if s.Scaled(10, 10) != nil {
		t.Fatal("Scaled() before Paint should be nil")
	}

	if err := s.Paint(solidPNG(t, color.RGBA{R: 255, A: 255})); err != nil {
		t.Fatalf("Paint() error: %v", err)
	}
	if s.Version() != 1 {
		t.Errorf("Version() = %d, want 1", s.Version())
	}

	img := s.Scaled(10, 20)
	if img.Bounds().Dx() != 10 || img.Bounds().Dy() != 20 {
		t.Fatalf("Scaled bounds = %v", img.Bounds())
	}
	if r, _, _, _ := img.At(5, 5).RGBA(); r>>8 != 255 {
		t.Errorf("scaled pixel red = %d, want 255", r>>8)
	}
}

func TestSurfacePaintRejectsGarbage(t *testing.T) {
	s := NewSurface()
	if err := s.Paint([]byte("not a png")); err == nil {
		t.Fatal("Paint() accepted garbage")
	}
	if s.Version() != 0 {
		t.Error("failed Paint bumped the version")
	}
}

func TestViewEmpty(t *testing.T) {
	m := New(NewSurface())
	if v := m.View(nil); !strings.Contains(v, "No dataset") {
		t.Error("empty canvas should prompt for a dataset")
	}
}

func TestViewMarksPlacedPoints(t *testing.T) {
	s := NewSurface()
	s.Paint(solidPNG(t, color.White))
	m := New(s)

	v := m.View([]coords.Point{{X: -4, Y: 4}, {X: 4, Y: -4}})
	if !strings.Contains(v, "1") || !strings.Contains(v, "2") {
		t.Error("placed centroids are not marked")
	}
	if !strings.Contains(v, "▀") {
		t.Error("canvas has no half blocks")
	}
}

func TestResizeKeepsSquareAspect(t *testing.T) {
	m := New(NewSurface())
	m.Resize(120, 30)
	if m.Cols != 60 || m.Rows != 30 {
		t.Errorf("Resize(120, 30) = %dx%d, want 60x30", m.Cols, m.Rows)
	}
	m.Resize(42, 100)
	if m.Cols != 40 || m.Rows != 20 {
		t.Errorf("Resize(42, 100) = %dx%d, want 40x20", m.Cols, m.Rows)
	}
}

func TestCursorClampsAndMaps(t *testing.T) {
	m := New(NewSurface())
	m.SetCursor(-5, 1000)
	col, row := m.Cursor()
	if col != 0 || row != m.Rows-1 {
		t.Errorf("Cursor() = %d,%d, want 0,%d", col, row, m.Rows-1)
	}

	p := m.CursorPoint()
	if p.X > -4.5 || p.Y > -4.5 {
		t.Errorf("bottom-left cell maps to %+v", p)
	}
}

func TestCrosshairSettles(t *testing.T) {
	m := New(NewSurface())
	cmd := m.MoveCursor(5, 3)
	if cmd == nil {
		t.Fatal("MoveCursor() did not start the animation")
	}
	if m.MoveCursor(1, 0) != nil {
		t.Error("second move started another frame loop")
	}

	for i := 0; i < 300; i++ {
		m, cmd = m.Update(FrameMsg{})
		if cmd == nil {
			break
		}
	}
	if cmd != nil {
		t.Fatal("crosshair never settled")
	}
	if math.Abs(m.x-6) > 1e-9 || math.Abs(m.y-3) > 1e-9 {
		t.Errorf("crosshair at %v,%v, want 6,3", m.x, m.y)
	}
}
