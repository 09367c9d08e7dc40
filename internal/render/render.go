// Package render rasterizes a clustering state into the PNG frames the
// terminal client paints. The plot covers the same [-5, 5]² square the client
// maps clicks into, with no axes or margins.
package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/kmeans-viz/kmeans-viz/internal/coords"
	"github.com/muesli/clusters"
	"golang.org/x/image/draw"
	"golang.org/x/image/vector"
)

// Options sizes the frame and its markers, in pixels.
type Options struct {
	Width        int
	Height       int
	PointRadius  float64
	CenterRadius float64
}

var (
	colorBackground = color.RGBA{255, 255, 255, 255}
	colorUnassigned = color.RGBA{31, 119, 180, 255} // #1f77b4
	colorCenter     = color.RGBA{220, 38, 38, 255}  // #dc2626
	colorOutline    = color.RGBA{17, 24, 39, 255}   // #111827
)

// viridis stops, dark to light.
var palette = []color.RGBA{
	{68, 1, 84, 255},
	{72, 40, 120, 255},
	{62, 73, 137, 255},
	{49, 104, 142, 255},
	{38, 130, 142, 255},
	{31, 158, 137, 255},
	{53, 183, 121, 255},
	{110, 206, 88, 255},
	{181, 222, 43, 255},
	{253, 231, 37, 255},
}

// ClusterColor returns the fill for cluster i of k, spread over the palette.
func ClusterColor(i, k int) color.RGBA {
	if k <= 1 {
		return palette[0]
	}
	idx := int(math.Round(float64(i) * float64(len(palette)-1) / float64(k-1)))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(palette) {
		idx = len(palette) - 1
	}
	return palette[idx]
}

type Renderer struct {
	opts Options
}

// New creates a renderer.
func New(opts Options) *Renderer {
	return &Renderer{opts: opts}
}

// Frame draws the points, colored by assignment when one is given, and the
// centers on top.
func (r *Renderer) Frame(points clusters.Observations, assign []int, centers []clusters.Coordinates) *image.RGBA {
	w, h := r.opts.Width, r.opts.Height
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(colorBackground), image.Point{}, draw.Src)

	k := len(centers)
	groups := map[int][]clusters.Coordinates{}
	for i, o := range points {
		g := -1
		if assign != nil && i < len(assign) {
			g = assign[i]
		}
		groups[g] = append(groups[g], o.Coordinates())
	}
	for g, pts := range groups {
		fill := colorUnassigned
		if g >= 0 {
			fill = ClusterColor(g, k)
		}
		r.fillCircles(dst, pts, r.opts.PointRadius, fill)
	}

	if len(centers) > 0 {
		r.fillCircles(dst, centers, r.opts.CenterRadius+1.5, colorOutline)
		r.fillCircles(dst, centers, r.opts.CenterRadius, colorCenter)
	}
	return dst
}

// PNG encodes Frame's output.
func (r *Renderer) PNG(points clusters.Observations, assign []int, centers []clusters.Coordinates) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, r.Frame(points, assign, centers)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *Renderer) fillCircles(dst *image.RGBA, pts []clusters.Coordinates, radius float64, fill color.RGBA) {
	b := dst.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	z.DrawOp = draw.Over
	for _, p := range pts {
		cx, cy := coords.ToPixel(coords.Point{X: p[0], Y: p[1]}, float64(b.Dx()), float64(b.Dy()))
		addCircle(z, cx, cy, radius)
	}
	z.Draw(dst, b, image.NewUniform(fill), image.Point{})
}

const circleSegments = 20

func addCircle(z *vector.Rasterizer, cx, cy, radius float64) {
	for i := 0; i <= circleSegments; i++ {
		a := 2 * math.Pi * float64(i) / circleSegments
		x := float32(cx + radius*math.Cos(a))
		y := float32(cy + radius*math.Sin(a))
		if i == 0 {
			z.MoveTo(x, y)
			continue
		}
		z.LineTo(x, y)
	}
	z.ClosePath()
}
