// Package coords converts between canvas pixels and the data space the
// clustering service plots into. The canvas shows the square [-5, 5]² with the
// y-axis pointing up, so pixel rows run opposite to data y.
package coords

// Canvas dimensions shared with the rendering service.
const (
	CanvasWidth  = 500
	CanvasHeight = 500
)

// Plot extent on both axes.
const (
	DataMin = -5.0
	DataMax = 5.0
	span    = DataMax - DataMin
)

// Point is a location in data space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pair returns the point as the [x, y] pair used on the wire.
func (p Point) Pair() [2]float64 {
	return [2]float64{p.X, p.Y}
}

// ToData maps a pixel position on a width×height canvas to data space.
func ToData(px, py, width, height float64) Point {
	return Point{
		X: px/width*span + DataMin,
		Y: DataMax - py/height*span,
	}
}

// ToPixel is the inverse of ToData.
func ToPixel(p Point, width, height float64) (px, py float64) {
	px = (p.X - DataMin) / span * width
	py = (DataMax - p.Y) / span * height
	return px, py
}

// CellToPixel returns the canvas pixel at the centre of a terminal cell when a
// width×height canvas is shown on a cols×rows grid.
func CellToPixel(col, row, cols, rows int, width, height float64) (px, py float64) {
	px = (float64(col) + 0.5) / float64(cols) * width
	py = (float64(row) + 0.5) / float64(rows) * height
	return px, py
}

// PixelToCell returns the grid cell that contains a canvas pixel, clamped to
// the grid.
func PixelToCell(px, py float64, cols, rows int, width, height float64) (col, row int) {
	col = clamp(int(px/width*float64(cols)), cols)
	row = clamp(int(py/height*float64(rows)), rows)
	return col, row
}

func clamp(v, n int) int {
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}
