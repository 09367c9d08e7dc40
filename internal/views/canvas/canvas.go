package canvas

import (
	"fmt"
	"image/color"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
	"github.com/kmeans-viz/kmeans-viz/internal/coords"
	"github.com/kmeans-viz/kmeans-viz/internal/theme"
)

const fps = 30

// FrameMsg advances the crosshair animation.
type FrameMsg time.Time

func frameTick() tea.Cmd {
	return tea.Tick(time.Second/fps, func(t time.Time) tea.Msg {
		return FrameMsg(t)
	})
}

// Model draws the surface on a cols×rows grid with the placed centroids and
// an animated crosshair on top.
type Model struct {
	Surface *Surface
	Cols    int
	Rows    int

	spring    harmonica.Spring
	x, y      float64
	vx, vy    float64
	targetCol int
	targetRow int
	animating bool
	showCross bool
}

// New creates a canvas drawing from s.
func New(s *Surface) Model {
	return Model{
		Surface: s,
		Cols:    40,
		Rows:    20,
		spring:  harmonica.NewSpring(harmonica.FPS(fps), 9.0, 0.8),
	}
}

// Resize fits the grid into the available cells. The plot is square, and a
// cell is roughly twice as tall as wide, so rows = cols/2.
func (m *Model) Resize(width, height int) {
	cols := width - 2
	if 2*height < cols {
		cols = 2 * height
	}
	if cols < 10 {
		cols = 10
	}
	m.Cols = cols
	m.Rows = cols / 2
	m.targetCol = min(m.targetCol, m.Cols-1)
	m.targetRow = min(m.targetRow, m.Rows-1)
	m.x, m.y = float64(m.targetCol), float64(m.targetRow)
}

// Cursor is the crosshair's target cell.
func (m Model) Cursor() (col, row int) {
	return m.targetCol, m.targetRow
}

// ShowCrosshair toggles the crosshair overlay.
func (m *Model) ShowCrosshair(on bool) {
	m.showCross = on
}

// MoveCursor shifts the crosshair target and starts the animation if it is
// not already running.
func (m *Model) MoveCursor(dc, dr int) tea.Cmd {
	return m.SetCursor(m.targetCol+dc, m.targetRow+dr)
}

// SetCursor places the crosshair target, clamped to the grid.
func (m *Model) SetCursor(col, row int) tea.Cmd {
	m.targetCol = max(0, min(col, m.Cols-1))
	m.targetRow = max(0, min(row, m.Rows-1))
	if m.animating {
		return nil
	}
	m.animating = true
	return frameTick()
}

// CursorPoint maps the crosshair target to data space.
func (m Model) CursorPoint() coords.Point {
	return m.CellPoint(m.targetCol, m.targetRow)
}

// CellPoint maps a grid cell to data space.
func (m Model) CellPoint(col, row int) coords.Point {
	px, py := coords.CellToPixel(col, row, m.Cols, m.Rows, coords.CanvasWidth, coords.CanvasHeight)
	return coords.ToData(px, py, coords.CanvasWidth, coords.CanvasHeight)
}

// Update steps the spring. The animation stops once the crosshair settles.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if _, ok := msg.(FrameMsg); !ok {
		return m, nil
	}
	tx, ty := float64(m.targetCol), float64(m.targetRow)
	m.x, m.vx = m.spring.Update(m.x, m.vx, tx)
	m.y, m.vy = m.spring.Update(m.y, m.vy, ty)

	if math.Abs(m.x-tx) < 0.01 && math.Abs(m.y-ty) < 0.01 && math.Abs(m.vx)+math.Abs(m.vy) < 0.01 {
		m.x, m.y, m.vx, m.vy = tx, ty, 0, 0
		m.animating = false
		return m, nil
	}
	return m, frameTick()
}

// View renders the grid. placed are drawn as markers in click order.
func (m Model) View(placed []coords.Point) string {
	img := m.Surface.Scaled(m.Cols, m.Rows*2)
	if img == nil {
		return m.empty()
	}

	marks := make(map[[2]int]int, len(placed))
	for i, p := range placed {
		px, py := coords.ToPixel(p, coords.CanvasWidth, coords.CanvasHeight)
		col, row := coords.PixelToCell(px, py, m.Cols, m.Rows, coords.CanvasWidth, coords.CanvasHeight)
		marks[[2]int{col, row}] = i + 1
	}
	crossCol, crossRow := int(math.Round(m.x)), int(math.Round(m.y))

	var b strings.Builder
	for row := 0; row < m.Rows; row++ {
		for col := 0; col < m.Cols; col++ {
			top := hex(img.At(col, 2*row))
			bottom := hex(img.At(col, 2*row+1))
			cell := lipgloss.NewStyle().Foreground(top).Background(bottom)

			switch n, ok := marks[[2]int{col, row}]; {
			case ok:
				b.WriteString(cell.Bold(true).Foreground(theme.ColorPlaced).Render(marker(n)))
			case m.showCross && col == crossCol && row == crossRow:
				b.WriteString(cell.Bold(true).Foreground(theme.ColorCrosshair).Render("┼"))
			default:
				b.WriteString(cell.Render("▀"))
			}
		}
		if row < m.Rows-1 {
			b.WriteByte('\n')
		}
	}
	return theme.StyleBorder.Render(b.String())
}

func (m Model) empty() string {
	msg := theme.StyleDimmed.Render("No dataset yet. Press g to generate one.")
	return theme.StyleBorder.Render(lipgloss.Place(m.Cols, m.Rows, lipgloss.Center, lipgloss.Center, msg))
}

func marker(n int) string {
	if n < 10 {
		return fmt.Sprint(n)
	}
	return "●"
}

func hex(c color.Color) lipgloss.Color {
	r, g, b, _ := c.RGBA()
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8))
}
