// Package help renders the key reference overlay from markdown.
package help

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/kmeans-viz/kmeans-viz/internal/theme"
)

const body = `# kmeans-viz

Watch K-Means work one iteration at a time.

| Key | Action |
| --- | --- |
| g | generate a new dataset |
| i | initialize centroids |
| s | run one iteration |
| c | run to convergence |
| r | reset to the bare dataset |
| m | cycle the init method |
| + / - | change k |
| arrows | move the crosshair |
| space / click | place a centroid (manual init) |
| d | event log (f cycles its filter) |
| ? | this help |
| q | quit |

With **manual** init, place exactly *k* centroids on the canvas; the
last one starts the algorithm. Changing *k* while placing starts over.
`

// Model caches the rendered overlay per width.
type Model struct {
	width    int
	rendered string
}

// New creates the help overlay.
func New() Model {
	return Model{}
}

// View renders the overlay at the given width. Rendering falls back to the
// raw markdown if glamour cannot build a renderer.
func (m *Model) View(width int) string {
	innerW := width - 8
	if innerW < 30 {
		innerW = 30
	}
	if m.rendered == "" || m.width != innerW {
		m.width = innerW
		m.rendered = render(innerW)
	}
	return theme.StyleBorder.
		Width(innerW + 4).
		Padding(0, 1).
		Render(lipgloss.JoinVertical(lipgloss.Left,
			m.rendered,
			theme.StyleDimmed.Render("esc:close")))
}

func render(width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return body
	}
	out, err := r.Render(body)
	if err != nil {
		return body
	}
	return strings.TrimRight(out, " \n\r\t")
}
