package status

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/kmeans-viz/kmeans-viz/internal/client"
	"github.com/kmeans-viz/kmeans-viz/internal/theme"
)

// Model holds the status bar state.
type Model struct {
	Connected bool
	Phase     string
	K         int
	Method    string
	Busy      bool
	Spinner   string // rendered spinner frame, shown while Busy
	Iteration int
	Server    *client.Status
	Width     int
}

// New creates a disconnected status bar.
func New() Model {
	return Model{}
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var connStr string
	if m.Connected {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Live")
	} else {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("○ Offline")
	}

	phase := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.PhaseColor(m.Phase)).
		Render(m.Phase)
	if m.Busy {
		phase = m.Spinner + " " + phase
	}

	settings := fmt.Sprintf("k=%d  init=%s", m.K, m.Method)
	if m.Iteration > 0 {
		settings += fmt.Sprintf("  iter=%d", m.Iteration)
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := phase + sep + settings + sep + connStr
	if m.Server != nil {
		content += sep + theme.StyleDimmed.Render(fmt.Sprintf("%d pts  %s rss  %.1f%% cpu",
			m.Server.Points, formatBytes(m.Server.RSSBytes), m.Server.CPUPercent))
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
