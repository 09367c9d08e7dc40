// Package theme provides the Lip Gloss color palette and reusable styles
// for the kmeans-viz TUI. It is a leaf package with no internal imports
// to avoid import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Phase colors.
var (
	ColorNoDataset = lipgloss.Color("#6b7280")
	ColorDataset   = lipgloss.Color("#3b82f6")
	ColorAwaiting  = lipgloss.Color("#d97706")
	ColorReady     = lipgloss.Color("#a855f7")
	ColorConverged = lipgloss.Color("#16a34a")
)

// Canvas overlay colors.
var (
	ColorCrosshair = lipgloss.Color("#f9fafb")
	ColorPlaced    = lipgloss.Color("#ef4444")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorBg      = lipgloss.Color("#111827")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
	ColorInfo    = lipgloss.Color("#2563eb")
)

// PhaseColor returns the badge color for a phase name.
func PhaseColor(phase string) lipgloss.Color {
	switch phase {
	case "no dataset":
		return ColorNoDataset
	case "dataset ready":
		return ColorDataset
	case "placing centroids":
		return ColorAwaiting
	case "ready":
		return ColorReady
	case "converged":
		return ColorConverged
	default:
		return ColorDimmed
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
		Foreground(ColorDimmed)

	StyleEnabled = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright)

	StyleError = lipgloss.NewStyle().
		Foreground(ColorDanger)

	StyleNotice = lipgloss.NewStyle().
		Foreground(ColorWarning)
)
