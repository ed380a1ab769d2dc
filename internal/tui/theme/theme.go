// Package theme provides the Lip Gloss color palette and reusable styles
// for the posestream TUI. It is a leaf package with no internal imports
// so every view can import it.
package theme

import "github.com/charmbracelet/lipgloss"

// Connection colors.
var (
	ColorConnected = lipgloss.Color("#22c55e")
	ColorHandshake = lipgloss.Color("#d97706")
	ColorOffline   = lipgloss.Color("#6b7280")
	ColorErrored   = lipgloss.Color("#dc2626")
	ColorFeedback  = lipgloss.Color("#2563eb")
	ColorCapture   = lipgloss.Color("#7c3aed")
	ColorDefault   = lipgloss.Color("#9ca3af")
)

// Score bands.
var (
	ColorScoreLow  = lipgloss.Color("#dc2626") // <50
	ColorScoreMid  = lipgloss.Color("#d97706") // 50-79
	ColorScoreHigh = lipgloss.Color("#22c55e") // 80+
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// ScoreColor returns the band color for a 0-100 score.
func ScoreColor(score float64) lipgloss.Color {
	switch {
	case score >= 80:
		return ColorScoreHigh
	case score >= 50:
		return ColorScoreMid
	default:
		return ColorScoreLow
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
)
