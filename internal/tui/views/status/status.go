package status

import (
	"fmt"

	"github.com/DFly7/SimpleMediaPipe/internal/client"
	"github.com/DFly7/SimpleMediaPipe/internal/tui/theme"
	"github.com/charmbracelet/lipgloss"
)

// Model holds the status bar state.
type Model struct {
	State     client.State
	SID       string
	Capturing bool
	Frames    int
	Width     int
}

// New creates a status bar model.
func New() Model {
	return Model{State: client.Disconnected}
}

// Indicator renders the connection glyph and label for st.
func Indicator(st client.State) string {
	switch st {
	case client.NamespaceConnected:
		return lipgloss.NewStyle().Foreground(theme.ColorConnected).Render("● Connected")
	case client.SocketOpening:
		return lipgloss.NewStyle().Foreground(theme.ColorHandshake).Render("○ Connecting...")
	case client.EngineHandshakeReceived:
		return lipgloss.NewStyle().Foreground(theme.ColorHandshake).Render("◎ Joining namespace...")
	case client.Errored:
		return lipgloss.NewStyle().Foreground(theme.ColorErrored).Render("✗ Connection error")
	default:
		return lipgloss.NewStyle().Foreground(theme.ColorOffline).Render("○ Disconnected")
	}
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var capStr string
	if m.Capturing {
		capStr = lipgloss.NewStyle().Foreground(theme.ColorCapture).Render(fmt.Sprintf("● REC %d frames", m.Frames))
	} else {
		capStr = theme.StyleDimmed.Render("capture off")
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := Indicator(m.State) + sep + capStr
	if m.SID != "" && m.State == client.NamespaceConnected {
		content += sep + theme.StyleDimmed.Render("sid "+m.SID)
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}
