// Package help renders the key reference overlay from Markdown.
package help

import (
	"fmt"
	"strings"

	"github.com/DFly7/SimpleMediaPipe/internal/tui/theme"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// Binding is one row of the key table.
type Binding struct {
	Keys string
	Desc string
}

// Model holds the overlay source and its last render, keyed by width.
type Model struct {
	Style string // glamour standard style: "dark", "light", "notty"

	markdown string
	width    int
	rendered string
}

func New(style string, bindings []Binding) Model {
	return Model{Style: style, markdown: Markdown(bindings)}
}

// Markdown builds the overlay source.
func Markdown(bindings []Binding) string {
	var b strings.Builder
	b.WriteString("# posestream\n\n")
	b.WriteString("Streams pose keypoints to the scoring server and shows the scores it sends back.\n\n")
	b.WriteString("| Key | Action |\n|---|---|\n")
	for _, kb := range bindings {
		fmt.Fprintf(&b, "| `%s` | %s |\n", kb.Keys, kb.Desc)
	}
	b.WriteString("\nThe session reconnects on its own after a dropped connection. ")
	b.WriteString("`r` forces a fresh handshake.\n")
	return b.String()
}

// View renders the overlay at width, falling back to the raw Markdown when
// glamour fails.
func (m *Model) View(width int) string {
	width = max(width-6, 30)
	if m.rendered == "" || m.width != width {
		m.width = width
		m.rendered = m.render(width)
	}
	return lipgloss.NewStyle().
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(lipgloss.JoinVertical(lipgloss.Left,
			strings.TrimRight(m.rendered, "\n"),
			theme.StyleDimmed.Render("esc:close")))
}

func (m *Model) render(width int) string {
	style := m.Style
	if style == "" {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return m.markdown
	}
	out, err := r.Render(m.markdown)
	if err != nil {
		return m.markdown
	}
	return out
}
