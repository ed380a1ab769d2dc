// Package debug provides the scrollable log of connection changes, scores and
// server feedback.
package debug

import (
	"fmt"
	"strings"
	"time"

	"github.com/DFly7/SimpleMediaPipe/internal/tui/theme"
	"github.com/charmbracelet/lipgloss"
)

const maxEntries = 200

// Entry kinds.
const (
	KindConn     = "conn"
	KindScore    = "scor"
	KindFeedback = "fb"
	KindCapture  = "cap"
	KindError    = "err"
)

// Entry is a single log line.
type Entry struct {
	Time    time.Time
	Kind    string
	Message string
}

// Model holds the log and its scroll position.
type Model struct {
	Entries []Entry
	Offset  int // lines scrolled up from the newest entry
}

func New() Model {
	return Model{}
}

// Add appends an entry, drops the oldest beyond maxEntries and snaps the view
// back to the newest line.
func (m *Model) Add(kind, message string) {
	m.Entries = append(m.Entries, Entry{Time: time.Now(), Kind: kind, Message: message})
	if len(m.Entries) > maxEntries {
		m.Entries = m.Entries[len(m.Entries)-maxEntries:]
	}
	m.Offset = 0
}

// Last returns the newest entry of kind, if any.
func (m Model) Last(kind string) (Entry, bool) {
	for i := len(m.Entries) - 1; i >= 0; i-- {
		if m.Entries[i].Kind == kind {
			return m.Entries[i], true
		}
	}
	return Entry{}, false
}

func (m *Model) ScrollUp(n int) {
	m.Offset = min(m.Offset+n, max(len(m.Entries)-1, 0))
}

func (m *Model) ScrollDown(n int) {
	m.Offset = max(m.Offset-n, 0)
}

// View renders the log as an overlay panel of the given size.
func (m Model) View(width, height int) string {
	innerW := max(width-4, 20)
	visible := max(height-6, 3)

	title := theme.StyleHeader.Render(" EVENT LOG ")
	help := theme.StyleDimmed.Render(fmt.Sprintf("j/k:scroll  esc:close  %d entries", len(m.Entries)))
	panel := lipgloss.NewStyle().
		Width(innerW).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder)

	if len(m.Entries) == 0 {
		body := theme.StyleDimmed.Render("  Nothing logged yet.")
		return panel.Render(lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", help))
	}

	end := max(len(m.Entries)-m.Offset, 0)
	start := max(end-visible, 0)

	lines := make([]string, 0, end-start)
	for _, e := range m.Entries[start:end] {
		msg := e.Message
		if limit := innerW - 23; limit > 0 && len(msg) > limit {
			msg = msg[:limit] + "..."
		}
		lines = append(lines, fmt.Sprintf("%s %s %s",
			theme.StyleDimmed.Render(e.Time.Format("15:04:05.000")),
			lipgloss.NewStyle().Foreground(kindColor(e.Kind)).Width(4).Render(e.Kind),
			msg))
	}

	more := ""
	if m.Offset > 0 {
		more = theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d more", m.Offset))
	}
	return panel.Render(lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n"), more, help))
}

func kindColor(kind string) lipgloss.Color {
	switch kind {
	case KindConn:
		return theme.ColorHandshake
	case KindScore:
		return theme.ColorConnected
	case KindFeedback:
		return theme.ColorFeedback
	case KindCapture:
		return theme.ColorCapture
	case KindError:
		return theme.ColorErrored
	default:
		return theme.ColorDimmed
	}
}
