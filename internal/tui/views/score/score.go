// Package score renders the latest form score as a spring-animated gauge.
package score

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/DFly7/SimpleMediaPipe/internal/tui/theme"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
)

const (
	fps       = 60
	frequency = 6.0
	damping   = 0.7
	epsilon   = 0.05
)

// FrameMsg advances the gauge animation by one frame.
type FrameMsg time.Time

// Tick schedules the next animation frame.
func Tick() tea.Cmd {
	return tea.Tick(time.Second/fps, func(t time.Time) tea.Msg {
		return FrameMsg(t)
	})
}

// Model holds the gauge state. The needle position eases toward the latest
// score; Step must be called once per frame while Animating.
type Model struct {
	Width int

	target   float64
	pos      float64
	vel      float64
	spring   harmonica.Spring
	has      bool
	count    int
	received time.Time
}

func New() Model {
	return Model{spring: harmonica.NewSpring(harmonica.FPS(fps), frequency, damping)}
}

// Set records a new score and retargets the needle.
func (m *Model) Set(score int, at time.Time) {
	m.target = math.Max(0, math.Min(100, float64(score)))
	m.has = true
	m.count++
	m.received = at
}

// Step advances the spring one frame and reports whether it is still moving.
func (m *Model) Step() bool {
	if !m.Animating() {
		return false
	}
	m.pos, m.vel = m.spring.Update(m.pos, m.vel, m.target)
	if !m.Animating() {
		m.pos, m.vel = m.target, 0
		return false
	}
	return true
}

// Animating reports whether the needle has yet to settle on the target.
func (m Model) Animating() bool {
	return math.Abs(m.pos-m.target) > epsilon || math.Abs(m.vel) > epsilon
}

// Value is the needle position, 0-100.
func (m Model) Value() float64 {
	return m.pos
}

// Target is the latest score.
func (m Model) Target() int {
	return int(m.target)
}

// Count is the number of scores received.
func (m Model) Count() int {
	return m.count
}

func (m Model) View() string {
	width := m.Width
	if width < 30 {
		width = 30
	}
	barW := width - 16

	title := theme.StyleHeader.Render(" FORM SCORE ")
	if !m.has {
		body := theme.StyleDimmed.Render("  Waiting for the first score...")
		return theme.StyleBorder.Width(width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, title, body))
	}

	v := math.Max(0, math.Min(100, m.pos))
	filled := int(math.Round(v / 100 * float64(barW)))
	bar := lipgloss.NewStyle().Foreground(theme.ScoreColor(m.target)).Render(strings.Repeat("█", filled)) +
		theme.StyleDimmed.Render(strings.Repeat("░", barW-filled))

	value := lipgloss.NewStyle().Bold(true).Foreground(theme.ScoreColor(m.target)).Render(fmt.Sprintf("%3d", int(math.Round(v))))
	meta := theme.StyleDimmed.Render(fmt.Sprintf("  %d scores, last at %s", m.count, m.received.Format("15:04:05")))

	return theme.StyleBorder.Width(width - 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, " "+value+" "+bar, meta),
	)
}
