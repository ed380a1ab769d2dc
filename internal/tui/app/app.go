package app

import (
	"context"
	"fmt"
	"time"

	"github.com/DFly7/SimpleMediaPipe/internal/client"
	"github.com/DFly7/SimpleMediaPipe/internal/pose"
	"github.com/DFly7/SimpleMediaPipe/internal/socketio"
	"github.com/DFly7/SimpleMediaPipe/internal/tui/theme"
	"github.com/DFly7/SimpleMediaPipe/internal/tui/views/debug"
	"github.com/DFly7/SimpleMediaPipe/internal/tui/views/help"
	"github.com/DFly7/SimpleMediaPipe/internal/tui/views/score"
	"github.com/DFly7/SimpleMediaPipe/internal/tui/views/status"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const refreshInterval = 500 * time.Millisecond

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayDebug
	OverlayHelp
)

// Session is the part of client.Session the dashboard drives.
type Session interface {
	Connect()
	Reconnect()
	SendPose(obs pose.Observation)
	SendCameraAction(action string)
}

// Capture is a frame source such as pose.Feed.
type Capture interface {
	Start(ctx context.Context, fn func(obs pose.Observation, ok bool))
	Stop() bool
	Running() bool
	Frames() int
}

// Messages pushed in from the session's observer goroutine.
type (
	StateMsg struct {
		State client.State
		SID   string
	}
	ScoreMsg    client.ScoreEvent
	FeedbackMsg string
)

type refreshMsg struct{}

// Subscribe forwards session notifications to send, typically
// (*tea.Program).Send.
func Subscribe(s *client.Session, send func(tea.Msg)) {
	s.OnStateChange(func(st client.State) {
		msg := StateMsg{State: st}
		if st == client.NamespaceConnected {
			msg.SID = s.SID()
		}
		send(msg)
	})
	s.OnScore(func(ev client.ScoreEvent) { send(ScoreMsg(ev)) })
	s.OnFeedback(func(text string) { send(FeedbackMsg(text)) })
}

// Model is the root Bubble Tea model.
type Model struct {
	session Session
	capture Capture
	ctx     context.Context
	cancel  context.CancelFunc

	keys    KeyMap
	width   int
	height  int
	overlay Overlay

	state     client.State
	animating bool

	statusBar status.Model
	gauge     score.Model
	log       debug.Model
	help      help.Model
}

// New creates the root model. helpStyle is a glamour standard style name.
func New(session Session, capture Capture, helpStyle string) Model {
	ctx, cancel := context.WithCancel(context.Background())
	keys := DefaultKeyMap()
	return Model{
		session:   session,
		capture:   capture,
		ctx:       ctx,
		cancel:    cancel,
		keys:      keys,
		state:     client.Disconnected,
		statusBar: status.New(),
		gauge:     score.New(),
		log:       debug.New(),
		help:      help.New(helpStyle, keys.HelpBindings()),
	}
}

// Init starts the connection and the status refresh.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.connect(), refresh())
}

func (m Model) connect() tea.Cmd {
	session := m.session
	return func() tea.Msg {
		session.Connect()
		return nil
	}
}

func refresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg { return refreshMsg{} })
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.gauge.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case StateMsg:
		m.state = msg.State
		m.statusBar.State = msg.State
		if msg.SID != "" {
			m.statusBar.SID = msg.SID
		}
		m.log.Add(debug.KindConn, msg.State.String())
		return m, nil

	case ScoreMsg:
		m.gauge.Set(msg.Score, msg.ReceivedAt)
		m.log.Add(debug.KindScore, fmt.Sprintf("%d", msg.Score))
		if m.animating {
			return m, nil
		}
		m.animating = true
		return m, score.Tick()

	case score.FrameMsg:
		if m.gauge.Step() {
			return m, score.Tick()
		}
		m.animating = false
		return m, nil

	case FeedbackMsg:
		m.log.Add(debug.KindFeedback, string(msg))
		return m, nil

	case refreshMsg:
		m.statusBar.Capturing = m.capture.Running()
		m.statusBar.Frames = m.capture.Frames()
		return m, refresh()
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.stopCapture()
		m.cancel()
		return m, tea.Quit
	}

	switch m.overlay {
	case OverlayDebug:
		switch {
		case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Debug):
			m.overlay = OverlayNone
		case key.Matches(msg, m.keys.Up):
			m.log.ScrollUp(1)
		case key.Matches(msg, m.keys.Down):
			m.log.ScrollDown(1)
		}
		return m, nil
	case OverlayHelp:
		if key.Matches(msg, m.keys.Escape) || key.Matches(msg, m.keys.Help) {
			m.overlay = OverlayNone
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Reconnect):
		m.log.Add(debug.KindConn, "manual reconnect")
		m.session.Reconnect()

	case key.Matches(msg, m.keys.Capture):
		if m.capture.Running() {
			m.stopCapture()
		} else {
			m.startCapture()
		}

	case key.Matches(msg, m.keys.Debug):
		m.overlay = OverlayDebug

	case key.Matches(msg, m.keys.Help):
		m.overlay = OverlayHelp
	}
	return m, nil
}

func (m *Model) startCapture() {
	session := m.session
	m.capture.Start(m.ctx, func(obs pose.Observation, _ bool) {
		session.SendPose(obs)
	})
	m.statusBar.Capturing = true
	m.log.Add(debug.KindCapture, "capture started")
}

// stopCapture halts the feed and tells the server, once, that video stopped.
func (m *Model) stopCapture() {
	if !m.capture.Stop() {
		return
	}
	m.session.SendCameraAction(socketio.ActionVideoStopped)
	m.statusBar.Capturing = false
	m.log.Add(debug.KindCapture, "capture stopped")
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	switch m.overlay {
	case OverlayDebug:
		return m.log.View(m.width, m.height)
	case OverlayHelp:
		return m.help.View(m.width)
	}

	sections := []string{m.statusBar.View()}
	if m.state == client.Disconnected || m.state == client.Errored {
		sections = append(sections, m.renderOffline())
	}
	sections = append(sections,
		m.gauge.View(),
		m.renderFeedback(),
		theme.StyleDimmed.Render("  r:reconnect  s:capture  d:event log  ?:help  q:quit"),
	)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderOffline() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorDanger).Render("DISCONNECTED")
	body := theme.StyleDimmed.Render("Reconnecting automatically. Press r to retry now.")
	return "  " + title + "  " + body
}

func (m Model) renderFeedback() string {
	e, ok := m.log.Last(debug.KindFeedback)
	if !ok {
		return theme.StyleDimmed.Render("  No feedback yet")
	}
	label := lipgloss.NewStyle().Foreground(theme.ColorFeedback).Render("  Feedback: ")
	return label + e.Message
}
