package app

import (
	"github.com/DFly7/SimpleMediaPipe/internal/tui/views/help"
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines all keyboard bindings for the TUI.
type KeyMap struct {
	Reconnect key.Binding
	Capture   key.Binding
	Debug     key.Binding
	Help      key.Binding
	Up        key.Binding
	Down      key.Binding
	Escape    key.Binding
	Quit      key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Reconnect: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reconnect"),
		),
		Capture: key.NewBinding(
			key.WithKeys("s", " "),
			key.WithHelp("s", "start/stop capture"),
		),
		Debug: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "event log"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "scroll down"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close overlay"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// HelpBindings lists the bindings shown in the help overlay.
func (k KeyMap) HelpBindings() []help.Binding {
	bindings := []key.Binding{k.Reconnect, k.Capture, k.Debug, k.Up, k.Down, k.Escape, k.Help, k.Quit}
	out := make([]help.Binding, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		out = append(out, help.Binding{Keys: h.Key, Desc: h.Desc})
	}
	return out
}
