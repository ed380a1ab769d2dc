package client

import "time"

// State is the session's handshake/connectivity phase.
type State int

const (
	Disconnected State = iota
	SocketOpening
	EngineHandshakeReceived
	NamespaceConnected
	Errored
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case SocketOpening:
		return "socket_opening"
	case EngineHandshakeReceived:
		return "engine_handshake_received"
	case NamespaceConnected:
		return "namespace_connected"
	case Errored:
		return "error"
	default:
		return "unknown"
	}
}

// Connecting reports whether a connection attempt is in flight or complete,
// i.e. Connect would be a no-op.
func (s State) Connecting() bool {
	return s == SocketOpening || s == EngineHandshakeReceived || s == NamespaceConnected
}

// ScoreEvent is a score pushed by the server.
type ScoreEvent struct {
	Score      int
	ReceivedAt time.Time
}
