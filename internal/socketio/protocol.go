// Package socketio implements the subset of Engine.IO v4 / Socket.IO v4 text
// framing spoken between the pose client and the scoring gateway. It is pure:
// no I/O, no goroutines.
package socketio

import "encoding/json"

// Packet literals. Engine.IO packet types are single digits; Socket.IO
// packets ride inside an Engine.IO "message" (4).
const (
	PacketOpen       = "0"
	PacketPing       = "2"
	PacketPong       = "3"
	PacketConnect    = "40"
	PacketEvent      = "42"
	openFramePrefix  = "0{"
	eventFramePrefix = "42["
)

// Event names used on the wire.
const (
	EventPoseLandmarks      = "pose_landmarks"
	EventPoseWorldLandmarks = "pose_world_landmarks"
	EventCameraAction       = "camera_action"
	EventConnectAck         = "connect_ack"
	EventScore              = "score"
)

// ActionVideoStopped is the camera_action sent once capture stops.
const ActionVideoStopped = "video_stopped"

// Kind classifies an inbound frame.
type Kind int

const (
	KindUnknown Kind = iota
	KindEngineOpen
	KindEnginePing
	KindEnginePong
	KindConnectAck
	KindEvent
)

func (k Kind) String() string {
	switch k {
	case KindEngineOpen:
		return "engine_open"
	case KindEnginePing:
		return "engine_ping"
	case KindEnginePong:
		return "engine_pong"
	case KindConnectAck:
		return "connect_ack"
	case KindEvent:
		return "event"
	default:
		return "unknown"
	}
}

// Handshake is the JSON body of the Engine.IO open packet.
type Handshake struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int      `json:"maxPayload,omitempty"`
}

// Event is an outbound application event.
type Event struct {
	Name    string
	Payload any
}

// Frame is a classified inbound frame.
type Frame struct {
	Kind Kind
	Raw  string

	// Set for KindEngineOpen when the body parses.
	Handshake *Handshake

	// Set for KindEvent.
	Event    string
	Payload  json.RawMessage
	Score    int
	HasScore bool
	Feedback string
}

// --- Payloads ---

// LandmarksPayload carries one pose observation flattened to
// [x0,y0,z0,v0, x1,y1,z1,v1, ...] in landmark index order.
type LandmarksPayload struct {
	Timestamp int64     `json:"timestamp"`
	Landmarks []float64 `json:"landmarks"`
}

type CameraActionPayload struct {
	Timestamp int64  `json:"timestamp"`
	Action    string `json:"action"`
	Client    string `json:"client"`
}

type ConnectAckPayload struct {
	Client string `json:"client"`
}

type ScorePayload struct {
	Score int `json:"score"`
}
