// Package metrics exposes Prometheus collectors for the streaming client and
// the scoring gateway. All recording methods are safe on a nil receiver so
// components can run without metrics.
package metrics

import (
	"github.com/DFly7/SimpleMediaPipe/internal/socketio"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures collector registration.
type Config struct {
	// Namespace is the metrics namespace (default: "posestream").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures collector registration.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "posestream",
		Registry:  prometheus.DefaultRegisterer,
	}
}

func buildConfig(opts []Option) Config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Drop reasons for frames_dropped_total.
const (
	DropNotConnected = "not_connected"
	DropNoPose       = "no_pose"
	DropInvalid      = "invalid"
	DropBackpressure = "backpressure"
	DropEncode       = "encode"
)

// Client holds the streaming client's collectors.
type Client struct {
	FramesSent      prometheus.Counter
	FramesDropped   *prometheus.CounterVec
	Reconnects      prometheus.Counter
	ConnectionState prometheus.Gauge
	ScoresReceived  prometheus.Counter
	LastScore       prometheus.Gauge
}

func NewClient(opts ...Option) *Client {
	cfg := buildConfig(opts)
	factory := promauto.With(cfg.Registry)

	return &Client{
		FramesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "client",
			Name:        "frames_sent_total",
			Help:        "Pose frames written to the socket",
			ConstLabels: cfg.ConstLabels,
		}),
		FramesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "client",
			Name:        "frames_dropped_total",
			Help:        "Outbound frames not sent, by reason",
			ConstLabels: cfg.ConstLabels,
		}, []string{"reason"}),
		Reconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "client",
			Name:        "reconnects_total",
			Help:        "Reconnection attempts scheduled",
			ConstLabels: cfg.ConstLabels,
		}),
		ConnectionState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "client",
			Name:        "connection_state",
			Help:        "Current connection state (0 disconnected, 1 opening, 2 engine handshake, 3 connected, 4 error)",
			ConstLabels: cfg.ConstLabels,
		}),
		ScoresReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "client",
			Name:        "scores_received_total",
			Help:        "Score events received from the server",
			ConstLabels: cfg.ConstLabels,
		}),
		LastScore: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "client",
			Name:        "last_score",
			Help:        "Most recent score received",
			ConstLabels: cfg.ConstLabels,
		}),
	}
}

func (c *Client) FrameSent() {
	if c != nil {
		c.FramesSent.Inc()
	}
}

func (c *Client) FrameDropped(reason string) {
	if c != nil {
		c.FramesDropped.WithLabelValues(reason).Inc()
	}
}

func (c *Client) Reconnect() {
	if c != nil {
		c.Reconnects.Inc()
	}
}

func (c *Client) State(v int) {
	if c != nil {
		c.ConnectionState.Set(float64(v))
	}
}

func (c *Client) Score(score int) {
	if c != nil {
		c.ScoresReceived.Inc()
		c.LastScore.Set(float64(score))
	}
}

// Gateway holds the scoring gateway's collectors.
type Gateway struct {
	Connections prometheus.Gauge
	Events      *prometheus.CounterVec
	ScoresSent  prometheus.Counter
}

func NewGateway(opts ...Option) *Gateway {
	cfg := buildConfig(opts)
	factory := promauto.With(cfg.Registry)

	return &Gateway{
		Connections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "gateway",
			Name:        "connections",
			Help:        "Open client connections",
			ConstLabels: cfg.ConstLabels,
		}),
		Events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "gateway",
			Name:        "events_total",
			Help:        "Application events received, by event name",
			ConstLabels: cfg.ConstLabels,
		}, []string{"event"}),
		ScoresSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "gateway",
			Name:        "scores_sent_total",
			Help:        "Score events emitted to clients",
			ConstLabels: cfg.ConstLabels,
		}),
	}
}

func (g *Gateway) ConnectionOpened() {
	if g != nil {
		g.Connections.Inc()
	}
}

func (g *Gateway) ConnectionClosed() {
	if g != nil {
		g.Connections.Dec()
	}
}

// EventOther labels event names outside the protocol's known set.
const EventOther = "other"

var knownEvents = map[string]bool{
	socketio.EventPoseLandmarks:      true,
	socketio.EventPoseWorldLandmarks: true,
	socketio.EventCameraAction:       true,
	socketio.EventConnectAck:         true,
}

// Event counts a received event. Client-chosen names collapse into
// EventOther so the label set stays fixed.
func (g *Gateway) Event(name string) {
	if g == nil {
		return
	}
	if !knownEvents[name] {
		name = EventOther
	}
	g.Events.WithLabelValues(name).Inc()
}

func (g *Gateway) ScoreSent() {
	if g != nil {
		g.ScoresSent.Inc()
	}
}
