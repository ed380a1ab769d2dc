package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file used when --config is not given. Unlike an
// explicit path, it may be absent.
const DefaultPath = "posestream.yaml"

type Config struct {
	Endpoint Endpoint      `yaml:"endpoint"`
	Client   ClientConfig  `yaml:"client"`
	Feed     FeedConfig    `yaml:"feed"`
	Gateway  GatewayConfig `yaml:"gateway"`
	Metrics  MetricsConfig `yaml:"metrics"`
	Log      LogConfig     `yaml:"log"`
}

// Endpoint describes the scoring server. It is fixed per deployment.
type Endpoint struct {
	Scheme string            `yaml:"scheme"`
	Host   string            `yaml:"host"`
	Port   int               `yaml:"port"`
	Path   string            `yaml:"path"`
	Query  map[string]string `yaml:"query"`
}

type ClientConfig struct {
	ID                   string        `yaml:"id"`
	ConnectTimeout       time.Duration `yaml:"connect_timeout"`
	PingInterval         time.Duration `yaml:"ping_interval"`
	ReconnectDelay       time.Duration `yaml:"reconnect_delay"`
	ManualReconnectDelay time.Duration `yaml:"manual_reconnect_delay"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	SendBuffer           int           `yaml:"send_buffer"`
}

type FeedConfig struct {
	FPS            int     `yaml:"fps"`
	NoPoseRate     float64 `yaml:"no_pose_rate"`
	WorldLandmarks bool    `yaml:"world_landmarks"`
}

type GatewayConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	PingInterval time.Duration `yaml:"ping_interval"`
	PingTimeout  time.Duration `yaml:"ping_timeout"`
	ScoreEvery   int           `yaml:"score_every"`

	// MaxConnections caps concurrent clients; 0 means unlimited.
	MaxConnections int `yaml:"max_connections"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the built-in configuration. Load overlays file values on
// top of it.
func Default() *Config {
	return &Config{
		Endpoint: Endpoint{
			Scheme: "ws",
			Host:   "127.0.0.1",
			Port:   5000,
			Path:   "/socket.io/",
			Query: map[string]string{
				"EIO":       "4",
				"transport": "websocket",
			},
		},
		Client: ClientConfig{
			ID:                   "ios",
			ConnectTimeout:       5 * time.Second,
			PingInterval:         25 * time.Second,
			ReconnectDelay:       2 * time.Second,
			ManualReconnectDelay: 500 * time.Millisecond,
			WriteTimeout:         10 * time.Second,
			SendBuffer:           64,
		},
		Feed: FeedConfig{
			FPS:        30,
			NoPoseRate: 0.1,
		},
		Gateway: GatewayConfig{
			Host:           "0.0.0.0",
			Port:           5000,
			PingInterval:   25 * time.Second,
			PingTimeout:    20 * time.Second,
			ScoreEvery:     15,
			MaxConnections: 32,
		},
		Log: LogConfig{
			Level:       "info",
			Development: true,
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == DefaultPath {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Endpoint.Host == "" {
		return errors.New("endpoint.host is required")
	}
	if c.Endpoint.Port <= 0 || c.Endpoint.Port > 65535 {
		return fmt.Errorf("endpoint.port %d out of range", c.Endpoint.Port)
	}
	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("gateway.port %d out of range", c.Gateway.Port)
	}
	if c.Feed.FPS <= 0 {
		return fmt.Errorf("feed.fps must be positive, got %d", c.Feed.FPS)
	}
	if c.Feed.NoPoseRate < 0 || c.Feed.NoPoseRate > 1 {
		return fmt.Errorf("feed.no_pose_rate must be within [0,1], got %g", c.Feed.NoPoseRate)
	}
	durations := map[string]time.Duration{
		"client.connect_timeout":        c.Client.ConnectTimeout,
		"client.ping_interval":          c.Client.PingInterval,
		"client.reconnect_delay":        c.Client.ReconnectDelay,
		"client.manual_reconnect_delay": c.Client.ManualReconnectDelay,
		"client.write_timeout":          c.Client.WriteTimeout,
		"gateway.ping_interval":         c.Gateway.PingInterval,
		"gateway.ping_timeout":          c.Gateway.PingTimeout,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %v", name, d)
		}
	}
	if c.Gateway.ScoreEvery <= 0 {
		return fmt.Errorf("gateway.score_every must be positive, got %d", c.Gateway.ScoreEvery)
	}
	if c.Gateway.MaxConnections < 0 {
		return fmt.Errorf("gateway.max_connections must not be negative, got %d", c.Gateway.MaxConnections)
	}
	return nil
}

// URL renders the endpoint, e.g. ws://127.0.0.1:5000/socket.io/?EIO=4&transport=websocket.
func (e Endpoint) URL() string {
	scheme := e.Scheme
	if scheme == "" {
		scheme = "ws"
	}
	q := url.Values{}
	for k, v := range e.Query {
		q.Set(k, v)
	}
	u := url.URL{
		Scheme:   scheme,
		Host:     net.JoinHostPort(e.Host, strconv.Itoa(e.Port)),
		Path:     e.Path,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// ParseEndpoint is the inverse of URL, used for the --url flag.
func ParseEndpoint(raw string) (Endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return Endpoint{}, fmt.Errorf("endpoint scheme %q is not ws or wss", u.Scheme)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		return Endpoint{}, fmt.Errorf("endpoint host: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Endpoint{}, fmt.Errorf("endpoint port: %w", err)
	}
	ep := Endpoint{
		Scheme: u.Scheme,
		Host:   host,
		Port:   port,
		Path:   u.Path,
		Query:  make(map[string]string),
	}
	for k, vs := range u.Query() {
		if len(vs) > 0 {
			ep.Query[k] = vs[0]
		}
	}
	return ep, nil
}
