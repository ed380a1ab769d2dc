package gateway

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DFly7/SimpleMediaPipe/internal/config"
	"github.com/DFly7/SimpleMediaPipe/internal/metrics"
	"github.com/DFly7/SimpleMediaPipe/internal/pose"
	"github.com/DFly7/SimpleMediaPipe/internal/socketio"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
)

func testGatewayConfig() config.GatewayConfig {
	cfg := config.Default().Gateway
	cfg.ScoreEvery = 1
	return cfg
}

func newTestGateway(t *testing.T, cfg config.GatewayConfig) (*Server, *httptest.Server) {
	t.Helper()
	reg := prometheus.NewRegistry()
	s := New(cfg, Options{
		Metrics:  metrics.NewGateway(metrics.WithRegistry(reg)),
		Gatherer: reg,
		Seed:     1,
	})
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(func() {
		s.CloseAll()
		ts.Close()
	})
	return s, ts
}

func socketURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/socket.io/?EIO=4&transport=websocket"
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(socketURL(ts), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(data)
}

func write(t *testing.T, conn *websocket.Conn, text string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// join reads the open packet and completes the namespace connect.
func join(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	f := socketio.Decode(read(t, conn))
	if f.Kind != socketio.KindEngineOpen || f.Handshake == nil {
		t.Fatalf("expected open packet, got %q", f.Raw)
	}
	write(t, conn, socketio.PacketConnect)
	if got, want := read(t, conn), socketio.ConnectAck(f.Handshake.SID); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	return f.Handshake.SID
}

func poseFrame(t *testing.T, visibility float64) string {
	t.Helper()
	kps := make([]pose.Keypoint, pose.NumLandmarks)
	for i := range kps {
		kps[i] = pose.Keypoint{X: 0.5, Y: 0.5, Visibility: visibility}
	}
	text, err := socketio.EncodeEvent(socketio.EventPoseLandmarks, socketio.LandmarksPayload{
		Timestamp: time.Now().UnixMilli(),
		Landmarks: pose.Flatten(kps),
	})
	if err != nil {
		t.Fatal(err)
	}
	return text
}

func TestOpenPacket(t *testing.T) {
	_, ts := newTestGateway(t, testGatewayConfig())
	conn := dial(t, ts)

	f := socketio.Decode(read(t, conn))
	if f.Kind != socketio.KindEngineOpen {
		t.Fatalf("expected engine open, got %v", f.Kind)
	}
	hs := f.Handshake
	if hs == nil {
		t.Fatal("expected handshake body")
	}
	if len(hs.SID) != sidLength {
		t.Errorf("sid %q has length %d", hs.SID, len(hs.SID))
	}
	if hs.PingInterval != 25000 || hs.PingTimeout != 20000 {
		t.Errorf("unexpected timings %d/%d", hs.PingInterval, hs.PingTimeout)
	}
	if hs.MaxPayload != maxPayload {
		t.Errorf("expected maxPayload %d, got %d", maxPayload, hs.MaxPayload)
	}
	if hs.Upgrades == nil || len(hs.Upgrades) != 0 {
		t.Errorf("expected empty upgrades, got %v", hs.Upgrades)
	}
}

func TestNamespaceConnectAndPing(t *testing.T) {
	_, ts := newTestGateway(t, testGatewayConfig())
	conn := dial(t, ts)
	join(t, conn)

	write(t, conn, socketio.PacketPing)
	if got := read(t, conn); got != socketio.PacketPong {
		t.Errorf("expected pong, got %q", got)
	}
}

func TestScoresEveryWindow(t *testing.T) {
	cfg := testGatewayConfig()
	cfg.ScoreEvery = 3
	_, ts := newTestGateway(t, cfg)
	conn := dial(t, ts)
	join(t, conn)

	write(t, conn, poseFrame(t, 0.9))
	write(t, conn, poseFrame(t, 0.9))
	// Frames are handled in order, so the pong proves no score came yet.
	write(t, conn, socketio.PacketPing)
	if got := read(t, conn); got != socketio.PacketPong {
		t.Fatalf("expected pong before the window fills, got %q", got)
	}

	write(t, conn, poseFrame(t, 0.9))
	got := socketio.Decode(read(t, conn))
	if !got.HasScore || got.Score != 90 {
		t.Errorf("expected score 90, got %q", got.Raw)
	}
}

func TestEventsIgnoredBeforeNamespaceConnect(t *testing.T) {
	_, ts := newTestGateway(t, testGatewayConfig())
	conn := dial(t, ts)
	read(t, conn) // open

	write(t, conn, poseFrame(t, 0.5))
	write(t, conn, socketio.PacketPing)
	if got := read(t, conn); got != socketio.PacketPong {
		t.Fatalf("expected pong, got %q", got)
	}

	write(t, conn, socketio.PacketConnect)
	read(t, conn) // ack
	write(t, conn, poseFrame(t, 0.5))
	if got := socketio.Decode(read(t, conn)); got.Score != 50 {
		t.Errorf("expected score 50, got %q", got.Raw)
	}
}

func TestMalformedPoseSkipped(t *testing.T) {
	_, ts := newTestGateway(t, testGatewayConfig())
	conn := dial(t, ts)
	join(t, conn)

	write(t, conn, `42["pose_landmarks",{"timestamp":1,"landmarks":[0.1,0.2,0.3]}]`)
	write(t, conn, `42["pose_landmarks","nope"]`)
	write(t, conn, socketio.PacketPing)
	if got := read(t, conn); got != socketio.PacketPong {
		t.Errorf("expected pong, got %q", got)
	}
}

func TestVideoStoppedResetsWindow(t *testing.T) {
	cfg := testGatewayConfig()
	cfg.ScoreEvery = 2
	_, ts := newTestGateway(t, cfg)
	conn := dial(t, ts)
	join(t, conn)

	write(t, conn, poseFrame(t, 0.1))
	write(t, conn, `42["camera_action",{"timestamp":1,"action":"video_stopped","client":"ios"}]`)
	write(t, conn, poseFrame(t, 0.8))
	write(t, conn, socketio.PacketPing)
	if got := read(t, conn); got != socketio.PacketPong {
		t.Fatalf("expected pong, got %q", got)
	}
	write(t, conn, poseFrame(t, 0.8))
	if got := socketio.Decode(read(t, conn)); got.Score != 80 {
		t.Errorf("expected score 80, got %q", got.Raw)
	}
}

func TestRejectsUnsupportedTransport(t *testing.T) {
	s := New(testGatewayConfig(), Options{})
	for _, query := range []string{"", "EIO=3&transport=websocket", "EIO=4&transport=polling"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/socket.io/?"+query, nil)
		s.Routes().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("query %q: expected 400, got %d", query, rec.Code)
		}
	}
}

func TestMaxConnections(t *testing.T) {
	cfg := testGatewayConfig()
	cfg.MaxConnections = 1
	s, ts := newTestGateway(t, cfg)

	first := dial(t, ts)
	read(t, first)

	_, resp, err := websocket.DefaultDialer.Dial(socketURL(ts), nil)
	if err == nil {
		t.Fatal("expected second connection to be rejected")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %v", resp)
	}

	first.Close()
	waitFor(t, func() bool { return s.ConnCount() == 0 })

	second := dial(t, ts)
	read(t, second)
}

func TestHealthAndMetrics(t *testing.T) {
	_, ts := newTestGateway(t, testGatewayConfig())
	conn := dial(t, ts)
	join(t, conn)
	write(t, conn, poseFrame(t, 0.7))
	read(t, conn)

	body := get(t, ts.URL+"/healthz")
	if body != "ok 1\n" {
		t.Errorf("unexpected health body %q", body)
	}

	body = get(t, ts.URL+"/metrics")
	for _, want := range []string{
		"posestream_gateway_connections 1",
		`posestream_gateway_events_total{event="pose_landmarks"} 1`,
		"posestream_gateway_scores_sent_total 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestEventMetricsBounded(t *testing.T) {
	_, ts := newTestGateway(t, testGatewayConfig())
	conn := dial(t, ts)
	read(t, conn) // open

	write(t, conn, `42["early",1]`)
	write(t, conn, socketio.PacketConnect)
	read(t, conn) // ack
	write(t, conn, `42["junk_1",1]`)
	write(t, conn, `42["junk_2",1]`)
	write(t, conn, poseFrame(t, 0.7))
	read(t, conn) // score, so every event above has been handled

	body := get(t, ts.URL+"/metrics")
	for _, want := range []string{
		`posestream_gateway_events_total{event="other"} 2`,
		`posestream_gateway_events_total{event="pose_landmarks"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
	for _, bad := range []string{"junk_1", "early"} {
		if strings.Contains(body, bad) {
			t.Errorf("metrics should not carry client event name %q", bad)
		}
	}
}

func TestSecurityHeaders(t *testing.T) {
	s := New(testGatewayConfig(), Options{})
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	want := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
	}
	for header, expected := range want {
		if got := rec.Header().Get(header); got != expected {
			t.Errorf("header %s = %q, want %q", header, got, expected)
		}
	}
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		origin string
		host   string
		want   bool
	}{
		{"", "example.com", true},
		{"http://example.com", "example.com", true},
		{"http://localhost:3000", "example.com", true},
		{"http://127.0.0.1:8080", "example.com", true},
		{"http://[::1]:8080", "example.com", true},
		{"http://evil.com", "example.com", false},
		{"not a url", "example.com", false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.origin, tt.host), func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/socket.io/", nil)
			req.Host = tt.host
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if got := checkOrigin(req); got != tt.want {
				t.Errorf("checkOrigin = %v, want %v", got, tt.want)
			}
		})
	}
}

func get(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
