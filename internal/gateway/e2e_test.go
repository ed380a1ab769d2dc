package gateway_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DFly7/SimpleMediaPipe/internal/client"
	"github.com/DFly7/SimpleMediaPipe/internal/config"
	"github.com/DFly7/SimpleMediaPipe/internal/gateway"
	"github.com/DFly7/SimpleMediaPipe/internal/pose"
	"github.com/DFly7/SimpleMediaPipe/internal/socketio"
)

// TestClientAgainstGateway runs a real session over a real socket.
func TestClientAgainstGateway(t *testing.T) {
	cfg := config.Default().Gateway
	cfg.ScoreEvery = 2
	srv := gateway.New(cfg, gateway.Options{})
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()
	defer srv.CloseAll()

	ep, err := config.ParseEndpoint("ws" + strings.TrimPrefix(ts.URL, "http") + "/socket.io/?EIO=4&transport=websocket")
	if err != nil {
		t.Fatal(err)
	}

	s := client.New(client.Options{Endpoint: ep})
	defer s.Close()

	scores := make(chan client.ScoreEvent, 4)
	s.OnScore(func(ev client.ScoreEvent) { scores <- ev })

	s.Connect()
	deadline := time.Now().Add(3 * time.Second)
	for s.State() != client.NamespaceConnected {
		if time.Now().After(deadline) {
			t.Fatalf("session stuck in %v", s.State())
		}
		time.Sleep(10 * time.Millisecond)
	}
	if s.SID() == "" {
		t.Error("expected a session id from the gateway")
	}

	kps := make([]pose.Keypoint, pose.NumLandmarks)
	for i := range kps {
		kps[i] = pose.Keypoint{X: 0.5, Y: 0.5, Visibility: 0.8}
	}
	for i := 0; i < 2; i++ {
		s.SendPose(pose.Observation{Timestamp: time.Now(), Landmarks: kps})
	}

	select {
	case ev := <-scores:
		if ev.Score != 80 {
			t.Errorf("expected score 80, got %d", ev.Score)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no score received")
	}

	s.SendCameraAction(socketio.ActionVideoStopped)
	s.Disconnect()
	if got := s.State(); got != client.Disconnected {
		t.Errorf("expected %v after disconnect, got %v", client.Disconnected, got)
	}
	deadline = time.Now().Add(2 * time.Second)
	for srv.ConnCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("gateway still has %d connections", srv.ConnCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
