package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/DFly7/SimpleMediaPipe/internal/pose"
	"github.com/DFly7/SimpleMediaPipe/internal/socketio"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// peer is one connected client. The read loop owns connected and scorer;
// everything else is guarded by mu.
type peer struct {
	srv *Server
	ws  *websocket.Conn
	sid string
	log *zap.Logger

	mu     sync.Mutex
	send   chan string
	done   chan struct{}
	closed bool

	connected bool
	scorer    *Scorer
}

func newPeer(srv *Server, ws *websocket.Conn, sid string) *peer {
	return &peer{
		srv:    srv,
		ws:     ws,
		sid:    sid,
		log:    srv.log.With(zap.String("sid", sid)),
		send:   make(chan string, sendBuffer),
		done:   make(chan struct{}),
		scorer: NewScorer(srv.cfg.ScoreEvery),
	}
}

func (p *peer) open(pingInterval, pingTimeout time.Duration) error {
	text, err := socketio.EncodeOpen(socketio.Handshake{
		SID:          p.sid,
		PingInterval: int(pingInterval / time.Millisecond),
		PingTimeout:  int(pingTimeout / time.Millisecond),
		MaxPayload:   maxPayload,
	})
	if err != nil {
		return err
	}
	p.enqueue(text)
	return nil
}

// enqueue hands a frame to the write pump. A client that cannot keep up is
// disconnected rather than buffered.
func (p *peer) enqueue(text string) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	select {
	case p.send <- text:
		p.mu.Unlock()
	default:
		p.mu.Unlock()
		p.log.Warn("Client too slow, disconnecting")
		p.close()
	}
}

func (p *peer) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.send)
	close(p.done)
}

func (p *peer) writePump() {
	defer p.ws.Close()
	for text := range p.send {
		p.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := p.ws.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
			p.log.Debug("Write failed", zap.Error(err))
			return
		}
	}
}

// pingLoop sends the server heartbeat. Clients answer with a pong.
func (p *peer) pingLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.enqueue(socketio.PacketPing)
		case <-p.done:
			return
		}
	}
}

// readLoop processes frames until the socket fails or stays silent for
// longer than idle.
func (p *peer) readLoop(idle time.Duration) {
	for {
		p.ws.SetReadDeadline(time.Now().Add(idle))
		mt, data, err := p.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				p.log.Debug("Read ended", zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		p.handle(string(data))
	}
}

func (p *peer) handle(text string) {
	f := socketio.Decode(text)
	switch f.Kind {
	case socketio.KindConnectAck:
		// Clients send a bare "40" to join the default namespace.
		p.connected = true
		p.enqueue(socketio.ConnectAck(p.sid))

	case socketio.KindEnginePing:
		p.enqueue(socketio.PacketPong)

	case socketio.KindEnginePong:

	case socketio.KindEvent:
		if !p.connected {
			p.log.Debug("Event before namespace connect", zap.String("event", f.Event))
			return
		}
		p.srv.metrics.Event(f.Event)
		p.handleEvent(f)

	default:
		p.log.Debug("Ignoring frame", zap.Stringer("kind", f.Kind))
	}
}

func (p *peer) handleEvent(f socketio.Frame) {
	switch f.Event {
	case socketio.EventPoseLandmarks:
		var payload socketio.LandmarksPayload
		if err := json.Unmarshal(f.Payload, &payload); err != nil {
			p.log.Debug("Bad landmarks payload", zap.Error(err))
			return
		}
		kps, err := pose.Unflatten(payload.Landmarks)
		if err != nil || len(kps) != pose.NumLandmarks {
			p.log.Debug("Skipping malformed pose", zap.Int("values", len(payload.Landmarks)))
			return
		}
		if score, ok := p.scorer.Add(kps); ok {
			p.sendScore(score)
		}

	case socketio.EventPoseWorldLandmarks:

	case socketio.EventCameraAction:
		var payload socketio.CameraActionPayload
		if err := json.Unmarshal(f.Payload, &payload); err != nil {
			p.log.Debug("Bad camera action payload", zap.Error(err))
			return
		}
		p.log.Info("Camera action", zap.String("action", payload.Action), zap.String("client", payload.Client))
		if payload.Action == socketio.ActionVideoStopped {
			p.scorer.Reset()
		}

	case socketio.EventConnectAck:
		var payload socketio.ConnectAckPayload
		_ = json.Unmarshal(f.Payload, &payload)
		p.log.Info("Client identified", zap.String("client", payload.Client))

	default:
		p.log.Debug("Unhandled event", zap.String("event", f.Event))
	}
}

func (p *peer) sendScore(score int) {
	text, err := socketio.EncodeEvent(socketio.EventScore, score)
	if err != nil {
		p.log.Warn("Failed to encode score", zap.Error(err))
		return
	}
	p.srv.metrics.ScoreSent()
	p.enqueue(text)
}
