// Package client streams pose keypoints to the scoring server over a
// Socket.IO-style WebSocket and relays the scores it sends back.
//
// A Session owns exactly one socket at a time. Every state change runs on a
// single loop goroutine; public methods post closures to it. Observer
// callbacks run in order on a separate dispatcher goroutine.
package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/DFly7/SimpleMediaPipe/internal/config"
	"github.com/DFly7/SimpleMediaPipe/internal/metrics"
	"github.com/DFly7/SimpleMediaPipe/internal/socketio"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	commandBuffer  = 256
	maxLoggedFrame = 120
)

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("client: session closed")

// Options configures a Session. Only Endpoint is required.
type Options struct {
	Endpoint config.Endpoint
	Client   config.ClientConfig

	// WorldLandmarks also sends pose_world_landmarks when observations
	// carry them.
	WorldLandmarks bool

	Dialer  Dialer
	Clock   Clock
	Logger  *zap.Logger
	Metrics *metrics.Client
}

// Session is the transport session: one WebSocket driven through the Engine.IO
// open and Socket.IO namespace connect before application events may flow.
type Session struct {
	url     string
	cfg     config.ClientConfig
	world   bool
	dialer  Dialer
	clock   Clock
	log     *zap.Logger
	metrics *metrics.Client

	cmds      chan func()
	quit      chan struct{}
	loopDone  chan struct{}
	closeOnce sync.Once

	notifyMu   sync.Mutex
	pending    []func()
	wake       chan struct{}
	stopNotify chan struct{}
	notifyDone chan struct{}

	// Loop-owned.
	state          State
	epoch          uint64
	conn           Conn
	out            chan string
	dialCancel     context.CancelFunc
	connectTimer   Timer
	keepalive      Timer
	reconnectTimer Timer
	sid            string
	lastScore      *ScoreEvent

	handlersMu sync.Mutex
	onScore    func(ScoreEvent)
	onFeedback func(string)
	onState    func(State)
}

// New creates a session in the Disconnected state. Call Connect to start it
// and Close to release it.
func New(opts Options) *Session {
	cfg := opts.Client
	def := config.Default().Client
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = def.ReconnectDelay
	}
	if cfg.ManualReconnectDelay <= 0 {
		cfg.ManualReconnectDelay = def.ManualReconnectDelay
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}
	if cfg.ID == "" {
		cfg.ID = def.ID
	}

	dialer := opts.Dialer
	if dialer == nil {
		dialer = WebsocketDialer{HandshakeTimeout: cfg.ConnectTimeout}
	}
	clock := opts.Clock
	if clock == nil {
		clock = realClock{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	url := opts.Endpoint.URL()
	s := &Session{
		url:        url,
		cfg:        cfg,
		world:      opts.WorldLandmarks,
		dialer:     dialer,
		clock:      clock,
		log:        logger.With(zap.String("component", "session"), zap.String("url", url)),
		metrics:    opts.Metrics,
		cmds:       make(chan func(), commandBuffer),
		quit:       make(chan struct{}),
		loopDone:   make(chan struct{}),
		wake:       make(chan struct{}, 1),
		stopNotify: make(chan struct{}),
		notifyDone: make(chan struct{}),
	}
	s.metrics.State(int(Disconnected))

	go s.loop()
	go s.dispatch()
	return s
}

// --- Public API ---

// Connect starts the handshake. It is a no-op while a connection attempt is
// in flight or established.
func (s *Session) Connect() {
	s.do(s.connect)
}

// Disconnect closes the socket, stops keepalive and cancels any pending
// reconnect. No automatic reconnect follows.
func (s *Session) Disconnect() {
	s.do(s.disconnect)
}

// Reconnect force-closes the current connection and connects again after the
// manual reconnect delay.
func (s *Session) Reconnect() {
	s.do(s.reconnect)
}

// Send emits an application event. It is dropped and counted unless the
// session is NamespaceConnected.
func (s *Session) Send(ev socketio.Event) {
	text, err := socketio.Encode(ev)
	if err != nil {
		s.log.Warn("Failed to encode event", zap.String("event", ev.Name), zap.Error(err))
		s.metrics.FrameDropped(metrics.DropEncode)
		return
	}
	queued := s.tryDo(func() {
		if reason := s.sendText(ev.Name, text); reason != "" {
			s.metrics.FrameDropped(reason)
		}
	})
	if !queued {
		s.metrics.FrameDropped(metrics.DropBackpressure)
	}
}

// State returns the current connection state.
func (s *Session) State() State {
	st := Disconnected
	s.call(func() { st = s.state })
	return st
}

// SID returns the Engine.IO session id from the last handshake.
func (s *Session) SID() string {
	var sid string
	s.call(func() { sid = s.sid })
	return sid
}

// LastScore returns the most recent score, if any arrived.
func (s *Session) LastScore() (ScoreEvent, bool) {
	var ev ScoreEvent
	var ok bool
	s.call(func() {
		if s.lastScore != nil {
			ev, ok = *s.lastScore, true
		}
	})
	return ev, ok
}

// Close disconnects and stops the session's goroutines. The session cannot be
// reused; closing twice returns ErrClosed.
func (s *Session) Close() error {
	err := ErrClosed
	s.closeOnce.Do(func() {
		close(s.quit)
		<-s.loopDone
		close(s.stopNotify)
		<-s.notifyDone
		err = nil
	})
	return err
}

// --- Loop plumbing ---

func (s *Session) loop() {
	defer close(s.loopDone)
	for {
		select {
		case fn := <-s.cmds:
			fn()
		case <-s.quit:
			s.disconnect()
			return
		}
	}
}

// do posts fn to the loop, blocking while the queue is full.
func (s *Session) do(fn func()) bool {
	select {
	case <-s.quit:
		return false
	default:
	}
	select {
	case s.cmds <- fn:
		return true
	case <-s.quit:
		return false
	}
}

// tryDo posts fn without blocking; used on the frame path.
func (s *Session) tryDo(fn func()) bool {
	select {
	case <-s.quit:
		return false
	default:
	}
	select {
	case s.cmds <- fn:
		return true
	default:
		return false
	}
}

// call runs fn on the loop and waits for it.
func (s *Session) call(fn func()) bool {
	done := make(chan struct{})
	if !s.do(func() {
		fn()
		close(done)
	}) {
		return false
	}
	select {
	case <-done:
		return true
	case <-s.loopDone:
		return false
	}
}

// --- State machine (loop goroutine only) ---

func (s *Session) setState(st State) {
	if s.state == st {
		return
	}
	prev := s.state
	s.state = st
	s.metrics.State(int(st))
	s.log.Info("Connection state changed", zap.Stringer("from", prev), zap.Stringer("to", st))
	s.emit(func() {
		if fn := s.stateHandler(); fn != nil {
			fn(st)
		}
	})
}

func (s *Session) connect() {
	if s.state.Connecting() {
		s.log.Debug("Connect ignored", zap.Stringer("state", s.state))
		return
	}

	s.stopTimer(&s.reconnectTimer)
	s.epoch++
	epoch := s.epoch
	s.setState(SocketOpening)

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ConnectTimeout)
	s.dialCancel = cancel
	s.connectTimer = s.clock.AfterFunc(s.cfg.ConnectTimeout, func() {
		s.do(func() { s.handshakeTimeout(epoch) })
	})

	s.log.Info("Connecting")
	go func() {
		conn, err := s.dialer.Dial(ctx, s.url)
		if !s.do(func() { s.dialed(epoch, conn, err) }) && conn != nil {
			conn.Close()
		}
	}()
}

func (s *Session) dialed(epoch uint64, conn Conn, err error) {
	if epoch != s.epoch {
		if conn != nil {
			conn.Close()
		}
		return
	}
	if s.dialCancel != nil {
		s.dialCancel()
		s.dialCancel = nil
	}
	if err != nil {
		s.log.Warn("Dial failed", zap.Error(err))
		s.lost(Errored)
		return
	}

	s.conn = conn
	s.out = make(chan string, s.cfg.SendBuffer)
	go s.writePump(epoch, conn, s.out)
	go s.readPump(epoch, conn)
	s.log.Debug("Socket open, awaiting engine handshake")
}

func (s *Session) handshakeTimeout(epoch uint64) {
	if epoch != s.epoch || s.state == NamespaceConnected {
		return
	}
	s.log.Warn("Handshake timed out",
		zap.Duration("timeout", s.cfg.ConnectTimeout),
		zap.Stringer("state", s.state))
	s.lost(Errored)
}

func (s *Session) connLost(epoch uint64, err error) {
	if epoch != s.epoch {
		return
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		s.log.Info("Peer closed connection", zap.Error(err))
		s.lost(Disconnected)
		return
	}
	s.log.Warn("Connection lost", zap.Error(err))
	s.lost(Errored)
}

// lost handles every unexpected end of a connection attempt.
func (s *Session) lost(next State) {
	s.teardownConn()
	s.setState(next)
	s.scheduleReconnect(s.cfg.ReconnectDelay)
}

func (s *Session) disconnect() {
	s.stopTimer(&s.reconnectTimer)
	s.teardownConn()
	s.setState(Disconnected)
}

// teardownConn releases everything tied to the current connection. Bumping
// the epoch turns late callbacks from the old socket into no-ops.
func (s *Session) teardownConn() {
	s.epoch++
	s.stopKeepalive()
	s.stopTimer(&s.connectTimer)
	if s.dialCancel != nil {
		s.dialCancel()
		s.dialCancel = nil
	}
	if s.out != nil {
		// The write pump flushes what is queued, then closes the socket.
		close(s.out)
		s.out = nil
	}
	s.conn = nil
}

func (s *Session) stopTimer(t *Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

// --- Inbound ---

func (s *Session) handleFrame(epoch uint64, text string) {
	if epoch != s.epoch {
		return
	}

	f := socketio.Decode(text)
	switch f.Kind {
	case socketio.KindEngineOpen:
		if s.state != SocketOpening {
			s.log.Debug("Ignoring engine open", zap.Stringer("state", s.state))
			return
		}
		if f.Handshake != nil {
			s.sid = f.Handshake.SID
		}
		s.log.Info("Engine handshake received", zap.String("sid", s.sid))
		s.setState(EngineHandshakeReceived)
		s.write(socketio.PacketConnect)

	case socketio.KindEnginePing:
		s.write(socketio.PacketPong)

	case socketio.KindEnginePong:
		s.log.Debug("Pong received")

	case socketio.KindConnectAck:
		if s.state != EngineHandshakeReceived {
			s.log.Debug("Ignoring out-of-order connect ack", zap.Stringer("state", s.state))
			return
		}
		s.stopTimer(&s.connectTimer)
		s.setState(NamespaceConnected)
		s.startKeepalive()
		if text, err := socketio.EncodeEvent(socketio.EventConnectAck, socketio.ConnectAckPayload{Client: s.cfg.ID}); err == nil {
			s.sendText(socketio.EventConnectAck, text)
		}

	case socketio.KindEvent:
		if f.HasScore {
			s.deliverScore(f.Score)
			return
		}
		s.log.Debug("Feedback received", zap.String("event", f.Event))
		s.feedback(f.Feedback)

	default:
		s.log.Debug("Ignoring unknown frame", zap.String("frame", truncate(text, maxLoggedFrame)))
	}
}

// --- Outbound ---

// sendText writes an encoded event if connected and returns the drop reason
// otherwise.
func (s *Session) sendText(name, text string) string {
	if s.state != NamespaceConnected {
		s.log.Debug("Dropping event while not connected",
			zap.String("event", name),
			zap.Stringer("state", s.state))
		return metrics.DropNotConnected
	}
	if !s.write(text) {
		return metrics.DropBackpressure
	}
	return ""
}

// write queues a raw frame for the write pump without blocking.
func (s *Session) write(text string) bool {
	if s.out == nil {
		return false
	}
	select {
	case s.out <- text:
		return true
	default:
		s.log.Warn("Send buffer full, dropping frame", zap.String("frame", truncate(text, 16)))
		return false
	}
}

func (s *Session) writePump(epoch uint64, conn Conn, out <-chan string) {
	defer conn.Close()
	for text := range out {
		conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
			s.do(func() { s.connLost(epoch, err) })
			return
		}
	}
}

func (s *Session) readPump(epoch uint64, conn Conn) {
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			s.do(func() { s.connLost(epoch, err) })
			return
		}
		if mt != websocket.TextMessage {
			s.log.Debug("Ignoring non-text message", zap.Int("type", mt))
			continue
		}
		text := string(data)
		s.do(func() { s.handleFrame(epoch, text) })
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
