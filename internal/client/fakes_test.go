package client

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DFly7/SimpleMediaPipe/internal/config"
	"github.com/gorilla/websocket"
)

// --- Manual clock ---

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	c       *fakeClock
	at      time.Time
	f       func()
	done    bool
	stopped bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{c: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	active := !t.done && !t.stopped
	t.stopped = true
	return active
}

// Advance moves time forward and fires every timer that came due, in order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.done && !t.stopped && !t.at.After(c.now) {
			t.done = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

// active counts timers that are armed and not yet fired.
func (c *fakeClock) active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.done && !t.stopped {
			n++
		}
	}
	return n
}

// --- In-memory socket ---

var errConnClosed = errors.New("use of closed network connection")

type fakeConn struct {
	in        chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	writes  []string
	peerErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case b := <-c.in:
		return websocket.TextMessage, b, nil
	case <-c.closed:
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.peerErr != nil {
			return 0, nil, c.peerErr
		}
		return 0, nil, errConnClosed
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, string(data))
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// deliver queues an inbound text frame.
func (c *fakeConn) deliver(text string) {
	c.in <- []byte(text)
}

// peerClose simulates the server closing the socket with code.
func (c *fakeConn) peerClose(code int) {
	c.mu.Lock()
	c.peerErr = &websocket.CloseError{Code: code}
	c.mu.Unlock()
	c.Close()
}

// fail simulates a transport error.
func (c *fakeConn) fail(err error) {
	c.mu.Lock()
	c.peerErr = err
	c.mu.Unlock()
	c.Close()
}

func (c *fakeConn) Writes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.writes...)
}

func (c *fakeConn) count(frame string) int {
	n := 0
	for _, w := range c.Writes() {
		if w == frame {
			n++
		}
	}
	return n
}

// --- Dialer ---

type fakeDialer struct {
	mu    sync.Mutex
	dials int
	conns []*fakeConn
	err   error
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.err != nil {
		return nil, d.err
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) setErr(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) opened() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.conns) {
		return nil
	}
	return d.conns[i]
}

// --- Helpers ---

func testClientConfig() config.ClientConfig {
	return config.ClientConfig{
		ID:                   "ios",
		ConnectTimeout:       5 * time.Second,
		PingInterval:         25 * time.Second,
		ReconnectDelay:       2 * time.Second,
		ManualReconnectDelay: 500 * time.Millisecond,
		WriteTimeout:         time.Second,
		SendBuffer:           64,
	}
}

func newTestSession(t *testing.T, mutators ...func(*Options)) (*Session, *fakeDialer, *fakeClock) {
	t.Helper()
	d := &fakeDialer{}
	clk := newFakeClock()
	opts := Options{
		Endpoint: config.Default().Endpoint,
		Client:   testClientConfig(),
		Dialer:   d,
		Clock:    clk,
	}
	for _, m := range mutators {
		m(&opts)
	}
	s := New(opts)
	t.Cleanup(func() { s.Close() })
	return s, d, clk
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// waitForConn waits for the i-th successful dial.
func waitForConn(t *testing.T, d *fakeDialer, i int) *fakeConn {
	t.Helper()
	waitFor(t, "dial", func() bool { return d.conn(i) != nil })
	return d.conn(i)
}

// handshake drives a fresh session to NamespaceConnected and returns its socket.
func handshake(t *testing.T, s *Session, d *fakeDialer) *fakeConn {
	t.Helper()
	n := d.opened()
	s.Connect()
	conn := waitForConn(t, d, n)
	conn.deliver(`0{"sid":"abc","upgrades":[],"pingInterval":25000,"pingTimeout":20000}`)
	waitFor(t, "namespace connect request", func() bool { return conn.count("40") == 1 })
	conn.deliver("40")
	waitFor(t, "namespace connected", func() bool { return s.State() == NamespaceConnected })
	return conn
}
