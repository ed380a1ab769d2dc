package client

import "github.com/DFly7/SimpleMediaPipe/internal/socketio"

// The keepalive writes a client ping every PingInterval while the namespace is
// connected. Each tick schedules the next, so at most one timer exists.

func (s *Session) startKeepalive() {
	if s.keepalive != nil {
		return
	}
	s.scheduleKeepalive(s.epoch)
}

func (s *Session) scheduleKeepalive(epoch uint64) {
	s.keepalive = s.clock.AfterFunc(s.cfg.PingInterval, func() {
		s.do(func() { s.keepaliveTick(epoch) })
	})
}

func (s *Session) keepaliveTick(epoch uint64) {
	if epoch != s.epoch || s.keepalive == nil || s.state != NamespaceConnected {
		return
	}
	s.scheduleKeepalive(epoch)
	s.write(socketio.PacketPing)
}

func (s *Session) stopKeepalive() {
	s.stopTimer(&s.keepalive)
}
