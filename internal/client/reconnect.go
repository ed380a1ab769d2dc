package client

import (
	"time"

	"go.uber.org/zap"
)

// ReconnectingMessage is the feedback emitted by a manual Reconnect.
const ReconnectingMessage = "Reconnecting..."

// scheduleReconnect arms the single reconnect timer, replacing any pending one.
func (s *Session) scheduleReconnect(delay time.Duration) {
	s.stopTimer(&s.reconnectTimer)
	s.metrics.Reconnect()
	s.log.Info("Reconnect scheduled", zap.Duration("delay", delay))

	var t Timer
	t = s.clock.AfterFunc(delay, func() {
		s.do(func() {
			// A stopped or replaced timer may still have queued this.
			if s.reconnectTimer != t {
				return
			}
			s.reconnectTimer = nil
			s.connect()
		})
	})
	s.reconnectTimer = t
}

func (s *Session) reconnect() {
	s.log.Info("Manual reconnect requested")
	s.disconnect()
	s.feedback(ReconnectingMessage)
	s.scheduleReconnect(s.cfg.ManualReconnectDelay)
}
