package client

import "go.uber.org/zap"

// OnScore registers the score sink, replacing any previous one. fn runs on the
// session's notification goroutine and must not block for long.
func (s *Session) OnScore(fn func(ScoreEvent)) {
	s.handlersMu.Lock()
	s.onScore = fn
	s.handlersMu.Unlock()
}

// OnFeedback registers the diagnostic text sink, replacing any previous one.
func (s *Session) OnFeedback(fn func(string)) {
	s.handlersMu.Lock()
	s.onFeedback = fn
	s.handlersMu.Unlock()
}

// OnStateChange registers the connection state observer, replacing any
// previous one.
func (s *Session) OnStateChange(fn func(State)) {
	s.handlersMu.Lock()
	s.onState = fn
	s.handlersMu.Unlock()
}

func (s *Session) scoreHandler() func(ScoreEvent) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	return s.onScore
}

func (s *Session) feedbackHandler() func(string) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	return s.onFeedback
}

func (s *Session) stateHandler() func(State) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	return s.onState
}

// emit queues a notification. The queue is unbounded so the loop never waits
// on a slow observer.
func (s *Session) emit(fn func()) {
	s.notifyMu.Lock()
	s.pending = append(s.pending, fn)
	s.notifyMu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Session) dispatch() {
	defer close(s.notifyDone)
	for {
		select {
		case <-s.wake:
			s.drainNotifications()
		case <-s.stopNotify:
			s.drainNotifications()
			return
		}
	}
}

func (s *Session) drainNotifications() {
	for {
		s.notifyMu.Lock()
		batch := s.pending
		s.pending = nil
		s.notifyMu.Unlock()

		if len(batch) == 0 {
			return
		}
		for _, fn := range batch {
			fn()
		}
	}
}

func (s *Session) deliverScore(score int) {
	ev := ScoreEvent{Score: score, ReceivedAt: s.clock.Now()}
	s.lastScore = &ev
	s.metrics.Score(score)
	s.log.Debug("Score received", zap.Int("score", score))
	s.emit(func() {
		if fn := s.scoreHandler(); fn != nil {
			fn(ev)
		}
	})
}

func (s *Session) feedback(text string) {
	s.emit(func() {
		if fn := s.feedbackHandler(); fn != nil {
			fn(text)
		}
	})
}
