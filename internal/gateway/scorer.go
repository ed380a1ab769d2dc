package gateway

import (
	"math"

	"github.com/DFly7/SimpleMediaPipe/internal/pose"
)

// Scorer turns a run of pose frames into a 0-100 score: the mean landmark
// visibility of the window, scaled by 100. A score is produced once every
// `every` frames and the window then starts over.
type Scorer struct {
	every int
	sum   float64
	n     int
}

func NewScorer(every int) *Scorer {
	if every <= 0 {
		every = 1
	}
	return &Scorer{every: every}
}

// Add records one frame and reports a score when the window is full.
func (s *Scorer) Add(kps []pose.Keypoint) (int, bool) {
	s.sum += pose.MeanVisibility(kps) * 100
	s.n++
	if s.n < s.every {
		return 0, false
	}

	score := int(math.Round(s.sum / float64(s.n)))
	s.Reset()
	return min(max(score, 0), 100), true
}

// Reset discards the partial window.
func (s *Scorer) Reset() {
	s.sum = 0
	s.n = 0
}
