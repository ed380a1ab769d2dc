package gateway

import (
	"testing"

	"github.com/DFly7/SimpleMediaPipe/internal/pose"
)

func uniformPose(visibility float64) []pose.Keypoint {
	kps := make([]pose.Keypoint, pose.NumLandmarks)
	for i := range kps {
		kps[i].Visibility = visibility
	}
	return kps
}

func TestScorer(t *testing.T) {
	tests := []struct {
		name   string
		every  int
		frames []float64
		want   []int // score emitted after each frame, -1 for none
	}{
		{"every frame", 1, []float64{0.9, 0.5}, []int{90, 50}},
		{"window of three", 3, []float64{0.9, 0.6, 0.6, 1.0}, []int{-1, -1, 70, -1}},
		{"averages the window", 2, []float64{0.905, 0.9}, []int{-1, 90}},
		{"zero visibility", 1, []float64{0}, []int{0}},
		{"non-positive window scores every frame", 0, []float64{0.42}, []int{42}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScorer(tt.every)
			for i, v := range tt.frames {
				score, ok := s.Add(uniformPose(v))
				if tt.want[i] < 0 {
					if ok {
						t.Errorf("frame %d: unexpected score %d", i, score)
					}
					continue
				}
				if !ok || score != tt.want[i] {
					t.Errorf("frame %d: got (%d, %v), want %d", i, score, ok, tt.want[i])
				}
			}
		})
	}
}

func TestScorerClampsOutOfRangeVisibility(t *testing.T) {
	s := NewScorer(1)
	if score, _ := s.Add(uniformPose(1.7)); score != 100 {
		t.Errorf("expected 100, got %d", score)
	}
	if score, _ := s.Add(uniformPose(-0.3)); score != 0 {
		t.Errorf("expected 0, got %d", score)
	}
}

func TestScorerReset(t *testing.T) {
	s := NewScorer(2)
	s.Add(uniformPose(0.1))
	s.Reset()
	if _, ok := s.Add(uniformPose(0.9)); ok {
		t.Fatal("expected reset to discard the partial window")
	}
	if score, ok := s.Add(uniformPose(0.9)); !ok || score != 90 {
		t.Errorf("got (%d, %v), want 90", score, ok)
	}
}

func TestSIDGenerator(t *testing.T) {
	g := newSIDGenerator(1)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		sid := g.next()
		if len(sid) != sidLength {
			t.Fatalf("sid %q has length %d, want %d", sid, len(sid), sidLength)
		}
		if seen[sid] {
			t.Fatalf("duplicate sid %q", sid)
		}
		seen[sid] = true
	}
}
