package pose

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/DFly7/SimpleMediaPipe/internal/config"
	"go.uber.org/zap"
)

// restPose is a standing figure facing the camera, in normalized image
// coordinates.
var restPose = [NumLandmarks][2]float64{
	{0.50, 0.20},
	{0.51, 0.18}, {0.52, 0.18}, {0.53, 0.18},
	{0.49, 0.18}, {0.48, 0.18}, {0.47, 0.18},
	{0.55, 0.19}, {0.45, 0.19},
	{0.52, 0.23}, {0.48, 0.23},
	{0.60, 0.30}, {0.40, 0.30},
	{0.65, 0.42}, {0.35, 0.42},
	{0.67, 0.53}, {0.33, 0.53},
	{0.68, 0.56}, {0.32, 0.56},
	{0.67, 0.57}, {0.33, 0.57},
	{0.66, 0.55}, {0.34, 0.55},
	{0.57, 0.58}, {0.43, 0.58},
	{0.58, 0.74}, {0.42, 0.74},
	{0.58, 0.90}, {0.42, 0.90},
	{0.59, 0.92}, {0.41, 0.92},
	{0.60, 0.94}, {0.40, 0.94},
}

const (
	rightShoulder = 12
	hipCentreY    = 0.58
	worldScale    = 1.7
	waveHz        = 0.5
	waveAmplitude = 1.2
)

// rightArm are the landmarks that swing around the right shoulder.
var rightArm = []int{14, 16, 18, 20, 22}

// Feed synthesizes pose observations at a fixed frame rate: a standing figure
// waving its right arm, with occasional frames where no pose is detected.
type Feed struct {
	fps        int
	noPoseRate float64
	world      bool
	log        *zap.Logger

	mu      sync.Mutex
	rng     *rand.Rand
	start   time.Time
	frames  int
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

func NewFeed(cfg config.FeedConfig, logger *zap.Logger) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	fps := cfg.FPS
	if fps <= 0 {
		fps = 30
	}
	return &Feed{
		fps:        fps,
		noPoseRate: cfg.NoPoseRate,
		world:      cfg.WorldLandmarks,
		log:        logger.With(zap.String("component", "feed")),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Seed makes frame synthesis reproducible.
func (f *Feed) Seed(seed int64) {
	f.mu.Lock()
	f.rng = rand.New(rand.NewSource(seed))
	f.mu.Unlock()
}

// Start emits one observation per frame interval to fn until ctx is done or
// Stop is called. ok is false for frames with no detected pose. Start on a
// running feed is a no-op.
func (f *Feed) Start(ctx context.Context, fn func(obs Observation, ok bool)) {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.done = make(chan struct{})
	f.running = true
	f.start = time.Now()
	done := f.done
	f.mu.Unlock()

	f.log.Info("Frame feed started", zap.Int("fps", f.fps))
	go f.run(ctx, done, fn)
}

// Stop halts the feed and waits for the run loop to exit. It reports whether
// the feed was running.
func (f *Feed) Stop() bool {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return false
	}
	cancel, done := f.cancel, f.done
	f.running = false
	f.mu.Unlock()

	cancel()
	<-done
	f.log.Info("Frame feed stopped")
	return true
}

func (f *Feed) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

// Frames returns the number of frames emitted since construction.
func (f *Feed) Frames() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frames
}

func (f *Feed) run(ctx context.Context, done chan struct{}, fn func(Observation, bool)) {
	defer close(done)

	ticker := time.NewTicker(time.Second / time.Duration(f.fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			f.mu.Lock()
			if f.done == done {
				f.running = false
			}
			f.mu.Unlock()
			return
		case now := <-ticker.C:
			obs, ok := f.Next(now)
			fn(obs, ok)
		}
	}
}

// Next synthesizes the frame at now.
func (f *Feed) Next(now time.Time) (Observation, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.frames++
	if f.start.IsZero() {
		f.start = now
	}
	if f.noPoseRate > 0 && f.rng.Float64() < f.noPoseRate {
		return Observation{}, false
	}

	t := now.Sub(f.start).Seconds()
	angle := -waveAmplitude * (0.5 + 0.5*math.Sin(2*math.Pi*waveHz*t))
	sin, cos := math.Sincos(angle)

	landmarks := make([]Keypoint, NumLandmarks)
	for i, p := range restPose {
		landmarks[i] = Keypoint{
			X:          p[0],
			Y:          p[1],
			Z:          -0.05 + 0.01*f.rng.NormFloat64(),
			Visibility: 0.6 + 0.4*f.rng.Float64(),
		}
	}

	pivot := restPose[rightShoulder]
	for _, i := range rightArm {
		dx := restPose[i][0] - pivot[0]
		dy := restPose[i][1] - pivot[1]
		landmarks[i].X = pivot[0] + dx*cos - dy*sin
		landmarks[i].Y = pivot[1] + dx*sin + dy*cos
	}

	obs := Observation{Timestamp: now, Landmarks: landmarks}
	if f.world {
		obs.World = make([]Keypoint, NumLandmarks)
		for i, kp := range landmarks {
			obs.World[i] = Keypoint{
				X:          (kp.X - 0.5) * worldScale,
				Y:          (kp.Y - hipCentreY) * worldScale,
				Z:          kp.Z * worldScale,
				Visibility: kp.Visibility,
			}
		}
	}
	return obs, true
}
