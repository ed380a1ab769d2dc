// Package pose holds the keypoint model the streaming client serializes and a
// synthetic frame feed that stands in for the camera and pose estimator.
package pose

import (
	"errors"
	"fmt"
	"time"
)

// NumLandmarks is the number of body keypoints the upstream model emits per
// detected pose.
const NumLandmarks = 33

// ValuesPerLandmark is x, y, z, visibility.
const ValuesPerLandmark = 4

var ErrLandmarkCount = errors.New("pose: wrong landmark count")

// LandmarkNames are indexed by landmark position. Order is fixed by the model
// and must not change.
var LandmarkNames = [NumLandmarks]string{
	"nose",
	"left_eye_inner", "left_eye", "left_eye_outer",
	"right_eye_inner", "right_eye", "right_eye_outer",
	"left_ear", "right_ear",
	"mouth_left", "mouth_right",
	"left_shoulder", "right_shoulder",
	"left_elbow", "right_elbow",
	"left_wrist", "right_wrist",
	"left_pinky", "right_pinky",
	"left_index", "right_index",
	"left_thumb", "right_thumb",
	"left_hip", "right_hip",
	"left_knee", "right_knee",
	"left_ankle", "right_ankle",
	"left_heel", "right_heel",
	"left_foot_index", "right_foot_index",
}

// Keypoint is one tracked joint. X and Y are normalized image coordinates, Z
// is relative depth and Visibility is a [0,1] confidence.
type Keypoint struct {
	X          float64
	Y          float64
	Z          float64
	Visibility float64
}

// Observation is one frame's detected pose. World, when present, holds the
// same landmarks in metric hip-centred coordinates.
type Observation struct {
	Timestamp time.Time
	Landmarks []Keypoint
	World     []Keypoint
}

func (o Observation) Validate() error {
	if len(o.Landmarks) != NumLandmarks {
		return fmt.Errorf("%w: landmarks has %d, want %d", ErrLandmarkCount, len(o.Landmarks), NumLandmarks)
	}
	if o.World != nil && len(o.World) != NumLandmarks {
		return fmt.Errorf("%w: world has %d, want %d", ErrLandmarkCount, len(o.World), NumLandmarks)
	}
	return nil
}

// TimestampMillis is the epoch-millisecond timestamp sent on the wire.
func (o Observation) TimestampMillis() int64 {
	return o.Timestamp.UnixMilli()
}

// Flatten lays keypoints out as [x0,y0,z0,v0, x1,y1,z1,v1, ...] preserving order.
func Flatten(kps []Keypoint) []float64 {
	out := make([]float64, 0, len(kps)*ValuesPerLandmark)
	for _, kp := range kps {
		out = append(out, kp.X, kp.Y, kp.Z, kp.Visibility)
	}
	return out
}

// Unflatten is the inverse of Flatten. Trailing values that do not fill a
// whole keypoint are an error.
func Unflatten(values []float64) ([]Keypoint, error) {
	if len(values)%ValuesPerLandmark != 0 {
		return nil, fmt.Errorf("pose: %d values is not a multiple of %d", len(values), ValuesPerLandmark)
	}
	kps := make([]Keypoint, 0, len(values)/ValuesPerLandmark)
	for i := 0; i < len(values); i += ValuesPerLandmark {
		kps = append(kps, Keypoint{
			X:          values[i],
			Y:          values[i+1],
			Z:          values[i+2],
			Visibility: values[i+3],
		})
	}
	return kps, nil
}

// MeanVisibility averages visibility across keypoints; zero for none.
func MeanVisibility(kps []Keypoint) float64 {
	if len(kps) == 0 {
		return 0
	}
	var sum float64
	for _, kp := range kps {
		sum += kp.Visibility
	}
	return sum / float64(len(kps))
}
