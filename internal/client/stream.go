package client

import (
	"github.com/DFly7/SimpleMediaPipe/internal/metrics"
	"github.com/DFly7/SimpleMediaPipe/internal/pose"
	"github.com/DFly7/SimpleMediaPipe/internal/socketio"
	"go.uber.org/zap"
)

// SendPose streams one observation as pose_landmarks (and
// pose_world_landmarks when enabled). It never blocks: frames with no pose,
// malformed frames and frames arriving while not connected are dropped.
func (s *Session) SendPose(obs pose.Observation) {
	if len(obs.Landmarks) == 0 {
		s.metrics.FrameDropped(metrics.DropNoPose)
		return
	}
	if err := obs.Validate(); err != nil {
		s.log.Debug("Dropping invalid observation", zap.Error(err))
		s.metrics.FrameDropped(metrics.DropInvalid)
		return
	}

	ts := obs.TimestampMillis()
	text, err := socketio.EncodeEvent(socketio.EventPoseLandmarks, socketio.LandmarksPayload{
		Timestamp: ts,
		Landmarks: pose.Flatten(obs.Landmarks),
	})
	if err != nil {
		s.log.Warn("Failed to encode landmarks", zap.Error(err))
		s.metrics.FrameDropped(metrics.DropEncode)
		return
	}

	var world string
	if s.world && obs.World != nil {
		world, err = socketio.EncodeEvent(socketio.EventPoseWorldLandmarks, socketio.LandmarksPayload{
			Timestamp: ts,
			Landmarks: pose.Flatten(obs.World),
		})
		if err != nil {
			s.log.Warn("Failed to encode world landmarks", zap.Error(err))
			world = ""
		}
	}

	queued := s.tryDo(func() {
		if reason := s.sendText(socketio.EventPoseLandmarks, text); reason != "" {
			s.metrics.FrameDropped(reason)
			return
		}
		s.metrics.FrameSent()
		if world != "" {
			s.sendText(socketio.EventPoseWorldLandmarks, world)
		}
	})
	if !queued {
		s.metrics.FrameDropped(metrics.DropBackpressure)
	}
}

// SendCameraAction reports a capture lifecycle change such as
// socketio.ActionVideoStopped. Unlike pose frames it waits for room in the
// command queue, but it is still dropped if the session is not connected.
func (s *Session) SendCameraAction(action string) {
	text, err := socketio.EncodeEvent(socketio.EventCameraAction, socketio.CameraActionPayload{
		Timestamp: s.clock.Now().UnixMilli(),
		Action:    action,
		Client:    s.cfg.ID,
	})
	if err != nil {
		s.log.Warn("Failed to encode camera action", zap.Error(err))
		return
	}
	s.do(func() {
		if reason := s.sendText(socketio.EventCameraAction, text); reason == "" {
			s.log.Info("Camera action sent", zap.String("action", action))
		}
	})
}
