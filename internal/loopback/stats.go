package loopback

import (
	"time"

	"github.com/tphakala/audioloop/internal/logger"
)

// Stats is a point-in-time snapshot of the loopback counters. Counters read
// from different atomics are not mutually consistent.
type Stats struct {
	State State

	CapturedFrames uint64
	Overflows      uint64
	OverflowFrames uint64

	PlayedFrames  uint64
	Underruns     uint64
	SilenceFrames uint64

	CaptureCallbacks  uint64
	PlaybackCallbacks uint64

	// DroppedFrames are frames the ring discarded before playback read them
	DroppedFrames uint64
	BufferedFrames int
	CapacityFrames int

	StreamErrors   uint64
	JournalDropped uint64
	Restarts       uint64

	SampleRate uint32
	Channels   int
	Uptime     time.Duration
}

// BufferedDuration converts BufferedFrames to time at the capture rate
func (s Stats) BufferedDuration() time.Duration {
	if s.SampleRate == 0 {
		return 0
	}
	return time.Duration(s.BufferedFrames) * time.Second / time.Duration(s.SampleRate)
}

// FillRatio is the buffered share of the ring capacity, 0 to 1
func (s Stats) FillRatio() float64 {
	if s.CapacityFrames == 0 {
		return 0
	}
	return float64(s.BufferedFrames) / float64(s.CapacityFrames)
}

// logFields flattens the snapshot for a structured log line
func (s Stats) logFields() []logger.Field {
	return []logger.Field{
		logger.String("state", s.State.String()),
		logger.Uint64("captured_frames", s.CapturedFrames),
		logger.Uint64("played_frames", s.PlayedFrames),
		logger.Uint64("overflows", s.Overflows),
		logger.Uint64("underruns", s.Underruns),
		logger.Uint64("dropped_frames", s.DroppedFrames),
		logger.Uint64("silence_frames", s.SilenceFrames),
		logger.Int("buffered_frames", s.BufferedFrames),
		logger.Duration("buffered", s.BufferedDuration()),
		logger.Float64("fill_ratio", s.FillRatio()),
		logger.Uint64("stream_errors", s.StreamErrors),
		logger.Uint64("restarts", s.Restarts),
		logger.Duration("uptime", s.Uptime),
	}
}

// Recorder receives lifecycle operation outcomes and durations
type Recorder interface {
	RecordOperation(operation, status string)
	RecordDuration(operation string, seconds float64)
	RecordError(operation, errorType string)
}

type noopRecorder struct{}

func (noopRecorder) RecordOperation(string, string) {}
func (noopRecorder) RecordDuration(string, float64) {}
func (noopRecorder) RecordError(string, string) {}

const (
	opConfigure = "configure"
	opStart     = "start"
	opStop      = "stop"
	opRestart   = "restart"

	statusSuccess = "success"
	statusError   = "error"
)

func recordOutcome(r Recorder, op string, err error) {
	if err != nil {
		r.RecordOperation(op, statusError)
		return
	}
	r.RecordOperation(op, statusSuccess)
}
