package loopback

import "github.com/tphakala/audioloop/internal/errors"

const componentName = "loopback"

var (
	// ErrConfigMismatch means capture and playback disagree on rate or
	// channel count under MismatchReject.
	ErrConfigMismatch = errors.NewStd("capture and playback configurations differ")

	// ErrInvalidState is returned when an operation does not fit the
	// manager's current state.
	ErrInvalidState = errors.NewStd("invalid manager state")

	// ErrQuiesceTimeout means a callback was still running when Stop gave up
	// waiting. The ring is left open in that case.
	ErrQuiesceTimeout = errors.NewStd("timed out waiting for callbacks to return")

	// ErrInvalidCapacity is returned by NewRing for a non-positive size
	ErrInvalidCapacity = errors.NewStd("invalid ring capacity")
)
