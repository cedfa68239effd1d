package loopback

import (
	"fmt"
	"strings"
)

// State is the manager lifecycle stage. Transitions only move forward:
// Uninitialized, Configured, Running, Stopped.
type State int32

const (
	StateUninitialized State = iota
	StateConfigured
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConfigured:
		return "configured"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// MismatchPolicy decides what Configure does when the capture and playback
// configurations differ in rate or channel count.
type MismatchPolicy int

const (
	// MismatchReject fails Configure with ErrConfigMismatch
	MismatchReject MismatchPolicy = iota

	// MismatchMatchCapture opens playback with the capture rate and channel
	// count when the output device lists a range supporting them, and
	// otherwise fails like MismatchReject.
	MismatchMatchCapture
)

func (p MismatchPolicy) String() string {
	switch p {
	case MismatchReject:
		return "reject"
	case MismatchMatchCapture:
		return "match-capture"
	default:
		return fmt.Sprintf("mismatch(%d)", int(p))
	}
}

// ParseMismatchPolicy accepts "reject" and "match-capture". An empty string
// means reject.
func ParseMismatchPolicy(s string) (MismatchPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reject":
		return MismatchReject, nil
	case "match-capture":
		return MismatchMatchCapture, nil
	default:
		return MismatchReject, fmt.Errorf("unknown mismatch policy %q", s)
	}
}
