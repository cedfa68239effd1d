// Package audiodev defines the boundary between audioloop and an audio
// subsystem: device enumeration, stream configuration selection and the
// real-time callback contract.
//
// Hosts live in subpackages (malgo, oto, null). The Resolver picks a device
// and a StreamConfig for each role using a named ConfigPolicy.
//
// Callback contract: CaptureFunc and PlaybackFunc run on a host-owned
// real-time thread. They must not block, allocate, lock or log. The slices
// passed to them are only valid for the duration of the call.
package audiodev

import "fmt"

// Role tells whether a device captures or plays audio
type Role int

const (
	Input Role = iota
	Output
)

func (r Role) String() string {
	switch r {
	case Input:
		return "input"
	case Output:
		return "output"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// SampleFormat is a device-native sample encoding. Streams always exchange
// float32 with audioloop; the host converts to and from the native format.
type SampleFormat int

const (
	FormatUnknown SampleFormat = iota
	FormatU8
	FormatS16
	FormatS24
	FormatS32
	FormatF32
)

func (f SampleFormat) String() string {
	switch f {
	case FormatU8:
		return "u8"
	case FormatS16:
		return "s16"
	case FormatS24:
		return "s24"
	case FormatS32:
		return "s32"
	case FormatF32:
		return "f32"
	default:
		return "unknown"
	}
}

// SupportedConfig is one enumerated configuration range of a device
type SupportedConfig struct {
	MinSampleRate uint32
	MaxSampleRate uint32
	Channels      int
	Format        SampleFormat
}

// Contains reports whether rate falls inside the range
func (c SupportedConfig) Contains(rate uint32) bool {
	return rate >= c.MinSampleRate && rate <= c.MaxSampleRate
}

func (c SupportedConfig) String() string {
	if c.MinSampleRate == c.MaxSampleRate {
		return fmt.Sprintf("%d Hz, %d ch, %s", c.MaxSampleRate, c.Channels, c.Format)
	}
	return fmt.Sprintf("%d-%d Hz, %d ch, %s", c.MinSampleRate, c.MaxSampleRate, c.Channels, c.Format)
}

// StreamConfig is the concrete configuration a stream is opened with.
// PeriodFrames of 0 lets the host choose.
type StreamConfig struct {
	SampleRate   uint32
	Channels     int
	Format       SampleFormat
	PeriodFrames uint32
}

func (c StreamConfig) String() string {
	period := "default"
	if c.PeriodFrames > 0 {
		period = fmt.Sprintf("%d", c.PeriodFrames)
	}
	return fmt.Sprintf("%d Hz, %d ch, %s, period %s", c.SampleRate, c.Channels, c.Format, period)
}

// Device is a handle to one audio endpoint
type Device struct {
	ID        string
	Name      string
	Role      Role
	IsDefault bool
	Configs   []SupportedConfig
}

// CaptureFunc receives interleaved input samples, len(in) = frames*channels.
type CaptureFunc func(in []float32)

// PlaybackFunc fills interleaved output samples, len(out) = frames*channels.
// Every element must be written.
type PlaybackFunc func(out []float32)

// ErrorFunc receives asynchronous stream errors. It may run on a host thread
// and must not block.
type ErrorFunc func(err error)

// Stream is an opened device stream
type Stream interface {
	Start() error
	// Stop returns once the stream's callback has returned and will not be
	// invoked again until the next Start.
	Stop() error
	Close() error
}

// Host is an audio subsystem
type Host interface {
	Name() string
	Devices(role Role) ([]Device, error)
	OpenInput(dev *Device, cfg StreamConfig, data CaptureFunc, onErr ErrorFunc) (Stream, error)
	OpenOutput(dev *Device, cfg StreamConfig, data PlaybackFunc, onErr ErrorFunc) (Stream, error)
	Close() error
}
