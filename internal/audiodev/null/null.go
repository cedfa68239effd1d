// Package null provides a simulated audio host. Each stream runs a goroutine
// that ticks at the stream period and invokes the callback, so the loopback
// can be exercised without sound hardware.
//
// The input device generates a sine tone. The output device discards what it
// receives but records frame counts and the peak level.
package null

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/audioloop/internal/audiodev"
	"github.com/tphakala/audioloop/internal/errors"
)

const (
	// HostName is reported by Host.Name
	HostName = "null"

	defaultPeriodFrames = 480
	defaultToneHz       = 440.0
	toneAmplitude       = 0.25
)

// DefaultConfigs is the range offered by both null devices
var DefaultConfigs = []audiodev.SupportedConfig{
	{MinSampleRate: 8000, MaxSampleRate: 48000, Channels: 2, Format: audiodev.FormatF32},
}

type fault struct {
	openErr        error
	startErr       error
	asyncErr       error
	asyncAfter     uint64
	stopAfter      uint64
	unexpectedStop bool
}

// Option configures a Host
type Option func(*Host)

// WithConfigs replaces the supported configs of the device for role.
func WithConfigs(role audiodev.Role, configs []audiodev.SupportedConfig) Option {
	return func(h *Host) { h.configs[role] = configs }
}

// WithoutDevices makes Devices(role) return an empty list.
func WithoutDevices(role audiodev.Role) Option {
	return func(h *Host) { h.noDevices[role] = true }
}

// WithOpenError makes opening a stream for role fail.
func WithOpenError(role audiodev.Role, err error) Option {
	return func(h *Host) { h.faults[role].openErr = err }
}

// WithStartError makes starting a stream for role fail.
func WithStartError(role audiodev.Role, err error) Option {
	return func(h *Host) { h.faults[role].startErr = err }
}

// WithAsyncError reports err through the stream's ErrorFunc after the given
// number of callbacks. The stream keeps running.
func WithAsyncError(role audiodev.Role, err error, afterCallbacks uint64) Option {
	return func(h *Host) {
		h.faults[role].asyncErr = err
		h.faults[role].asyncAfter = afterCallbacks
	}
}

// WithUnexpectedStop stops the stream on its own after the given number of
// callbacks and reports audiodev.ErrStreamStopped, once per stream.
func WithUnexpectedStop(role audiodev.Role, afterCallbacks uint64) Option {
	return func(h *Host) {
		h.faults[role].unexpectedStop = true
		h.faults[role].stopAfter = afterCallbacks
	}
}

// WithToneHz sets the frequency generated by the input device.
func WithToneHz(hz float64) Option {
	return func(h *Host) { h.toneHz = hz }
}

// Host is a simulated audio subsystem with one input and one output device
type Host struct {
	configs   map[audiodev.Role][]audiodev.SupportedConfig
	noDevices map[audiodev.Role]bool
	faults    map[audiodev.Role]*fault
	toneHz    float64

	mu      sync.Mutex
	streams []*Stream
	closed  bool
}

// New creates a null host
func New(opts ...Option) *Host {
	h := &Host{
		configs: map[audiodev.Role][]audiodev.SupportedConfig{
			audiodev.Input:  DefaultConfigs,
			audiodev.Output: DefaultConfigs,
		},
		noDevices: make(map[audiodev.Role]bool),
		faults: map[audiodev.Role]*fault{
			audiodev.Input:  {},
			audiodev.Output: {},
		},
		toneHz: defaultToneHz,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Host) Name() string { return HostName }

// Devices returns the single simulated device for role
func (h *Host) Devices(role audiodev.Role) ([]audiodev.Device, error) {
	if h.noDevices[role] {
		return nil, nil
	}
	name := "Null Input"
	if role == audiodev.Output {
		name = "Null Output"
	}
	return []audiodev.Device{{
		ID:        "null:" + role.String(),
		Name:      name,
		Role:      role,
		IsDefault: true,
		Configs:   h.configs[role],
	}}, nil
}

func (h *Host) OpenInput(dev *audiodev.Device, cfg audiodev.StreamConfig, data audiodev.CaptureFunc, onErr audiodev.ErrorFunc) (audiodev.Stream, error) {
	return h.open(dev, audiodev.Input, cfg, data, nil, onErr)
}

func (h *Host) OpenOutput(dev *audiodev.Device, cfg audiodev.StreamConfig, data audiodev.PlaybackFunc, onErr audiodev.ErrorFunc) (audiodev.Stream, error) {
	return h.open(dev, audiodev.Output, cfg, nil, data, onErr)
}

func (h *Host) open(dev *audiodev.Device, role audiodev.Role, cfg audiodev.StreamConfig,
	capture audiodev.CaptureFunc, playback audiodev.PlaybackFunc, onErr audiodev.ErrorFunc,
) (*Stream, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, errors.New(audiodev.ErrStreamClosed).
			Component("audiodev.null").
			Category(errors.CategoryState).
			Context("operation", "open_stream").
			Build()
	}

	f := h.faults[role]
	if f.openErr != nil {
		return nil, errors.New(f.openErr).
			Component("audiodev.null").
			Category(errors.CategoryAudioSource).
			Context("operation", "open_stream").
			Context("role", role.String()).
			Build()
	}

	if cfg.SampleRate == 0 || cfg.Channels < 1 {
		return nil, errors.New(fmt.Errorf("invalid stream config: %s", cfg)).
			Component("audiodev.null").
			Category(errors.CategoryValidation).
			Context("role", role.String()).
			Build()
	}

	periodFrames := int(cfg.PeriodFrames)
	if periodFrames == 0 {
		periodFrames = defaultPeriodFrames
	}

	s := &Stream{
		role:     role,
		device:   dev.Name,
		cfg:      cfg,
		fault:    f,
		capture:  capture,
		playback: playback,
		onErr:    onErr,
		buf:      make([]float32, periodFrames*cfg.Channels),
		interval: time.Duration(float64(periodFrames) / float64(cfg.SampleRate) * float64(time.Second)),
		phaseInc: 2 * math.Pi * h.toneHz / float64(cfg.SampleRate),
	}
	h.streams = append(h.streams, s)
	return s, nil
}

// Streams returns every stream opened on the host, in open order
func (h *Host) Streams() []*Stream {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*Stream(nil), h.streams...)
}

// LastStream returns the most recently opened stream for role, or nil
func (h *Host) LastStream(role audiodev.Role) *Stream {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.streams) - 1; i >= 0; i-- {
		if h.streams[i].role == role {
			return h.streams[i]
		}
	}
	return nil
}

// Close stops and closes every stream
func (h *Host) Close() error {
	h.mu.Lock()
	streams := h.streams
	h.closed = true
	h.mu.Unlock()

	var errs []error
	for _, s := range streams {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// Stream is a simulated device stream driven by a ticker goroutine
type Stream struct {
	role     audiodev.Role
	device   string
	cfg      audiodev.StreamConfig
	fault    *fault
	capture  audiodev.CaptureFunc
	playback audiodev.PlaybackFunc
	onErr    audiodev.ErrorFunc

	buf      []float32
	interval time.Duration
	phase    float64
	phaseInc float64

	mu     sync.Mutex
	stop   chan struct{}
	done   chan struct{}
	closed bool

	callbacks  atomic.Uint64
	frames     atomic.Uint64
	peak       atomic.Uint32
	asyncFired atomic.Bool
	stopFired  atomic.Bool
}

// Start launches the callback goroutine. Starting a running stream is a no-op.
func (s *Stream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New(audiodev.ErrStreamClosed).
			Component("audiodev.null").
			Category(errors.CategoryState).
			Context("operation", "start_stream").
			Context("role", s.role.String()).
			Build()
	}

	if s.stop != nil {
		select {
		case <-s.done:
			// exited on its own, restart below
			s.stop, s.done = nil, nil
		default:
			return nil
		}
	}

	if s.fault.startErr != nil {
		return errors.New(s.fault.startErr).
			Component("audiodev.null").
			Category(errors.CategoryAudioSource).
			Context("operation", "start_stream").
			Context("role", s.role.String()).
			Build()
	}

	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stop, s.done)
	return nil
}

// Stop halts the goroutine and waits for the in-progress callback to return.
func (s *Stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	return nil
}

func (s *Stream) stopLocked() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	<-s.done
	s.stop, s.done = nil, nil
}

// Close stops the stream; further starts fail with audiodev.ErrStreamClosed.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.closed = true
	return nil
}

func (s *Stream) run(stop <-chan struct{}, done chan<- struct{}) {
	halted := false
	defer func() {
		close(done)
		// reported after done so a restart from the handler sees a stopped stream
		if halted {
			s.report(audiodev.ErrStreamStopped)
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		s.tick()
		n := s.callbacks.Add(1)

		if f := s.fault; f.asyncErr != nil && n >= f.asyncAfter && s.asyncFired.CompareAndSwap(false, true) {
			s.report(f.asyncErr)
		}

		if f := s.fault; f.unexpectedStop && n >= f.stopAfter && s.stopFired.CompareAndSwap(false, true) {
			halted = true
			return
		}
	}
}

func (s *Stream) tick() {
	if s.role == audiodev.Input {
		s.fillTone()
		s.capture(s.buf)
		s.frames.Add(uint64(len(s.buf) / s.cfg.Channels))
		return
	}

	s.playback(s.buf)
	s.frames.Add(uint64(len(s.buf) / s.cfg.Channels))

	peak := math.Float32frombits(s.peak.Load())
	for _, v := range s.buf {
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	s.peak.Store(math.Float32bits(peak))
}

func (s *Stream) fillTone() {
	ch := s.cfg.Channels
	for i := 0; i < len(s.buf); i += ch {
		v := float32(toneAmplitude * math.Sin(s.phase))
		for c := range ch {
			s.buf[i+c] = v
		}
		s.phase += s.phaseInc
		if s.phase >= 2*math.Pi {
			s.phase -= 2 * math.Pi
		}
	}
}

func (s *Stream) report(err error) {
	if s.onErr != nil {
		s.onErr(err)
	}
}

// Role returns the stream direction
func (s *Stream) Role() audiodev.Role { return s.role }

// DeviceName returns the name of the device the stream was opened on
func (s *Stream) DeviceName() string { return s.device }

// Config returns the configuration the stream was opened with
func (s *Stream) Config() audiodev.StreamConfig { return s.cfg }

// Callbacks returns how many times the data callback has run
func (s *Stream) Callbacks() uint64 { return s.callbacks.Load() }

// Frames returns the frames generated (input) or consumed (output)
func (s *Stream) Frames() uint64 { return s.frames.Load() }

// Peak returns the highest absolute sample value seen by an output stream
func (s *Stream) Peak() float32 { return math.Float32frombits(s.peak.Load()) }

// Running reports whether the callback goroutine is active
func (s *Stream) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

var (
	_ audiodev.Host   = (*Host)(nil)
	_ audiodev.Stream = (*Stream)(nil)
)
