// Package oto provides a playback-only audio host on top of ebitengine/oto.
// Pair it with a capture host through audiodev.SplitHost.
package oto

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/tphakala/audioloop/internal/audiodev"
	"github.com/tphakala/audioloop/internal/errors"
	"github.com/tphakala/audioloop/internal/logger"
)

const (
	// HostName is reported by Host.Name
	HostName = "oto"

	componentName = "audiodev.oto"
	deviceID      = "oto:default"

	defaultPeriodFrames = 512
)

// outputConfigs are the formats the oto mixer accepts for our use
var outputConfigs = []audiodev.SupportedConfig{
	{MinSampleRate: 44100, MaxSampleRate: 48000, Channels: 2, Format: audiodev.FormatF32},
	{MinSampleRate: 44100, MaxSampleRate: 48000, Channels: 1, Format: audiodev.FormatF32},
}

// Host owns the process-wide oto context. oto allows one context per
// process, so every stream must use the format of the first one.
type Host struct {
	log logger.Logger

	mu       sync.Mutex
	ctx      *oto.Context
	rate     int
	channels int
	streams  []*Stream
	closed   bool
}

// New creates an oto host. The oto context is created on the first OpenOutput.
func New(log logger.Logger) *Host {
	if log == nil {
		log = logger.Global().Module(componentName)
	}
	return &Host{log: log}
}

func (h *Host) Name() string { return HostName }

// Devices returns the system default output. There are no input devices.
func (h *Host) Devices(role audiodev.Role) ([]audiodev.Device, error) {
	if role == audiodev.Input {
		return nil, nil
	}
	return []audiodev.Device{{
		ID:        deviceID,
		Name:      "Default output (oto)",
		Role:      audiodev.Output,
		IsDefault: true,
		Configs:   outputConfigs,
	}}, nil
}

// OpenInput always fails; oto cannot capture.
func (h *Host) OpenInput(dev *audiodev.Device, _ audiodev.StreamConfig, _ audiodev.CaptureFunc, _ audiodev.ErrorFunc) (audiodev.Stream, error) {
	return nil, errors.New(fmt.Errorf("%w: %s cannot capture", audiodev.ErrUnsupportedRole, HostName)).
		Component(componentName).
		Category(errors.CategoryValidation).
		Context("device_name", dev.Name).
		Build()
}

// OpenOutput creates a paused player fed by data. oto reports no
// asynchronous errors, so the ErrorFunc is unused.
func (h *Host) OpenOutput(dev *audiodev.Device, cfg audiodev.StreamConfig, data audiodev.PlaybackFunc, _ audiodev.ErrorFunc) (audiodev.Stream, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, errors.New(audiodev.ErrStreamClosed).
			Component(componentName).
			Category(errors.CategoryState).
			Context("operation", "open_stream").
			Build()
	}

	period := cfg.PeriodFrames
	if period == 0 {
		period = defaultPeriodFrames
	}

	if err := h.ensureContextLocked(cfg, period); err != nil {
		return nil, err
	}

	r := newReader(cfg.Channels, int(period), data)
	s := &Stream{
		name:   dev.Name,
		reader: r,
		player: h.ctx.NewPlayer(r),
	}
	h.streams = append(h.streams, s)

	h.log.Debug("oto player created",
		logger.Int("sample_rate", h.rate),
		logger.Int("channels", h.channels),
		logger.Int64("period_frames", int64(period)))

	return s, nil
}

func (h *Host) ensureContextLocked(cfg audiodev.StreamConfig, period uint32) error {
	rate, channels := int(cfg.SampleRate), cfg.Channels

	if h.ctx != nil {
		if rate != h.rate || channels != h.channels {
			return errors.New(fmt.Errorf("oto context already runs at %d Hz %d ch, requested %d Hz %d ch",
				h.rate, h.channels, rate, channels)).
				Component(componentName).
				Category(errors.CategoryConfiguration).
				Build()
		}
		return nil
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   rate,
		ChannelCount: channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   time.Duration(float64(period) / float64(rate) * float64(time.Second)),
	})
	if err != nil {
		return errors.New(err).
			Component(componentName).
			Category(errors.CategoryAudioSource).
			Context("operation", "new_context").
			Context("sample_rate", rate).
			Context("channels", channels).
			Build()
	}
	<-ready

	h.ctx, h.rate, h.channels = ctx, rate, channels
	return nil
}

// Close closes every player and suspends the context. oto contexts cannot be
// destroyed, so a closed Host stays unusable.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	var errs []error
	for _, s := range h.streams {
		errs = append(errs, s.Close())
	}
	h.streams = nil

	if h.ctx != nil {
		if err := h.ctx.Suspend(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stream is an oto player pulling samples through a reader
type Stream struct {
	name   string
	reader *reader
	player *oto.Player

	mu     sync.Mutex
	closed bool
}

// Start resumes pulling from the playback callback
func (s *Stream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New(audiodev.ErrStreamClosed).
			Component(componentName).
			Category(errors.CategoryState).
			Context("operation", "start_stream").
			Context("device_name", s.name).
			Build()
	}

	s.reader.activate()
	s.player.Play()
	return nil
}

// Stop pauses the player and waits until the playback callback has returned.
func (s *Stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.reader.deactivate()
	s.player.Pause()
	return nil
}

// Close stops and closes the player. It is idempotent.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.reader.deactivate()
	s.player.Pause()

	if err := s.player.Close(); err != nil {
		return errors.New(err).
			Component(componentName).
			Category(errors.CategoryAudioSource).
			Context("operation", "close_player").
			Context("device_name", s.name).
			Build()
	}
	return nil
}

var (
	_ audiodev.Host   = (*Host)(nil)
	_ audiodev.Stream = (*Stream)(nil)
)
