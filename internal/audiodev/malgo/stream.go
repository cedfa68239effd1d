package malgo

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/gen2brain/malgo"

	"github.com/tphakala/audioloop/internal/audiodev"
	"github.com/tphakala/audioloop/internal/errors"
	"github.com/tphakala/audioloop/internal/logger"
)

// Stream is one miniaudio device opened for capture or playback in f32.
// miniaudio converts to the device's native format and rate.
type Stream struct {
	role     audiodev.Role
	name     string
	info     malgo.DeviceInfo // DeviceID must outlive the device
	channels int

	capture  audiodev.CaptureFunc
	playback audiodev.PlaybackFunc
	onErr    audiodev.ErrorFunc
	log      logger.Logger

	mu       sync.Mutex
	device   *malgo.Device
	stopping atomic.Bool
	closed   bool
}

func (h *Host) OpenInput(dev *audiodev.Device, cfg audiodev.StreamConfig, data audiodev.CaptureFunc, onErr audiodev.ErrorFunc) (audiodev.Stream, error) {
	return h.open(dev, cfg, data, nil, onErr)
}

func (h *Host) OpenOutput(dev *audiodev.Device, cfg audiodev.StreamConfig, data audiodev.PlaybackFunc, onErr audiodev.ErrorFunc) (audiodev.Stream, error) {
	return h.open(dev, cfg, nil, data, onErr)
}

func (h *Host) open(dev *audiodev.Device, cfg audiodev.StreamConfig,
	capture audiodev.CaptureFunc, playback audiodev.PlaybackFunc, onErr audiodev.ErrorFunc,
) (*Stream, error) {
	info, err := h.lookup(dev)
	if err != nil {
		return nil, err
	}

	s := &Stream{
		role:     dev.Role,
		name:     dev.Name,
		info:     info,
		channels: cfg.Channels,
		capture:  capture,
		playback: playback,
		onErr:    onErr,
		log:      h.log.With(logger.String("device", dev.Name), logger.String("role", dev.Role.String())),
	}

	deviceConfig := malgo.DefaultDeviceConfig(deviceType(dev.Role))
	if dev.Role == audiodev.Input {
		deviceConfig.Capture.Format = malgo.FormatF32
		deviceConfig.Capture.Channels = uint32(cfg.Channels) //nolint:gosec // validated channel count
		deviceConfig.Capture.DeviceID = s.info.ID.Pointer()
	} else {
		deviceConfig.Playback.Format = malgo.FormatF32
		deviceConfig.Playback.Channels = uint32(cfg.Channels) //nolint:gosec // validated channel count
		deviceConfig.Playback.DeviceID = s.info.ID.Pointer()
	}
	deviceConfig.SampleRate = cfg.SampleRate
	deviceConfig.PeriodSizeInFrames = cfg.PeriodFrames
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(h.ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: s.onData,
		Stop: s.onDeviceStop,
	})
	if err != nil {
		return nil, errors.New(err).
			Component(componentName).
			Category(errors.CategoryAudioSource).
			Context("operation", "init_device").
			Context("device_name", dev.Name).
			Context("role", dev.Role.String()).
			Context("sample_rate", cfg.SampleRate).
			Context("channels", cfg.Channels).
			Build()
	}
	s.device = device

	if actual := device.SampleRate(); actual != cfg.SampleRate {
		s.log.Debug("device runs at a different native rate, miniaudio resamples",
			logger.Int64("requested", int64(cfg.SampleRate)),
			logger.Int64("native", int64(actual)))
	}

	h.mu.Lock()
	h.streams = append(h.streams, s)
	h.mu.Unlock()

	return s, nil
}

// onData runs on the miniaudio thread. Buffers are reinterpreted in place.
func (s *Stream) onData(pOutput, pInput []byte, frameCount uint32) {
	n := int(frameCount) * s.channels
	if s.role == audiodev.Input {
		if len(pInput) < n*4 || n == 0 {
			return
		}
		s.capture(unsafe.Slice((*float32)(unsafe.Pointer(unsafe.SliceData(pInput))), n))
		return
	}

	if len(pOutput) < n*4 || n == 0 {
		return
	}
	s.playback(unsafe.Slice((*float32)(unsafe.Pointer(unsafe.SliceData(pOutput))), n))
}

// onDeviceStop is called by miniaudio whenever the device stops. Stops we
// did not request are reported as audiodev.ErrStreamStopped. This runs on
// a miniaudio thread, so the error is left plain for the consumer to enrich.
func (s *Stream) onDeviceStop() {
	if s.stopping.Load() || s.onErr == nil {
		return
	}
	s.onErr(fmt.Errorf("%w: %s device %q", audiodev.ErrStreamStopped, s.role, s.name))
}

// Start starts the device. Starting a started device is a no-op.
func (s *Stream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.device == nil {
		return errors.New(audiodev.ErrStreamClosed).
			Component(componentName).
			Category(errors.CategoryState).
			Context("operation", "start_device").
			Context("device_name", s.name).
			Build()
	}

	if s.device.IsStarted() {
		return nil
	}

	if err := s.device.Start(); err != nil {
		return errors.New(err).
			Component(componentName).
			Category(errors.CategoryAudioSource).
			Context("operation", "start_device").
			Context("device_name", s.name).
			Context("role", s.role.String()).
			Build()
	}
	return nil
}

// Stop stops the device. miniaudio returns only after the data callback has
// finished and will not fire again.
func (s *Stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *Stream) stopLocked() error {
	if s.device == nil || !s.device.IsStarted() {
		return nil
	}

	s.stopping.Store(true)
	defer s.stopping.Store(false)

	if err := s.device.Stop(); err != nil {
		return errors.New(err).
			Component(componentName).
			Category(errors.CategoryAudioSource).
			Context("operation", "stop_device").
			Context("device_name", s.name).
			Build()
	}
	return nil
}

// Close stops and uninitializes the device. It is idempotent.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	err := s.stopLocked()
	if s.device != nil {
		s.stopping.Store(true)
		s.device.Uninit()
		s.device = nil
	}
	return err
}

var _ audiodev.Stream = (*Stream)(nil)
