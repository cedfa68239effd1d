// Package malgo provides a miniaudio-based audio host for capture and playback
package malgo

import (
	"encoding/hex"
	"runtime"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/tphakala/audioloop/internal/audiodev"
	"github.com/tphakala/audioloop/internal/errors"
	"github.com/tphakala/audioloop/internal/logger"
)

const (
	// HostName is reported by Host.Name
	HostName = "malgo"

	componentName = "audiodev.malgo"

	// Range used when a native format accepts any sample rate
	anyRateMin = 8000
	anyRateMax = 48000

	defaultChannels = 2
)

// Host enumerates and opens devices through a single miniaudio context
type Host struct {
	ctx *malgo.AllocatedContext
	log logger.Logger

	mu      sync.Mutex
	infos   map[audiodev.Role]map[string]malgo.DeviceInfo
	streams []*Stream
	closed  bool
}

// getBackendForPlatform returns the appropriate malgo backend for the current platform
func getBackendForPlatform() malgo.Backend {
	switch runtime.GOOS {
	case "linux":
		return malgo.BackendAlsa
	case "windows":
		return malgo.BackendWasapi
	case "darwin":
		return malgo.BackendCoreaudio
	default:
		return malgo.BackendNull
	}
}

// New initializes a miniaudio context for the platform backend. miniaudio's
// own log output is routed to log at debug level.
func New(log logger.Logger) (*Host, error) {
	if log == nil {
		log = logger.Global().Module(componentName)
	}

	backend := getBackendForPlatform()
	ctx, err := malgo.InitContext([]malgo.Backend{backend}, malgo.ContextConfig{}, func(message string) {
		log.Debug("miniaudio", logger.String("message", strings.TrimSpace(message)))
	})
	if err != nil {
		return nil, errors.New(err).
			Component(componentName).
			Category(errors.CategoryAudio).
			Context("operation", "init_context").
			Context("backend", runtime.GOOS).
			Build()
	}

	return &Host{
		ctx: ctx,
		log: log,
		infos: map[audiodev.Role]map[string]malgo.DeviceInfo{
			audiodev.Input:  {},
			audiodev.Output: {},
		},
	}, nil
}

func (h *Host) Name() string { return HostName }

func deviceType(role audiodev.Role) malgo.DeviceType {
	if role == audiodev.Input {
		return malgo.Capture
	}
	return malgo.Playback
}

// Devices enumerates devices for role with their native formats
func (h *Host) Devices(role audiodev.Role) ([]audiodev.Device, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, errors.New(audiodev.ErrStreamClosed).
			Component(componentName).
			Category(errors.CategoryState).
			Context("operation", "enumerate_devices").
			Build()
	}

	kind := deviceType(role)
	infos, err := h.ctx.Devices(kind)
	if err != nil {
		return nil, errors.New(err).
			Component(componentName).
			Category(errors.CategoryAudio).
			Context("operation", "enumerate_devices").
			Context("role", role.String()).
			Build()
	}

	devices := make([]audiodev.Device, 0, len(infos))
	cache := make(map[string]malgo.DeviceInfo, len(infos))

	for i := range infos {
		// Skip the discard/null device
		if strings.Contains(infos[i].Name(), "Discard all samples") {
			continue
		}

		id, err := hexToASCII(infos[i].ID.String())
		if err != nil {
			id = infos[i].ID.String()
		}

		// Full info carries the native formats; the enumeration entry may not
		full, err := h.ctx.DeviceInfo(kind, infos[i].ID, malgo.Shared)
		if err != nil {
			h.log.Debug("device info query failed, using defaults",
				logger.String("device", infos[i].Name()),
				logger.Error(err))
			full = infos[i]
		}

		cache[id] = infos[i]
		devices = append(devices, audiodev.Device{
			ID:        id,
			Name:      infos[i].Name(),
			Role:      role,
			IsDefault: infos[i].IsDefault != 0,
			Configs:   supportedConfigs(&full),
		})
	}

	h.infos[role] = cache
	return devices, nil
}

// supportedConfigs turns native formats into ranges. A rate of 0 means any
// rate and maps to [anyRateMin, anyRateMax].
func supportedConfigs(info *malgo.DeviceInfo) []audiodev.SupportedConfig {
	count := int(info.FormatCount)
	configs := make([]audiodev.SupportedConfig, 0, count)

	for i := 0; i < count && i < len(info.Formats); i++ {
		f := info.Formats[i]

		channels := int(f.Channels)
		if channels == 0 {
			channels = defaultChannels
		}

		c := audiodev.SupportedConfig{
			MinSampleRate: f.SampleRate,
			MaxSampleRate: f.SampleRate,
			Channels:      channels,
			Format:        sampleFormat(f.Format),
		}
		if f.SampleRate == 0 {
			c.MinSampleRate, c.MaxSampleRate = anyRateMin, anyRateMax
		}
		configs = append(configs, c)
	}

	if len(configs) == 0 {
		configs = append(configs, audiodev.SupportedConfig{
			MinSampleRate: anyRateMin,
			MaxSampleRate: anyRateMax,
			Channels:      defaultChannels,
			Format:        audiodev.FormatF32,
		})
	}
	return configs
}

func sampleFormat(f malgo.FormatType) audiodev.SampleFormat {
	switch f {
	case malgo.FormatU8:
		return audiodev.FormatU8
	case malgo.FormatS16:
		return audiodev.FormatS16
	case malgo.FormatS24:
		return audiodev.FormatS24
	case malgo.FormatS32:
		return audiodev.FormatS32
	case malgo.FormatF32:
		return audiodev.FormatF32
	default:
		return audiodev.FormatUnknown
	}
}

// lookup returns the cached malgo info for a device, enumerating if needed.
func (h *Host) lookup(dev *audiodev.Device) (malgo.DeviceInfo, error) {
	h.mu.Lock()
	info, ok := h.infos[dev.Role][dev.ID]
	h.mu.Unlock()
	if ok {
		return info, nil
	}

	if _, err := h.Devices(dev.Role); err != nil {
		return malgo.DeviceInfo{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if info, ok := h.infos[dev.Role][dev.ID]; ok {
		return info, nil
	}
	return malgo.DeviceInfo{}, errors.New(audiodev.ErrDeviceNotFound).
		Component(componentName).
		Category(errors.CategoryNotFound).
		Context("device_name", dev.Name).
		Context("device_id", dev.ID).
		Build()
}

// Close uninitializes every stream and the miniaudio context
func (h *Host) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	streams := h.streams
	h.streams = nil
	h.mu.Unlock()

	var errs []error
	for _, s := range streams {
		errs = append(errs, s.Close())
	}

	if err := h.ctx.Uninit(); err != nil {
		errs = append(errs, errors.New(err).
			Component(componentName).
			Category(errors.CategoryAudio).
			Context("operation", "uninit_context").
			Build())
	}
	h.ctx.Free()

	return errors.Join(errs...)
}

// hexToASCII converts a hexadecimal string to an ASCII string
func hexToASCII(hexStr string) (string, error) {
	bytes, err := hex.DecodeString(hexStr)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(bytes), "\x00"), nil
}

var _ audiodev.Host = (*Host)(nil)
