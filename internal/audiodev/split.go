package audiodev

import (
	"github.com/tphakala/audioloop/internal/errors"
)

// SplitHost captures from In and plays back on Out. It lets a capture-only
// subsystem pair with a playback-only one.
type SplitHost struct {
	In  Host
	Out Host
}

// NewSplitHost returns in unchanged when both roles use the same host.
func NewSplitHost(in, out Host) Host {
	if in == out {
		return in
	}
	return &SplitHost{In: in, Out: out}
}

func (h *SplitHost) Name() string {
	return h.In.Name() + "+" + h.Out.Name()
}

func (h *SplitHost) Devices(role Role) ([]Device, error) {
	if role == Input {
		return h.In.Devices(role)
	}
	return h.Out.Devices(role)
}

func (h *SplitHost) OpenInput(dev *Device, cfg StreamConfig, data CaptureFunc, onErr ErrorFunc) (Stream, error) {
	return h.In.OpenInput(dev, cfg, data, onErr)
}

func (h *SplitHost) OpenOutput(dev *Device, cfg StreamConfig, data PlaybackFunc, onErr ErrorFunc) (Stream, error) {
	return h.Out.OpenOutput(dev, cfg, data, onErr)
}

// Close closes both hosts and joins their errors
func (h *SplitHost) Close() error {
	return errors.Join(h.In.Close(), h.Out.Close())
}
