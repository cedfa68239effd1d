package audiodev

import (
	"github.com/tphakala/audioloop/internal/errors"
)

// Sentinel errors, matched with errors.Is through the enhanced wrappers.
var (
	ErrNoDeviceAvailable = errors.NewStd("no audio device available")
	ErrNoSupportedConfig = errors.NewStd("device has no supported stream config")
	ErrDeviceNotFound    = errors.NewStd("audio device not found")
	ErrUnsupportedRole   = errors.NewStd("host does not support this role")
	ErrStreamClosed      = errors.NewStd("stream is closed")
	ErrStreamStopped     = errors.NewStd("stream stopped unexpectedly")
)

const componentName = "audiodev"
