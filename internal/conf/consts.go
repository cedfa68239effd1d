// conf/consts.go hard coded constants
package conf

// Audio backends
const (
	BackendMalgo = "malgo" // miniaudio: ALSA, WASAPI or CoreAudio by platform
	BackendNull  = "null"  // simulated devices, for dry runs
	BackendOto   = "oto"   // playback only, usable as audio.output_backend
)

// Stream config selection policies
const (
	PolicyFirstMaxRate  = "first-max-rate"
	PolicyHighestRate   = "highest-rate"
	PolicyPreferredRate = "preferred-rate"
)

// Sample rate / channel mismatch handling between capture and playback
const (
	MismatchReject       = "reject"
	MismatchMatchCapture = "match-capture"
)

const (
	EnvPrefix = "AUDIOLOOP"

	MinSampleRate = 8000
	MaxSampleRate = 384000

	MinPeriodFrames = 16
	MaxPeriodFrames = 8192

	MinBufferMS = 10
	MaxBufferMS = 5000
)
