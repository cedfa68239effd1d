// config.go: This file contains the configuration for the audioloop application.
package conf

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/audioloop/internal/logger"
)

// AudioSettings selects the audio subsystem, devices and stream format
type AudioSettings struct {
	Backend             string `mapstructure:"backend" yaml:"backend"`                             // malgo or null
	OutputBackend       string `mapstructure:"output_backend" yaml:"output_backend"`               // empty to use Backend, or oto
	Input               string `mapstructure:"input" yaml:"input"`                                 // capture device name, "default" for system default
	Output              string `mapstructure:"output" yaml:"output"`                               // playback device name, "default" for system default
	ConfigPolicy        string `mapstructure:"config_policy" yaml:"config_policy"`                 // first-max-rate, highest-rate or preferred-rate
	PreferredSampleRate uint32 `mapstructure:"preferred_sample_rate" yaml:"preferred_sample_rate"` // used by preferred-rate
	PeriodFrames        uint32 `mapstructure:"period_frames" yaml:"period_frames"`                 // 0 for backend default
	Mismatch            string `mapstructure:"mismatch" yaml:"mismatch"`                           // reject or match-capture
}

// BufferSettings sizes the ring buffer between capture and playback
type BufferSettings struct {
	CapacityMS int `mapstructure:"capacity_ms" yaml:"capacity_ms"` // ring capacity in milliseconds of audio
	PrefillMS  int `mapstructure:"prefill_ms" yaml:"prefill_ms"`   // audio buffered before playback starts, 0 disables
}

// LogSettings controls console verbosity and the optional log file
type LogSettings struct {
	Level     string `mapstructure:"level" yaml:"level"`
	File      string `mapstructure:"file" yaml:"file"`               // empty disables file logging
	MaxSizeMB int    `mapstructure:"max_size_mb" yaml:"max_size_mb"` // rotate after this size, 0 disables
	MaxFiles  int    `mapstructure:"max_files" yaml:"max_files"`     // rotated files to keep
}

// TelemetrySettings controls periodic stats logging and the metrics endpoint
type TelemetrySettings struct {
	Listen        string        `mapstructure:"listen" yaml:"listen"`                 // host:port for /metrics, empty disables
	StatsInterval time.Duration `mapstructure:"stats_interval" yaml:"stats_interval"` // 0 disables periodic stats
}

// SentrySettings enables error reporting when DSN is set
type SentrySettings struct {
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// Settings contains all configuration options for audioloop.
type Settings struct {
	Debug     bool              `mapstructure:"debug" yaml:"debug"`
	Audio     AudioSettings     `mapstructure:"audio" yaml:"audio"`
	Buffer    BufferSettings    `mapstructure:"buffer" yaml:"buffer"`
	Log       LogSettings       `mapstructure:"log" yaml:"log"`
	Telemetry TelemetrySettings `mapstructure:"telemetry" yaml:"telemetry"`
	Sentry    SentrySettings    `mapstructure:"sentry" yaml:"sentry"`
}

// OutputBackendName returns the backend used for playback.
func (s *Settings) OutputBackendName() string {
	if s.Audio.OutputBackend == "" {
		return s.Audio.Backend
	}
	return s.Audio.OutputBackend
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads defaults, environment variables and bound flags into a validated
// Settings. There is no configuration file.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	GetLogger().Debug("settings loaded",
		logger.String("backend", settings.Audio.Backend),
		logger.String("output_backend", settings.OutputBackendName()),
		logger.Int("capacity_ms", settings.Buffer.CapacityMS))

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper sets defaults and binds environment variables.
func initViper() error {
	setDefaultConfig()
	return configureEnvironmentVariables()
}

// GetSettings returns the most recently loaded settings, or nil.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}
