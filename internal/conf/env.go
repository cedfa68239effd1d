// env.go - Environment variable configuration and validation for audioloop
package conf

import (
	"fmt"
	"net"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/audioloop/internal/logger"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "AUDIOLOOP_DEBUG", validateEnvBool},

		// Audio
		{"audio.backend", "AUDIOLOOP_AUDIO_BACKEND", validateEnvOneOf(BackendMalgo, BackendNull)},
		{"audio.output_backend", "AUDIOLOOP_AUDIO_OUTPUT_BACKEND", validateEnvOneOf(BackendMalgo, BackendNull, BackendOto)},
		{"audio.input", "AUDIOLOOP_AUDIO_INPUT", nil},
		{"audio.output", "AUDIOLOOP_AUDIO_OUTPUT", nil},
		{"audio.config_policy", "AUDIOLOOP_AUDIO_CONFIG_POLICY", validateEnvOneOf(PolicyFirstMaxRate, PolicyHighestRate, PolicyPreferredRate)},
		{"audio.preferred_sample_rate", "AUDIOLOOP_AUDIO_PREFERRED_SAMPLE_RATE", validateEnvIntRange(MinSampleRate, MaxSampleRate)},
		{"audio.period_frames", "AUDIOLOOP_AUDIO_PERIOD_FRAMES", validateEnvIntRange(0, MaxPeriodFrames)},
		{"audio.mismatch", "AUDIOLOOP_AUDIO_MISMATCH", validateEnvOneOf(MismatchReject, MismatchMatchCapture)},

		// Ring buffer
		{"buffer.capacity_ms", "AUDIOLOOP_BUFFER_CAPACITY_MS", validateEnvIntRange(MinBufferMS, MaxBufferMS)},
		{"buffer.prefill_ms", "AUDIOLOOP_BUFFER_PREFILL_MS", validateEnvIntRange(0, MaxBufferMS)},

		// Logging
		{"log.level", "AUDIOLOOP_LOG_LEVEL", validateEnvLogLevel},
		{"log.file", "AUDIOLOOP_LOG_FILE", nil},
		{"log.max_size_mb", "AUDIOLOOP_LOG_MAX_SIZE_MB", validateEnvIntRange(0, 1024)},
		{"log.max_files", "AUDIOLOOP_LOG_MAX_FILES", validateEnvIntRange(0, 100)},

		// Telemetry
		{"telemetry.listen", "AUDIOLOOP_TELEMETRY_LISTEN", validateEnvListen},
		{"telemetry.stats_interval", "AUDIOLOOP_TELEMETRY_STATS_INTERVAL", validateEnvDuration},
		{"sentry.dsn", "AUDIOLOOP_SENTRY_DSN", nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars() error {
	bindings := getEnvBindings()
	var warnings []string

	for _, binding := range bindings {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

// Environment variable validation functions

// validateEnvBool validates boolean environment variables
func validateEnvBool(value string) error {
	_, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f, TRUE/FALSE, T/F", value)
	}
	return nil
}

func validateEnvOneOf(allowed ...string) func(string) error {
	return func(value string) error {
		if !slices.Contains(allowed, value) {
			return fmt.Errorf("must be one of %s", strings.Join(allowed, ", "))
		}
		return nil
	}
}

func validateEnvIntRange(lo, hi int) func(string) error {
	return func(value string) error {
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		if n < lo || n > hi {
			return fmt.Errorf("must be between %d and %d, got %d", lo, hi, n)
		}
		return nil
	}
}

func validateEnvLogLevel(value string) error {
	if !logger.ValidLevel(value) {
		return fmt.Errorf("must be one of trace, debug, info, warn, error")
	}
	return nil
}

func validateEnvListen(value string) error {
	if _, _, err := net.SplitHostPort(value); err != nil {
		return fmt.Errorf("expected host:port: %w", err)
	}
	return nil
}

func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	if d < 0 {
		return fmt.Errorf("duration must not be negative, got %s", d)
	}
	return nil
}

// configureEnvironmentVariables sets up environment variable support for Viper
func configureEnvironmentVariables() error {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return bindEnvVars()
}
