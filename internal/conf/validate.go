// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"net/url"
	"slices"

	"github.com/tphakala/audioloop/internal/logger"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	for _, validate := range []func(*Settings) []string{
		validateAudioSettings,
		validateBufferSettings,
		validateLogSettings,
		validateTelemetrySettings,
	} {
		ve.Errors = append(ve.Errors, validate(settings)...)
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// validateAudioSettings validates backend, policy and stream format settings
func validateAudioSettings(settings *Settings) []string {
	var errs []string
	audio := &settings.Audio

	if !slices.Contains([]string{BackendMalgo, BackendNull}, audio.Backend) {
		errs = append(errs, fmt.Sprintf("audio.backend must be %q or %q, got %q", BackendMalgo, BackendNull, audio.Backend))
	}

	if audio.OutputBackend != "" && !slices.Contains([]string{BackendMalgo, BackendNull, BackendOto}, audio.OutputBackend) {
		errs = append(errs, fmt.Sprintf("audio.output_backend must be empty, %q, %q or %q, got %q",
			BackendMalgo, BackendNull, BackendOto, audio.OutputBackend))
	}

	if !slices.Contains([]string{PolicyFirstMaxRate, PolicyHighestRate, PolicyPreferredRate}, audio.ConfigPolicy) {
		errs = append(errs, fmt.Sprintf("audio.config_policy %q is not a known policy", audio.ConfigPolicy))
	}

	if audio.ConfigPolicy == PolicyPreferredRate &&
		(audio.PreferredSampleRate < MinSampleRate || audio.PreferredSampleRate > MaxSampleRate) {
		errs = append(errs, fmt.Sprintf("audio.preferred_sample_rate must be between %d and %d, got %d",
			MinSampleRate, MaxSampleRate, audio.PreferredSampleRate))
	}

	if audio.PeriodFrames != 0 && (audio.PeriodFrames < MinPeriodFrames || audio.PeriodFrames > MaxPeriodFrames) {
		errs = append(errs, fmt.Sprintf("audio.period_frames must be 0 or between %d and %d, got %d",
			MinPeriodFrames, MaxPeriodFrames, audio.PeriodFrames))
	}

	if !slices.Contains([]string{MismatchReject, MismatchMatchCapture}, audio.Mismatch) {
		errs = append(errs, fmt.Sprintf("audio.mismatch must be %q or %q, got %q", MismatchReject, MismatchMatchCapture, audio.Mismatch))
	}

	return errs
}

// validateBufferSettings checks the ring sizing
func validateBufferSettings(settings *Settings) []string {
	var errs []string
	buf := &settings.Buffer

	if buf.CapacityMS < MinBufferMS || buf.CapacityMS > MaxBufferMS {
		errs = append(errs, fmt.Sprintf("buffer.capacity_ms must be between %d and %d, got %d", MinBufferMS, MaxBufferMS, buf.CapacityMS))
	}

	if buf.PrefillMS < 0 || buf.PrefillMS >= buf.CapacityMS {
		errs = append(errs, fmt.Sprintf("buffer.prefill_ms must be at least 0 and below buffer.capacity_ms (%d), got %d",
			buf.CapacityMS, buf.PrefillMS))
	}

	return errs
}

func validateLogSettings(settings *Settings) []string {
	var errs []string

	if !logger.ValidLevel(settings.Log.Level) {
		errs = append(errs, fmt.Sprintf("log.level %q is not a valid level", settings.Log.Level))
	}
	if settings.Log.MaxSizeMB < 0 {
		errs = append(errs, "log.max_size_mb must not be negative")
	}
	if settings.Log.MaxFiles < 0 {
		errs = append(errs, "log.max_files must not be negative")
	}

	return errs
}

// validateTelemetrySettings checks the metrics listener and sentry DSN
func validateTelemetrySettings(settings *Settings) []string {
	var errs []string

	if settings.Telemetry.Listen != "" {
		if _, _, err := net.SplitHostPort(settings.Telemetry.Listen); err != nil {
			errs = append(errs, fmt.Sprintf("telemetry.listen must be host:port: %v", err))
		}
	}

	if settings.Telemetry.StatsInterval < 0 {
		errs = append(errs, "telemetry.stats_interval must not be negative")
	}

	if settings.Sentry.DSN != "" {
		// Never echo the DSN, it carries a key
		u, err := url.Parse(settings.Sentry.DSN)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			errs = append(errs, "sentry.dsn is not a valid http(s) URL")
		}
	}

	return errs
}
