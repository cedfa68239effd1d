package conf

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() *Settings {
	return &Settings{
		Audio: AudioSettings{
			Backend:             BackendMalgo,
			Input:               "default",
			Output:              "default",
			ConfigPolicy:        PolicyFirstMaxRate,
			PreferredSampleRate: 48000,
			Mismatch:            MismatchReject,
		},
		Buffer:    BufferSettings{CapacityMS: 200, PrefillMS: 20},
		Log:       LogSettings{Level: "info", MaxSizeMB: 10, MaxFiles: 5},
		Telemetry: TelemetrySettings{StatsInterval: 10 * time.Second},
	}
}

func TestValidateSettings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{"defaults are valid", func(*Settings) {}, ""},
		{"oto output", func(s *Settings) { s.Audio.OutputBackend = BackendOto }, ""},
		{"oto as input backend", func(s *Settings) { s.Audio.Backend = BackendOto }, "audio.backend"},
		{"unknown output backend", func(s *Settings) { s.Audio.OutputBackend = "pulse" }, "audio.output_backend"},
		{"unknown policy", func(s *Settings) { s.Audio.ConfigPolicy = "loudest" }, "audio.config_policy"},
		{"preferred rate out of range", func(s *Settings) {
			s.Audio.ConfigPolicy = PolicyPreferredRate
			s.Audio.PreferredSampleRate = 1000
		}, "audio.preferred_sample_rate"},
		{"preferred rate ignored by other policies", func(s *Settings) { s.Audio.PreferredSampleRate = 1 }, ""},
		{"period too small", func(s *Settings) { s.Audio.PeriodFrames = 8 }, "audio.period_frames"},
		{"period at bound", func(s *Settings) { s.Audio.PeriodFrames = MaxPeriodFrames }, ""},
		{"unknown mismatch", func(s *Settings) { s.Audio.Mismatch = "resample" }, "audio.mismatch"},
		{"capacity too small", func(s *Settings) { s.Buffer.CapacityMS = 5 }, "buffer.capacity_ms"},
		{"prefill equals capacity", func(s *Settings) { s.Buffer.PrefillMS = 200 }, "buffer.prefill_ms"},
		{"prefill disabled", func(s *Settings) { s.Buffer.PrefillMS = 0 }, ""},
		{"bad log level", func(s *Settings) { s.Log.Level = "loud" }, "log.level"},
		{"negative max files", func(s *Settings) { s.Log.MaxFiles = -1 }, "log.max_files"},
		{"listen without port", func(s *Settings) { s.Telemetry.Listen = "localhost" }, "telemetry.listen"},
		{"listen any interface", func(s *Settings) { s.Telemetry.Listen = ":9090" }, ""},
		{"negative stats interval", func(s *Settings) { s.Telemetry.StatsInterval = -time.Second }, "telemetry.stats_interval"},
		{"dsn not a url", func(s *Settings) { s.Sentry.DSN = "secret-token" }, "sentry.dsn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := validSettings()
			tt.mutate(s)
			err := ValidateSettings(s)

			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}

			var ve ValidationError
			require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
			require.Len(t, ve.Errors, 1)
			assert.Contains(t, ve.Errors[0], tt.wantErr)
		})
	}
}

func TestValidateSettingsCollectsAllErrors(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.Audio.Backend = ""
	s.Audio.Mismatch = ""
	s.Buffer.CapacityMS = 0

	var ve ValidationError
	require.ErrorAs(t, ValidateSettings(s), &ve)
	// prefill 20 >= capacity 0 is reported too
	assert.Len(t, ve.Errors, 4)
}

func TestValidateSettingsNeverEchoesDSN(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.Sentry.DSN = "ftp://secretkey@example.com/1"

	err := ValidateSettings(s)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secretkey")
}

func TestEnvValidators(t *testing.T) {
	t.Parallel()

	assert.NoError(t, validateEnvBool("TRUE"))
	assert.Error(t, validateEnvBool("yes"))

	oneOf := validateEnvOneOf(BackendMalgo, BackendNull)
	assert.NoError(t, oneOf("null"))
	assert.Error(t, oneOf("alsa"))

	rng := validateEnvIntRange(10, 20)
	assert.NoError(t, rng("10"))
	assert.Error(t, rng("21"))
	assert.Error(t, rng("ten"))

	assert.NoError(t, validateEnvLogLevel("warning"))
	assert.Error(t, validateEnvLogLevel("chatty"))

	assert.NoError(t, validateEnvListen("127.0.0.1:9090"))
	assert.Error(t, validateEnvListen("9090"))

	assert.NoError(t, validateEnvDuration("250ms"))
	assert.Error(t, validateEnvDuration("-1s"))
	assert.Error(t, validateEnvDuration("soon"))
}

func TestEnvBindingsCoverAllDefaults(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for _, b := range getEnvBindings() {
		assert.False(t, seen[b.ConfigKey], "duplicate binding for %s", b.ConfigKey)
		seen[b.ConfigKey] = true
	}

	for _, key := range []string{
		"audio.backend", "audio.input", "audio.output", "audio.mismatch",
		"buffer.capacity_ms", "buffer.prefill_ms", "log.level", "telemetry.listen", "sentry.dsn",
	} {
		assert.True(t, seen[key], "missing env binding for %s", key)
	}
}
