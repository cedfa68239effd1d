package audiodev

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicies(t *testing.T) {
	t.Parallel()

	configs := []SupportedConfig{
		{MinSampleRate: 8000, MaxSampleRate: 44100, Channels: 2, Format: FormatS16},
		{MinSampleRate: 8000, MaxSampleRate: 96000, Channels: 1, Format: FormatS32},
		{MinSampleRate: 48000, MaxSampleRate: 96000, Channels: 2, Format: FormatF32},
	}

	tests := []struct {
		name   string
		policy ConfigPolicy
		want   StreamConfig
	}{
		{"first max rate", FirstMaxRate, StreamConfig{SampleRate: 44100, Channels: 2, Format: FormatS16}},
		{"highest rate takes earliest tie", HighestRate, StreamConfig{SampleRate: 96000, Channels: 1, Format: FormatS32}},
		{"preferred rate inside first range", PreferredRate(22050), StreamConfig{SampleRate: 22050, Channels: 2, Format: FormatS16}},
		{"preferred rate in later range", PreferredRate(48000), StreamConfig{SampleRate: 48000, Channels: 1, Format: FormatS32}},
		{"preferred rate falls back", PreferredRate(192000), StreamConfig{SampleRate: 44100, Channels: 2, Format: FormatS16}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := tt.policy(configs)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPoliciesRejectEmpty(t *testing.T) {
	t.Parallel()

	for _, p := range []ConfigPolicy{FirstMaxRate, HighestRate, PreferredRate(48000)} {
		_, ok := p(nil)
		assert.False(t, ok)
	}
}

func TestPoliciesSkipUnusableRanges(t *testing.T) {
	t.Parallel()

	zeroRate := SupportedConfig{MinSampleRate: 0, MaxSampleRate: 0, Channels: 2, Format: FormatF32}
	noChannels := SupportedConfig{MinSampleRate: 8000, MaxSampleRate: 192000, Channels: 0, Format: FormatF32}
	inverted := SupportedConfig{MinSampleRate: 96000, MaxSampleRate: 48000, Channels: 2, Format: FormatF32}
	good := SupportedConfig{MinSampleRate: 44100, MaxSampleRate: 48000, Channels: 2, Format: FormatF32}

	tests := []struct {
		name    string
		policy  ConfigPolicy
		configs []SupportedConfig
		want    StreamConfig
		wantOK  bool
	}{
		{"first max rate skips zero rate", FirstMaxRate, []SupportedConfig{zeroRate, good}, StreamConfig{SampleRate: 48000, Channels: 2, Format: FormatF32}, true},
		{"first max rate skips zero channels", FirstMaxRate, []SupportedConfig{noChannels, good}, StreamConfig{SampleRate: 48000, Channels: 2, Format: FormatF32}, true},
		{"highest rate ignores zero channel range", HighestRate, []SupportedConfig{good, noChannels}, StreamConfig{SampleRate: 48000, Channels: 2, Format: FormatF32}, true},
		{"highest rate skips inverted range", HighestRate, []SupportedConfig{inverted, good}, StreamConfig{SampleRate: 48000, Channels: 2, Format: FormatF32}, true},
		{"preferred rate skips zero channel match", PreferredRate(96000), []SupportedConfig{noChannels, good}, StreamConfig{SampleRate: 48000, Channels: 2, Format: FormatF32}, true},
		{"first max rate with only zero rate", FirstMaxRate, []SupportedConfig{zeroRate}, StreamConfig{}, false},
		{"highest rate with only zero rate", HighestRate, []SupportedConfig{zeroRate}, StreamConfig{}, false},
		{"preferred rate with nothing usable", PreferredRate(96000), []SupportedConfig{zeroRate, noChannels, inverted}, StreamConfig{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := tt.policy(tt.configs)
			require.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPolicyByName(t *testing.T) {
	t.Parallel()

	configs := []SupportedConfig{
		{MinSampleRate: 8000, MaxSampleRate: 44100, Channels: 2, Format: FormatF32},
		{MinSampleRate: 8000, MaxSampleRate: 48000, Channels: 2, Format: FormatF32},
	}

	for name, wantRate := range map[string]uint32{
		"":                  44100,
		PolicyFirstMaxRate:  44100,
		PolicyHighestRate:   48000,
		PolicyPreferredRate: 16000,
	} {
		p, err := PolicyByName(name, 16000)
		require.NoError(t, err, name)
		cfg, ok := p(configs)
		require.True(t, ok)
		assert.Equal(t, wantRate, cfg.SampleRate, name)
	}

	_, err := PolicyByName("loudest", 0)
	require.Error(t, err)

	_, err = PolicyByName(PolicyPreferredRate, 0)
	require.Error(t, err)
}

func TestSupportedConfigString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "48000 Hz, 2 ch, f32", SupportedConfig{MinSampleRate: 48000, MaxSampleRate: 48000, Channels: 2, Format: FormatF32}.String())
	assert.Equal(t, "8000-48000 Hz, 1 ch, s16", SupportedConfig{MinSampleRate: 8000, MaxSampleRate: 48000, Channels: 1, Format: FormatS16}.String())
	assert.Equal(t, "44100 Hz, 2 ch, f32, period default", StreamConfig{SampleRate: 44100, Channels: 2, Format: FormatF32}.String())
	assert.Equal(t, "input", Input.String())
	assert.Equal(t, "output", Output.String())
}
