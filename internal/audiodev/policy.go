package audiodev

import (
	"fmt"

	"github.com/tphakala/audioloop/internal/errors"
)

// ConfigPolicy picks a StreamConfig from a device's enumerated ranges.
// It returns false when no range is acceptable.
type ConfigPolicy func(configs []SupportedConfig) (StreamConfig, bool)

// Policy names accepted by PolicyByName
const (
	PolicyFirstMaxRate  = "first-max-rate"
	PolicyHighestRate   = "highest-rate"
	PolicyPreferredRate = "preferred-rate"
)

// FirstMaxRate takes the first usable range at its maximum rate.
func FirstMaxRate(configs []SupportedConfig) (StreamConfig, bool) {
	for _, c := range configs {
		if usable(c) {
			return atMax(c), true
		}
	}
	return StreamConfig{}, false
}

// HighestRate takes the usable range with the highest maximum rate,
// earliest on ties.
func HighestRate(configs []SupportedConfig) (StreamConfig, bool) {
	best := -1
	for i, c := range configs {
		if !usable(c) {
			continue
		}
		if best < 0 || c.MaxSampleRate > configs[best].MaxSampleRate {
			best = i
		}
	}
	if best < 0 {
		return StreamConfig{}, false
	}
	return atMax(configs[best]), true
}

// PreferredRate takes the first usable range containing hz at exactly hz,
// falling back to FirstMaxRate.
func PreferredRate(hz uint32) ConfigPolicy {
	return func(configs []SupportedConfig) (StreamConfig, bool) {
		for _, c := range configs {
			if usable(c) && c.Contains(hz) {
				return StreamConfig{SampleRate: hz, Channels: c.Channels, Format: c.Format}, true
			}
		}
		return FirstMaxRate(configs)
	}
}

// usable rejects ranges a stream cannot be opened with.
func usable(c SupportedConfig) bool {
	return c.MaxSampleRate > 0 && c.Channels >= 1 && c.MinSampleRate <= c.MaxSampleRate
}

func atMax(c SupportedConfig) StreamConfig {
	return StreamConfig{SampleRate: c.MaxSampleRate, Channels: c.Channels, Format: c.Format}
}

// PolicyByName returns the named policy. preferredRate is only used by
// preferred-rate. An empty name selects first-max-rate.
func PolicyByName(name string, preferredRate uint32) (ConfigPolicy, error) {
	switch name {
	case "", PolicyFirstMaxRate:
		return FirstMaxRate, nil
	case PolicyHighestRate:
		return HighestRate, nil
	case PolicyPreferredRate:
		if preferredRate == 0 {
			return nil, errors.New(fmt.Errorf("policy %s needs a sample rate", name)).
				Component(componentName).
				Category(errors.CategoryConfiguration).
				Context("policy", name).
				Build()
		}
		return PreferredRate(preferredRate), nil
	default:
		return nil, errors.New(fmt.Errorf("unknown config policy %q", name)).
			Component(componentName).
			Category(errors.CategoryConfiguration).
			Context("policy", name).
			Build()
	}
}
