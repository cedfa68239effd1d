// Package backend opens the audio hosts named in the settings
package backend

import (
	"fmt"

	"github.com/tphakala/audioloop/internal/audiodev"
	"github.com/tphakala/audioloop/internal/audiodev/malgo"
	"github.com/tphakala/audioloop/internal/audiodev/null"
	"github.com/tphakala/audioloop/internal/audiodev/oto"
	"github.com/tphakala/audioloop/internal/conf"
	"github.com/tphakala/audioloop/internal/errors"
	"github.com/tphakala/audioloop/internal/logger"
)

const componentName = "audiodev"

// Open returns the host for audio.backend, paired with a separate playback
// host when audio.output_backend names a different one.
func Open(settings *conf.Settings, log logger.Logger) (audiodev.Host, error) {
	if log == nil {
		log = logger.Global().Module(componentName)
	}

	in, err := open(settings.Audio.Backend, log)
	if err != nil {
		return nil, err
	}

	outName := settings.OutputBackendName()
	if outName == settings.Audio.Backend {
		return in, nil
	}

	out, err := open(outName, log)
	if err != nil {
		_ = in.Close()
		return nil, err
	}

	log.Debug("split audio host",
		logger.String("input_backend", settings.Audio.Backend),
		logger.String("output_backend", outName))
	return audiodev.NewSplitHost(in, out), nil
}

func open(name string, log logger.Logger) (audiodev.Host, error) {
	switch name {
	case conf.BackendMalgo:
		return malgo.New(log.Module(malgo.HostName))
	case conf.BackendNull:
		return null.New(), nil
	case conf.BackendOto:
		return oto.New(log.Module(oto.HostName)), nil
	default:
		return nil, errors.New(fmt.Errorf("unknown audio backend %q", name)).
			Component(componentName).
			Category(errors.CategoryConfiguration).
			Context("operation", "open_backend").
			Build()
	}
}

// Resolver builds a device resolver from the audio settings
func Resolver(host audiodev.Host, audio *conf.AudioSettings) (*audiodev.Resolver, error) {
	policy, err := audiodev.PolicyByName(audio.ConfigPolicy, audio.PreferredSampleRate)
	if err != nil {
		return nil, err
	}
	return audiodev.NewResolver(host,
		audiodev.WithInputName(audio.Input),
		audiodev.WithOutputName(audio.Output),
		audiodev.WithPolicy(policy),
		audiodev.WithPeriodFrames(audio.PeriodFrames),
	), nil
}
