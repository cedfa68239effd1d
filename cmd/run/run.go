// Package run implements the loopback command
package run

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/audioloop/internal/audiodev/backend"
	"github.com/tphakala/audioloop/internal/buildinfo"
	"github.com/tphakala/audioloop/internal/conf"
	"github.com/tphakala/audioloop/internal/logger"
	"github.com/tphakala/audioloop/internal/loopback"
	"github.com/tphakala/audioloop/internal/observability"
	"github.com/tphakala/audioloop/internal/telemetry"
)

// Command creates the run command
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Play captured audio on the output device until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Execute(ctx, settings, cmd.OutOrStdout())
		},
	}
}

// managerOptions maps settings onto loopback options
func managerOptions(settings *conf.Settings) (loopback.Options, error) {
	mismatch, err := loopback.ParseMismatchPolicy(settings.Audio.Mismatch)
	if err != nil {
		return loopback.Options{}, err
	}

	opts := loopback.DefaultOptions()
	opts.CapacityMS = settings.Buffer.CapacityMS
	opts.PrefillMS = settings.Buffer.PrefillMS
	opts.Mismatch = mismatch
	opts.StatsInterval = settings.Telemetry.StatsInterval
	return opts, nil
}

// Execute configures the loopback, prints the chosen devices to stdout and
// runs until ctx is done. The metrics endpoint runs alongside when
// telemetry.listen is set.
func Execute(ctx context.Context, settings *conf.Settings, stdout io.Writer) error {
	log := logger.Global().Module("run")

	opts, err := managerOptions(settings)
	if err != nil {
		return err
	}

	host, err := backend.Open(settings, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := host.Close(); err != nil {
			log.Warn("error closing audio host", logger.Error(err))
		}
	}()

	resolver, err := backend.Resolver(host, &settings.Audio)
	if err != nil {
		return err
	}

	var metrics *observability.Metrics
	if settings.Telemetry.Listen != "" {
		if metrics, err = observability.NewMetrics(nil); err != nil {
			return err
		}
		metrics.CountErrors()
		opts.Recorder = metrics.Loopback
	}

	manager := loopback.NewManager(resolver, host, opts, nil)

	flushTelemetry, err := telemetry.InitSentry(telemetry.Options{
		DSN:       settings.Sentry.DSN,
		Release:   buildinfo.Current().GetVersion(),
		SessionID: manager.SessionID(),
		Debug:     settings.Debug,
	})
	if err != nil {
		log.Warn("error reporting disabled", logger.Error(err))
	}
	defer flushTelemetry()

	if err := manager.Configure(); err != nil {
		return err
	}
	if metrics != nil {
		metrics.Loopback.SetSource(manager)
	}

	in, out := manager.Devices()
	fmt.Fprintf(stdout, "Input device: %s\n", in)
	fmt.Fprintf(stdout, "Output device: %s\n", out)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return manager.Run(gctx)
	})
	if metrics != nil {
		endpoint := observability.NewEndpoint(settings.Telemetry.Listen, metrics)
		g.Go(func() error {
			return endpoint.Run(gctx)
		})
	}
	return g.Wait()
}
