// Package cmd wires the audioloop command line
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/audioloop/cmd/config"
	"github.com/tphakala/audioloop/cmd/devices"
	"github.com/tphakala/audioloop/cmd/run"
	"github.com/tphakala/audioloop/internal/buildinfo"
	"github.com/tphakala/audioloop/internal/conf"
	"github.com/tphakala/audioloop/internal/logger"
)

// flagKeys maps persistent flags to their viper keys
var flagKeys = []struct{ flag, key string }{
	{"debug", "debug"},
	{"backend", "audio.backend"},
	{"output-backend", "audio.output_backend"},
	{"input", "audio.input"},
	{"output", "audio.output"},
	{"config-policy", "audio.config_policy"},
	{"sample-rate", "audio.preferred_sample_rate"},
	{"period-frames", "audio.period_frames"},
	{"mismatch", "audio.mismatch"},
	{"buffer-ms", "buffer.capacity_ms"},
	{"prefill-ms", "buffer.prefill_ms"},
	{"log-level", "log.level"},
	{"log-file", "log.file"},
	{"metrics-listen", "telemetry.listen"},
	{"stats-interval", "telemetry.stats_interval"},
}

// RootCommand creates and returns the root command. Without a subcommand it
// runs the loopback.
func RootCommand() *cobra.Command {
	settings := &conf.Settings{}

	rootCmd := &cobra.Command{
		Use:           "audioloop",
		Short:         "Real-time loopback from an audio input to an audio output",
		Version:       buildinfo.Current().String(),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set up the global flags for the root command.
	setupFlags(rootCmd)

	runCmd := run.Command(settings)
	rootCmd.RunE = runCmd.RunE

	rootCmd.AddCommand(
		runCmd,
		devices.Command(settings),
		config.Command(settings),
	)

	var central *logger.CentralLogger
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		loaded, err := conf.Load()
		if err != nil {
			return err
		}
		*settings = *loaded

		central, err = initialize(settings)
		return err
	}
	cobra.OnFinalize(func() {
		if central != nil {
			_ = central.Close()
		}
	})

	return rootCmd
}

// initialize replaces the bootstrap logger with one built from settings
func initialize(settings *conf.Settings) (*logger.CentralLogger, error) {
	central, err := logger.NewCentralLogger(settings.LoggingConfig())
	if err != nil {
		return nil, fmt.Errorf("error initializing logger: %w", err)
	}
	logger.SetGlobal(central)
	return central, nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command) {
	conf.SetDefaults()

	flags := rootCmd.PersistentFlags()
	flags.Bool("debug", viper.GetBool("debug"), "Enable debug logging")
	flags.String("backend", viper.GetString("audio.backend"), "Audio backend: malgo or null")
	flags.String("output-backend", viper.GetString("audio.output_backend"), "Playback backend when it differs from --backend: malgo, null or oto")
	flags.StringP("input", "i", viper.GetString("audio.input"), "Capture device name or \"default\"")
	flags.StringP("output", "o", viper.GetString("audio.output"), "Playback device name or \"default\"")
	flags.String("config-policy", viper.GetString("audio.config_policy"), "Stream config selection: first-max-rate, highest-rate or preferred-rate")
	flags.Uint32("sample-rate", viper.GetUint32("audio.preferred_sample_rate"), "Sample rate used by the preferred-rate policy")
	flags.Uint32("period-frames", viper.GetUint32("audio.period_frames"), "Callback period in frames, 0 for the backend default")
	flags.String("mismatch", viper.GetString("audio.mismatch"), "Capture/playback format mismatch handling: reject or match-capture")
	flags.Int("buffer-ms", viper.GetInt("buffer.capacity_ms"), "Ring buffer capacity in milliseconds")
	flags.Int("prefill-ms", viper.GetInt("buffer.prefill_ms"), "Audio buffered before playback starts, 0 disables")
	flags.String("log-level", viper.GetString("log.level"), "Log level: debug, info, warn or error")
	flags.String("log-file", viper.GetString("log.file"), "Also write logs to this file")
	flags.String("metrics-listen", viper.GetString("telemetry.listen"), "Serve Prometheus metrics on host:port")
	flags.Duration("stats-interval", viper.GetDuration("telemetry.stats_interval"), "Interval between stats log lines, 0 disables")

	for _, fk := range flagKeys {
		if err := viper.BindPFlag(fk.key, flags.Lookup(fk.flag)); err != nil {
			fmt.Fprintf(os.Stderr, "error binding flag %s: %v\n", fk.flag, err)
		}
	}
}
