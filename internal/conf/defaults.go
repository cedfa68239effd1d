// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("audio.backend", BackendMalgo)
	viper.SetDefault("audio.output_backend", "")
	viper.SetDefault("audio.input", "default")
	viper.SetDefault("audio.output", "default")
	viper.SetDefault("audio.config_policy", PolicyFirstMaxRate)
	viper.SetDefault("audio.preferred_sample_rate", 48000)
	viper.SetDefault("audio.period_frames", 0)
	viper.SetDefault("audio.mismatch", MismatchReject)

	viper.SetDefault("buffer.capacity_ms", 200)
	viper.SetDefault("buffer.prefill_ms", 20)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.file", "")
	viper.SetDefault("log.max_size_mb", 10)
	viper.SetDefault("log.max_files", 5)

	viper.SetDefault("telemetry.listen", "")
	viper.SetDefault("telemetry.stats_interval", 10*time.Second)

	viper.SetDefault("sentry.dsn", "")
}

// SetDefaults registers the defaults with viper so command flags can show
// them in their help text before settings are loaded.
func SetDefaults() {
	setDefaultConfig()
}
