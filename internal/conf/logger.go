// Package conf provides configuration management for audioloop.
package conf

import (
	"github.com/tphakala/audioloop/internal/logger"
)

// GetLogger returns the config package logger scoped to the config module.
// The logger is fetched from the global logger each time to ensure it uses
// the current centralized logger (which may be set after package init).
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}

// LoggingConfig maps the log settings onto a CentralLogger configuration.
// Console output goes to stderr so stdout only carries the device lines.
func (s *Settings) LoggingConfig() *logger.LoggingConfig {
	level := s.Log.Level
	if s.Debug {
		level = string(logger.LogLevelDebug)
	}

	cfg := &logger.LoggingConfig{
		DefaultLevel: level,
		Console: &logger.ConsoleOutput{
			Enabled: true,
			Level:   level,
			Stderr:  true,
		},
	}

	if s.Log.File != "" {
		cfg.FileOutput = &logger.FileOutput{
			Enabled:         true,
			Path:            s.Log.File,
			MaxSize:         s.Log.MaxSizeMB,
			MaxRotatedFiles: s.Log.MaxFiles,
			Level:           level,
		}
	}

	return cfg
}
