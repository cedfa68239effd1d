// Package config implements the command that prints the effective settings
package config

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/audioloop/internal/conf"
)

// Command creates the config command
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective settings as YAML",
		Long:  "Print the settings resolved from defaults, AUDIOLOOP_* environment variables and flags. Secrets are redacted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return conf.Dump(cmd.OutOrStdout(), settings)
		},
	}
}
