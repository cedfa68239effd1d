// Package devices implements the device listing command
package devices

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tphakala/audioloop/internal/audiodev"
	"github.com/tphakala/audioloop/internal/audiodev/backend"
	"github.com/tphakala/audioloop/internal/conf"
	"github.com/tphakala/audioloop/internal/logger"
)

// Command creates the devices command
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List capture and playback devices with their supported configs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			host, err := backend.Open(settings, nil)
			if err != nil {
				return err
			}
			defer func() {
				if err := host.Close(); err != nil {
					logger.Global().Module("devices").Warn("error closing audio host", logger.Error(err))
				}
			}()
			return List(cmd.OutOrStdout(), host)
		},
	}
}

// List writes the devices of host for both roles
func List(w io.Writer, host audiodev.Host) error {
	for i, role := range []audiodev.Role{audiodev.Input, audiodev.Output} {
		devs, err := host.Devices(role)
		if err != nil {
			return fmt.Errorf("error listing %s devices: %w", role, err)
		}

		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s devices (%s):\n", role, host.Name())
		if len(devs) == 0 {
			fmt.Fprintln(w, "  none")
			continue
		}
		for n, dev := range devs {
			marker := ""
			if dev.IsDefault {
				marker = " [default]"
			}
			fmt.Fprintf(w, "  %d: %s%s\n", n, dev.Name, marker)
			for _, cfg := range dev.Configs {
				fmt.Fprintf(w, "       %s\n", cfg)
			}
		}
	}
	return nil
}
