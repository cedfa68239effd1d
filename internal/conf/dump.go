package conf

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

const redacted = "[REDACTED]"

// Dump writes the effective settings as YAML. Secrets are redacted.
func Dump(w io.Writer, settings *Settings) error {
	out := *settings
	if out.Sentry.DSN != "" {
		out.Sentry.DSN = redacted
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&out); err != nil {
		return fmt.Errorf("error encoding settings: %w", err)
	}
	return enc.Close()
}
