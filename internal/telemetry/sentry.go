// Package telemetry enables optional Sentry error reporting
package telemetry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/audioloop/internal/errors"
	"github.com/tphakala/audioloop/internal/logger"
)

// FlushTimeout bounds how long shutdown waits for queued events
const FlushTimeout = 2 * time.Second

// Options configures Sentry reporting. Reporting is off when DSN is empty.
type Options struct {
	DSN       string
	Release   string
	SessionID string
	Debug     bool

	// Transport replaces the HTTP transport, used by tests
	Transport sentry.Transport
}

func getLogger() logger.Logger {
	return logger.Global().Module("telemetry")
}

// InitSentry initializes the Sentry SDK and routes built EnhancedErrors to
// it. The returned function detaches the reporter and flushes pending
// events; it is never nil.
func InitSentry(opts Options) (func(), error) {
	if opts.DSN == "" {
		return func() {}, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              opts.DSN,
		SampleRate:       1.0,
		Debug:            opts.Debug,
		AttachStacktrace: false,
		Environment:      "production",
		ServerName:       "",
		Release:          "audioloop@" + opts.Release,
		Transport:        opts.Transport,
		BeforeSend:       beforeSend,
	})
	if err != nil {
		return func() {}, fmt.Errorf("sentry initialization failed: %w", err)
	}

	tags := map[string]string{}
	if opts.SessionID != "" {
		tags["session_id"] = opts.SessionID
	}
	errors.SetTelemetryReporter(errors.NewSentryReporter(true, tags))

	getLogger().Info("sentry error reporting enabled",
		logger.String("release", opts.Release),
		logger.String("session_id", opts.SessionID))

	return func() {
		errors.SetTelemetryReporter(nil)
		sentry.Flush(FlushTimeout)
	}, nil
}

func beforeSend(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	return applyPrivacyFilters(event)
}

// applyPrivacyFilters strips host and user identifying data from an event
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}

	for k := range event.Extra {
		if k != "error_type" && k != "component" {
			delete(event.Extra, k)
		}
	}

	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}

	return event
}
