// Package observability serves Prometheus metrics for audioloop.
package observability

import (
	"fmt"
	stdlog "log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tphakala/audioloop/internal/errors"
	"github.com/tphakala/audioloop/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry *prometheus.Registry
	Loopback *metrics.LoopbackMetrics
}

// NewMetrics creates a registry with the loopback collector and the Go
// runtime and process collectors. source may be nil and set later through
// Loopback.SetSource.
func NewMetrics(source metrics.StatsSource) (*Metrics, error) {
	registry := prometheus.NewRegistry()

	loopbackMetrics, err := metrics.NewLoopbackMetrics(registry, source)
	if err != nil {
		return nil, fmt.Errorf("failed to create loopback metrics: %w", err)
	}

	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register Go collector: %w", err)
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("failed to register process collector: %w", err)
	}

	return &Metrics{
		registry: registry,
		Loopback: loopbackMetrics,
	}, nil
}

// Registry returns the registry backing the metrics endpoint
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// CountErrors registers an error hook that counts every built error by
// component and category.
func (m *Metrics) CountErrors() {
	errors.AddErrorHook(func(ee *errors.EnhancedError) {
		m.Loopback.RecordError(ee.GetComponent(), ee.GetCategory())
	})
}

// RegisterHandlers registers the metrics endpoint with the provided http.ServeMux.
func (m *Metrics) RegisterHandlers(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      stdlog.New(os.Stderr, "metrics handler: ", stdlog.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	}))
}
