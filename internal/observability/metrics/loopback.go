// Package metrics provides loopback metrics for observability
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tphakala/audioloop/internal/loopback"
)

// StatsSource provides loopback counter snapshots. loopback.Manager
// implements it.
type StatsSource interface {
	Stats() loopback.Stats
}

// LoopbackMetrics exports loopback counters and records lifecycle
// operations. Counters owned by the real-time callbacks are read from a
// Stats snapshot at scrape time, so the callbacks never touch Prometheus.
type LoopbackMetrics struct {
	mu     sync.RWMutex
	source StatsSource

	capturedFrames *prometheus.Desc
	playedFrames   *prometheus.Desc
	overflows      *prometheus.Desc
	overflowFrames *prometheus.Desc
	underruns      *prometheus.Desc
	silenceFrames  *prometheus.Desc
	droppedFrames  *prometheus.Desc
	callbacks      *prometheus.Desc
	bufferedFrames *prometheus.Desc
	capacityFrames *prometheus.Desc
	streamErrors   *prometheus.Desc
	journalDropped *prometheus.Desc
	restarts       *prometheus.Desc
	state          *prometheus.Desc
	uptime         *prometheus.Desc

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	errorsTotal       *prometheus.CounterVec
}

// NewLoopbackMetrics creates and registers loopback metrics. source may be
// nil until SetSource is called; nothing is exported from it until then.
func NewLoopbackMetrics(registry *prometheus.Registry, source StatsSource) (*LoopbackMetrics, error) {
	m := &LoopbackMetrics{source: source}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	log.Debug("loopback metrics registered")
	return m, nil
}

func desc(name, help string, labels ...string) *prometheus.Desc {
	return prometheus.NewDesc(prometheus.BuildFQName(Namespace, "loopback", name), help, labels, nil)
}

// initMetrics initializes all Prometheus metrics
func (m *LoopbackMetrics) initMetrics() {
	m.capturedFrames = desc("captured_frames_total", "Frames delivered by the capture device")
	m.playedFrames = desc("played_frames_total", "Frames read from the ring by playback")
	m.overflows = desc("overflows_total", "Capture blocks that displaced unread frames")
	m.overflowFrames = desc("overflow_frames_total", "Unread frames displaced by capture overflows")
	m.underruns = desc("underruns_total", "Playback callbacks that came up short")
	m.silenceFrames = desc("silence_frames_total", "Frames of silence written by playback")
	m.droppedFrames = desc("dropped_frames_total", "Frames the ring discarded before playback read them")
	m.callbacks = desc("callbacks_total", "Device callbacks by role", "role")
	m.bufferedFrames = desc("buffered_frames", "Frames currently buffered in the ring")
	m.capacityFrames = desc("capacity_frames", "Ring capacity in frames")
	m.streamErrors = desc("stream_errors_total", "Asynchronous stream errors reported by the audio host")
	m.journalDropped = desc("journal_dropped_total", "Stream errors lost because the event journal was full or busy")
	m.restarts = desc("restarts_total", "Streams restarted after stopping on their own")
	m.state = desc("state", "Lifecycle state, 1 for the current one", "state")
	m.uptime = desc("uptime_seconds", "Time since the streams were started")

	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "loopback",
			Name:      "operations_total",
			Help:      "Lifecycle operations by outcome",
		},
		[]string{"operation", "status"},
	)

	m.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "loopback",
			Name:      "operation_duration_seconds",
			Help:      "Time taken by lifecycle operations",
			Buckets:   prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12),
		},
		[]string{"operation"},
	)

	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Errors by component and category",
		},
		[]string{"component", "category"},
	)
}

// SetSource sets the stats source read at scrape time
func (m *LoopbackMetrics) SetSource(source StatsSource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.source = source
}

// Describe implements the prometheus.Collector interface
func (m *LoopbackMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		m.capturedFrames, m.playedFrames, m.overflows, m.overflowFrames,
		m.underruns, m.silenceFrames, m.droppedFrames, m.callbacks,
		m.bufferedFrames, m.capacityFrames, m.streamErrors, m.journalDropped,
		m.restarts, m.state, m.uptime,
	} {
		ch <- d
	}
	m.operationsTotal.Describe(ch)
	m.operationDuration.Describe(ch)
	m.errorsTotal.Describe(ch)
}

// Collect implements the prometheus.Collector interface
func (m *LoopbackMetrics) Collect(ch chan<- prometheus.Metric) {
	m.operationsTotal.Collect(ch)
	m.operationDuration.Collect(ch)
	m.errorsTotal.Collect(ch)

	m.mu.RLock()
	source := m.source
	m.mu.RUnlock()
	if source == nil {
		return
	}
	s := source.Stats()

	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}

	counter(m.capturedFrames, s.CapturedFrames)
	counter(m.playedFrames, s.PlayedFrames)
	counter(m.overflows, s.Overflows)
	counter(m.overflowFrames, s.OverflowFrames)
	counter(m.underruns, s.Underruns)
	counter(m.silenceFrames, s.SilenceFrames)
	counter(m.droppedFrames, s.DroppedFrames)
	counter(m.callbacks, s.CaptureCallbacks, "input")
	counter(m.callbacks, s.PlaybackCallbacks, "output")
	counter(m.streamErrors, s.StreamErrors)
	counter(m.journalDropped, s.JournalDropped)
	counter(m.restarts, s.Restarts)

	gauge(m.bufferedFrames, float64(s.BufferedFrames))
	gauge(m.capacityFrames, float64(s.CapacityFrames))
	gauge(m.uptime, s.Uptime.Seconds())
	for _, st := range []loopback.State{
		loopback.StateUninitialized, loopback.StateConfigured,
		loopback.StateRunning, loopback.StateStopped,
	} {
		v := 0.0
		if st == s.State {
			v = 1
		}
		gauge(m.state, v, st.String())
	}
}

// RecordOperation records a lifecycle operation outcome
func (m *LoopbackMetrics) RecordOperation(operation, status string) {
	m.operationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDuration records how long a lifecycle operation took
func (m *LoopbackMetrics) RecordDuration(operation string, seconds float64) {
	m.operationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordError counts an error under its component and category
func (m *LoopbackMetrics) RecordError(component, category string) {
	m.errorsTotal.WithLabelValues(component, category).Inc()
}
