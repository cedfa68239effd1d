// Package metrics provides custom Prometheus metrics for audioloop.
package metrics

// Recorder defines a minimal interface for recording metrics.
// Components depend on it instead of concrete metric types.
type Recorder interface {
	// RecordOperation records an operation outcome, e.g. ("start", "success").
	RecordOperation(operation, status string)

	// RecordDuration records how long an operation took in seconds.
	RecordDuration(operation string, seconds float64)

	// RecordError records an error occurrence with its type.
	// The operation parameter describes where the error occurred.
	RecordError(operation, errorType string)
}

// NoOpRecorder discards everything.
type NoOpRecorder struct{}

func (NoOpRecorder) RecordOperation(string, string) {}
func (NoOpRecorder) RecordDuration(string, float64) {}
func (NoOpRecorder) RecordError(string, string) {}

var (
	_ Recorder = NoOpRecorder{}
	_ Recorder = (*LoopbackMetrics)(nil)
)
