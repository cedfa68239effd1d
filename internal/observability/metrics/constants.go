// Package metrics provides constants used across metric definitions.
package metrics

import "time"

// Namespace prefixes every metric name.
const Namespace = "audioloop"

// Operation names recorded through Recorder.
const (
	// OpConfigure is device resolution and stream opening.
	OpConfigure = "configure"
	// OpStart is starting both streams.
	OpStart = "start"
	// OpStop is stopping, quiescing and closing both streams.
	OpStop = "stop"
	// OpRestart is restarting a stream that stopped on its own.
	OpRestart = "restart"
	// OpStream is the asynchronous stream error path.
	OpStream = "stream"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Histogram bucket configuration constants.
const (
	// BucketStart1ms is the starting bucket for 1ms histograms (1ms to ~4s range).
	BucketStart1ms = 0.001
	// BucketFactor2 is the common exponential growth factor of 2 for histogram buckets.
	BucketFactor2 = 2
	// BucketCount12 defines 12 exponential buckets.
	BucketCount12 = 12
)

// ShutdownTimeout is the timeout for graceful shutdown operations.
const ShutdownTimeout = 5 * time.Second
