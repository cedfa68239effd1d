package observability

import "github.com/tphakala/audioloop/internal/logger"

// Package-level cached logger instance for efficiency.
// All logging in this package should use this variable.
var log = logger.Global().Module("observability")
