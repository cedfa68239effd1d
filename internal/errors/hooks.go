package errors

import "sync"

// ErrorHook observes every error built while reporting is active.
// Hooks run synchronously in Build and must not block.
type ErrorHook func(ee *EnhancedError)

var (
	hooksMu    sync.RWMutex
	errorHooks []ErrorHook
)

// AddErrorHook registers a hook and enables the reporting path in Build.
func AddErrorHook(hook ErrorHook) {
	if hook == nil {
		return
	}
	hooksMu.Lock()
	defer hooksMu.Unlock()
	errorHooks = append(errorHooks, hook)
	updateReportingState()
}

// ClearErrorHooks removes all registered hooks.
func ClearErrorHooks() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	errorHooks = nil
	updateReportingState()
}

// updateReportingState recomputes the fast-path flag. Caller holds hooksMu.
func updateReportingState() {
	reporter := GetTelemetryReporter()
	active := len(errorHooks) > 0 || (reporter != nil && reporter.IsEnabled())
	hasActiveReporting.Store(active)
}

// reportToTelemetry hands the error to hooks and the telemetry reporter.
func reportToTelemetry(ee *EnhancedError) {
	if !hasActiveReporting.Load() {
		return
	}

	hooksMu.RLock()
	hooks := errorHooks
	hooksMu.RUnlock()
	for _, hook := range hooks {
		hook(ee)
	}

	if reporter := GetTelemetryReporter(); reporter != nil && reporter.IsEnabled() {
		reporter.ReportError(ee)
	}
}
