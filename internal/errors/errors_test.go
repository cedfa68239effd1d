package errors

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hooks and the reporter are package globals, so these tests do not run in parallel.

func TestFastPathNoTelemetry(t *testing.T) {
	SetTelemetryReporter(nil)
	ClearErrorHooks()

	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.False(t, ee.GetTimestamp().IsZero())
}

func TestBuilderSetsFields(t *testing.T) {
	ClearErrorHooks()

	ee := New(NewStd("open failed")).
		Component("audiodev").
		Category(CategoryAudioSource).
		Priority(PriorityHigh).
		Context("role", "input").
		Build()

	assert.Equal(t, "audiodev", ee.GetComponent())
	assert.Equal(t, CategoryAudioSource, ee.Category)
	assert.Equal(t, PriorityHigh, ee.GetPriority())
	assert.Equal(t, map[string]any{"role": "input"}, ee.GetContext())
}

func TestPriorityFallback(t *testing.T) {
	ee := New(NewStd("x")).Priority("urgent").Build()
	assert.Equal(t, PriorityMedium, ee.GetPriority())

	ee = New(NewStd("x")).Priority("").Build()
	assert.Empty(t, ee.GetPriority())
}

func TestIsMatchesWrappedSentinel(t *testing.T) {
	sentinel := NewStd("no device")
	ee := New(sentinel).Category(CategoryNotFound).Build()
	wrapped := fmt.Errorf("resolve: %w", ee)

	assert.True(t, Is(wrapped, sentinel))
	assert.True(t, IsCategory(wrapped, CategoryNotFound))
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsCategory(wrapped, CategoryAudio))
}

func TestDetectCategory(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"device message", NewStd("device disconnected"), CategoryAudioSource},
		{"buffer message", NewStd("ring buffer closed"), CategoryBuffer},
		{"mismatch message", NewStd("sample rate mismatch"), CategoryValidation},
		{"timeout message", NewStd("quiesce timeout"), CategoryTimeout},
		{"plain", NewStd("boom"), CategoryGeneric},
		{"nested enhanced", fmt.Errorf("wrap: %w", New(NewStd("x")).Category(CategoryState).Build()), CategoryState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detectCategory(tt.err))
		})
	}
}

func TestLookupComponentPrefersLongestPattern(t *testing.T) {
	assert.Equal(t, "audiodev.malgo", lookupComponent("github.com/tphakala/audioloop/internal/audiodev/malgo.(*Host).OpenInput"))
	assert.Equal(t, "audiodev", lookupComponent("github.com/tphakala/audioloop/internal/audiodev.(*Resolver).ResolveDevice"))
	assert.Equal(t, ComponentUnknown, lookupComponent("main.main"))
}

type recordingReporter struct {
	mu      sync.Mutex
	enabled bool
	got     []*EnhancedError
}

func (r *recordingReporter) ReportError(ee *EnhancedError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, ee)
}

func (r *recordingReporter) IsEnabled() bool { return r.enabled }

func TestReporterAndHooks(t *testing.T) {
	reporter := &recordingReporter{enabled: true}
	SetTelemetryReporter(reporter)
	t.Cleanup(func() {
		SetTelemetryReporter(nil)
		ClearErrorHooks()
	})

	var hooked []ErrorCategory
	AddErrorHook(func(ee *EnhancedError) { hooked = append(hooked, ee.Category) })

	New(NewStd("stream stopped")).Component("loopback").Category(CategoryAudio).Build()

	require.Len(t, reporter.got, 1)
	assert.Equal(t, "loopback", reporter.got[0].GetComponent())
	assert.Equal(t, []ErrorCategory{CategoryAudio}, hooked)
}

func TestDisabledReporterKeepsFastPath(t *testing.T) {
	SetTelemetryReporter(&recordingReporter{enabled: false})
	ClearErrorHooks()
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	assert.False(t, hasActiveReporting.Load())
}

func TestScrubMessageForPrivacy(t *testing.T) {
	scrubbed := scrubMessageForPrivacy("init failed: https://0123456789abcdef0123@o1.ingest.sentry.io/42")
	assert.NotContains(t, scrubbed, "0123456789abcdef0123")

	scrubbed = scrubMessageForPrivacy("GET https://example.com/x?token=abc")
	assert.Equal(t, "GET https://example.com/x?[REDACTED]", scrubbed)

	scrubbed = scrubMessageForPrivacy("config api_key=secret123 rejected")
	assert.False(t, strings.Contains(scrubbed, "secret123"))
}

func TestGenerateErrorTitle(t *testing.T) {
	ee := New(NewStd("x")).
		Component("loopback").
		Category(CategoryAudioSource).
		Context("operation", "start_stream").
		Build()

	assert.Equal(t, "Loopback Audio Device Error Start Stream", generateErrorTitle(ee))
}
