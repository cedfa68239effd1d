package loopback

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/tphakala/audioloop/internal/audiodev"
	"github.com/tphakala/audioloop/internal/errors"
	"github.com/tphakala/audioloop/internal/logger"
)

// glitchCounters remembers what the last glitch warning covered
type glitchCounters struct {
	overflows, underruns, dropped uint64
}

// supervise drains the stream event journal and warns about overflows and
// underruns until ctx is done. It only reads counters; the callbacks are
// never touched from here.
func (m *Manager) supervise(ctx context.Context) error {
	ticker := time.NewTicker(m.opts.SuperviseInterval)
	defer ticker.Stop()

	limiter := rate.NewLimiter(rate.Every(m.opts.GlitchWarnInterval), 1)
	var seen glitchCounters

	for {
		select {
		case <-ctx.Done():
			m.journal.drain(m.handleEvent)
			return nil
		case <-ticker.C:
			m.journal.drain(m.handleEvent)
			m.checkGlitches(limiter, &seen)
		}
	}
}

func (m *Manager) checkGlitches(limiter *rate.Limiter, seen *glitchCounters) {
	s := m.Stats()
	if s.Overflows == seen.overflows && s.Underruns == seen.underruns {
		return
	}
	if !limiter.Allow() {
		return
	}

	m.log.Warn("audio glitches detected",
		logger.Uint64("new_overflows", s.Overflows-seen.overflows),
		logger.Uint64("new_underruns", s.Underruns-seen.underruns),
		logger.Uint64("new_dropped_frames", s.DroppedFrames-min(seen.dropped, s.DroppedFrames)),
		logger.Int("buffered_frames", s.BufferedFrames),
		logger.Int("capacity_frames", s.CapacityFrames))

	*seen = glitchCounters{overflows: s.Overflows, underruns: s.Underruns, dropped: s.DroppedFrames}
}

// reportStats logs a stats line every StatsInterval until ctx is done
func (m *Manager) reportStats(ctx context.Context) error {
	ticker := time.NewTicker(m.opts.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.log.Info("loopback stats", m.Stats().logFields()...)
		}
	}
}

// logEvent reports a stream event without acting on it. Errors a host
// already built are logged as they are so they are reported once.
func (m *Manager) logEvent(ev streamEvent) {
	var ee *errors.EnhancedError
	if !errors.As(ev.err, &ee) {
		ee = errors.New(ev.err).
			Component(componentName).
			Category(errors.CategoryAudioSource).
			Context("operation", "stream_callback").
			Context("role", ev.role.String()).
			Context("session_id", m.sessionID).
			Build()
	}

	m.log.Warn("stream error",
		logger.String("role", ev.role.String()),
		logger.Time("at", ev.at),
		logger.Error(ee))
}

// handleEvent reports a stream event and restarts a stream that stopped on
// its own while the manager is running, within the restart budget.
func (m *Manager) handleEvent(ev streamEvent) {
	m.logEvent(ev)

	if !errors.Is(ev.err, audiodev.ErrStreamStopped) {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateRunning {
		return
	}
	if m.budget[ev.role] <= 0 {
		m.log.Error("stream stopped and restart budget is exhausted",
			logger.String("role", ev.role.String()))
		return
	}
	m.budget[ev.role]--

	stream := m.inStream
	if ev.role == audiodev.Output {
		stream = m.outStream
	}
	err := stream.Start()
	recordOutcome(m.opts.Recorder, opRestart, err)
	if err != nil {
		m.log.Error("stream restart failed",
			logger.String("role", ev.role.String()),
			logger.Error(err))
		return
	}

	m.restarts.Add(1)
	m.log.Info("stream restarted", logger.String("role", ev.role.String()))
}
