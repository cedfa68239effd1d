package loopback

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/audioloop/internal/audiodev"
	"github.com/tphakala/audioloop/internal/errors"
	"github.com/tphakala/audioloop/internal/logger"
)

// Options tune a Manager. The zero value is usable; DefaultOptions fills in
// the recommended values.
type Options struct {
	// CapacityMS is the ring size in milliseconds of capture audio
	CapacityMS int

	// PrefillMS is the audio playback waits for before leaving silence.
	// 0 plays as soon as anything is buffered.
	PrefillMS int

	Mismatch MismatchPolicy

	// QuiesceTimeout bounds how long Stop waits for running callbacks
	QuiesceTimeout time.Duration

	// StatsInterval is the period of the stats log line. 0 disables it.
	StatsInterval time.Duration

	// SuperviseInterval is how often the journal and glitch counters are polled
	SuperviseInterval time.Duration

	// GlitchWarnInterval limits overflow and underrun warnings to one per interval
	GlitchWarnInterval time.Duration

	// MaxRestarts is how many times each stream is restarted after it
	// stopped on its own
	MaxRestarts int

	// Recorder receives lifecycle outcomes. nil records nothing.
	Recorder Recorder
}

const (
	defaultQuiesceTimeout     = 2 * time.Second
	defaultSuperviseInterval  = 50 * time.Millisecond
	defaultGlitchWarnInterval = 5 * time.Second
)

// DefaultOptions returns the options used by the audioloop command
func DefaultOptions() Options {
	return Options{
		CapacityMS:         DefaultCapacityMS,
		PrefillMS:          20,
		Mismatch:           MismatchReject,
		QuiesceTimeout:     defaultQuiesceTimeout,
		StatsInterval:      10 * time.Second,
		SuperviseInterval:  defaultSuperviseInterval,
		GlitchWarnInterval: defaultGlitchWarnInterval,
		MaxRestarts:        1,
	}
}

func (o *Options) applyDefaults() {
	if o.CapacityMS <= 0 {
		o.CapacityMS = DefaultCapacityMS
	}
	if o.PrefillMS < 0 {
		o.PrefillMS = 0
	}
	if o.QuiesceTimeout <= 0 {
		o.QuiesceTimeout = defaultQuiesceTimeout
	}
	if o.SuperviseInterval <= 0 {
		o.SuperviseInterval = defaultSuperviseInterval
	}
	if o.GlitchWarnInterval <= 0 {
		o.GlitchWarnInterval = defaultGlitchWarnInterval
	}
	if o.MaxRestarts < 0 {
		o.MaxRestarts = 0
	}
	if o.Recorder == nil {
		o.Recorder = noopRecorder{}
	}
}

// Manager resolves, opens, starts and stops the capture and playback streams
// and owns the ring between them. Its methods are safe for concurrent use.
type Manager struct {
	resolver  *audiodev.Resolver
	host      audiodev.Host
	opts      Options
	log       logger.Logger
	sessionID string
	journal   *journal

	streamErrors atomic.Uint64
	restarts     atomic.Uint64

	mu        sync.Mutex
	state     State
	inputDev  *audiodev.Device
	outputDev *audiodev.Device
	inputCfg  audiodev.StreamConfig
	outputCfg audiodev.StreamConfig
	ring      *Ring
	capture   *Capture
	playback  *Playback
	inStream  audiodev.Stream
	outStream audiodev.Stream
	budget    map[audiodev.Role]int
	startedAt time.Time
	stoppedAt time.Time
}

// NewManager creates an unconfigured manager. A nil log uses the global
// logger.
func NewManager(resolver *audiodev.Resolver, host audiodev.Host, opts Options, log logger.Logger) *Manager {
	if log == nil {
		log = logger.Global().Module(componentName)
	}
	if host == nil && resolver != nil {
		host = resolver.Host()
	}
	opts.applyDefaults()

	id := uuid.New().String()
	return &Manager{
		resolver:  resolver,
		host:      host,
		opts:      opts,
		log:       log.With(logger.String("session_id", id)),
		sessionID: id,
		journal:   newJournal(journalRecords),
		state:     StateUninitialized,
	}
}

// SessionID identifies this manager in logs and error reports
func (m *Manager) SessionID() string { return m.sessionID }

// State returns the lifecycle state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Devices returns the names of the chosen input and output devices. Both are
// empty before Configure succeeds.
func (m *Manager) Devices() (input, output string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inputDev != nil {
		input = m.inputDev.Name
	}
	if m.outputDev != nil {
		output = m.outputDev.Name
	}
	return input, output
}

// Configs returns the stream configurations chosen by Configure
func (m *Manager) Configs() (input, output audiodev.StreamConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inputCfg, m.outputCfg
}

func (m *Manager) stateError(op string) error {
	return errors.New(fmt.Errorf("%w: cannot %s while %s", ErrInvalidState, op, m.state)).
		Component(componentName).
		Category(errors.CategoryState).
		Context("operation", op).
		Context("state", m.state.String()).
		Build()
}

// Configure resolves both devices and configs, allocates the ring and opens
// both streams. Any failure releases what was opened and is returned.
func (m *Manager) Configure() (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer func() { recordOutcome(m.opts.Recorder, opConfigure, err) }()

	if m.state != StateUninitialized {
		return m.stateError("configure")
	}

	inDev, err := m.resolver.ResolveDevice(audiodev.Input)
	if err != nil {
		return err
	}
	outDev, err := m.resolver.ResolveDevice(audiodev.Output)
	if err != nil {
		return err
	}
	inCfg, err := m.resolver.ResolveConfig(inDev)
	if err != nil {
		return err
	}
	outCfg, err := m.resolver.ResolveConfig(outDev)
	if err != nil {
		return err
	}

	outCfg, err = m.reconcile(inCfg, outCfg, outDev)
	if err != nil {
		return err
	}

	ring, err := NewRing(CapacityFrames(inCfg.SampleRate, inCfg.PeriodFrames, m.opts.CapacityMS), inCfg.Channels)
	if err != nil {
		return err
	}
	capture := NewCapture(ring)
	playback := NewPlayback(ring, int(uint64(inCfg.SampleRate)*uint64(m.opts.PrefillMS)/1000))

	in, err := m.host.OpenInput(inDev, inCfg, capture.OnFrames, m.errorFunc(audiodev.Input))
	if err != nil {
		return err
	}
	out, err := m.host.OpenOutput(outDev, outCfg, playback.OnFrames, m.errorFunc(audiodev.Output))
	if err != nil {
		if cerr := in.Close(); cerr != nil {
			m.log.Warn("failed to close input stream after open failure", logger.Error(cerr))
		}
		return err
	}

	m.inputDev, m.outputDev = inDev, outDev
	m.inputCfg, m.outputCfg = inCfg, outCfg
	m.ring, m.capture, m.playback = ring, capture, playback
	m.inStream, m.outStream = in, out
	m.state = StateConfigured

	m.log.Info("loopback configured",
		logger.String("host", m.host.Name()),
		logger.String("input", inDev.Name),
		logger.String("input_config", inCfg.String()),
		logger.String("output", outDev.Name),
		logger.String("output_config", outCfg.String()),
		logger.Int("capacity_frames", ring.Capacity()),
		logger.Int("prefill_frames", playback.Prefill()))

	return nil
}

// reconcile applies the mismatch policy and returns the playback config to
// use. match-capture only succeeds when outDev enumerates a range with the
// capture rate and channel count.
func (m *Manager) reconcile(in, out audiodev.StreamConfig, outDev *audiodev.Device) (audiodev.StreamConfig, error) {
	if in.SampleRate == out.SampleRate && in.Channels == out.Channels {
		return out, nil
	}

	if m.opts.Mismatch == MismatchMatchCapture {
		for _, c := range outDev.Configs {
			if c.Channels != in.Channels || !c.Contains(in.SampleRate) {
				continue
			}
			m.log.Warn("playback config forced to capture rate and channels",
				logger.String("input_config", in.String()),
				logger.String("output_config", out.String()),
				logger.String("output_range", c.String()))
			out.SampleRate = in.SampleRate
			out.Channels = in.Channels
			out.Format = c.Format
			return out, nil
		}
	}

	return out, errors.New(fmt.Errorf("%w: input %s, output %s", ErrConfigMismatch, in, out)).
		Component(componentName).
		Category(errors.CategoryConfiguration).
		Context("mismatch_policy", m.opts.Mismatch.String()).
		Context("output_device", outDev.Name).
		Context("input_sample_rate", in.SampleRate).
		Context("output_sample_rate", out.SampleRate).
		Context("input_channels", in.Channels).
		Context("output_channels", out.Channels).
		Build()
}

// errorFunc returns the ErrorFunc for one stream. It runs on host threads.
func (m *Manager) errorFunc(role audiodev.Role) audiodev.ErrorFunc {
	return func(err error) {
		m.streamErrors.Add(1)
		m.journal.record(role, err)
	}
}

// Start starts playback, then capture. If either fails the streams are
// closed and the manager is Stopped.
func (m *Manager) Start() (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer func() { recordOutcome(m.opts.Recorder, opStart, err) }()

	if m.state != StateConfigured {
		return m.stateError("start")
	}

	if err := m.outStream.Start(); err != nil {
		m.abortLocked()
		return err
	}
	if err := m.inStream.Start(); err != nil {
		if serr := m.outStream.Stop(); serr != nil {
			m.log.Warn("failed to stop output stream", logger.Error(serr))
		}
		m.abortLocked()
		return err
	}

	m.budget = map[audiodev.Role]int{
		audiodev.Input:  m.opts.MaxRestarts,
		audiodev.Output: m.opts.MaxRestarts,
	}
	m.startedAt = time.Now()
	m.state = StateRunning
	m.log.Info("loopback started")
	return nil
}

// abortLocked releases everything after a failed start. No stream is running.
func (m *Manager) abortLocked() {
	if err := m.closeStreamsLocked(); err != nil {
		m.log.Warn("failed to close streams", logger.Error(err))
	}
	m.ring.Close()
	m.stoppedAt = time.Now()
	m.state = StateStopped
}

func (m *Manager) closeStreamsLocked() error {
	var errs []error
	if m.inStream != nil {
		errs = append(errs, m.inStream.Close())
	}
	if m.outStream != nil {
		errs = append(errs, m.outStream.Close())
	}
	return errors.Join(errs...)
}

// Run starts the streams, supervises them until ctx is done and then stops
// them.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.Start(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return m.supervise(gctx)
	})
	if m.opts.StatsInterval > 0 {
		g.Go(func() error {
			return m.reportStats(gctx)
		})
	}

	err := g.Wait()
	return errors.Join(err, m.Stop())
}

// Stop stops capture, then playback, waits for callbacks to return, closes
// both streams and finally the ring. It is idempotent.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateUninitialized, StateStopped:
		return nil
	case StateConfigured:
		err := m.closeStreamsLocked()
		m.ring.Close()
		m.stoppedAt = time.Now()
		m.state = StateStopped
		return err
	}

	began := time.Now()
	var errs []error
	if err := m.inStream.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := m.outStream.Stop(); err != nil {
		errs = append(errs, err)
	}

	quiesced := m.waitQuiescent(m.opts.QuiesceTimeout)
	if err := m.closeStreamsLocked(); err != nil {
		errs = append(errs, err)
	}

	if quiesced {
		m.ring.Close()
	} else {
		errs = append(errs, errors.New(ErrQuiesceTimeout).
			Component(componentName).
			Category(errors.CategoryTimeout).
			Timing("stop_quiesce", m.opts.QuiesceTimeout).
			Build())
	}

	m.stoppedAt = time.Now()
	m.state = StateStopped

	err := errors.Join(errs...)
	recordOutcome(m.opts.Recorder, opStop, err)
	m.opts.Recorder.RecordDuration(opStop, m.stoppedAt.Sub(began).Seconds())

	m.journal.drain(m.logEvent)
	m.log.Info("loopback stopped",
		append(m.statsLocked().logFields(), logger.Bool("quiesced", quiesced))...)

	return err
}

// waitQuiescent polls the in-flight counters until both are zero
func (m *Manager) waitQuiescent(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for m.capture.InFlight()+m.playback.InFlight() > 0 {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
	return true
}

// Stats returns a snapshot of the counters
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statsLocked()
}

func (m *Manager) statsLocked() Stats {
	s := Stats{
		State:          m.state,
		StreamErrors:   m.streamErrors.Load(),
		JournalDropped: m.journal.Dropped(),
		Restarts:       m.restarts.Load(),
		SampleRate:     m.inputCfg.SampleRate,
		Channels:       m.inputCfg.Channels,
	}
	if m.ring == nil {
		return s
	}

	s.CapturedFrames = m.capture.Frames()
	s.Overflows = m.capture.Overflows()
	s.OverflowFrames = m.capture.OverflowFrames()
	s.CaptureCallbacks = m.capture.Callbacks()
	s.PlayedFrames = m.playback.Frames()
	s.Underruns = m.playback.Underruns()
	s.SilenceFrames = m.playback.SilenceFrames()
	s.PlaybackCallbacks = m.playback.Callbacks()
	s.DroppedFrames = m.ring.Dropped()
	s.BufferedFrames = m.ring.Len()
	s.CapacityFrames = m.ring.Capacity()

	switch {
	case m.startedAt.IsZero():
	case m.state == StateRunning:
		s.Uptime = time.Since(m.startedAt)
	default:
		s.Uptime = m.stoppedAt.Sub(m.startedAt)
	}
	return s
}
