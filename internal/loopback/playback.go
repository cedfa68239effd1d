package loopback

import "sync/atomic"

// Playback is the consumer side of the loopback. OnFrames runs on the
// playback device thread.
type Playback struct {
	ring    *Ring
	prefill int

	// primed is only touched by the playback thread
	primed bool

	frames        atomic.Uint64
	underruns     atomic.Uint64
	silenceFrames atomic.Uint64
	callbacks     atomic.Uint64
	inflight      atomic.Int32
}

// NewPlayback binds a playback callback to ring. With prefill > 0 the
// callback outputs silence until the ring holds prefill frames, and again
// after every underrun.
func NewPlayback(ring *Ring, prefill int) *Playback {
	return &Playback{
		ring:    ring,
		prefill: min(max(prefill, 0), ring.Capacity()),
	}
}

// OnFrames fills out with buffered frames. The shortfall is silence and is
// counted as an underrun.
func (p *Playback) OnFrames(out []float32) {
	p.inflight.Add(1)
	p.callbacks.Add(1)

	want := len(out) / p.ring.Channels()

	if p.prefill > 0 && !p.primed {
		if p.ring.Len() < p.prefill {
			clear(out)
			p.silenceFrames.Add(uint64(want))
			p.inflight.Add(-1)
			return
		}
		p.primed = true
	}

	got := p.ring.TryPop(out)
	p.frames.Add(uint64(got))
	if got < want {
		p.underruns.Add(1)
		p.silenceFrames.Add(uint64(want - got))
		if p.prefill > 0 {
			p.primed = false
		}
	}

	p.inflight.Add(-1)
}

// Prefill returns the priming threshold in frames
func (p *Playback) Prefill() int { return p.prefill }

// Frames returns the frames read from the ring
func (p *Playback) Frames() uint64 { return p.frames.Load() }

// Underruns returns how many callbacks came up short
func (p *Playback) Underruns() uint64 { return p.underruns.Load() }

// SilenceFrames returns the frames filled with silence, priming included
func (p *Playback) SilenceFrames() uint64 { return p.silenceFrames.Load() }

// Callbacks returns the number of OnFrames calls
func (p *Playback) Callbacks() uint64 { return p.callbacks.Load() }

// InFlight reports callbacks currently inside OnFrames
func (p *Playback) InFlight() int32 { return p.inflight.Load() }
