package loopback

import "sync/atomic"

// Capture is the producer side of the loopback. OnFrames runs on the
// capture device thread.
type Capture struct {
	ring *Ring

	frames         atomic.Uint64
	overflows      atomic.Uint64
	overflowFrames atomic.Uint64
	callbacks      atomic.Uint64
	inflight       atomic.Int32
}

// NewCapture binds a capture callback to ring
func NewCapture(ring *Ring) *Capture {
	return &Capture{ring: ring}
}

// OnFrames pushes one captured block. When the block does not fit, the
// oldest buffered frames are displaced and an overflow is counted. Blocks
// arriving after the ring is closed are discarded uncounted.
func (c *Capture) OnFrames(in []float32) {
	c.inflight.Add(1)
	defer c.inflight.Add(-1)
	c.callbacks.Add(1)

	n := len(in) / c.ring.Channels()
	free := c.ring.Free()
	if c.ring.TryPush(in) == 0 {
		return
	}
	if free < n {
		c.overflows.Add(1)
		c.overflowFrames.Add(uint64(n - free))
	}
	c.frames.Add(uint64(n))
}

// Frames returns the frames delivered by the device
func (c *Capture) Frames() uint64 { return c.frames.Load() }

// Overflows returns how many blocks displaced unread frames
func (c *Capture) Overflows() uint64 { return c.overflows.Load() }

// OverflowFrames returns the unread frames displaced by overflowing blocks
func (c *Capture) OverflowFrames() uint64 { return c.overflowFrames.Load() }

// Callbacks returns the number of OnFrames calls
func (c *Capture) Callbacks() uint64 { return c.callbacks.Load() }

// InFlight reports callbacks currently inside OnFrames
func (c *Capture) InFlight() int32 { return c.inflight.Load() }
