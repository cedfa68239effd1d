package loopback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRing(t *testing.T, frames, channels int) *Ring {
	t.Helper()
	r, err := NewRing(frames, channels)
	require.NoError(t, err)
	return r
}

func TestCaptureCountsOverflow(t *testing.T) {
	t.Parallel()

	r := newTestRing(t, 8, 2)
	c := NewCapture(r)

	c.OnFrames(ramp(0, 6, 2))
	assert.Zero(t, c.Overflows())

	c.OnFrames(ramp(6, 6, 2))
	assert.Equal(t, uint64(1), c.Overflows())
	assert.Equal(t, uint64(4), c.OverflowFrames(), "only 2 frames were free")
	assert.Equal(t, uint64(12), c.Frames())
	assert.Equal(t, uint64(2), c.Callbacks())
	assert.Equal(t, uint64(4), r.Dropped())
	assert.Zero(t, c.InFlight())
}

func TestCaptureIgnoresBlocksAfterClose(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		block      []float32
		wantFrames uint64
	}{
		{"fits", ramp(0, 4, 2), 4},
		{"overflows", ramp(0, 12, 2), 12},
		{"empty", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := newTestRing(t, 8, 2)
			c := NewCapture(r)
			c.OnFrames(tt.block)
			overflows := c.Overflows()

			r.Close()
			c.OnFrames(tt.block)
			c.OnFrames(ramp(0, 16, 2))

			assert.Equal(t, tt.wantFrames, c.Frames())
			assert.Equal(t, overflows, c.Overflows())
			assert.Equal(t, uint64(3), c.Callbacks())
			assert.Zero(t, c.InFlight())
		})
	}
}

func TestPlaybackUnderrunIsSilence(t *testing.T) {
	t.Parallel()

	r := newTestRing(t, 16, 2)
	c := NewCapture(r)
	p := NewPlayback(r, 0)

	c.OnFrames(ramp(1, 3, 2))

	out := make([]float32, 4*2)
	for i := range out {
		out[i] = 42
	}
	p.OnFrames(out)

	assert.Equal(t, ramp(1, 3, 2), out[:6])
	assert.Equal(t, []float32{0, 0}, out[6:])
	assert.Equal(t, uint64(3), p.Frames())
	assert.Equal(t, uint64(1), p.Underruns())
	assert.Equal(t, uint64(1), p.SilenceFrames())

	c.OnFrames(ramp(4, 4, 2))
	p.OnFrames(out)
	assert.Equal(t, ramp(4, 4, 2), out)
	assert.Equal(t, uint64(1), p.Underruns(), "a full block is not an underrun")
	assert.Equal(t, uint64(2), p.Callbacks())
	assert.Zero(t, p.InFlight())
}

func TestPlaybackPrefill(t *testing.T) {
	t.Parallel()

	r := newTestRing(t, 32, 1)
	c := NewCapture(r)
	p := NewPlayback(r, 8)
	out := make([]float32, 4)

	c.OnFrames(ramp(0, 4, 1))
	p.OnFrames(out)
	assert.Equal(t, make([]float32, 4), out, "silent until the prefill target is buffered")
	assert.Zero(t, p.Frames())
	assert.Zero(t, p.Underruns(), "priming is not an underrun")
	assert.Equal(t, uint64(4), p.SilenceFrames())
	assert.Equal(t, 4, r.Len(), "priming leaves the ring untouched")

	c.OnFrames(ramp(4, 4, 1))
	p.OnFrames(out)
	assert.Equal(t, ramp(0, 4, 1), out)
	p.OnFrames(out)
	assert.Equal(t, ramp(4, 4, 1), out)

	// the next short read re-arms priming
	c.OnFrames(ramp(8, 2, 1))
	p.OnFrames(out)
	assert.Equal(t, []float32{8, 9, 0, 0}, out)
	assert.Equal(t, uint64(1), p.Underruns())

	c.OnFrames(ramp(10, 4, 1))
	p.OnFrames(out)
	assert.Equal(t, make([]float32, 4), out, "re-primed after underrun")
	assert.Equal(t, 4, r.Len())
}

func TestPlaybackPrefillClampedToCapacity(t *testing.T) {
	t.Parallel()

	r := newTestRing(t, 8, 1)
	assert.Equal(t, 8, NewPlayback(r, 100).Prefill())
	assert.Zero(t, NewPlayback(r, -5).Prefill())
}

func TestCallbacksDoNotAllocate(t *testing.T) {
	r := newTestRing(t, 2048, 2)
	c := NewCapture(r)
	p := NewPlayback(r, 256)

	in := ramp(0, 480, 2)
	out := make([]float32, 512*2)

	allocs := testing.AllocsPerRun(100, func() {
		c.OnFrames(in)
		p.OnFrames(out)
	})
	assert.Zero(t, allocs)
}
