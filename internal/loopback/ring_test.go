package loopback

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ramp returns frames*channels samples counting up from start
func ramp(start, frames, channels int) []float32 {
	out := make([]float32, frames*channels)
	for i := range out {
		out[i] = float32(start*channels + i)
	}
	return out
}

func TestNewRingRejectsInvalidSizes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		frames   int
		channels int
	}{
		{"zero capacity", 0, 2},
		{"negative capacity", -1, 2},
		{"zero channels", 16, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewRing(tt.frames, tt.channels)
			require.ErrorIs(t, err, ErrInvalidCapacity)
		})
	}
}

func TestCapacityFrames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		rate   uint32
		period uint32
		ms     int
		want   int
	}{
		{"buffer dominates", 48000, 256, 200, 9600},
		{"period floor", 48000, 4096, 100, 4 * 4096},
		{"host chosen period", 8000, 0, 10, 4 * DefaultPeriodFrames},
		{"never empty", 0, 0, 0, 4 * DefaultPeriodFrames},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, CapacityFrames(tt.rate, tt.period, tt.ms))
		})
	}
}

func TestRingFIFOAcrossWrap(t *testing.T) {
	t.Parallel()

	r, err := NewRing(8, 2)
	require.NoError(t, err)

	dst := make([]float32, 5*2)
	next := 0
	for round := range 10 {
		require.Equal(t, 5, r.TryPush(ramp(next, 5, 2)), "round %d", round)
		require.Equal(t, 5, r.Len())
		require.Equal(t, 3, r.Free())

		require.Equal(t, 5, r.TryPop(dst))
		assert.Equal(t, ramp(next, 5, 2), dst, "round %d", round)
		next += 5
	}
	assert.Zero(t, r.Len())
	assert.Zero(t, r.Dropped())
}

func TestRingUnderrunZeroesShortfall(t *testing.T) {
	t.Parallel()

	r, err := NewRing(16, 2)
	require.NoError(t, err)
	require.Equal(t, 3, r.TryPush(ramp(1, 3, 2)))

	dst := make([]float32, 8*2)
	for i := range dst {
		dst[i] = 99
	}
	got := r.TryPop(dst)
	require.Equal(t, 3, got)
	assert.Equal(t, ramp(1, 3, 2), dst[:6])
	assert.Equal(t, make([]float32, 10), dst[6:])

	// empty ring gives pure silence
	for i := range dst {
		dst[i] = 99
	}
	assert.Zero(t, r.TryPop(dst))
	assert.Equal(t, make([]float32, 16), dst)
}

func TestRingOverflowDropsOldest(t *testing.T) {
	t.Parallel()

	r, err := NewRing(8, 1)
	require.NoError(t, err)

	require.Equal(t, 6, r.TryPush(ramp(0, 6, 1)))
	require.Equal(t, 6, r.TryPush(ramp(6, 6, 1)))

	assert.Equal(t, 8, r.Len())
	assert.Zero(t, r.Free())
	assert.Equal(t, uint64(4), r.Dropped(), "overwritten frames count before the reader skips them")

	dst := make([]float32, 8)
	require.Equal(t, 8, r.TryPop(dst))
	assert.Equal(t, ramp(4, 8, 1), dst, "the newest capacity frames survive")
	assert.Equal(t, uint64(4), r.Dropped())
}

func TestRingOversizedBlockKeepsTail(t *testing.T) {
	t.Parallel()

	r, err := NewRing(4, 2)
	require.NoError(t, err)

	require.Equal(t, 4, r.TryPush(ramp(0, 10, 2)))
	assert.Equal(t, uint64(6), r.Dropped())

	dst := make([]float32, 4*2)
	require.Equal(t, 4, r.TryPop(dst))
	assert.Equal(t, ramp(6, 4, 2), dst)
}

func TestRingIgnoresPartialFrames(t *testing.T) {
	t.Parallel()

	r, err := NewRing(4, 2)
	require.NoError(t, err)

	assert.Zero(t, r.TryPush([]float32{1}))
	assert.Equal(t, 1, r.TryPush([]float32{1, 2, 3}))

	dst := []float32{9, 9, 9}
	assert.Equal(t, 1, r.TryPop(dst))
	assert.Equal(t, []float32{1, 2, 0}, dst)

	short := []float32{7}
	assert.Zero(t, r.TryPop(short))
	assert.Equal(t, []float32{0}, short)
}

func TestRingPreservesSampleBits(t *testing.T) {
	t.Parallel()

	src := []float32{
		0, float32(math.Copysign(0, -1)),
		math.SmallestNonzeroFloat32, -math.MaxFloat32,
		float32(math.Inf(1)), float32(math.Inf(-1)),
		1.0 / 3.0, -0.999999,
	}
	nan := math.Float32frombits(0x7fc00001)
	src = append(src, nan, nan)

	r, err := NewRing(8, 2)
	require.NoError(t, err)
	require.Equal(t, 5, r.TryPush(src))

	dst := make([]float32, len(src))
	require.Equal(t, 5, r.TryPop(dst))
	for i := range src {
		assert.Equal(t, math.Float32bits(src[i]), math.Float32bits(dst[i]), "sample %d", i)
	}
}

func TestRingCloseAndReset(t *testing.T) {
	t.Parallel()

	r, err := NewRing(8, 1)
	require.NoError(t, err)
	r.TryPush(ramp(0, 12, 1))
	require.NotZero(t, r.Dropped())

	r.Reset()
	assert.Zero(t, r.Len())
	assert.Zero(t, r.Dropped())
	assert.Equal(t, 8, r.Free())

	r.TryPush(ramp(0, 2, 1))
	r.Close()
	assert.True(t, r.Closed())
	assert.Zero(t, r.TryPush(ramp(0, 2, 1)), "closed ring accepts nothing")

	dst := []float32{5, 5}
	assert.Zero(t, r.TryPop(dst))
	assert.Equal(t, []float32{0, 0}, dst, "closed ring yields silence")
}

func TestRingDoesNotAllocate(t *testing.T) {
	r, err := NewRing(1024, 2)
	require.NoError(t, err)

	src := ramp(0, 256, 2)
	dst := make([]float32, 256*2)

	allocs := testing.AllocsPerRun(100, func() {
		r.TryPush(src)
		r.TryPop(dst)
		_ = r.Len()
		_ = r.Dropped()
	})
	assert.Zero(t, allocs)
}

func BenchmarkRingPushPop(b *testing.B) {
	r, err := NewRing(4096, 2)
	require.NoError(b, err)

	src := ramp(0, 480, 2)
	dst := make([]float32, 480*2)

	b.ReportAllocs()
	for b.Loop() {
		r.TryPush(src)
		r.TryPop(dst)
	}
}
