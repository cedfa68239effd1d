package loopback

import (
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRingConcurrentDrift runs a producer and a slightly slower consumer on
// separate goroutines. Every frame must be accounted for as popped, dropped
// or still buffered, popped frames must be in order, and no popped frame may
// be a mix of two writes. Drop bounds are taken from what each side actually
// did, so a slow scheduler (or -race) changes the counts but not the result.
func TestRingConcurrentDrift(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stress test in short mode")
	}
	t.Parallel()

	const (
		channels    = 2
		blockFrames = 256
		iterations  = 10000
		capacity    = 4 * blockFrames
		period      = 50 * time.Microsecond
	)

	r, err := NewRing(capacity, channels)
	require.NoError(t, err)

	var (
		wg             sync.WaitGroup
		pushed         uint64
		popped         uint64
		producerBlocks uint64
		fullPops       uint64
		overCapacity   [2]int
		done           = make(chan struct{})
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)

		block := make([]float32, blockFrames*channels)
		start := time.Now()
		for i := range iterations {
			for f := range blockFrames {
				v := float32(i*blockFrames + f)
				for c := range channels {
					block[f*channels+c] = v
				}
			}
			pushed += uint64(r.TryPush(block))
			producerBlocks++
			if r.Len() > capacity {
				overCapacity[0]++
			}

			deadline := start.Add(time.Duration(i+1) * period)
			for time.Now().Before(deadline) {
				runtime.Gosched()
			}
		}
	}()

	var (
		lastFrame  = float32(-1)
		outOfOrder int
		torn       int
	)

	wg.Add(1)
	go func() {
		defer wg.Done()

		dst := make([]float32, blockFrames*channels)
		consumerPeriod := period * 101 / 100
		start := time.Now()
		for i := 0; ; i++ {
			select {
			case <-done:
				return
			default:
			}

			n := r.TryPop(dst)
			popped += uint64(n)
			if n == blockFrames {
				fullPops++
			}
			if r.Len() > capacity {
				overCapacity[1]++
			}
			for f := range n {
				v := dst[f*channels]
				for c := 1; c < channels; c++ {
					if dst[f*channels+c] != v {
						torn++
					}
				}
				if v <= lastFrame {
					outOfOrder++
				}
				lastFrame = v
			}

			deadline := start.Add(time.Duration(i+1) * consumerPeriod)
			for time.Now().Before(deadline) {
				runtime.Gosched()
			}
		}
	}()

	wg.Wait()

	assert.Zero(t, torn, "frames mixed from two writes")
	assert.Zero(t, outOfOrder, "frames out of order")

	assert.Zero(t, overCapacity[0], "producer saw more than capacity buffered")
	assert.Zero(t, overCapacity[1], "consumer saw more than capacity buffered")

	buffered := uint64(r.Len())
	dropped := r.Dropped()
	t.Logf("blocks=%d pushed=%d popped=%d full pops=%d dropped=%d buffered=%d",
		producerBlocks, pushed, popped, fullPops, dropped, buffered)

	require.Equal(t, producerBlocks*blockFrames, pushed, "blocks fit the ring whole")
	assert.Equal(t, pushed, popped+dropped+buffered, "every frame is popped, dropped or buffered")

	// each full pop removed a whole block, so only the blocks the consumer
	// never caught up with can have been dropped
	assert.LessOrEqual(t, dropped, (producerBlocks-fullPops)*blockFrames)
	// anything neither popped nor dropped must still fit in the ring
	assert.LessOrEqual(t, pushed-popped-dropped, uint64(capacity))
}
