package loopback

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/tphakala/audioloop/internal/errors"
)

const (
	// MinCapacityPeriods is the smallest ring size in callback periods
	MinCapacityPeriods = 4

	// DefaultCapacityMS is the default ring size in milliseconds of audio
	DefaultCapacityMS = 200

	// DefaultPeriodFrames is assumed for sizing when the host picks the period
	DefaultPeriodFrames = 512
)

// Ring is a lock-free SPSC buffer of interleaved float32 frames with
// drop-oldest overflow.
//
// Cursors count frames and only grow; slots are indexed modulo the capacity.
// Exactly one goroutine may call TryPush and exactly one may call TryPop.
// Samples are stored as atomic bit patterns so a writer lapping the reader is
// not a data race. The writer publishes claim before touching slots and head
// after; the reader copies, then re-checks claim and discards frames the
// writer may have overwritten during the copy.
type Ring struct {
	capacity uint64
	channels int
	slots    []atomic.Uint32

	head    atomic.Uint64 // frames fully written
	claim   atomic.Uint64 // frames the writer may be writing
	tail    atomic.Uint64 // frames consumed
	dropped atomic.Uint64 // frames overwritten, skipped or discarded unread
	closed  atomic.Bool
}

// NewRing allocates a ring of capacityFrames frames of channels samples.
func NewRing(capacityFrames, channels int) (*Ring, error) {
	if capacityFrames < 1 || channels < 1 {
		return nil, errors.New(fmt.Errorf("%w: %d frames x %d channels", ErrInvalidCapacity, capacityFrames, channels)).
			Component(componentName).
			Category(errors.CategoryBuffer).
			Context("capacity_frames", capacityFrames).
			Context("channels", channels).
			Build()
	}
	return &Ring{
		capacity: uint64(capacityFrames),
		channels: channels,
		slots:    make([]atomic.Uint32, capacityFrames*channels),
	}, nil
}

// CapacityFrames sizes a ring to hold bufferMS of audio at rate, but never
// fewer than MinCapacityPeriods periods.
func CapacityFrames(rate, periodFrames uint32, bufferMS int) int {
	if periodFrames == 0 {
		periodFrames = DefaultPeriodFrames
	}
	frames := int(uint64(rate) * uint64(max(bufferMS, 0)) / 1000)
	return max(frames, MinCapacityPeriods*int(periodFrames), 1)
}

// Capacity returns the ring size in frames
func (r *Ring) Capacity() int { return int(r.capacity) }

// Channels returns the samples per frame
func (r *Ring) Channels() int { return r.channels }

// TryPush writes all whole frames of src and returns how many were stored.
// A block larger than the ring keeps only its last Capacity frames. Unread
// frames that get overwritten are counted by Dropped. It never blocks.
func (r *Ring) TryPush(src []float32) int {
	if r.closed.Load() {
		return 0
	}

	ch := r.channels
	n := uint64(len(src) / ch)
	if n == 0 {
		return 0
	}
	if n > r.capacity {
		excess := n - r.capacity
		r.dropped.Add(excess)
		src = src[excess*uint64(ch):]
		n = r.capacity
	}

	w := r.head.Load()
	r.claim.Store(w + n)

	start := w % r.capacity
	first := min(n, r.capacity-start)
	r.store(start, src[:first*uint64(ch)])
	if first < n {
		r.store(0, src[first*uint64(ch):n*uint64(ch)])
	}

	r.head.Store(w + n)
	return int(n)
}

func (r *Ring) store(slot uint64, src []float32) {
	dst := r.slots[slot*uint64(r.channels):]
	for i, v := range src {
		dst[i].Store(math.Float32bits(v))
	}
}

func (r *Ring) load(slot uint64, dst []float32) {
	src := r.slots[slot*uint64(r.channels):]
	for i := range dst {
		dst[i] = math.Float32frombits(src[i].Load())
	}
}

// TryPop reads up to len(dst)/Channels frames into dst and returns the count.
// Everything in dst past the returned frames is zeroed. It never blocks.
func (r *Ring) TryPop(dst []float32) int {
	ch := r.channels
	want := uint64(len(dst) / ch)
	if want == 0 || r.closed.Load() {
		clear(dst)
		return 0
	}

	t := r.tail.Load()
	w := r.head.Load()
	if w-t > r.capacity {
		// lapped: the oldest unread frames are gone
		r.dropped.Add(w - t - r.capacity)
		t = w - r.capacity
	}

	n := min(want, w-t)
	if n > 0 {
		start := t % r.capacity
		first := min(n, r.capacity-start)
		r.load(start, dst[:first*uint64(ch)])
		if first < n {
			r.load(0, dst[first*uint64(ch):n*uint64(ch)])
		}
	}

	valid := n
	if c := r.claim.Load(); c > r.capacity && c-r.capacity > t && n > 0 {
		// frames below claim-capacity may have been overwritten mid-copy
		torn := min(c-r.capacity-t, n)
		copy(dst, dst[torn*uint64(ch):n*uint64(ch)])
		valid = n - torn
		r.dropped.Add(torn)
	}

	r.tail.Store(t + n)
	clear(dst[valid*uint64(ch):])
	return int(valid)
}

// Len returns the frames available to the reader.
func (r *Ring) Len() int {
	t := r.tail.Load()
	w := r.head.Load()
	return int(min(w-t, r.capacity))
}

// Free returns the frames that can be written without overwriting unread ones.
func (r *Ring) Free() int {
	return int(r.capacity) - r.Len()
}

// Dropped returns the frames lost to overflow, including overwritten frames
// the reader has not skipped yet.
func (r *Ring) Dropped() uint64 {
	d := r.dropped.Load()
	t := r.tail.Load()
	w := r.head.Load()
	if w-t > r.capacity {
		d += w - t - r.capacity
	}
	return d
}

// Reset empties the ring and clears the drop count. Only call it while
// neither side is running.
func (r *Ring) Reset() {
	r.head.Store(0)
	r.claim.Store(0)
	r.tail.Store(0)
	r.dropped.Store(0)
}

// Close makes TryPush drop everything and TryPop return silence.
func (r *Ring) Close() {
	r.closed.Store(true)
}

// Closed reports whether Close has been called
func (r *Ring) Closed() bool {
	return r.closed.Load()
}
