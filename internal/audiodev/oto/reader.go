package oto

import (
	"encoding/binary"
	"io"
	"math"
	"runtime"
	"sync/atomic"

	"github.com/tphakala/audioloop/internal/audiodev"
)

const bytesPerSample = 4

// reader adapts a PlaybackFunc to the io.Reader oto pulls from. It fills a
// preallocated scratch buffer and encodes little-endian float32. While
// inactive it returns silence without calling the callback.
type reader struct {
	channels int
	scratch  []float32
	fn       audiodev.PlaybackFunc

	active   atomic.Bool
	inflight atomic.Int32
}

func newReader(channels, periodFrames int, fn audiodev.PlaybackFunc) *reader {
	return &reader{
		channels: channels,
		scratch:  make([]float32, periodFrames*channels),
		fn:       fn,
	}
}

func (r *reader) activate() {
	r.active.Store(true)
}

// deactivate blocks until any callback in progress has returned.
func (r *reader) deactivate() {
	r.active.Store(false)
	for r.inflight.Load() != 0 {
		runtime.Gosched()
	}
}

// Read fills p with whole frames. A trailing partial frame is left for the
// next call.
func (r *reader) Read(p []byte) (int, error) {
	frameBytes := r.channels * bytesPerSample
	total := len(p) / frameBytes * frameBytes
	if total == 0 {
		return 0, nil
	}

	r.inflight.Add(1)
	defer r.inflight.Add(-1)

	if !r.active.Load() {
		clear(p[:total])
		return total, nil
	}

	for off := 0; off < total; {
		n := min((total-off)/bytesPerSample, len(r.scratch))
		chunk := r.scratch[:n]
		r.fn(chunk)
		for i, v := range chunk {
			binary.LittleEndian.PutUint32(p[off+i*bytesPerSample:], math.Float32bits(v))
		}
		off += n * bytesPerSample
	}
	return total, nil
}

var _ io.Reader = (*reader)(nil)
