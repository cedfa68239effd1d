package oto

import (
	"encoding/binary"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/audioloop/internal/audiodev"
)

func decode(p []byte) []float32 {
	out := make([]float32, len(p)/bytesPerSample)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(p[i*bytesPerSample:]))
	}
	return out
}

func TestReaderEncodesCallbackOutput(t *testing.T) {
	t.Parallel()

	next := float32(0)
	r := newReader(2, 4, func(out []float32) {
		for i := range out {
			next++
			out[i] = next
		}
	})
	r.activate()

	// 10 frames requested, scratch holds 4 frames, plus 3 trailing bytes
	p := make([]byte, 10*2*bytesPerSample+3)
	n, err := r.Read(p)
	require.NoError(t, err)
	assert.Equal(t, 80, n)

	got := decode(p[:n])
	require.Len(t, got, 20)
	for i, v := range got {
		assert.Equal(t, float32(i+1), v)
	}
}

func TestReaderSilentWhileInactive(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	r := newReader(1, 8, func(out []float32) {
		calls.Add(1)
		for i := range out {
			out[i] = 1
		}
	})

	p := make([]byte, 8*bytesPerSample)
	for i := range p {
		p[i] = 0xff
	}
	n, err := r.Read(p)
	require.NoError(t, err)
	assert.Equal(t, len(p), n)
	assert.Equal(t, make([]float32, 8), decode(p))
	assert.Zero(t, calls.Load())
}

func TestReaderShortBuffer(t *testing.T) {
	t.Parallel()

	r := newReader(2, 8, func([]float32) { t.Fatal("callback must not run") })
	r.activate()

	n, err := r.Read(make([]byte, 7))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeactivateWaitsForCallback(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	release := make(chan struct{})
	r := newReader(1, 4, func([]float32) {
		close(entered)
		<-release
	})
	r.activate()

	readDone := make(chan struct{})
	go func() {
		_, _ = r.Read(make([]byte, 4*bytesPerSample))
		close(readDone)
	}()
	<-entered

	deactivated := make(chan struct{})
	go func() {
		r.deactivate()
		close(deactivated)
	}()

	select {
	case <-deactivated:
		t.Fatal("deactivate returned while the callback was running")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	<-readDone
	<-deactivated
}

func TestHostDevices(t *testing.T) {
	t.Parallel()

	h := New(nil)
	inputs, err := h.Devices(audiodev.Input)
	require.NoError(t, err)
	assert.Empty(t, inputs)

	outputs, err := h.Devices(audiodev.Output)
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.True(t, outputs[0].IsDefault)

	_, err = h.OpenInput(&outputs[0], audiodev.StreamConfig{}, nil, nil)
	require.ErrorIs(t, err, audiodev.ErrUnsupportedRole)

	require.NoError(t, h.Close(), "closing a host without a context is a no-op")
}
