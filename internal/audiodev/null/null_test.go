package null

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/audioloop/internal/audiodev"
	"github.com/tphakala/audioloop/internal/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testConfig = audiodev.StreamConfig{SampleRate: 48000, Channels: 2, Format: audiodev.FormatF32, PeriodFrames: 96}

func openPair(t *testing.T, h *Host, capture audiodev.CaptureFunc, playback audiodev.PlaybackFunc, onErr audiodev.ErrorFunc) (in, out audiodev.Stream) {
	t.Helper()

	inputs, err := h.Devices(audiodev.Input)
	require.NoError(t, err)
	outputs, err := h.Devices(audiodev.Output)
	require.NoError(t, err)

	in, err = h.OpenInput(&inputs[0], testConfig, capture, onErr)
	require.NoError(t, err)
	out, err = h.OpenOutput(&outputs[0], testConfig, playback, onErr)
	require.NoError(t, err)
	return in, out
}

func TestDevices(t *testing.T) {
	t.Parallel()

	h := New()
	for _, role := range []audiodev.Role{audiodev.Input, audiodev.Output} {
		devs, err := h.Devices(role)
		require.NoError(t, err)
		require.Len(t, devs, 1)
		assert.True(t, devs[0].IsDefault)
		assert.Equal(t, role, devs[0].Role)
		assert.Equal(t, DefaultConfigs, devs[0].Configs)
	}

	devs, err := New(WithoutDevices(audiodev.Output)).Devices(audiodev.Output)
	require.NoError(t, err)
	assert.Empty(t, devs)
}

func TestInputGeneratesToneAndOutputRecordsPeak(t *testing.T) {
	t.Parallel()

	h := New()
	var maxIn atomic.Uint32
	capture := func(in []float32) {
		for _, v := range in {
			if v > 0 && uint32(v*1000) > maxIn.Load() {
				maxIn.Store(uint32(v * 1000))
			}
		}
	}
	playback := func(out []float32) {
		for i := range out {
			out[i] = -0.5
		}
	}

	in, out := openPair(t, h, capture, playback, nil)
	require.NoError(t, out.Start())
	require.NoError(t, in.Start())

	inStream, outStream := h.LastStream(audiodev.Input), h.LastStream(audiodev.Output)
	require.Eventually(t, func() bool {
		return inStream.Callbacks() >= 3 && outStream.Callbacks() >= 3
	}, time.Second, time.Millisecond)

	require.NoError(t, h.Close())

	assert.InDelta(t, 0.5, outStream.Peak(), 1e-6)
	assert.Equal(t, outStream.Callbacks()*96, outStream.Frames())
	assert.Greater(t, maxIn.Load(), uint32(0), "input produced a tone")
	assert.LessOrEqual(t, maxIn.Load(), uint32(toneAmplitude*1000))
}

func TestStopWaitsForCallback(t *testing.T) {
	t.Parallel()

	h := New()
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32

	capture := func([]float32) {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
	}
	in, _ := openPair(t, h, capture, func([]float32) {}, nil)
	require.NoError(t, in.Start())
	<-entered

	stopped := make(chan struct{})
	go func() {
		_ = in.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while the callback was still running")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	<-stopped

	n := calls.Load()
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, n, calls.Load(), "no callbacks after Stop")
	require.NoError(t, h.Close())
}

func TestFaultInjection(t *testing.T) {
	t.Parallel()

	openErr := errors.NewStd("device busy")
	startErr := errors.NewStd("device unplugged")

	t.Run("open error", func(t *testing.T) {
		t.Parallel()
		h := New(WithOpenError(audiodev.Output, openErr))
		devs, _ := h.Devices(audiodev.Output)
		_, err := h.OpenOutput(&devs[0], testConfig, func([]float32) {}, nil)
		require.ErrorIs(t, err, openErr)
	})

	t.Run("start error", func(t *testing.T) {
		t.Parallel()
		h := New(WithStartError(audiodev.Input, startErr))
		in, out := openPair(t, h, func([]float32) {}, func([]float32) {}, nil)
		require.NoError(t, out.Start())
		require.ErrorIs(t, in.Start(), startErr)
		require.NoError(t, h.Close())
	})

	t.Run("async error keeps running", func(t *testing.T) {
		t.Parallel()
		asyncErr := errors.NewStd("xrun")
		got := make(chan error, 1)
		h := New(WithAsyncError(audiodev.Output, asyncErr, 2))
		_, out := openPair(t, h, func([]float32) {}, func([]float32) {}, func(err error) { got <- err })
		require.NoError(t, out.Start())

		select {
		case err := <-got:
			require.ErrorIs(t, err, asyncErr)
		case <-time.After(time.Second):
			t.Fatal("async error not reported")
		}
		assert.True(t, h.LastStream(audiodev.Output).Running())
		require.NoError(t, h.Close())
	})

	t.Run("unexpected stop and restart", func(t *testing.T) {
		t.Parallel()
		got := make(chan error, 1)
		h := New(WithUnexpectedStop(audiodev.Input, 2))
		in, _ := openPair(t, h, func([]float32) {}, func([]float32) {}, func(err error) { got <- err })
		require.NoError(t, in.Start())

		select {
		case err := <-got:
			require.ErrorIs(t, err, audiodev.ErrStreamStopped)
		case <-time.After(time.Second):
			t.Fatal("unexpected stop not reported")
		}

		s := h.LastStream(audiodev.Input)
		require.Eventually(t, func() bool { return !s.Running() }, time.Second, time.Millisecond)

		require.NoError(t, in.Start())
		before := s.Callbacks()
		require.Eventually(t, func() bool { return s.Callbacks() > before+2 }, time.Second, time.Millisecond)
		require.NoError(t, h.Close())
	})
}

func TestClosedStreamAndHost(t *testing.T) {
	t.Parallel()

	h := New()
	in, _ := openPair(t, h, func([]float32) {}, func([]float32) {}, nil)

	require.NoError(t, in.Close())
	require.ErrorIs(t, in.Start(), audiodev.ErrStreamClosed)
	require.NoError(t, in.Stop(), "Stop after Close is a no-op")

	require.NoError(t, h.Close())
	devs, _ := h.Devices(audiodev.Input)
	_, err := h.OpenInput(&devs[0], testConfig, func([]float32) {}, nil)
	require.ErrorIs(t, err, audiodev.ErrStreamClosed)
}

func TestInvalidConfigRejected(t *testing.T) {
	t.Parallel()

	h := New()
	devs, _ := h.Devices(audiodev.Input)
	_, err := h.OpenInput(&devs[0], audiodev.StreamConfig{Channels: 2}, func([]float32) {}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}
