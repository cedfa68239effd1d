// Package loopback moves audio from a capture stream to a playback stream.
//
// The two device callbacks run on independent real-time threads with no
// shared clock. Samples cross between them through Ring, a lock-free
// single-producer single-consumer buffer: Capture is the only writer and
// Playback the only reader. Neither callback blocks, allocates or logs.
// When the writer runs ahead the oldest frames are dropped; when the reader
// runs ahead it outputs silence.
//
// Manager owns the streams and the ring:
//
//	m := loopback.NewManager(resolver, host, loopback.DefaultOptions(), log)
//	if err := m.Configure(); err != nil {
//	    return err
//	}
//	return m.Run(ctx) // starts, supervises until ctx is done, then stops
//
// Asynchronous stream errors are counted and queued in a small journal from
// the host thread. A supervisor goroutine drains the journal, logs, reports
// and, when a stream stopped on its own, restarts it once.
package loopback
