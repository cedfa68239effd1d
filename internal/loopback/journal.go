package loopback

import (
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smallnest/ringbuffer"

	"github.com/tphakala/audioloop/internal/audiodev"
)

const (
	// journalRecords bounds the stream events queued between supervisor drains
	journalRecords = 64

	recordSize = 8
)

// streamEvent is an asynchronous stream error reported by a host thread
type streamEvent struct {
	role audiodev.Role
	err  error
	at   time.Time
}

// journal queues stream events from host threads to the supervisor without
// blocking the writer. The byte ring carries sequence numbers; the events
// themselves sit in slots indexed by sequence. There are twice as many slots
// as ring records, so a writer never reuses a slot the reader has dequeued
// but not yet taken. A full journal or a contended lock drops the event.
type journal struct {
	rb    *ringbuffer.RingBuffer
	slots []atomic.Pointer[streamEvent]

	wmu     sync.Mutex // writers only, always TryLock
	seq     uint64     // guarded by wmu
	dropped atomic.Uint64
}

func newJournal(records int) *journal {
	return &journal{
		rb:    ringbuffer.New(records * recordSize),
		slots: make([]atomic.Pointer[streamEvent], 2*records),
	}
}

// record queues an event and reports whether it was kept.
func (j *journal) record(role audiodev.Role, err error) bool {
	if !j.wmu.TryLock() {
		j.dropped.Add(1)
		return false
	}
	defer j.wmu.Unlock()

	if j.rb.Free() < recordSize {
		j.dropped.Add(1)
		return false
	}

	seq := j.seq
	j.slots[seq%uint64(len(j.slots))].Store(&streamEvent{role: role, err: err, at: time.Now()})

	var buf [recordSize]byte
	binary.LittleEndian.PutUint64(buf[:], seq)
	if n, werr := j.rb.TryWrite(buf[:]); werr != nil || n != recordSize {
		// the reader held the lock; nothing was written
		j.slots[seq%uint64(len(j.slots))].Store(nil)
		j.dropped.Add(1)
		return false
	}
	j.seq++
	return true
}

// drain hands every queued event to fn in order. Only the supervisor calls it.
func (j *journal) drain(fn func(streamEvent)) int {
	var buf [recordSize]byte
	count := 0
	for j.rb.Length() >= recordSize {
		n, err := j.rb.Read(buf[:])
		if err != nil || n != recordSize {
			break
		}
		seq := binary.LittleEndian.Uint64(buf[:])
		if ev := j.slots[seq%uint64(len(j.slots))].Swap(nil); ev != nil {
			fn(*ev)
			count++
		}
	}
	return count
}

// Dropped returns the events lost to a full or busy journal
func (j *journal) Dropped() uint64 { return j.dropped.Load() }
