package syncclient

import (
	"sync"

	"github.com/ariefcatur/go-realtime-stock/internal/stock"
)

type queued struct {
	seq uint64
	ev  stock.Event
}

// Queue buffers locally produced events until they are on the wire.
//
// An event leaves the queue only after its send succeeded, so a flush that
// is cut short by a dropped channel resumes where it stopped on the next
// flush. Only one flush runs at a time.
type Queue struct {
	mu      sync.Mutex
	events  []queued
	nextSeq uint64

	// MaxQueued > 0 caps the queue, dropping the oldest event on overflow.
	// Zero keeps it unbounded.
	MaxQueued int

	flushMu sync.Mutex
}

// Enqueue appends ev and reports how many older events were dropped to make room.
func (q *Queue) Enqueue(ev stock.Event) (dropped int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextSeq++
	q.events = append(q.events, queued{seq: q.nextSeq, ev: ev})
	if q.MaxQueued > 0 && len(q.events) > q.MaxQueued {
		dropped = len(q.events) - q.MaxQueued
		q.events = append(q.events[:0:0], q.events[dropped:]...)
	}
	return dropped
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Snapshot copies the pending events, oldest first.
func (q *Queue) Snapshot() []stock.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]stock.Event, 0, len(q.events))
	for _, it := range q.events {
		out = append(out, it.ev)
	}
	return out
}

func (q *Queue) front() (queued, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return queued{}, false
	}
	return q.events[0], true
}

// remove drops the event with seq if it is still at the front; the cap may
// already have evicted it while it was being sent.
func (q *Queue) remove(seq uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) > 0 && q.events[0].seq == seq {
		q.events[0] = queued{}
		q.events = q.events[1:]
	}
}

// Flush sends queued events oldest first until the queue is empty or send
// fails. The failed event and everything behind it stay queued.
// Events enqueued while the flush runs are sent by the same flush.
func (q *Queue) Flush(send func(stock.Event) error) (sent int, err error) {
	q.flushMu.Lock()
	defer q.flushMu.Unlock()
	for {
		it, ok := q.front()
		if !ok {
			return sent, nil
		}
		if err := send(it.ev); err != nil {
			return sent, err
		}
		q.remove(it.seq)
		sent++
	}
}
