package queue

import (
	"sync"
	"time"

	"bitchat/internal/domain"
)

// Entry is one buffered inbound message.
type Entry struct {
	Message    domain.Message
	EnqueuedAt time.Time
}

// Inbound is an unbounded FIFO with a timeout-bounded blocking dequeue.
//
// Enqueue never blocks, so it is safe from transport callback contexts.
// Dequeue serves a single draining consumer that wakes on a timeout to check
// liveness between messages.
type Inbound struct {
	mu      sync.Mutex
	entries []Entry
	wake    chan struct{}
	closed  bool
}

// NewInbound returns an empty open queue.
func NewInbound() *Inbound {
	return &Inbound{wake: make(chan struct{}, 1)}
}

// Enqueue appends m and wakes the consumer. It reports false when the queue
// is closed and the message was dropped.
func (q *Inbound) Enqueue(m domain.Message) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.entries = append(q.entries, Entry{Message: m, EnqueuedAt: time.Now()})
	// Non-blocking: one pending token is enough to wake the consumer.
	select {
	case q.wake <- struct{}{}:
	default:
	}
	q.mu.Unlock()
	return true
}

// Dequeue pops the oldest entry, waiting up to timeout for one to arrive.
// The second result is false when the wait timed out or the queue is closed
// and drained.
func (q *Inbound) Dequeue(timeout time.Duration) (Entry, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		q.mu.Lock()
		if len(q.entries) > 0 {
			e := q.entries[0]
			q.entries = q.entries[1:]
			q.mu.Unlock()
			return e, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return Entry{}, false
		}
		select {
		case <-q.wake:
		case <-timer.C:
			return Entry{}, false
		}
	}
}

// Len reports how many entries are buffered.
func (q *Inbound) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Closed reports whether Close has been called.
func (q *Inbound) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops accepting new entries and wakes a blocked consumer. Buffered
// entries remain dequeueable. Idempotent.
func (q *Inbound) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.wake)
	}
	q.mu.Unlock()
}
