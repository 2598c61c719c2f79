package reconcile

import "sync"

// outcomeQueue is a thread-safe FIFO queue between the driver and the
// dispatcher.
//
// The queue is unbounded so publishing a batch never blocks the driver,
// which may still hold a persistence unit the dispatcher's collaborators
// are waiting on.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the dispatch loop.
type outcomeQueue struct {
	mu       sync.Mutex
	outcomes []Outcome
	closed   bool
	signal   chan struct{} // Signals availability (buffered, size 1)
}

func newOutcomeQueue() *outcomeQueue {
	return &outcomeQueue{
		outcomes: make([]Outcome, 0, 64),
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue adds outcomes to the back of the queue.
// Returns false if the queue is closed.
func (q *outcomeQueue) Enqueue(os ...Outcome) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.outcomes = append(q.outcomes, os...)

	// Non-blocking: buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (Outcome{}, false) if queue is empty.
func (q *outcomeQueue) TryDequeue() (Outcome, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.outcomes) == 0 {
		return Outcome{}, false
	}

	o := q.outcomes[0]

	// Nil out the slot so the record and report pointers can be collected.
	q.outcomes[0] = Outcome{}

	if len(q.outcomes) == 1 {
		q.outcomes = q.outcomes[:0]
	} else {
		q.outcomes = q.outcomes[1:]
	}

	return o, true
}

// Wait returns a channel that signals when outcomes may be available.
// The channel is closed when the queue is closed.
func (q *outcomeQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *outcomeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.outcomes)
}

// Close signals that no more outcomes will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *outcomeQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}

// Drained reports whether the queue is closed and empty.
func (q *outcomeQueue) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.outcomes) == 0
}
