package engine

import (
	"sync"

	"github.com/roach88/buyflow/internal/intent"
)

// mailbox is the engine's thread-safe FIFO of pending intents.
//
// It is unbounded: effect tasks must never block on a busy reducer, and a
// quote refresh that completes while the user is typing simply queues
// behind the typed amounts.
//
// The signal channel lets Run wait for intents while also watching its
// context.
type mailbox struct {
	mu      sync.Mutex
	intents []intent.Intent
	closed  bool
	signal  chan struct{} // buffered, size 1
}

func newMailbox() *mailbox {
	return &mailbox{
		intents: make([]intent.Intent, 0, 16),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue adds an intent to the back of the mailbox.
// Returns false if the mailbox is closed.
func (q *mailbox) Enqueue(in intent.Intent) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.intents = append(q.intents, in)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front intent without blocking.
func (q *mailbox) TryDequeue() (intent.Intent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.intents) == 0 {
		return nil, false
	}

	in := q.intents[0]

	// Drop the reference so the backing array does not retain states
	// carried by large intents (payment options, quotes).
	q.intents[0] = nil

	if len(q.intents) == 1 {
		q.intents = q.intents[:0]
	} else {
		q.intents = q.intents[1:]
	}

	return in, true
}

// Wait returns a channel that signals when intents may be available. It is
// closed by Close.
func (q *mailbox) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of pending intents.
func (q *mailbox) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.intents)
}

// Closed reports whether Close has been called.
func (q *mailbox) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops accepting intents and wakes any waiter. Pending intents can
// still be dequeued.
func (q *mailbox) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
