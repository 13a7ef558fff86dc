package hub

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultCapacity is the number of pending messages an Outbox holds before
// new messages are dropped.
const DefaultCapacity = 100

// ErrTimeout is returned by Dequeue when no message arrives within the timeout.
var ErrTimeout = errors.New("outbox: dequeue timed out")

// nextID hands out outbox identities. IDs are never reused within a process.
var nextID atomic.Uint64

// Outbox is a bounded FIFO of serialized frames owned by a single stream session.
// Producers call Enqueue, which never blocks; the owning session drains it with Dequeue.
type Outbox struct {
	id    uint64
	queue chan string

	mu     sync.RWMutex
	closed bool
}

// NewOutbox creates an open outbox holding at most capacity pending messages.
// A non-positive capacity selects DefaultCapacity.
func NewOutbox(capacity int) *Outbox {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Outbox{
		id:    nextID.Add(1),
		queue: make(chan string, capacity),
	}
}

// ID returns the outbox identity.
func (o *Outbox) ID() uint64 { return o.id }

// Cap returns the maximum number of pending messages.
func (o *Outbox) Cap() int { return cap(o.queue) }

// Len returns the number of pending messages.
func (o *Outbox) Len() int { return len(o.queue) }

// Closed reports whether the outbox has stopped accepting messages.
func (o *Outbox) Closed() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.closed
}

// Enqueue appends msg to the tail of the queue. It returns false, dropping
// msg, when the queue is full or the outbox is closed.
func (o *Outbox) Enqueue(msg string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed {
		return false
	}

	select {
	case o.queue <- msg:
		return true
	default:
		return false
	}
}

// Dequeue removes and returns the head message. It waits up to timeout for
// one to arrive and returns ErrTimeout if none does, or ctx.Err() if ctx ends first.
func (o *Outbox) Dequeue(ctx context.Context, timeout time.Duration) (string, error) {
	select {
	case msg := <-o.queue:
		return msg, nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-o.queue:
		return msg, nil
	case <-timer.C:
		return "", ErrTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// close stops the outbox from accepting further messages. The queue channel
// itself is left open so a concurrent Enqueue can never panic.
func (o *Outbox) close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
}
