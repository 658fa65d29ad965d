// Package blockqueue implements the bounded blocking FIFO that backs both
// the worker pool's request queue and the async log sink's line queue.
//
// It is a generic rendering of original_source/log/block_queue.hpp: a
// fixed-capacity circular array, guarded by one mutex, with blocking pop
// built on a condition variable. Push never blocks — a full queue reports
// ErrFull so the caller can fall back (the log sink falls back to a
// synchronous write; the worker pool rejects the connection).
package blockqueue

import (
	"errors"
	"time"

	"github.com/yourusername/webserver/internal/syncutil"
)

// ErrFull is returned by Push when the queue is at capacity.
var ErrFull = errors.New("blockqueue: full")

// ErrClosed is returned by Push/Pop once the queue has been closed.
var ErrClosed = errors.New("blockqueue: closed")

// Queue is a fixed-capacity circular buffer of T, safe for concurrent
// producers and consumers.
type Queue[T any] struct {
	mu       syncutil.Mutex
	notEmpty *syncutil.Cond

	items []T
	front int // index of the oldest element; -1 when empty
	back  int // index of the newest element; -1 when empty
	size  int

	closed bool
}

// New creates a queue with the given fixed capacity. capacity must be
// positive.
func New[T any](capacity int) (*Queue[T], error) {
	if capacity <= 0 {
		return nil, syncutil.ErrResourceInit
	}
	q := &Queue[T]{
		items: make([]T, capacity),
		front: -1,
		back:  -1,
	}
	q.notEmpty = syncutil.NewCond(&q.mu)
	return q, nil
}

// Cap returns the queue's fixed capacity.
func (q *Queue[T]) Cap() int {
	return len(q.items)
}

// Len returns the number of items currently queued.
func (q *Queue[T]) Len() int {
	var n int
	q.mu.With(func() { n = q.size })
	return n
}

// Push appends item at the back of the queue. It never blocks: a full
// queue returns ErrFull, a closed queue returns ErrClosed, and on success
// the broadcast wakes any consumer blocked in Pop/PopTimed — matching the
// original's "wake everyone, let them re-check" broadcast-on-push design
// so draining to empty terminates cleanly.
func (q *Queue[T]) Push(item T) error {
	var err error
	q.mu.With(func() {
		if q.closed {
			err = ErrClosed
			return
		}
		if q.size >= len(q.items) {
			err = ErrFull
			q.notEmpty.Broadcast()
			return
		}
		q.back = (q.back + 1) % len(q.items)
		q.items[q.back] = item
		q.size++
		if q.front == -1 {
			q.front = q.back
		}
		q.notEmpty.Broadcast()
	})
	return err
}

// Pop removes and returns the oldest item, blocking until one is
// available or the queue is closed. The bool return is false only when
// the queue was closed with nothing left to drain.
func (q *Queue[T]) Pop() (T, bool) {
	var out T
	var ok bool
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.size == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if q.size == 0 {
		return out, false
	}
	out = q.items[q.front]
	var zero T
	q.items[q.front] = zero
	q.size--
	if q.size == 0 {
		q.front, q.back = -1, -1
	} else {
		q.front = (q.front + 1) % len(q.items)
	}
	ok = true
	return out, ok
}

// PopTimed behaves like Pop but gives up after timeout, returning
// (zero, false) if nothing arrived in time.
func (q *Queue[T]) PopTimed(timeout time.Duration) (T, bool) {
	var out T
	deadline := time.Now().Add(timeout)
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.size == 0 && !q.closed {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return out, false
		}
		if !q.notEmpty.WaitTimeout(remaining) {
			// Re-check size: a broadcast may have raced the deadline.
			if q.size == 0 {
				return out, false
			}
		}
	}
	if q.size == 0 {
		return out, false
	}
	out = q.items[q.front]
	var zero T
	q.items[q.front] = zero
	q.size--
	if q.size == 0 {
		q.front, q.back = -1, -1
	} else {
		q.front = (q.front + 1) % len(q.items)
	}
	return out, true
}

// Close marks the queue closed. Waiting consumers are woken and will
// observe a closed, empty queue once drained; further Push calls fail
// with ErrClosed.
func (q *Queue[T]) Close() {
	q.mu.With(func() {
		q.closed = true
		q.notEmpty.Broadcast()
	})
}
