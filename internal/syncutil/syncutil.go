// Package syncutil wraps the mutex, counting semaphore, and condition
// variable primitives every other package in this module is built on.
//
// The wrappers exist so that a bad configuration surfaces at startup, not
// three goroutines deep during a request: NewSemaphore rejects a negative
// count with ErrResourceInit instead of panicking, matching the
// ResourceInitFailed error kind the rest of the module uses for
// construction-time failures. NewCond performs no check and returns no
// error; a nil locker is not detected until the Cond is used.
package syncutil

import (
	"errors"
	"sync"
	"time"
)

// ErrResourceInit is returned by constructors in this package when the
// requested primitive cannot be built (e.g. a negative semaphore
// count). Callers at the top of the process should treat it as fatal.
var ErrResourceInit = errors.New("syncutil: resource init failed")

// Mutex is a thin, explicit wrapper over sync.Mutex. It exists so call
// sites read the same way the original's locker.h did: Lock/Unlock pairs
// with no ambiguity about which field is the mutex.
type Mutex struct {
	mu sync.Mutex
}

// Lock acquires the mutex.
func (m *Mutex) Lock() { m.mu.Lock() }

// Unlock releases the mutex.
func (m *Mutex) Unlock() { m.mu.Unlock() }

// With runs fn with the mutex held and releases it on every return path,
// including a panic inside fn. This is the scoped-acquisition idiom the
// spec's RAII-style locker maps to in Go.
func (m *Mutex) With(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn()
}

// Semaphore is a counting semaphore backed by a buffered channel: the
// channel holds the available permits, a receive acquires one and a
// send releases one. This is the idiomatic Go rendering of a POSIX
// sem_t (see other_examples' bounded-channel-semaphore demo).
type Semaphore struct {
	slots chan struct{}
}

// NewSemaphore creates a semaphore with the given number of permits
// already available. value must be >= 0.
func NewSemaphore(value int) (*Semaphore, error) {
	if value < 0 {
		return nil, ErrResourceInit
	}
	s := &Semaphore{slots: make(chan struct{}, value)}
	for i := 0; i < value; i++ {
		s.slots <- struct{}{}
	}
	return s, nil
}

// Wait blocks until a permit is available, then takes it (the "P"
// operation).
func (s *Semaphore) Wait() {
	<-s.slots
}

// TryWait takes a permit without blocking. It reports whether a permit
// was available.
func (s *Semaphore) TryWait() bool {
	select {
	case <-s.slots:
		return true
	default:
		return false
	}
}

// Post returns a permit to the semaphore (the "V" operation).
func (s *Semaphore) Post() {
	select {
	case s.slots <- struct{}{}:
	default:
		// A Post beyond the configured capacity is a programming error
		// in the caller (releasing more than was ever acquired); drop it
		// rather than block or panic, since callers never check the
		// return value of a signal.
	}
}

// Cond wraps sync.Cond with a timed-wait helper, since sync.Cond has no
// native deadline support and the bounded queue's pop_timed needs one.
type Cond struct {
	c *sync.Cond
}

// NewCond builds a condition variable bound to the given locker, the
// same contract as sync.NewCond.
func NewCond(l sync.Locker) *Cond {
	return &Cond{c: sync.NewCond(l)}
}

// Wait blocks until Signal or Broadcast is called. The caller must hold
// the associated lock, exactly as with sync.Cond.
func (c *Cond) Wait() { c.c.Wait() }

// Signal wakes one waiter.
func (c *Cond) Signal() { c.c.Signal() }

// Broadcast wakes every waiter.
func (c *Cond) Broadcast() { c.c.Broadcast() }

// WaitTimeout waits for a signal for up to d, returning false if the
// deadline passed first. The caller must hold the associated lock on
// entry; it is re-acquired before WaitTimeout returns, same as Wait.
func (c *Cond) WaitTimeout(d time.Duration) bool {
	timedOut := make(chan struct{})
	timer := time.AfterFunc(d, func() {
		close(timedOut)
		c.c.Broadcast()
	})
	defer timer.Stop()

	c.c.Wait()

	select {
	case <-timedOut:
		return false
	default:
		return true
	}
}
