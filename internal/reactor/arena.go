// Package reactor drives the epoll/kqueue-style event loop described
// in spec: a single-threaded readiness loop over a self-pipe, a
// listening socket, and per-connection fds, dispatching read/write/
// process work either inline or onto the worker pool depending on
// concurrency mode.
package reactor

import (
	"sync/atomic"

	"github.com/yourusername/webserver/internal/httpstate"
	"github.com/yourusername/webserver/internal/timerlist"
)

// ConnState is the lifecycle state of one connection slot, swapped
// with atomic compare-and-swap so a timer tick racing a worker's
// completion can never both act on the same slot. The original
// tracked this with a bare int flag (m_state/timer_flag/improv) set
// from multiple threads with no synchronization at all; this is the
// fix spec's redesign notes call for.
type ConnState int32

const (
	// StateFree means the slot holds no live connection.
	StateFree ConnState = iota
	// StateIdle means the connection is live and waiting for
	// readiness (nothing in flight on it).
	StateIdle
	// StateReading means a read (or the Process step that follows one
	// in proactor mode) is in flight for this slot.
	StateReading
	// StateWriting means a write is in flight for this slot.
	StateWriting
	// StateClosing means the slot is being torn down; new readiness
	// events and timer callbacks for it must be ignored.
	StateClosing
)

// Slot is one arena entry: a connection plus the bookkeeping needed to
// detect that a stale callback (timer or worker) is talking about an
// fd that has since been closed and reused.
type Slot struct {
	state      atomic.Int32
	generation atomic.Uint32
	conn       *httpstate.Connection
	timer      *timerlist.Entry
}

// State reads the slot's current lifecycle state.
func (s *Slot) State() ConnState {
	return ConnState(s.state.Load())
}

// CAS attempts to move the slot from "from" to "to", reporting success.
func (s *Slot) CAS(from, to ConnState) bool {
	return s.state.CompareAndSwap(int32(from), int32(to))
}

// Set forces the slot's state, used when the caller already holds
// exclusive control of the slot (e.g. right after Assign).
func (s *Slot) Set(to ConnState) {
	s.state.Store(int32(to))
}

// Generation returns the slot's current generation, stamped onto every
// timer entry and task enqueued against the slot.
func (s *Slot) Generation() uint32 {
	return s.generation.Load()
}

// Conn returns the live connection, or nil if the slot is free.
func (s *Slot) Conn() *httpstate.Connection {
	return s.conn
}

// Timer returns the slot's idle-eviction timer entry, or nil if none is
// currently scheduled.
func (s *Slot) Timer() *timerlist.Entry {
	return s.timer
}

// SetTimer records the slot's idle-eviction timer entry so closeConn can
// unschedule it without the reactor needing a parallel fd->entry map.
func (s *Slot) SetTimer(e *timerlist.Entry) {
	s.timer = e
}

// Arena is a fixed-size table of Slots indexed by fd, bounded by
// httpstate.MaxFD, replacing the original's reliance on a bare
// http_conn[MAX_FD] array with no generation protection.
type Arena struct {
	slots [httpstate.MaxFD]Slot
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// Slot returns the slot for fd. Panics if fd is out of range, since an
// accepted fd outside [0, MaxFD) means the process has more open files
// than the arena was sized for — a startup/ulimit mismatch, not a
// request-time condition to recover from silently.
func (a *Arena) Slot(fd int) *Slot {
	return &a.slots[fd]
}

// Assign claims the slot for fd, bumping its generation so any timer
// or worker task still carrying the previous generation number is
// recognized as stale. Returns the new generation.
func (a *Arena) Assign(fd int, conn *httpstate.Connection) uint32 {
	s := &a.slots[fd]
	s.conn = conn
	s.Set(StateIdle)
	return s.generation.Add(1)
}

// Release frees the slot for fd. The generation is left untouched
// here and bumped again on the next Assign, so any task already
// enqueued against the old generation is guaranteed to mismatch
// whichever connection (if any) next occupies the slot.
func (a *Arena) Release(fd int) {
	s := &a.slots[fd]
	s.Set(StateFree)
	s.conn = nil
	s.timer = nil
}

// Valid reports whether gen is still the slot's current generation,
// the check every timer callback and worker task must perform before
// touching the connection.
func (s *Slot) Valid(gen uint32) bool {
	return s.State() != StateFree && s.generation.Load() == gen
}
