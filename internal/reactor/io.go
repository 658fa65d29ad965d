package reactor

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/yourusername/webserver/internal/httpstate"
	"github.com/yourusername/webserver/internal/metrics"
	"github.com/yourusername/webserver/internal/workerpool"
)

// handleConnEvent routes one readiness notification for a non-listener,
// non-self-pipe fd to a read or write step, either inline (proactor
// mode) or via the worker pool (reactor mode), matching
// threadpool.hpp's two actor_model branches.
func (r *Reactor) handleConnEvent(ev Event) {
	fd := int(ev.Fd)
	slot := r.arena.Slot(fd)
	gen := slot.Generation()

	if slot.State() == StateFree {
		return
	}
	if ev.Err || ev.HangUp {
		r.closeConn(fd, gen)
		return
	}

	switch {
	case ev.Readable:
		if !slot.CAS(StateIdle, StateReading) {
			return
		}
		if r.cfg.Concurrency == workerpool.ModeReactor {
			if err := r.pool.Submit(workerpool.Task{ConnID: uint32(fd), Generation: gen, Intent: workerpool.IntentRead}); err != nil {
				r.closeConn(fd, gen)
			}
			return
		}
		if !r.doRead(fd, slot.Conn()) {
			r.closeConn(fd, gen)
			return
		}
		if err := r.pool.Submit(workerpool.Task{ConnID: uint32(fd), Generation: gen, Intent: workerpool.IntentProcess}); err != nil {
			r.closeConn(fd, gen)
		}

	case ev.Writable:
		if !slot.CAS(StateIdle, StateWriting) {
			return
		}
		if r.cfg.Concurrency == workerpool.ModeReactor {
			if err := r.pool.Submit(workerpool.Task{ConnID: uint32(fd), Generation: gen, Intent: workerpool.IntentWrite}); err != nil {
				r.closeConn(fd, gen)
			}
			return
		}
		r.doWriteAndAdvance(fd, gen, slot)
	}
}

// doRead fills conn's read buffer from fd. Level-triggered mode reads
// once per wakeup; edge-triggered loops until EAGAIN, since another
// readiness notification for the same edge will never come.
func (r *Reactor) doRead(fd int, conn *httpstate.Connection) bool {
	for {
		buf := conn.ReadBuffer()
		if len(buf) == 0 {
			// Buffer exhausted with no complete request in it yet;
			// ProcessRead will report BadRequest for an oversized
			// request line rather than looping here forever.
			return true
		}
		n, err := unix.Read(fd, buf)
		switch {
		case n > 0:
			conn.CommitRead(n)
			if r.cfg.Mode == httpstate.ModeLevelTriggered {
				return true
			}
		case n == 0:
			return false
		case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
			return true
		default:
			return false
		}
	}
}

// writeOnce issues a single writev against fd, the scatter/gather write
// write() builds an iovec array for by hand. golang.org/x/sys/unix
// doesn't expose a ready-made Writev wrapper, so this builds the
// unix.Iovec array and drops to the raw syscall directly, the same
// level write() itself operates at.
func (r *Reactor) writeOnce(fd int, iov [][]byte) (n int, wouldBlock bool, err error) {
	live := iov[:0:0]
	for _, b := range iov {
		if len(b) > 0 {
			live = append(live, b)
		}
	}
	if len(live) == 0 {
		return 0, false, nil
	}

	vecs := make([]unix.Iovec, len(live))
	for i, b := range live {
		vecs[i].Base = &b[0]
		vecs[i].SetLen(len(b))
	}

	r0, _, errno := unix.Syscall(unix.SYS_WRITEV, uintptr(fd), uintptr(unsafe.Pointer(&vecs[0])), uintptr(len(vecs)))
	if errno != 0 {
		if errno == unix.EAGAIN || errno == unix.EWOULDBLOCK {
			return 0, true, nil
		}
		return 0, false, errno
	}
	return int(r0), false, nil
}

// doWriteAndAdvance issues one writev and drives the connection's write
// state forward: rearming for more writability, recycling the
// connection for keep-alive, or tearing it down.
func (r *Reactor) doWriteAndAdvance(fd int, gen uint32, slot *Slot) {
	// Set unconditionally (not CAS) since this is reached from both the
	// writable-readiness dispatch, which already moved the slot to
	// StateWriting, and directly from runProcess after a read, where the
	// slot is still StateReading.
	slot.Set(StateWriting)
	conn := slot.Conn()
	n, wouldBlock, err := r.writeOnce(fd, conn.WriteVec())
	if err != nil {
		r.closeConn(fd, gen)
		return
	}
	if wouldBlock {
		r.poller.ModWrite(int32(fd))
		return
	}

	switch conn.Advance(n) {
	case httpstate.WriteWouldBlock:
		r.poller.ModWrite(int32(fd))
	default: // WriteDone
		if conn.Linger {
			conn.Reset()
			slot.Set(StateIdle)
			r.touchIdle(fd)
			r.poller.ModRead(int32(fd))
		} else {
			r.closeConn(fd, gen)
		}
	}
}

// runProcess runs the HTTP state machine to a conclusion and either
// rearms the connection for more input or hands it off for writing,
// the common tail of both actor_model branches once a read succeeds.
func (r *Reactor) runProcess(fd int, gen uint32, conn *httpstate.Connection, slot *Slot) {
	outcome := conn.ProcessRead(r.users)
	metrics.RequestsByOutcome.WithLabelValues(outcome.String()).Inc()
	if outcome == httpstate.NoRequest {
		slot.Set(StateIdle)
		r.touchIdle(fd)
		r.poller.ModRead(int32(fd))
		return
	}
	if !conn.ProcessWrite(outcome) {
		r.closeConn(fd, gen)
		return
	}
	r.touchIdle(fd)
	r.doWriteAndAdvance(fd, gen, slot)
}

// Read implements workerpool.Handler for ModeReactor: the worker
// performs the socket read itself, then runs the request to completion
// inline, the same as threadpool.hpp's actor_model==1, state==0 branch
// calling process() directly after a successful read rather than
// re-enqueuing.
func (r *Reactor) Read(task workerpool.Task) bool {
	slot := r.arena.Slot(int(task.ConnID))
	if !slot.Valid(task.Generation) {
		return false
	}
	fd := int(task.ConnID)
	if !r.doRead(fd, slot.Conn()) {
		r.closeConn(fd, task.Generation)
		return false
	}
	r.runProcess(fd, task.Generation, slot.Conn(), slot)
	return true
}

// Write implements workerpool.Handler for ModeReactor.
func (r *Reactor) Write(task workerpool.Task) bool {
	slot := r.arena.Slot(int(task.ConnID))
	if !slot.Valid(task.Generation) {
		return false
	}
	r.doWriteAndAdvance(int(task.ConnID), task.Generation, slot)
	return true
}

// Process implements workerpool.Handler for ModeProactor, where the
// reactor goroutine already performed the read and only handed off the
// parse/route/respond step.
func (r *Reactor) Process(task workerpool.Task) {
	slot := r.arena.Slot(int(task.ConnID))
	if !slot.Valid(task.Generation) {
		return
	}
	r.runProcess(int(task.ConnID), task.Generation, slot.Conn(), slot)
}
