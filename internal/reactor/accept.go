package reactor

import (
	"net"
	"os"

	"golang.org/x/sys/unix"

	"github.com/yourusername/webserver/internal/httpstate"
	"github.com/yourusername/webserver/internal/metrics"
	"github.com/yourusername/webserver/internal/socket"
)

// acceptLoop drains every pending connection off the listening socket.
// Level-triggered mode only needs one accept per wakeup in practice but
// looping to EAGAIN costs nothing and matches edge-triggered's
// requirement to drain fully.
func (r *Reactor) acceptLoop() {
	for {
		nfd, sa, err := unix.Accept4(int(r.listenFd), unix.SOCK_NONBLOCK)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			if r.log != nil {
				r.log.Warnf("reactor: accept: %v", err)
			}
			return
		}
		if nfd >= httpstate.MaxFD {
			unix.Close(nfd)
			if r.log != nil {
				r.log.Errorf("reactor: accepted fd %d exceeds arena capacity %d", nfd, httpstate.MaxFD)
			}
			continue
		}
		r.onAccept(nfd, sockaddrToAddr(sa))
	}
}

// onAccept tunes and registers one freshly accepted connection.
func (r *Reactor) onAccept(fd int, addr net.Addr) {
	tuneAcceptedConn(fd)

	conn := httpstate.NewConnection(fd, addr, r.cfg.DocRoot, r.cfg.Mode)
	conn.Linger = r.cfg.Linger
	gen := r.arena.Assign(fd, conn)
	conn.Generation = gen

	if err := r.poller.AddRead(int32(fd)); err != nil {
		if r.log != nil {
			r.log.Warnf("reactor: register fd %d: %v", fd, err)
		}
		r.arena.Release(fd)
		unix.Close(fd)
		return
	}

	r.scheduleIdle(fd, gen)
	r.activeConns.Add(1)
	metrics.AcceptedConnections.Inc()
	metrics.LiveConnections.Inc()
}

// tuneAcceptedConn applies NoDelay/KeepAlive to fd by wrapping it in a
// transient net.Conn just long enough for socket.Apply's
// SyscallConn-based option calls. The wrapper is built on a dup of fd
// (and net.FileConn dups again), so closing the wrappers afterward
// leaves fd itself untouched.
func tuneAcceptedConn(fd int) {
	dup, err := unix.Dup(fd)
	if err != nil {
		return
	}
	f := os.NewFile(uintptr(dup), "conn")
	if f == nil {
		unix.Close(dup)
		return
	}
	defer f.Close()
	nc, err := net.FileConn(f)
	if err != nil {
		return
	}
	defer nc.Close()
	socket.Apply(nc, socket.DefaultConfig())
}

// closeConn tears down fd's slot: removes it from the poller, cancels
// its idle timer, releases the arena slot, and closes the fd. gen must
// match the slot's current generation or the call is a stale no-op,
// protecting against a timer and a worker both deciding to close the
// same fd.
func (r *Reactor) closeConn(fd int, gen uint32) {
	slot := r.arena.Slot(fd)
	if !slot.Valid(gen) {
		return
	}
	if e := slot.Timer(); e != nil {
		r.timersMu.Lock()
		r.timers.Delete(e)
		r.timersMu.Unlock()
	}
	r.closeConnSlot(fd, slot)
}

// closeConnTimerFired is closeConn's counterpart for the idle-timeout
// path: Tick has already unlinked the entry (and sweepIdle is still
// holding timersMu while running the callback), so this skips the
// Delete/re-lock closeConn would otherwise do.
func (r *Reactor) closeConnTimerFired(fd int, gen uint32) {
	slot := r.arena.Slot(fd)
	if !slot.Valid(gen) {
		return
	}
	r.closeConnSlot(fd, slot)
}

func (r *Reactor) closeConnSlot(fd int, slot *Slot) {
	slot.Set(StateClosing)
	r.poller.Remove(int32(fd))
	unix.Close(fd)
	r.arena.Release(fd)
	r.activeConns.Add(-1)
	metrics.LiveConnections.Dec()
}

// sockaddrToAddr converts an accept4 sockaddr into a net.Addr for
// Connection.Addr, which only ever needs to be logged or inspected, not
// dialed.
func sockaddrToAddr(sa unix.Sockaddr) net.Addr {
	switch s := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(s.Addr[:]), Port: s.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(s.Addr[:]), Port: s.Port}
	default:
		return &net.TCPAddr{}
	}
}
