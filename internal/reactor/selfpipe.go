package reactor

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// selfPipe delivers asynchronous signals into the reactor's own
// readiness loop, the same trick original_source's Utils::sig_handler
// used a raw socketpair for: Go's signal handlers can't safely run
// arbitrary code, so a goroutine receives signals the normal way and
// writes one byte per signal into a pipe the reactor polls like any
// other fd.
//
// SIGPIPE needs no explicit ignore here (the original called
// signal(SIGPIPE, SIG_IGN)): the Go runtime never delivers it to user
// code for a write to a closed socket, that surfaces as EPIPE instead.
type selfPipe struct {
	readFd  int
	writeFd int
	sigCh   chan os.Signal
}

// newSelfPipe creates the pipe and starts relaying the given signals
// into it as shutdown requests. The timer tick that drove the
// original's alarm(TIMESLOT) loop is injected separately by the
// reactor's own ticker goroutine via writeByte, not by a real SIGALRM.
func newSelfPipe(sigs ...os.Signal) (*selfPipe, error) {
	fds, err := unix.Pipe()
	if err != nil {
		return nil, err
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return nil, err
	}
	if err := unix.SetNonblock(fds[1], true); err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return nil, err
	}

	sp := &selfPipe{readFd: fds[0], writeFd: fds[1], sigCh: make(chan os.Signal, 16)}
	signal.Notify(sp.sigCh, sigs...)
	go sp.relay()
	return sp, nil
}

func (sp *selfPipe) relay() {
	for sig := range sp.sigCh {
		b := signalByte(sig)
		unix.Write(sp.writeFd, []byte{b})
	}
}

// writeByte injects a wakeup byte directly, used by the timer ticker
// goroutine to share the reactor's single wakeup path without going
// through a real OS signal.
func (sp *selfPipe) writeByte(b byte) {
	unix.Write(sp.writeFd, []byte{b})
}

// drain empties the pipe after a readiness notification and returns
// the distinct signal bytes seen, so the reactor can act on each kind
// once per wakeup even if several arrived in a burst.
func (sp *selfPipe) drain() []byte {
	var buf [64]byte
	seen := make(map[byte]bool)
	var out []byte
	for {
		n, err := unix.Read(sp.readFd, buf[:])
		if n <= 0 || err != nil {
			break
		}
		for _, b := range buf[:n] {
			if !seen[b] {
				seen[b] = true
				out = append(out, b)
			}
		}
	}
	return out
}

func (sp *selfPipe) close() {
	signal.Stop(sp.sigCh)
	close(sp.sigCh)
	unix.Close(sp.readFd)
	unix.Close(sp.writeFd)
}
