package reactor

import "time"

// Event is one readiness notification, normalized across the
// epoll/kqueue backends in poller_linux.go/poller_darwin.go.
type Event struct {
	Fd       int32
	Readable bool
	Writable bool
	HangUp   bool
	Err      bool
}

// Poller is the readiness-notification primitive the reactor's loop
// drives: register interest in an fd, get back which fds became ready.
// Every registration is one-shot, the Go analogue of the original's
// EPOLLONESHOT — the caller must re-arm with ModRead/ModWrite after
// handling an event, same as the original's modfd.
type Poller interface {
	AddRead(fd int32) error
	AddWrite(fd int32) error
	ModRead(fd int32) error
	ModWrite(fd int32) error
	Remove(fd int32) error
	Wait(events []Event, timeout time.Duration) (int, error)
	Close() error
}
