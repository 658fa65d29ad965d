//go:build darwin

package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

// kqueuePoller implements Poller on Darwin/BSD with kqueue. One-shot
// semantics come from EV_ONESHOT, the kqueue analogue of EPOLLONESHOT.
type kqueuePoller struct {
	kq         int
	extraFlags uint16
}

// NewPoller returns the kqueue-backed Poller. edgeTriggered selects
// EV_CLEAR (kqueue's edge-triggered flag); level-triggered omits it.
func NewPoller(edgeTriggered bool) (Poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	p := &kqueuePoller{kq: kq}
	if edgeTriggered {
		p.extraFlags = unix.EV_CLEAR
	}
	return p, nil
}

func (p *kqueuePoller) register(fd int32, filter int16) error {
	ev := unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: filter,
		Flags:  unix.EV_ADD | unix.EV_ONESHOT | p.extraFlags,
	}
	_, err := unix.Kevent(p.kq, []unix.Kevent_t{ev}, nil, nil)
	return err
}

func (p *kqueuePoller) AddRead(fd int32) error  { return p.register(fd, unix.EVFILT_READ) }
func (p *kqueuePoller) AddWrite(fd int32) error { return p.register(fd, unix.EVFILT_WRITE) }
func (p *kqueuePoller) ModRead(fd int32) error  { return p.register(fd, unix.EVFILT_READ) }
func (p *kqueuePoller) ModWrite(fd int32) error { return p.register(fd, unix.EVFILT_WRITE) }

func (p *kqueuePoller) Remove(fd int32) error {
	evs := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	}
	// Deleting a filter that was never registered is harmless to
	// ignore; at most one of these two is actually present.
	unix.Kevent(p.kq, evs, nil, nil)
	return nil
}

func (p *kqueuePoller) Wait(events []Event, timeout time.Duration) (int, error) {
	raw := make([]unix.Kevent_t, len(events))
	var ts *unix.Timespec
	if timeout >= 0 {
		t := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &t
	}
	n, err := unix.Kevent(p.kq, nil, raw, ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	for i := 0; i < n; i++ {
		events[i] = Event{
			Fd:       int32(raw[i].Ident),
			Readable: raw[i].Filter == unix.EVFILT_READ,
			Writable: raw[i].Filter == unix.EVFILT_WRITE,
			HangUp:   raw[i].Flags&unix.EV_EOF != 0,
			Err:      raw[i].Flags&unix.EV_ERROR != 0,
		}
	}
	return n, nil
}

func (p *kqueuePoller) Close() error {
	return unix.Close(p.kq)
}
