//go:build linux

package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

// epollPoller implements Poller on Linux, registering every fd
// EPOLLONESHOT | EPOLLRDHUP so a stale readiness notification can
// never arrive for an fd the reactor has already re-armed or closed,
// matching addfd/modfd's TRIGMode handling.
type epollPoller struct {
	epfd    int
	edgeTrig bool
}

// NewPoller returns the epoll-backed Poller. edgeTriggered selects
// EPOLLET, matching TRIGMode==1 in the original; level-triggered
// (false) matches TRIGMode==0.
func NewPoller(edgeTriggered bool) (Poller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollPoller{epfd: fd, edgeTrig: edgeTriggered}, nil
}

func (p *epollPoller) baseEvents() uint32 {
	e := uint32(unix.EPOLLRDHUP | unix.EPOLLONESHOT)
	if p.edgeTrig {
		e |= unix.EPOLLET
	}
	return e
}

func (p *epollPoller) ctl(op int, fd int32, events uint32) error {
	ev := unix.EpollEvent{Events: events, Fd: fd}
	return unix.EpollCtl(p.epfd, op, int(fd), &ev)
}

func (p *epollPoller) AddRead(fd int32) error {
	return p.ctl(unix.EPOLL_CTL_ADD, fd, p.baseEvents()|unix.EPOLLIN)
}

func (p *epollPoller) AddWrite(fd int32) error {
	return p.ctl(unix.EPOLL_CTL_ADD, fd, p.baseEvents()|unix.EPOLLOUT)
}

func (p *epollPoller) ModRead(fd int32) error {
	return p.ctl(unix.EPOLL_CTL_MOD, fd, p.baseEvents()|unix.EPOLLIN)
}

func (p *epollPoller) ModWrite(fd int32) error {
	return p.ctl(unix.EPOLL_CTL_MOD, fd, p.baseEvents()|unix.EPOLLOUT)
}

func (p *epollPoller) Remove(fd int32) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, int(fd), nil)
}

func (p *epollPoller) Wait(events []Event, timeout time.Duration) (int, error) {
	raw := make([]unix.EpollEvent, len(events))
	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
	}
	n, err := unix.EpollWait(p.epfd, raw, ms)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	for i := 0; i < n; i++ {
		events[i] = Event{
			Fd:       raw[i].Fd,
			Readable: raw[i].Events&unix.EPOLLIN != 0,
			Writable: raw[i].Events&unix.EPOLLOUT != 0,
			HangUp:   raw[i].Events&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0,
			Err:      raw[i].Events&unix.EPOLLERR != 0,
		}
	}
	return n, nil
}

func (p *epollPoller) Close() error {
	return unix.Close(p.epfd)
}
