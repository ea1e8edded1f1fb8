//go:build linux
// +build linux

package poller

import (
	"golang.org/x/sys/unix"
)

// EpollPoller is an epoll-based I/O multiplexer. It is always level
// triggered (no EPOLLET): a connection the event loop hasn't fully drained
// stays readable on the next Wait instead of silently going quiet.
type EpollPoller struct {
	epfd   int
	events []unix.EpollEvent
}

func NewPoller() (Poller, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, err
	}
	return &EpollPoller{
		epfd:   epfd,
		events: make([]unix.EpollEvent, 1024),
	}, nil
}

func epollMask(interest Interest) uint32 {
	var mask uint32 = unix.EPOLLRDHUP
	if interest.Readable() {
		mask |= unix.EPOLLIN
	}
	if interest.Writable() {
		mask |= unix.EPOLLOUT
	}
	return mask
}

func (p *EpollPoller) Add(fd int, interest Interest) error {
	ev := unix.EpollEvent{Events: epollMask(interest), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (p *EpollPoller) Modify(fd int, interest Interest) error {
	ev := unix.EpollEvent{Events: epollMask(interest), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

func (p *EpollPoller) Remove(fd int) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *EpollPoller) Wait(timeoutMillis int) ([]Event, error) {
	n, err := unix.EpollWait(p.epfd, p.events, timeoutMillis)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	out := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		e := p.events[i]
		out = append(out, Event{
			FD:       int(e.Fd),
			Readable: e.Events&(unix.EPOLLIN|unix.EPOLLRDHUP) != 0,
			Writable: e.Events&unix.EPOLLOUT != 0,
			Error:    e.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0,
		})
	}
	return out, nil
}

func (p *EpollPoller) Close() error {
	return unix.Close(p.epfd)
}

// SetNonblock puts fd into non-blocking mode, required before it is ever
// registered with the poller.
func SetNonblock(fd int) error {
	return unix.SetNonblock(fd, true)
}
