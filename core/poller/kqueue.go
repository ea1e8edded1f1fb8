//go:build darwin || freebsd || netbsd || openbsd
// +build darwin freebsd netbsd openbsd

package poller

import (
	"golang.org/x/sys/unix"
)

// KqueuePoller is a kqueue-based I/O multiplexer, used on BSD/Darwin.
// Read and write interest are tracked as separate filters since kqueue has
// no single combined read+write event like epoll's bitmask.
type KqueuePoller struct {
	kqfd   int
	events []unix.Kevent_t
}

func NewPoller() (Poller, error) {
	kqfd, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	return &KqueuePoller{
		kqfd:   kqfd,
		events: make([]unix.Kevent_t, 1024),
	}, nil
}

func (p *KqueuePoller) changeInterest(fd int, interest Interest) error {
	var changes []unix.Kevent_t
	readFlags := uint16(unix.EV_DELETE)
	if interest.Readable() {
		readFlags = unix.EV_ADD | unix.EV_ENABLE
	}
	changes = append(changes, unix.Kevent_t{
		Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: readFlags,
	})
	writeFlags := uint16(unix.EV_DELETE)
	if interest.Writable() {
		writeFlags = unix.EV_ADD | unix.EV_ENABLE
	}
	changes = append(changes, unix.Kevent_t{
		Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: writeFlags,
	})
	// Deleting a filter that was never added returns ENOENT; that's fine,
	// it just means that direction wasn't being watched.
	for _, ch := range changes {
		_, err := unix.Kevent(p.kqfd, []unix.Kevent_t{ch}, nil, nil)
		if err != nil && ch.Flags == unix.EV_DELETE && err == unix.ENOENT {
			continue
		}
		if err != nil && ch.Flags != unix.EV_DELETE {
			return err
		}
	}
	return nil
}

func (p *KqueuePoller) Add(fd int, interest Interest) error {
	return p.changeInterest(fd, interest)
}

func (p *KqueuePoller) Modify(fd int, interest Interest) error {
	return p.changeInterest(fd, interest)
}

func (p *KqueuePoller) Remove(fd int) error {
	return p.changeInterest(fd, 0)
}

func (p *KqueuePoller) Wait(timeoutMillis int) ([]Event, error) {
	var ts *unix.Timespec
	if timeoutMillis >= 0 {
		ts = &unix.Timespec{
			Sec:  int64(timeoutMillis / 1000),
			Nsec: int64((timeoutMillis % 1000) * 1000000),
		}
	}
	n, err := unix.Kevent(p.kqfd, nil, p.events, ts)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	byFD := make(map[int]*Event, n)
	order := make([]int, 0, n)
	for i := 0; i < n; i++ {
		e := p.events[i]
		fd := int(e.Ident)
		ev, ok := byFD[fd]
		if !ok {
			order = append(order, fd)
			ev = &Event{FD: fd}
			byFD[fd] = ev
		}
		switch e.Filter {
		case unix.EVFILT_READ:
			ev.Readable = true
		case unix.EVFILT_WRITE:
			ev.Writable = true
		}
		if e.Flags&unix.EV_EOF != 0 || e.Flags&unix.EV_ERROR != 0 {
			ev.Error = true
		}
	}
	out := make([]Event, 0, len(order))
	for _, fd := range order {
		out = append(out, *byFD[fd])
	}
	return out, nil
}

func (p *KqueuePoller) Close() error {
	return unix.Close(p.kqfd)
}

func SetNonblock(fd int) error {
	return unix.SetNonblock(fd, true)
}
