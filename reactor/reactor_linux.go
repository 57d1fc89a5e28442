//go:build linux

package reactor

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

func newPlatformReactor() (Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollReactor{
		base:   newBase(),
		epfd:   epfd,
		cbs:    make(map[int]regEntry),
		events: make([]unix.EpollEvent, 256),
	}, nil
}

// epollReactor is the Linux epoll-backed Reactor.
type epollReactor struct {
	base

	mu     sync.Mutex
	epfd   int
	cbs    map[int]regEntry
	events []unix.EpollEvent
}

func isTemporary(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR
}

func toEpollEvents(kind EventKind) uint32 {
	var ev uint32
	if kind&Readable != 0 {
		ev |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if kind&Writable != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func (r *epollReactor) RegisterSocket(fd int, kind EventKind, cb func(EventKind)) error {
	ev := unix.EpollEvent{Events: toEpollEvents(kind), Fd: int32(fd)}

	r.mu.Lock()
	_, exists := r.cbs[fd]
	r.cbs[fd] = regEntry{kind: kind, cb: cb}
	r.mu.Unlock()

	op := unix.EPOLL_CTL_ADD
	if exists {
		op = unix.EPOLL_CTL_MOD
	}
	return unix.EpollCtl(r.epfd, op, fd, &ev)
}

func (r *epollReactor) UnregisterSocket(fd int) error {
	r.mu.Lock()
	_, ok := r.cbs[fd]
	delete(r.cbs, fd)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if err == unix.ENOENT {
		return nil
	}
	return err
}

func (r *epollReactor) CloseSocket(fd int) {
	_ = r.UnregisterSocket(fd)
	unix.Close(fd)
}

func (r *epollReactor) SocketRead(fd int, buf []byte) Result {
	n, err := unix.Read(fd, buf)
	switch {
	case err != nil && isTemporary(err):
		return Result{Status: WouldBlock}
	case err != nil:
		return Result{Status: Error, Err: err}
	case n == 0:
		return Result{Status: EOF}
	default:
		return Result{Status: OK, N: n}
	}
}

func (r *epollReactor) SocketWrite(fd int, data []byte) Result {
	n, err := unix.Write(fd, data)
	switch {
	case err != nil && isTemporary(err):
		return Result{Status: WouldBlock}
	case err != nil:
		return Result{Status: Error, Err: err}
	default:
		return Result{Status: OK, N: n}
	}
}

func (r *epollReactor) RunOnce(timeout time.Duration) {
	wait := r.fireDueTimers()
	ms := int(timeout / time.Millisecond)
	if wait >= 0 {
		waitMs := int(wait / time.Millisecond)
		if ms < 0 || waitMs < ms {
			ms = waitMs
		}
	}
	if ms < 0 {
		ms = 100
	}

	n, err := unix.EpollWait(r.epfd, r.events, ms)
	if err != nil {
		if err == unix.EINTR {
			return
		}
		return
	}

	for i := 0; i < n; i++ {
		ev := r.events[i]
		fd := int(ev.Fd)

		r.mu.Lock()
		entry, ok := r.cbs[fd]
		r.mu.Unlock()
		if !ok {
			continue
		}

		var kind EventKind
		if ev.Events&(unix.EPOLLIN|unix.EPOLLRDHUP|unix.EPOLLHUP|unix.EPOLLERR) != 0 {
			kind |= Readable
		}
		if ev.Events&unix.EPOLLOUT != 0 {
			kind |= Writable
		}
		entry.cb(kind)
	}
}

func (r *epollReactor) Run() {
	for !r.stopped() {
		r.RunOnce(100 * time.Millisecond)
	}
}
