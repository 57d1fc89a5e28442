//go:build darwin

package reactor

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

func newPlatformReactor() (Reactor, error) {
	kqfd, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	return &kqueueReactor{
		base:   newBase(),
		kqfd:   kqfd,
		cbs:    make(map[int]regEntry),
		events: make([]unix.Kevent_t, 256),
	}, nil
}

type kqueueReactor struct {
	base

	mu     sync.Mutex
	kqfd   int
	cbs    map[int]regEntry
	events []unix.Kevent_t
}

func isTemporary(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR
}

func (r *kqueueReactor) RegisterSocket(fd int, kind EventKind, cb func(EventKind)) error {
	var changes []unix.Kevent_t
	if kind&Readable != 0 {
		changes = append(changes, unix.Kevent_t{
			Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_ADD | unix.EV_ENABLE,
		})
	}
	if kind&Writable != 0 {
		changes = append(changes, unix.Kevent_t{
			Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_ADD | unix.EV_ENABLE,
		})
	}

	r.mu.Lock()
	r.cbs[fd] = regEntry{kind: kind, cb: cb}
	r.mu.Unlock()

	_, err := unix.Kevent(r.kqfd, changes, nil, nil)
	return err
}

func (r *kqueueReactor) UnregisterSocket(fd int) error {
	r.mu.Lock()
	entry, ok := r.cbs[fd]
	delete(r.cbs, fd)
	r.mu.Unlock()

	if !ok {
		return nil
	}

	var changes []unix.Kevent_t
	if entry.kind&Readable != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE})
	}
	if entry.kind&Writable != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE})
	}
	_, err := unix.Kevent(r.kqfd, changes, nil, nil)
	return err
}

func (r *kqueueReactor) CloseSocket(fd int) {
	_ = r.UnregisterSocket(fd)
	unix.Close(fd)
}

func (r *kqueueReactor) SocketRead(fd int, buf []byte) Result {
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

func (r *kqueueReactor) SocketWrite(fd int, data []byte) Result {
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

func (r *kqueueReactor) RunOnce(timeout time.Duration) {
	wait := r.fireDueTimers()
	if wait >= 0 && wait < timeout {
		timeout = wait
	}
	if timeout < 0 {
		timeout = 100 * time.Millisecond
	}

	ts := unix.NsecToTimespec(timeout.Nanoseconds())
	n, err := unix.Kevent(r.kqfd, nil, r.events, &ts)
	if err != nil {
		return
	}

	for i := 0; i < n; i++ {
		ev := r.events[i]
		fd := int(ev.Ident)

		r.mu.Lock()
		entry, ok := r.cbs[fd]
		r.mu.Unlock()
		if !ok {
			continue
		}

		var kind EventKind
		switch ev.Filter {
		case unix.EVFILT_READ:
			kind = Readable
		case unix.EVFILT_WRITE:
			kind = Writable
		}
		entry.cb(kind)
	}
}

func (r *kqueueReactor) Run() {
	for !r.stopped() {
		r.RunOnce(100 * time.Millisecond)
	}
}
