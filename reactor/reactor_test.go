//go:build linux || darwin

package reactor

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func socketPair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	for _, fd := range fds {
		if err := unix.SetNonblock(fd, true); err != nil {
			t.Fatalf("set nonblock: %v", err)
		}
	}
	return fds[0], fds[1]
}

func TestReactorReadWriteReadiness(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Stop()

	a, b := socketPair(t)
	defer r.CloseSocket(a)
	defer r.CloseSocket(b)

	readable := make(chan struct{}, 1)
	if err := r.RegisterSocket(b, Readable, func(EventKind) {
		select {
		case readable <- struct{}{}:
		default:
		}
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	res := r.SocketWrite(a, []byte("hello"))
	if res.Status != OK || res.N != 5 {
		t.Fatalf("write = %+v", res)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		r.RunOnce(50 * time.Millisecond)
		select {
		case <-readable:
			buf := make([]byte, 16)
			rd := r.SocketRead(b, buf)
			if rd.Status != OK || string(buf[:rd.N]) != "hello" {
				t.Fatalf("read = %+v", rd)
			}
			return
		default:
		}
	}
	t.Fatal("timed out waiting for readability")
}

func TestReactorWouldBlockOnEmptySocket(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Stop()

	a, b := socketPair(t)
	defer r.CloseSocket(a)
	defer r.CloseSocket(b)

	buf := make([]byte, 16)
	res := r.SocketRead(b, buf)
	if res.Status != WouldBlock {
		t.Fatalf("expected WOULD_BLOCK on empty socket, got %+v", res)
	}
}

func TestReactorTimerFiresAndCancelIsIdempotent(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Stop()

	fired := make(chan struct{}, 1)
	id := r.CreateTimer(10*time.Millisecond, func() {
		fired <- struct{}{}
	})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		r.RunOnce(20 * time.Millisecond)
		select {
		case <-fired:
			r.CancelTimer(id) // must not panic on an already-fired timer
			r.CancelTimer(id) // must be idempotent
			return
		default:
		}
	}
	t.Fatal("timer never fired")
}

func TestReactorCancelBeforeFire(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Stop()

	fired := false
	id := r.CreateTimer(50*time.Millisecond, func() { fired = true })
	r.CancelTimer(id)

	r.RunOnce(100 * time.Millisecond)
	if fired {
		t.Fatal("canceled timer must not fire")
	}
}
