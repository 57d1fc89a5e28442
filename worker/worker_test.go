//go:build linux || darwin

package worker

import (
	"bytes"
	"testing"
	"time"

	"github.com/federikowsky/aurora/admission"
	"github.com/federikowsky/aurora/config"
	"github.com/federikowsky/aurora/context"
	"github.com/federikowsky/aurora/exception"
	"github.com/federikowsky/aurora/logging"
	"github.com/federikowsky/aurora/middleware"
	"github.com/federikowsky/aurora/router"
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

func TestWorkerSubmitSpawnsConnectionAndServesRequest(t *testing.T) {
	rt := router.New()
	rt.Handle("GET", "/ping", func(ctx any) {
		c := ctx.(*context.Context)
		c.Response.Status(200).Send([]byte("pong"))
	})

	cfg := config.Default()
	cfg.ReadDeadline = 2 * time.Second
	cfg.WriteDeadline = 2 * time.Second
	cfg.KeepAliveDeadline = 2 * time.Second

	w, err := New(0, Config{
		Router:     rt,
		Pipeline:   middleware.New(),
		Admission:  admission.New(&admission.Counters{}, &admission.Flags{}, 100, 0.9, 0.7, 100, 0, nil),
		Exceptions: exception.New(),
		Cfg:        cfg,
		Log:        logging.Discard(),
		ServerName: "aurora-test",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	go w.Start()
	defer w.Stop()

	client, server := socketPair(t)
	defer unix.Close(client)

	w.Submit(server)

	if _, err := unix.Write(client, []byte("GET /ping HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	var out bytes.Buffer
	deadline := time.Now().Add(3 * time.Second)
	buf := make([]byte, 4096)
	for time.Now().Before(deadline) {
		n, rerr := unix.Read(client, buf)
		if n > 0 {
			out.Write(buf[:n])
		}
		if rerr == unix.EAGAIN || rerr == unix.EWOULDBLOCK {
			time.Sleep(5 * time.Millisecond)
			continue
		}
		if rerr != nil || n == 0 {
			break
		}
	}

	if !bytes.Contains(out.Bytes(), []byte("200")) {
		t.Fatalf("expected 200 response, got: %q", out.Bytes())
	}
	if !bytes.Contains(out.Bytes(), []byte("pong")) {
		t.Fatalf("expected pong body, got: %q", out.Bytes())
	}
}
