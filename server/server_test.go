package server

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	auroractx "github.com/federikowsky/aurora/context"

	"github.com/federikowsky/aurora/config"
	"github.com/federikowsky/aurora/exception"
	"github.com/federikowsky/aurora/logging"
	"github.com/federikowsky/aurora/middleware"
	"github.com/federikowsky/aurora/router"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func newTestServer(t *testing.T) (*Server, int) {
	t.Helper()
	rt := router.New()
	rt.Handle("GET", "/ping", func(c any) {
		c.(*auroractx.Context).Response.Status(200).Send([]byte("pong"))
	})

	cfg := config.Default()
	cfg.Host = "127.0.0.1"
	cfg.Port = freePort(t)
	cfg.Workers = 1
	cfg.ReadDeadline = 2 * time.Second
	cfg.WriteDeadline = 2 * time.Second
	cfg.KeepAliveDeadline = 2 * time.Second
	cfg.GracePeriod = time.Second

	s := New(Options{
		Router:     rt,
		Pipeline:   middleware.New(),
		Exceptions: exception.New(),
		Config:     cfg,
		Log:        logging.Discard(),
	})
	return s, cfg.Port
}

func TestServerServesSimpleRequest(t *testing.T) {
	s, port := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	waitForReady(t, s)

	resp, err := http.Get("http://127.0.0.1:" + strconv.Itoa(port) + "/ping")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	buf := make([]byte, 64)
	n, _ := resp.Body.Read(buf)
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if string(buf[:n]) != "pong" {
		t.Fatalf("body = %q", buf[:n])
	}

	s.Shutdown()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
}

func TestServerMetricsSnapshotReflectsTraffic(t *testing.T) {
	s, port := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.Serve(ctx)
	waitForReady(t, s)
	defer s.Shutdown()

	resp, err := http.Get("http://127.0.0.1:" + strconv.Itoa(port) + "/ping")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()

	snap, err := s.MetricsSnapshot()
	if err != nil {
		t.Fatalf("MetricsSnapshot: %v", err)
	}
	accepted := snap.Fields["accepted_total"].GetNumberValue()
	if accepted < 1 {
		t.Fatalf("expected at least one accepted connection, got %v", accepted)
	}

	requestsTotal := snap.Fields["requests_total"].GetStructValue()
	if requestsTotal == nil || requestsTotal.Fields["200"].GetNumberValue() < 1 {
		t.Fatalf("expected requests_total[\"200\"] >= 1, got %v", snap.Fields["requests_total"])
	}
	if snap.Fields["request_duration_seconds_count"].GetNumberValue() < 1 {
		t.Fatalf("expected request_duration_seconds_count >= 1, got %v", snap.Fields["request_duration_seconds_count"])
	}
}

func waitForReady(t *testing.T, s *Server) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.flags.Ready.Load() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("server never became ready")
}
