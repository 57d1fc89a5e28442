// Package server implements C9: the top-level supervisor that binds
// the listening socket, owns the admission Policy's shared counters
// and flags, fans accepted connections out round-robin across a fixed
// set of Workers, and drives graceful shutdown: bind one listener, set
// it non-blocking, and accept in a loop, generalized from a single
// poller servicing every connection into N Workers each with their own
// reactor, sized by a `runtime.NumCPU()`-based default repurposed here
// for reactor count instead of goroutine-pool size.
package server

import (
	"context"
	"fmt"
	"net"
	"runtime"
	"sync"
	"time"

	"github.com/federikowsky/aurora/admission"
	"github.com/federikowsky/aurora/config"
	"github.com/federikowsky/aurora/exception"
	"github.com/federikowsky/aurora/hooks"
	"github.com/federikowsky/aurora/middleware"
	"github.com/federikowsky/aurora/router"
	"github.com/federikowsky/aurora/worker"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/sys/unix"
)

// Server is Aurora's process-level supervisor (C9).
type Server struct {
	cfg        *config.Config
	router     *router.Router
	pipeline   *middleware.Pipeline
	exceptions *exception.Registry
	hooks      *hooks.Lifecycle
	log        hclog.Logger

	counters *admission.Counters
	flags    *admission.Flags
	policy   *admission.Policy
	health   *admission.Health
	metrics  *admission.RequestMetrics

	workers []*worker.Worker
	next    uint64 // round-robin cursor, accessed only from the accept goroutine

	listenFd int
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// Options bundles the pre-start wiring a Server needs: the fully
// built Router and Pipeline (both frozen once the Server starts, per
// the data model's invariant that routing/middleware never mutate
// after go-live) plus the exception registry and configuration.
type Options struct {
	Router     *router.Router
	Pipeline   *middleware.Pipeline
	Exceptions *exception.Registry
	Config     *config.Config
	Log        hclog.Logger
	Hooks      *hooks.Lifecycle
}

// New constructs a Server ready to Serve. No sockets are touched yet.
func New(opts Options) *Server {
	counters := &admission.Counters{}
	flags := &admission.Flags{}
	policy := admission.New(counters, flags, opts.Config.MaxConnections,
		opts.Config.ConnectionHighWater, opts.Config.ConnectionLowWater,
		opts.Config.MaxInFlightRequests, opts.Config.ShedRatio, opts.Config.ShedBypassGlobs)

	return &Server{
		cfg:        opts.Config,
		router:     opts.Router,
		pipeline:   opts.Pipeline,
		exceptions: opts.Exceptions,
		hooks:      opts.Hooks,
		log:        opts.Log,
		counters:   counters,
		flags:      flags,
		policy:     policy,
		health:     admission.NewHealth(flags, policy),
		metrics:    admission.NewRequestMetrics(),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Health exposes the liveness/readiness/startup surface to an
// embedder's own health-check routes.
func (s *Server) Health() *admission.Health { return s.health }

func (s *Server) workerCount() int {
	if s.cfg.Workers > 0 {
		return s.cfg.Workers
	}
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	return n
}

// Serve binds the configured host:port, starts every Worker, and
// accepts connections until the context is canceled or Shutdown is
// called. It blocks until shutdown completes.
func (s *Server) Serve(ctx context.Context) error {
	s.flags.Starting.Store(true)

	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port))
	if err != nil {
		return err
	}
	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		ln.Close()
		return fmt.Errorf("server: listener is not TCP")
	}
	lnFile, err := tcpLn.File()
	if err != nil {
		ln.Close()
		return err
	}
	s.listenFd = int(lnFile.Fd())
	if err := unix.SetNonblock(s.listenFd, true); err != nil {
		ln.Close()
		return err
	}

	n := s.workerCount()
	s.workers = make([]*worker.Worker, n)
	for i := 0; i < n; i++ {
		w, err := worker.New(i, worker.Config{
			Router:     s.router,
			Pipeline:   s.pipeline,
			Admission:  s.policy,
			Exceptions: s.exceptions,
			Cfg:        s.cfg,
			Log:        s.log,
			ServerName: "aurora",
			Hooks:      s.hooks,
			Metrics:    s.metrics,
		})
		if err != nil {
			ln.Close()
			return err
		}
		s.workers[i] = w
		go w.Start()
	}

	s.log.Info("listening", "addr", ln.Addr().String(), "workers", n)
	s.flags.Starting.Store(false)
	s.flags.Ready.Store(true)
	hooks.CallStart(s.hooks)

	go s.acceptLoop(tcpLn)

	select {
	case <-ctx.Done():
	case <-s.stopCh:
	}
	return s.shutdown(tcpLn)
}

// acceptLoop accepts connections and round-robins each accepted fd to
// a Worker, until shutdown begins.
func (s *Server) acceptLoop(ln *net.TCPListener) {
	defer close(s.doneCh)
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
				s.log.Debug("accept error", "err", err)
				continue
			}
		}

		// Admission (invariant: rejections occur at accept time only)
		// happens inside Connection.Run once the fd reaches its Worker,
		// not here — this loop only needs to get the fd off the kernel
		// accept queue and onto a Worker as fast as possible.
		tcpConn, ok := conn.(*net.TCPConn)
		if !ok {
			conn.Close()
			continue
		}
		tcpConn.SetNoDelay(true)
		tcpConn.SetKeepAlive(true)
		tcpConn.SetKeepAlivePeriod(30 * time.Second)

		// File dup's the fd into a new os.File the runtime's netpoller no
		// longer watches; close the original net.Conn right away so only
		// the dup survives, and strip the dup's own finalizer since the
		// Connection now owns its lifecycle end to end (closeConnection
		// calls unix.Close itself) — left in place, the finalizer could
		// close the fd out from under an in-flight Connection the moment
		// file becomes unreachable, or double-close it afterward.
		file, err := tcpConn.File()
		conn.Close()
		if err != nil {
			continue
		}
		runtime.SetFinalizer(file, nil)
		fd := int(file.Fd())
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(fd)
			continue
		}

		w := s.workers[s.next%uint64(len(s.workers))]
		s.next++
		w.Submit(fd)
	}
}

// Shutdown begins graceful shutdown: stop accepting, drain in-flight
// connections for the configured grace period, then force-close.
func (s *Server) Shutdown() {
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
}

func (s *Server) shutdown(ln *net.TCPListener) error {
	s.flags.ShuttingDown.Store(true)
	s.flags.Ready.Store(false)
	ln.Close()
	<-s.doneCh

	deadline := time.Now().Add(s.cfg.GracePeriod)
	for time.Now().Before(deadline) {
		if s.counters.CurrentConnections.Load() == 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	var wg sync.WaitGroup
	for _, w := range s.workers {
		wg.Add(1)
		go func(w *worker.Worker) {
			defer wg.Done()
			w.Stop()
		}(w)
	}
	wg.Wait()

	hooks.CallStop(s.hooks)
	s.log.Info("shutdown complete")
	return nil
}
