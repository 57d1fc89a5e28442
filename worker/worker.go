// Package worker implements C8: a Worker owns one Reactor, one
// buffer Pool, and drives every Connection accepted onto it, with no
// cross-worker migration once a socket lands on a Worker. Generalized
// from a single engine that owns one poller and dispatches every
// connection event inline on the accept goroutine, into N independent
// workers (one per reactor, sized the same way as a
// `runtime.NumCPU()`-based default, originally used to size a
// work-stealing goroutine pool rather than a fleet of reactors) so a
// Server can shard accepted sockets round-robin across them. The
// accept hand-off queue uses a FIFO free-list library
// (github.com/eapache/queue), the same one pool.Pool uses for its
// bucket free-lists, rather than an unbounded channel.
package worker

import (
	"sync"

	"github.com/eapache/queue"
	"github.com/federikowsky/aurora/admission"
	"github.com/federikowsky/aurora/config"
	"github.com/federikowsky/aurora/conn"
	"github.com/federikowsky/aurora/exception"
	"github.com/federikowsky/aurora/hooks"
	"github.com/federikowsky/aurora/middleware"
	"github.com/federikowsky/aurora/pool"
	"github.com/federikowsky/aurora/reactor"
	"github.com/federikowsky/aurora/router"
	"github.com/hashicorp/go-hclog"
)

// Worker is a single reactor-driven shard: one goroutine running the
// reactor's event loop, plus one goroutine per live Connection
// suspended on that reactor's wakeups. Sockets are queued in, never
// migrated out.
type Worker struct {
	id      int
	reactor reactor.Reactor
	pool    *pool.Pool

	mu      sync.Mutex
	pending *queue.Queue // of int fd, drained by drainAccepts
	notify  chan struct{}

	stopCh chan struct{}
	doneCh chan struct{}

	buildDeps func(fd int) conn.Deps
	log       hclog.Logger
}

// Config bundles what a Worker needs to build each Connection's Deps.
type Config struct {
	Router     *router.Router
	Pipeline   *middleware.Pipeline
	Admission  *admission.Policy
	Exceptions *exception.Registry
	Cfg        *config.Config
	Log        hclog.Logger
	ServerName string
	Hooks      *hooks.Lifecycle
	Metrics    *admission.RequestMetrics
}

// New constructs an idle Worker with its own Reactor and Pool. Call
// Start to begin servicing it.
func New(id int, wc Config) (*Worker, error) {
	r, err := reactor.New()
	if err != nil {
		return nil, err
	}
	p := pool.NewPool()
	p.Warm(pool.BucketSmall, 64)
	p.Warm(pool.BucketMedium, 16)

	log := wc.Log.Named("worker").With("id", id)

	w := &Worker{
		id:      id,
		reactor: r,
		pool:    p,
		pending: queue.New(),
		notify:  make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		log:     log,
	}
	w.buildDeps = func(fd int) conn.Deps {
		return conn.Deps{
			Reactor:    w.reactor,
			Pool:       w.pool,
			Router:     wc.Router,
			Pipeline:   wc.Pipeline,
			Admission:  wc.Admission,
			Exceptions: wc.Exceptions,
			Config:     wc.Cfg,
			Log:        log,
			ServerName: wc.ServerName,
			Hooks:      wc.Hooks,
			Metrics:    wc.Metrics,
		}
	}
	return w, nil
}

// Submit hands an already-accepted, already non-blocking fd to this
// Worker. Safe to call from the Server's accept goroutine, concurrently
// with the Worker's own drain loop popping from the same queue.
func (w *Worker) Submit(fd int) {
	w.mu.Lock()
	w.pending.Add(fd)
	w.mu.Unlock()

	select {
	case w.notify <- struct{}{}:
	default:
	}
}

// Start runs the Worker's reactor loop and accept-drain loop until
// Stop is called. Blocks; callers run it on its own goroutine.
func (w *Worker) Start() {
	defer close(w.doneCh)
	go w.drainAccepts()
	w.reactor.Run()
}

// drainAccepts spawns one Connection goroutine per fd queued for this
// Worker via Submit, until Stop fires.
func (w *Worker) drainAccepts() {
	for {
		select {
		case <-w.notify:
			for {
				fd, ok := w.popPending()
				if !ok {
					break
				}
				deps := w.buildDeps(fd)
				c := conn.New(fd, deps)
				go c.Run()
			}
		case <-w.stopCh:
			w.drainRemainingOnStop()
			return
		}
	}
}

func (w *Worker) popPending() (int, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending.Length() == 0 {
		return 0, false
	}
	return w.pending.Remove().(int), true
}

// drainRemainingOnStop closes any fd still queued but never handed to
// a Connection, since Stop means no more will be spawned.
func (w *Worker) drainRemainingOnStop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for w.pending.Length() > 0 {
		closeFd(w.pending.Remove().(int))
	}
}

// Stop halts the reactor loop and accept drain. Connections already
// in flight finish on their own goroutines; Stop does not wait for
// them (the Server's graceful-shutdown grace period does).
func (w *Worker) Stop() {
	close(w.stopCh)
	w.reactor.Stop()
	<-w.doneCh
}
