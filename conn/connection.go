// Package conn implements C4, the Connection state machine — the heart
// of the core. Restructured from a single-threaded "epoll loop
// dispatches directly into processRequest" shape into one goroutine
// per connection that blocks on a reactor-signaled wake channel
// whenever a socket operation would block, instead of making the
// blocking decision inline on a shared event loop. This is the
// idiomatic Go rendering of a cooperative task suspended at I/O: the
// goroutine *is* the suspended task, and the channel receive *is* the
// await point.
package conn

import (
	"errors"
	"time"

	"github.com/federikowsky/aurora/admission"
	"github.com/federikowsky/aurora/config"
	"github.com/federikowsky/aurora/context"
	"github.com/federikowsky/aurora/exception"
	"github.com/federikowsky/aurora/hooks"
	"github.com/federikowsky/aurora/middleware"
	"github.com/federikowsky/aurora/pool"
	"github.com/federikowsky/aurora/reactor"
	"github.com/federikowsky/aurora/router"
	"github.com/federikowsky/aurora/wire"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/sys/unix"
)

// wakeReason is what woke a suspended Connection goroutine.
type wakeReason int

const (
	wakeReadable wakeReason = iota
	wakeWritable
	wakeTimeout
)

// Deps bundles the per-Worker shared collaborators a Connection needs;
// every field is read-only from the Connection's point of view and
// shared by every connection owned by the same Worker.
type Deps struct {
	Reactor    reactor.Reactor
	Pool       *pool.Pool
	Router     *router.Router
	Pipeline   *middleware.Pipeline
	Admission  *admission.Policy
	Exceptions *exception.Registry
	Config     *config.Config
	Log        hclog.Logger
	ServerName string
	Hooks      *hooks.Lifecycle // nil means no embedder hooks registered
	Metrics    *admission.RequestMetrics // nil means metrics collection is disabled
}

// Connection is one accepted socket's state machine. It is never
// shared across goroutines beyond the one running Run.
type Connection struct {
	fd   int
	deps Deps

	arena *pool.Arena
	read  *pool.Buffer
	write *pool.Buffer

	readPos int
	written int // bytes of write buffer already flushed to the socket

	parser *wire.Parser
	ctx    *context.Context

	state          State
	keepAliveCount int
	closeRequested bool

	readTimer  reactor.TimerID
	writeTimer reactor.TimerID
	idleTimer  reactor.TimerID

	reqStart time.Time // set at the top of process, read by onResponse/onError

	wake   chan wakeReason
	closed bool
}

// New constructs a Connection for an already-accepted, already
// non-blocking fd. Callers must call Run (typically via go c.Run()) to
// drive it; New performs no I/O itself.
func New(fd int, deps Deps) *Connection {
	return &Connection{
		fd:     fd,
		deps:   deps,
		arena:  pool.NewArena(64 * 1024),
		parser: wire.NewParser(),
		ctx:    context.New(),
		state:  StateNew,
		// wake is buffered 1: the reactor callback and timer callback
		// both run on the Worker's single reactor goroutine and must
		// never block trying to deliver a wakeup, so at most one
		// pending wake is coalesced and the Connection re-evaluates
		// state from scratch on every wake regardless of reason.
		wake: make(chan wakeReason, 1),
	}
}

// Run drives the Connection through its full lifecycle, returning only
// once the socket has been closed and every resource released. Callers
// run it on a dedicated goroutine.
func (c *Connection) Run() {
	defer c.closeConnection()

	if !c.deps.Admission.AdmitConnection() {
		c.rejectAdmission()
		return
	}
	defer c.deps.Admission.ReleaseConnection()

	c.read = c.deps.Pool.Acquire(pool.SmallSize)
	c.write = c.deps.Pool.Acquire(pool.SmallSize)

	if err := c.deps.Reactor.RegisterSocket(c.fd, reactor.Readable, c.onReady); err != nil {
		c.deps.Log.Error("register socket failed", "err", err)
		return
	}

	c.state = StateReadingHeaders
	c.armReadDeadline()

	for {
		switch c.state {
		case StateReadingHeaders, StateReadingBody:
			if !c.readLoop() {
				return
			}
		case StateProcessing:
			c.process()
		case StateWritingResponse:
			if !c.writeLoop() {
				return
			}
		case StateKeepAlive:
			c.prepareNextRequest()
		case StateClosing, StateClosed:
			return
		}
	}
}

// onReady is the reactor callback (runs on the Worker's single reactor
// goroutine) — it must never block. It simply forwards a wake signal;
// all actual I/O happens back on the Connection's own goroutine.
func (c *Connection) onReady(kind reactor.EventKind) {
	reason := wakeReadable
	if kind == reactor.Writable {
		reason = wakeWritable
	}
	select {
	case c.wake <- reason:
	default:
	}
}

func (c *Connection) onTimeout() {
	select {
	case c.wake <- wakeTimeout:
	default:
	}
}

// readLoop performs non-blocking reads, suspending on the wake channel
// whenever the socket returns WouldBlock, until the parser reports a
// complete request, a parse error, EOF, or a read deadline fires.
func (c *Connection) readLoop() bool {
	for {
		if c.readPos == len(c.read.B) {
			c.growReadBuffer()
		}

		res := c.deps.Reactor.SocketRead(c.fd, c.read.B[c.readPos:])
		switch res.Status {
		case reactor.OK:
			c.readPos += res.N
			if err := c.parser.Feed(c.read.B[:c.readPos]); err != nil {
				c.onError(400)
				c.writeFrameworkError(400)
				return true
			}
			view := c.parser.View()
			if view.IsComplete() {
				c.cancelReadDeadline()
				c.state = StateProcessing
				return true
			}
			if view.HeadersComplete() {
				c.state = StateReadingBody
			}
			if c.overLimit(view) {
				return true
			}
			continue
		case reactor.WouldBlock:
			if !c.suspendUntilReadable() {
				return false
			}
			if c.state == StateWritingResponse {
				return true
			}
			continue
		case reactor.EOF:
			// Client closed without completing a request; nothing
			// written yet on a fresh connection is not an error.
			return false
		default:
			c.deps.Log.Debug("socket read error", "err", res.Err)
			return false
		}
	}
}

// suspendUntilReadable blocks the Connection goroutine until the
// reactor signals readability or a deadline fires. On a deadline with no
// response bytes written yet it queues a 408 and returns true; on a
// deadline after bytes were written it returns false and the connection
// closes.
func (c *Connection) suspendUntilReadable() bool {
	switch <-c.wake {
	case wakeTimeout:
		if c.written == 0 {
			c.onError(408)
			c.writeFrameworkError(408)
			return true
		}
		return false
	default:
		return true
	}
}

// growReadBuffer upgrades the read buffer to roughly double its size
// when the current one fills without a complete request. Limit
// enforcement happens separately in overLimit, checked after every
// read regardless of whether the buffer needed to grow.
func (c *Connection) growReadBuffer() {
	next := c.deps.Pool.Acquire(len(c.read.B) * 2)
	copy(next.B, c.read.B[:c.readPos])
	c.deps.Pool.Release(c.read)
	c.read = next
}

// overLimit checks the accumulated bytes read so far against
// max_header_bytes (while headers are still being parsed) or
// max_header_bytes+max_body_bytes (once headers are done and only the
// body remains), writing 431/413 and returning true if the limit was
// exceeded. Checked after every read rather than only when the buffer
// fills, since the configured limit may be smaller than a single
// bucket's capacity.
func (c *Connection) overLimit(view *wire.RequestView) bool {
	cfg := c.deps.Config
	headersDone := view.HeadersComplete()
	limit := cfg.MaxHeaderBytes
	if headersDone {
		limit = cfg.MaxHeaderBytes + cfg.MaxBodyBytes
	}
	if c.readPos <= limit {
		return false
	}
	if headersDone {
		c.onError(413)
		c.writeFrameworkError(413)
	} else {
		c.onError(431)
		c.writeFrameworkError(431)
	}
	return true
}

// process runs admission/routing/middleware for a fully parsed
// request, then moves to WRITING_RESPONSE regardless of outcome —
// every exit from process leaves a response ready to serialize.
func (c *Connection) process() {
	view := c.parser.View()
	c.ctx.Reset(view, nil)
	c.reqStart = time.Now()
	c.onRequest()

	if !c.deps.Admission.AdmitInFlight() {
		c.onError(503)
		c.respondOverloaded()
		c.state = StateWritingResponse
		return
	}
	defer c.deps.Admission.ReleaseInFlight()

	if c.deps.Admission.ShouldShed(view.Path) {
		c.onError(503)
		c.respondOverloaded()
		c.state = StateWritingResponse
		return
	}

	handler, params, found := c.deps.Router.Match(view.Method, view.Path)
	if !found {
		status := 404
		if c.deps.Router.MatchAnyMethod(view.Path) {
			status = 405
		}
		c.onError(status)
		c.writeFrameworkError(status)
		c.state = StateWritingResponse
		return
	}

	c.ctx.Reset(view, params)
	// router.HandlerFunc takes ctx any to avoid an import cycle with
	// context (which already imports router for router.Params); adapt
	// it to the middleware package's typed HandlerFunc here instead.
	c.runHandler(func(ctx *context.Context) { handler(ctx) })

	if !c.ctx.Response.IsFinalized() {
		c.ctx.Response.Status(204).Finalize()
	}
	if c.ctx.Response.CloseRequested() {
		c.closeRequested = true
	}

	c.onResponse(c.ctx.Response.StatusCode())
	c.serializeCurrentResponse()
	c.state = StateWritingResponse
}

// runHandler executes the middleware pipeline and the matched handler,
// recovering any panic and routing it through the exception registry
// before falling back to a generic 500.
func (c *Connection) runHandler(handler middleware.HandlerFunc) {
	defer func() {
		if r := recover(); r != nil {
			c.handleException(r)
		}
	}()
	c.deps.Pipeline.Execute(c.ctx, handler)
}

func (c *Connection) handleException(r any) {
	err, ok := r.(error)
	if !ok {
		err = errors.New("conn: panic in handler")
	}
	if mapper, found := c.deps.Exceptions.Lookup(err); found {
		status, body := mapper(err)
		c.ctx.Response.Reset()
		c.ctx.StatusCode(status)
		switch v := body.(type) {
		case []byte:
			c.ctx.Response.Send(v)
		case string:
			c.ctx.Response.Send([]byte(v))
		default:
			_ = c.ctx.JSON(status, v)
		}
		if c.deps.Hooks != nil && c.deps.Hooks.OnError != nil {
			c.deps.Hooks.OnError(err, status)
		}
		return
	}
	c.deps.Log.Error("unhandled panic in handler", "err", err)
	c.ctx.Response.Reset()
	c.ctx.StatusCode(500)
	c.ctx.Response.Send([]byte("Internal Server Error"))
	if c.deps.Hooks != nil && c.deps.Hooks.OnError != nil {
		c.deps.Hooks.OnError(err, 500)
	}
}

func (c *Connection) respondOverloaded() {
	cfg := c.deps.Config
	extra := [][2]string{{"Retry-After", itoa(cfg.RetryAfterSeconds)}}
	c.write.B = simpleResponse(c.write.B[:0], 503, true, c.deps.ServerName, c.arena, extra...)
	c.closeRequested = true
}

// rejectAdmission handles a connection turned away by connection-count
// hysteresis, before any per-connection state (read/write buffers,
// reactor registration) exists — too early to run the normal
// process/writeLoop path respondOverloaded relies on. Behavior follows
// config.OverloadBehavior: Reject503 writes a best-effort 503 response
// with Retry-After directly on the raw fd, ResetConnection instead
// drops the connection with a TCP RST via SO_LINGER{0}. Either way
// Run's deferred closeConnection tears the fd down afterward.
func (c *Connection) rejectAdmission() {
	c.onError(503)
	cfg := c.deps.Config
	if cfg.OverloadBehavior == config.ResetConnection {
		resetSocket(c.fd)
		return
	}
	extra := [][2]string{{"Retry-After", itoa(cfg.RetryAfterSeconds)}}
	resp := simpleResponse(nil, 503, true, c.deps.ServerName, c.arena, extra...)
	c.deps.Reactor.SocketWrite(c.fd, resp)
}

// resetSocket arms SO_LINGER with a zero timeout so the next close(2)
// discards any unsent data and sends RST instead of the usual FIN,
// matching the "reset" half of OverloadBehavior.
func resetSocket(fd int) {
	_ = unix.SetsockoptLinger(fd, unix.SOL_SOCKET, unix.SO_LINGER, &unix.Linger{Onoff: 1, Linger: 0})
}

func (c *Connection) serializeCurrentResponse() {
	closeConn := c.shouldCloseAfterResponse()
	c.write.B = serializeResponse(c.write.B[:0], c.ctx.Response, closeConn, c.deps.ServerName, c.arena)
}

// writeFrameworkError builds a framework-generated error response
// (400/404/405/408/413/431) and always closes the connection after —
// every one of these is a request the Connection could not safely
// resume pipelining from (malformed input, a blown limit, or a stalled
// peer).
func (c *Connection) writeFrameworkError(status int) {
	c.write.B = simpleResponse(c.write.B[:0], status, true, c.deps.ServerName, c.arena)
	c.closeRequested = true
	c.state = StateWritingResponse
}

func (c *Connection) shouldCloseAfterResponse() bool {
	if c.closeRequested {
		return true
	}
	view := c.parser.View()
	cfg := c.deps.Config
	if !view.ShouldKeepAlive() {
		return true
	}
	if cfg.MaxRequestsPerConnection > 0 && c.keepAliveCount+1 >= cfg.MaxRequestsPerConnection {
		return true
	}
	return false
}

// writeLoop flushes the write buffer, suspending on WouldBlock exactly
// like readLoop. Once fully flushed it decides KEEP_ALIVE vs CLOSING.
func (c *Connection) writeLoop() bool {
	c.armWriteDeadline()
	for c.written < len(c.write.B) {
		res := c.deps.Reactor.SocketWrite(c.fd, c.write.B[c.written:])
		switch res.Status {
		case reactor.OK:
			c.written += res.N
		case reactor.WouldBlock:
			if err := c.deps.Reactor.RegisterSocket(c.fd, reactor.Writable, c.onReady); err != nil {
				return false
			}
			switch <-c.wake {
			case wakeTimeout:
				return false
			default:
			}
		default:
			return false
		}
	}
	c.cancelWriteDeadline()
	_ = c.deps.Reactor.RegisterSocket(c.fd, reactor.Readable, c.onReady)

	if c.closeRequested {
		c.state = StateClosing
		return true
	}
	c.state = StateKeepAlive
	return true
}

// prepareNextRequest resets per-request state for the next pipelined
// request on the same connection and arms the keep-alive deadline.
func (c *Connection) prepareNextRequest() {
	c.keepAliveCount++
	c.arena.Reset()
	c.parser.Reset()
	c.readPos = 0
	c.written = 0
	c.write.B = c.write.B[:0]
	c.armKeepAliveDeadline()
	c.state = StateReadingHeaders
}

func (c *Connection) armReadDeadline() {
	c.readTimer = c.deps.Reactor.CreateTimer(c.deps.Config.ReadDeadline, c.onTimeout)
}

func (c *Connection) cancelReadDeadline() {
	c.deps.Reactor.CancelTimer(c.readTimer)
}

func (c *Connection) armWriteDeadline() {
	c.writeTimer = c.deps.Reactor.CreateTimer(c.deps.Config.WriteDeadline, c.onTimeout)
}

func (c *Connection) cancelWriteDeadline() {
	c.deps.Reactor.CancelTimer(c.writeTimer)
}

// armKeepAliveDeadline arms a single timer covering both the idle wait
// for the next pipelined request and that request's own header read —
// aliased onto readTimer so cancelReadDeadline (fired once headers
// complete) clears it without a separate idle-vs-read distinction.
func (c *Connection) armKeepAliveDeadline() {
	c.idleTimer = c.deps.Reactor.CreateTimer(c.deps.Config.KeepAliveDeadline, c.onTimeout)
	c.readTimer = c.idleTimer
}

// closeConnection is the single idempotent cleanup path, run from
// Run's defer on every exit — normal completion, timeout, parse
// error, or panic recovered elsewhere.
func (c *Connection) closeConnection() {
	if c.closed {
		return
	}
	c.closed = true

	c.deps.Reactor.CancelTimer(c.readTimer)
	c.deps.Reactor.CancelTimer(c.writeTimer)
	c.deps.Reactor.CancelTimer(c.idleTimer)
	_ = c.deps.Reactor.UnregisterSocket(c.fd)
	c.deps.Reactor.CloseSocket(c.fd)

	if c.read != nil {
		c.deps.Pool.Release(c.read)
	}
	if c.write != nil {
		c.deps.Pool.Release(c.write)
	}
	c.state = StateClosed
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
