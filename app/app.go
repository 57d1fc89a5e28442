// Package app implements C11: the App facade an embedder constructs,
// wires routes/middleware/exception handlers/hooks onto pre-start, and
// then calls Listen on. Adapted from a thin struct pairing a config
// with one engine, exposing Run/awaitSignal, generalized from one
// hardcoded engine with route registration living on the engine
// itself into a facade that owns its own Router/Pipeline/Exceptions/
// Hooks and only hands them to a server.Server once Listen is called —
// every registration method is pre-start only, and Listen/Stop are the
// only operations available once the App is live.
package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	auroractx "github.com/federikowsky/aurora/context"

	"github.com/federikowsky/aurora/admission"
	"github.com/federikowsky/aurora/config"
	"github.com/federikowsky/aurora/exception"
	"github.com/federikowsky/aurora/hooks"
	"github.com/federikowsky/aurora/logging"
	"github.com/federikowsky/aurora/middleware"
	"github.com/federikowsky/aurora/router"
	"github.com/federikowsky/aurora/server"
	"github.com/hashicorp/go-hclog"
)

// Handler is the route handler type embedders write against — a typed
// alias over the middleware package's HandlerFunc so callers never
// need to import middleware directly just to register a route.
type Handler = middleware.HandlerFunc

// Interceptor is the middleware type embedders write against.
type Interceptor = middleware.Interceptor

// App is the embedder-facing facade. Every registration
// method is pre-start only; calling one after Listen has started the
// Server is a programming error the same way it would be against the
// underlying Router/Pipeline themselves.
type App struct {
	cfg        *config.Config
	router     *router.Router
	pipeline   *middleware.Pipeline
	exceptions *exception.Registry
	hooks      hooks.Lifecycle
	log        hclog.Logger

	srv    *server.Server
	cancel context.CancelFunc
}

// New constructs an App ready for route/middleware/hook registration.
func New(cfg *config.Config) *App {
	return &App{
		cfg:        cfg,
		router:     router.New(),
		pipeline:   middleware.New(),
		exceptions: exception.New(),
	}
}

// Get registers a GET route.
func (a *App) Get(pattern string, h Handler) { a.register("GET", pattern, h) }

// Post registers a POST route.
func (a *App) Post(pattern string, h Handler) { a.register("POST", pattern, h) }

// Put registers a PUT route.
func (a *App) Put(pattern string, h Handler) { a.register("PUT", pattern, h) }

// Patch registers a PATCH route.
func (a *App) Patch(pattern string, h Handler) { a.register("PATCH", pattern, h) }

// Delete registers a DELETE route.
func (a *App) Delete(pattern string, h Handler) { a.register("DELETE", pattern, h) }

// Head registers a HEAD route.
func (a *App) Head(pattern string, h Handler) { a.register("HEAD", pattern, h) }

// Options registers an OPTIONS route.
func (a *App) Options(pattern string, h Handler) { a.register("OPTIONS", pattern, h) }

// Handle registers a route for an arbitrary method, for verbs beyond
// the named convenience methods above.
func (a *App) Handle(method, pattern string, h Handler) { a.register(method, pattern, h) }

func (a *App) register(method, pattern string, h Handler) {
	a.router.Handle(method, pattern, func(ctx any) { h(ctx.(*auroractx.Context)) })
}

// Mount composes every route of a group built against its own
// *router.Router under prefix, for splitting route registration
// across packages before Listen.
func (a *App) Mount(prefix string, group *router.Router) {
	a.router.Mount(prefix, group)
}

// Use registers an interceptor, appended to the end of the pipeline.
// Registration order is execution order.
func (a *App) Use(interceptor Interceptor) {
	a.pipeline.Use(interceptor)
}

// SetExceptionHandler registers mapper for errors whose concrete type
// matches example's type, e.g. SetExceptionHandler(new(MyError), mapper).
func (a *App) SetExceptionHandler(example error, mapper exception.Mapper) {
	a.exceptions.Register(example, mapper)
}

// OnStart registers a hook run once the listener is bound and ready.
func (a *App) OnStart(fn func()) { a.hooks.OnStart = fn }

// OnStop registers a hook run at the end of graceful shutdown, once every
// Worker has been stopped — whether the connections drained or the grace
// period ran out first.
func (a *App) OnStop(fn func()) { a.hooks.OnStop = fn }

// OnRequest registers a hook run as each request enters processing,
// before admission/routing.
func (a *App) OnRequest(fn func(ctx *auroractx.Context)) { a.hooks.OnRequest = fn }

// OnResponse registers a hook run once a handler-produced response has
// been finalized, before it is serialized onto the wire.
func (a *App) OnResponse(fn func(ctx *auroractx.Context, status int)) { a.hooks.OnResponse = fn }

// OnError registers a hook run for every error response the core
// emits, framework-generated or handler-raised, after any registered
// exception mapper has already run.
func (a *App) OnError(fn func(err error, status int)) { a.hooks.OnError = fn }

// Logger sets the structured logger every Worker/Connection is handed
// a Named() child of. If never called, Listen builds one from
// cfg.LogLevel/LogJSON.
func (a *App) Logger(l hclog.Logger) { a.log = l }

// Health exposes the liveness/readiness/startup surface so an embedder
// can wire its own health routes against the same Policy the Server
// consults, without reaching into server.Server directly. Returns nil
// before Listen has been called.
func (a *App) Health() *admission.Health {
	if a.srv == nil {
		return nil
	}
	return a.srv.Health()
}

// Listen binds cfg's host:port, starts the Server, and blocks until
// Stop is called or the process receives SIGINT/SIGTERM, generalized
// from a bare os.Exit(0) on signal into a real graceful-shutdown
// trigger now that a Server able to drain exists to trigger it on.
func (a *App) Listen() error {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	defer cancel()

	log := a.log
	if log == nil {
		log = logging.New(logging.Options{Name: "aurora", Level: a.cfg.LogLevel, JSON: a.cfg.LogJSON})
	}

	a.srv = server.New(server.Options{
		Router:     a.router,
		Pipeline:   a.pipeline,
		Exceptions: a.exceptions,
		Config:     a.cfg,
		Log:        log,
		Hooks:      &a.hooks,
	})

	go a.awaitSignal()

	return a.srv.Serve(ctx)
}

// Stop triggers asynchronous graceful shutdown of a running App.
// Called before Listen it has no effect: a later Listen still runs until
// the next Stop or a SIGINT/SIGTERM.
func (a *App) Stop() {
	if a.srv != nil {
		a.srv.Shutdown()
	}
	if a.cancel != nil {
		a.cancel()
	}
}

func (a *App) awaitSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	a.Stop()
}
