/*
Package aurora is a reactor-driven HTTP/1.1 server framework: one
worker per reactor, non-blocking connection state machines, pooled
buffers and per-request arenas, a radix-tree router, and a middleware
pipeline with real next() continuation semantics.

Quick Start

	package main

	import (
		"github.com/federikowsky/aurora/app"
		"github.com/federikowsky/aurora/config"
		"github.com/federikowsky/aurora/context"
	)

	func main() {
		cfg := config.Default()
		a := app.New(cfg)

		a.Get("/hello", func(ctx *context.Context) {
			ctx.Text(200, "Hello, World!")
		})

		a.Get("/json", func(ctx *context.Context) {
			ctx.JSON(200, map[string]string{"status": "running"})
		})

		if err := a.Listen(); err != nil {
			panic(err)
		}
	}

Modules

The framework is organized as:

  - app: the embedder-facing facade (route/middleware/exception/hook
    registration, Listen/Stop).
  - server: process supervisor — binds the listener, owns the Worker
    fleet and admission policy, drives graceful shutdown.
  - worker: one reactor and one buffer pool per Worker, driving every
    Connection accepted onto it.
  - conn: the per-connection state machine — read, parse, route,
    dispatch, write, keep-alive or close.
  - reactor: the epoll/kqueue event-driven I/O and timer abstraction.
  - pool: size-bucketed buffer pool and per-request arena allocator.
  - wire: zero-copy HTTP/1.1 request parsing.
  - router: method-indexed radix-tree router.
  - middleware: the interceptor pipeline wrapping route handlers.
  - context: the per-request handle carrying params, storage, and the
    response builder.
  - admission: connection/in-flight admission control, load shedding,
    and the liveness/readiness/startup health surface.
  - exception: typed-error-to-response mapping, consulted on panics.
  - config: the typed configuration surface and its hot reload.
  - logging: the structured logger every component is built with.
  - hooks: the on_start/on_stop/on_request/on_response/on_error
    embedder lifecycle hooks.

Non-goals

HTTP/2 or HTTP/3 multiplexing, pluggable protocols beyond HTTP/1.1,
transparent TLS termination, and dynamic route reloading after the
server has started are all explicitly out of scope.
*/
package aurora
