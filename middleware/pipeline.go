// Package middleware implements C6: an ordered chain of interceptors
// that wraps a route handler with true next() continuation semantics.
// Adapted from a flat pipeline that only ever executes interceptors in
// sequence and checks a single ctx.IsAborted() flag between them — it
// has no way for an
// interceptor to run code *after* the handler returns (for response
// post-processing, e.g. compressing or timing the body), since
// "next()" isn't a real continuation there, just "proceed to the next
// index". Aurora's Pipeline builds a genuine nested continuation: next
// a middleware calls next() to run interceptor i+1 (or the handler) and
// resumes exactly where it left off once that call returns.
package middleware

import "github.com/federikowsky/aurora/context"

// Next invokes the remainder of the pipeline: the next interceptor, or
// the route handler once all interceptors have run. Calling it is
// optional — an interceptor that never calls Next short-circuits the
// pipeline, and neither later interceptors nor the handler run (4.6).
type Next func()

// HandlerFunc is a terminal route handler.
type HandlerFunc func(*context.Context)

// Interceptor is one middleware in the pipeline.
type Interceptor func(ctx *context.Context, next Next)

// Pipeline is an ordered, reusable chain of interceptors.
type Pipeline struct {
	interceptors []Interceptor
}

// New returns an empty Pipeline.
func New() *Pipeline {
	return &Pipeline{}
}

// Use appends an interceptor to the pipeline. Pipelines are only built
// during pre-start wiring (4.5/6.0's "pre-start only" embedder
// contract); Use is not safe to call concurrently with Execute.
func (p *Pipeline) Use(interceptor Interceptor) *Pipeline {
	p.interceptors = append(p.interceptors, interceptor)
	return p
}

// Execute runs the pipeline against ctx, invoking handler once every
// interceptor has called its next(). Exceptions (panics) are not
// recovered here; they propagate outward to the Connection's
// catch-and-map step, as 4.6 specifies.
func (p *Pipeline) Execute(ctx *context.Context, handler HandlerFunc) {
	run(p.interceptors, 0, ctx, handler)
}

// run builds the nested continuation recursively: invoking
// interceptors[i] with a Next that, when called, resumes run at i+1.
func run(interceptors []Interceptor, i int, ctx *context.Context, handler HandlerFunc) {
	if ctx.IsAborted() {
		return
	}
	if i >= len(interceptors) {
		handler(ctx)
		return
	}
	interceptors[i](ctx, func() {
		run(interceptors, i+1, ctx, handler)
	})
}
