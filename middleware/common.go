package middleware

import (
	"fmt"
	"sync/atomic"

	"github.com/hashicorp/go-hclog"

	"github.com/federikowsky/aurora/context"
)

// Recovery catches a panic unwinding out of a later interceptor or the
// route handler, maps it to a 500 response, and logs it via the
// supplied logger rather than letting it propagate to the Connection's
// own catch-and-map step — installed first so it wraps everything
// after it.
func Recovery(log hclog.Logger) Interceptor {
	return func(ctx *context.Context, next Next) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic recovered in request handling", "panic", r, "path", ctx.Path())
				_ = ctx.JSON(500, map[string]string{"error": "internal server error"})
				ctx.Response.RequestClose()
			}
		}()
		next()
	}
}

// Logger logs the method, path, and resulting status of every request
// once the handler (and any later interceptors) have run.
func Logger(log hclog.Logger) Interceptor {
	return func(ctx *context.Context, next Next) {
		next()
		log.Info("request", "method", ctx.Method(), "path", ctx.Path(), "status", ctx.Response.StatusCode())
	}
}

// CORS adds permissive CORS headers and short-circuits preflight
// OPTIONS requests with a 204.
func CORS() Interceptor {
	return func(ctx *context.Context, next Next) {
		ctx.SetHeader("Access-Control-Allow-Origin", "*")
		ctx.SetHeader("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		ctx.SetHeader("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if ctx.Method() == "OPTIONS" {
			ctx.StatusCode(204)
			ctx.Response.Finalize()
			ctx.Abort()
			return
		}
		next()
	}
}

// RequestID stamps every request with a monotonically increasing
// X-Request-ID header before running the rest of the chain.
func RequestID() Interceptor {
	var counter uint64
	return func(ctx *context.Context, next Next) {
		id := atomic.AddUint64(&counter, 1)
		ctx.SetHeader("X-Request-ID", fmt.Sprintf("%d", id))
		next()
	}
}
