package conn

import (
	"errors"
	"time"
)

// onRequest/onResponse/onError call the embedder's registered
// lifecycle hooks, which are optional — Deps.Hooks itself or any
// individual field may be nil. onResponse and onError also feed the
// request-level Prometheus collectors (Deps.Metrics, also optional).
func (c *Connection) onRequest() {
	if c.deps.Hooks == nil || c.deps.Hooks.OnRequest == nil {
		return
	}
	c.deps.Hooks.OnRequest(c.ctx)
}

func (c *Connection) onResponse(status int) {
	c.observeMetrics(status)
	if c.deps.Hooks == nil || c.deps.Hooks.OnResponse == nil {
		return
	}
	c.deps.Hooks.OnResponse(c.ctx, status)
}

func (c *Connection) onError(status int) {
	c.observeMetrics(status)
	if c.deps.Hooks == nil || c.deps.Hooks.OnError == nil {
		return
	}
	c.deps.Hooks.OnError(errors.New(reasonPhrase(status)), status)
}

func (c *Connection) observeMetrics(status int) {
	if c.deps.Metrics == nil || c.reqStart.IsZero() {
		// reqStart is only stamped once process() runs; onError calls that
		// happen before then (admission refused pre-request) have no
		// meaningful duration to report.
		return
	}
	c.deps.Metrics.Observe(status, time.Since(c.reqStart))
}
