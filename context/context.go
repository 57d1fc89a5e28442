package context

import (
	"encoding/json"

	"github.com/federikowsky/aurora/router"
	"github.com/federikowsky/aurora/wire"
)

// Context is the scoped handle bundling a request view, a response
// builder, captured path parameters, and a per-request storage map. It
// lives exactly as long as one request on one Connection; the
// Connection resets and reuses it across keep-alive requests rather
// than allocating a fresh one each time.
type Context struct {
	Request  *wire.RequestView
	Response *Response

	params  router.Params
	storage map[string]any
	aborted bool
}

// New allocates a Context. Connections keep one per live request slot
// and call Reset between requests rather than calling New repeatedly.
func New() *Context {
	return &Context{Response: &Response{}}
}

// Reset prepares the Context for the next request on its Connection.
func (c *Context) Reset(req *wire.RequestView, params router.Params) {
	c.Request = req
	c.params = params
	c.aborted = false
	if c.storage != nil {
		clear(c.storage)
	}
	c.Response.Reset()
}

// Method returns the request method.
func (c *Context) Method() string { return c.Request.Method }

// Path returns the request path (without query string).
func (c *Context) Path() string { return c.Request.Path }

// Header performs a case-insensitive request header lookup.
func (c *Context) Header(name string) (string, bool) { return c.Request.Header(name) }

// Param returns a captured path parameter, or def if name was not
// captured for this route.
func (c *Context) Param(name, def string) string {
	if v, ok := c.params.Get(name); ok {
		return v
	}
	return def
}

// Query performs a linear scan of the raw query string for key=value,
// returning def if key is absent. Aurora does not pre-parse query
// strings into a map since most handlers inspect at most one or two
// keys and the raw string is already a zero-copy view.
func (c *Context) Query(key, def string) string {
	raw := c.Request.Query
	for len(raw) > 0 {
		amp := indexByte(raw, '&')
		pair := raw
		if amp >= 0 {
			pair = raw[:amp]
		}
		if eq := indexByte(pair, '='); eq >= 0 {
			if pair[:eq] == key {
				return pair[eq+1:]
			}
		} else if pair == key {
			return ""
		}
		if amp < 0 {
			break
		}
		raw = raw[amp+1:]
	}
	return def
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// Set deposits a value in the per-request storage map, opaque to the
// framework; handlers agree on key names and types out of band.
func (c *Context) Set(key string, value any) {
	if c.storage == nil {
		c.storage = make(map[string]any, 4)
	}
	c.storage[key] = value
}

// Get retrieves a value previously deposited with Set.
func (c *Context) Get(key string) (any, bool) {
	if c.storage == nil {
		return nil, false
	}
	v, ok := c.storage[key]
	return v, ok
}

// StatusCode sets the response status and returns the Context for
// chaining, mirroring the embedder contract's `status(code)`.
func (c *Context) StatusCode(code int) *Context {
	c.Response.Status(code)
	return c
}

// SetHeader sets a response header, mirroring `header(name, value)`.
func (c *Context) SetHeader(name, value string) *Context {
	c.Response.Header(name, value)
	return c
}

// Send finalizes the response body verbatim, mirroring `send(body)`.
func (c *Context) Send(body []byte) {
	c.Response.Send(body)
}

// JSON marshals v and finalizes the response with a JSON content type,
// mirroring `json(body)`.
func (c *Context) JSON(code int, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.Response.Status(code)
	c.Response.Header("Content-Type", "application/json")
	c.Response.Send(body)
	return nil
}

// Text finalizes the response with a plain-text content type.
func (c *Context) Text(code int, s string) {
	c.Response.Status(code)
	c.Response.Header("Content-Type", "text/plain; charset=utf-8")
	c.Response.Send([]byte(s))
}

// Abort marks the Context so the middleware pipeline skips any
// remaining interceptors and the route handler (4.6 short-circuit).
func (c *Context) Abort() { c.aborted = true }

// IsAborted reports whether Abort has been called during this
// request.
func (c *Context) IsAborted() bool { return c.aborted }
