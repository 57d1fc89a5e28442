// Package context implements C7: the scoped request/response handle
// handed to route handlers and middleware. Adapted from a
// sync.Pool-backed context interface built around a raw net.Conn, into
// a plain struct owned by the Connection for exactly one request's
// lifetime, carrying Aurora's wire.RequestView and router.Params
// instead of its own request/param types.
package context

import "strings"

type headerEntry struct {
	Name  string
	Value string
}

// Response is the mutable response builder a handler fills in before
// the Connection serializes it onto the wire. Header insertion order
// is preserved; a later Header call for a name already present
// overrides the earlier value in place rather than appending a
// duplicate, matching the request view's "later headers win" lookup
// rule.
type Response struct {
	status  int
	headers []headerEntry
	body    []byte

	finalized      bool
	closeRequested bool
}

// Reset clears a Response for reuse on the next request served by the
// same Connection.
func (r *Response) Reset() {
	r.status = 0
	r.headers = r.headers[:0]
	r.body = r.body[:0]
	r.finalized = false
	r.closeRequested = false
}

// Status sets the response status code.
func (r *Response) Status(code int) *Response {
	r.status = code
	return r
}

// StatusCode returns the currently set status, defaulting to 200 if
// never set.
func (r *Response) StatusCode() int {
	if r.status == 0 {
		return 200
	}
	return r.status
}

// Header sets a response header. A name already present (compared
// case-insensitively) has its value replaced in place; a new name is
// appended, preserving insertion order for anything not overridden.
func (r *Response) Header(name, value string) *Response {
	for i := range r.headers {
		if strings.EqualFold(r.headers[i].Name, name) {
			r.headers[i].Value = value
			return r
		}
	}
	r.headers = append(r.headers, headerEntry{Name: name, Value: value})
	return r
}

// Headers returns the header list in insertion order, for the
// Connection's serializer.
func (r *Response) Headers() []headerEntry { return r.headers }

// Send sets the response body directly, without any content-type
// inference.
func (r *Response) Send(body []byte) *Response {
	r.body = body
	r.finalized = true
	return r
}

// Body returns the currently set response body.
func (r *Response) Body() []byte { return r.body }

// Finalize marks the response as ready to serialize, used by handlers
// that built the body via Header/Status alone (e.g. a 204 with no
// body).
func (r *Response) Finalize() { r.finalized = true }

// IsFinalized reports whether a handler has produced a response.
func (r *Response) IsFinalized() bool { return r.finalized }

// RequestClose marks the connection for closure after this response is
// written, regardless of the request's keep-alive preference — used by
// the Recovery middleware after a recovered panic.
func (r *Response) RequestClose() { r.closeRequested = true }

// CloseRequested reports whether the connection must close after this
// response.
func (r *Response) CloseRequested() bool { return r.closeRequested }
