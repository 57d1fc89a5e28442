// Package wire is the boundary Aurora's core expects an HTTP/1.1
// byte-level parser to satisfy: incremental feeding of socket data and
// zero-copy exposure of method/path/headers/body as views into the
// connection's read buffer. It plays that role as a self-contained
// collaborator with a zero-allocation implementation in the same style
// as the rest of the core, so Connection never has to know it wasn't
// actually vendored.
package wire

import "strings"

// header is one parsed header line; both Name and Value are views into
// the original read buffer and are only valid until the buffer is
// reused (the next read, or Reset).
type header struct {
	Name  string
	Value string
}

// RequestView is an immutable-until-reset zero-copy view of a single
// HTTP/1.1 request, as read off the wire. All string fields alias the
// connection's read buffer; callers must not retain them past the
// request's lifetime on that Connection.
type RequestView struct {
	Method  string
	Path    string
	Query   string
	Proto   string
	headers []header
	Body    []byte

	keepAlive   bool
	hasError    bool
	complete    bool
	headersDone bool
}

// reset clears a view for reuse without releasing backing capacity.
func (v *RequestView) reset() {
	v.Method = ""
	v.Path = ""
	v.Query = ""
	v.Proto = ""
	v.headers = v.headers[:0]
	v.Body = v.Body[:0]
	v.keepAlive = false
	v.hasError = false
	v.complete = false
	v.headersDone = false
}

// Header performs a case-insensitive lookup, returning the last
// matching value (later headers of the same name override earlier
// ones, mirroring the Response builder's override-on-insert rule).
func (v *RequestView) Header(name string) (string, bool) {
	found := ""
	ok := false
	for _, h := range v.headers {
		if strings.EqualFold(h.Name, name) {
			found = h.Value
			ok = true
		}
	}
	return found, ok
}

// Headers returns the ordered list of header name/value pairs as
// parsed. Callers that need a map should build one; the core's hot path
// never does, preferring the linear scan in Header.
func (v *RequestView) Headers() []struct{ Name, Value string } {
	out := make([]struct{ Name, Value string }, len(v.headers))
	for i, h := range v.headers {
		out[i] = struct{ Name, Value string }{h.Name, h.Value}
	}
	return out
}

// IsComplete reports whether a full request (headers + declared body)
// has been parsed.
func (v *RequestView) IsComplete() bool { return v.complete }

// HeadersComplete reports whether the header block has been found and
// parsed, even if a declared body is still being awaited — this is
// what distinguishes an oversized header block (431) from an oversized
// body (413) when the read buffer needs to grow.
func (v *RequestView) HeadersComplete() bool { return v.headersDone }

// HasError reports a malformed request.
func (v *RequestView) HasError() bool { return v.hasError }

// ShouldKeepAlive reports the connection-persistence the client
// requested: HTTP/1.1 defaults to keep-alive unless "Connection: close"
// is present; HTTP/1.0 defaults to close unless "Connection: keep-alive"
// is present.
func (v *RequestView) ShouldKeepAlive() bool { return v.keepAlive }

// ContentLength returns the parsed Content-Length header, or -1 if
// absent or invalid.
func (v *RequestView) ContentLength() int {
	val, ok := v.Header("Content-Length")
	if !ok {
		return -1
	}
	n := 0
	for i := 0; i < len(val); i++ {
		c := val[i]
		if c < '0' || c > '9' {
			return -1
		}
		n = n*10 + int(c-'0')
	}
	return n
}
