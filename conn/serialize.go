package conn

import (
	"strconv"
	"time"

	"github.com/federikowsky/aurora/context"
	"github.com/federikowsky/aurora/pool"
)

// statusText mirrors the small set of status lines the core itself
// ever writes (responses from user handlers carry whatever text the
// handler set via ctx.StatusCode, but the framework's own error paths
// — 400/404/408/413/431/500/503 — need a reason phrase without
// depending on net/http).
var statusText = map[int]string{
	200: "OK",
	201: "Created",
	202: "Accepted",
	204: "No Content",
	301: "Moved Permanently",
	302: "Found",
	304: "Not Modified",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	408: "Request Timeout",
	409: "Conflict",
	413: "Payload Too Large",
	414: "URI Too Long",
	418: "I'm a Teapot",
	422: "Unprocessable Entity",
	429: "Too Many Requests",
	431: "Request Header Fields Too Large",
	500: "Internal Server Error",
	502: "Bad Gateway",
	503: "Service Unavailable",
	504: "Gateway Timeout",
}

func reasonPhrase(code int) string {
	if s, ok := statusText[code]; ok {
		return s
	}
	return "Status"
}

// serializeResponse appends the full HTTP/1.1 response (status line,
// headers, body) for resp onto dst, adding Content-Length, Date, and
// Server if the handler didn't already set them, plus Connection: close
// when closeConn.
func serializeResponse(dst []byte, resp *context.Response, closeConn bool, serverName string, arena *pool.Arena) []byte {
	code := resp.StatusCode()
	dst = append(dst, "HTTP/1.1 "...)
	dst = appendInt(dst, code, arena)
	dst = append(dst, ' ')
	dst = append(dst, reasonPhrase(code)...)
	dst = append(dst, "\r\n"...)

	headers := resp.Headers()
	hasContentLength := false
	hasDate := false
	hasServer := false
	hasConnection := false
	for _, h := range headers {
		switch {
		case equalFold(h.Name, "Content-Length"):
			hasContentLength = true
		case equalFold(h.Name, "Date"):
			hasDate = true
		case equalFold(h.Name, "Server"):
			hasServer = true
		case equalFold(h.Name, "Connection"):
			hasConnection = true
		}
		dst = append(dst, h.Name...)
		dst = append(dst, ':', ' ')
		dst = append(dst, h.Value...)
		dst = append(dst, "\r\n"...)
	}

	body := resp.Body()
	if !hasContentLength {
		dst = append(dst, "Content-Length: "...)
		dst = appendInt(dst, len(body), arena)
		dst = append(dst, "\r\n"...)
	}
	if !hasConnection && closeConn {
		dst = append(dst, "Connection: close\r\n"...)
	}
	if !hasDate {
		dst = append(dst, "Date: "...)
		dst = append(dst, time.Now().UTC().Format(time.RFC1123)...)
		dst = append(dst, "\r\n"...)
	}
	if !hasServer {
		dst = append(dst, "Server: "...)
		dst = append(dst, serverName...)
		dst = append(dst, "\r\n"...)
	}

	dst = append(dst, "\r\n"...)
	dst = append(dst, body...)
	return dst
}

// simpleResponse builds a minimal framework-generated response (404,
// 408, 413, 431, 500, 503, ...) with no handler involved.
func simpleResponse(dst []byte, code int, closeConn bool, serverName string, arena *pool.Arena, extraHeaders ...[2]string) []byte {
	body := []byte(reasonPhrase(code))
	dst = append(dst, "HTTP/1.1 "...)
	dst = appendInt(dst, code, arena)
	dst = append(dst, ' ')
	dst = append(dst, reasonPhrase(code)...)
	dst = append(dst, "\r\n"...)
	dst = append(dst, "Content-Length: "...)
	dst = appendInt(dst, len(body), arena)
	dst = append(dst, "\r\n"...)
	for _, h := range extraHeaders {
		dst = append(dst, h[0]...)
		dst = append(dst, ':', ' ')
		dst = append(dst, h[1]...)
		dst = append(dst, "\r\n"...)
	}
	if closeConn {
		dst = append(dst, "Connection: close\r\n"...)
	}
	dst = append(dst, "Date: "...)
	dst = append(dst, time.Now().UTC().Format(time.RFC1123)...)
	dst = append(dst, "\r\n"...)
	dst = append(dst, "Server: "...)
	dst = append(dst, serverName...)
	dst = append(dst, "\r\n\r\n"...)
	dst = append(dst, body...)
	return dst
}

// appendInt formats n and appends it to dst. The digits are built in
// arena-backed scratch space rather than via strconv.Itoa, which would
// allocate a fresh string per call on the request's hot path; a nil
// arena (or one that's run out of room) falls back to strconv.AppendInt
// writing straight into dst.
func appendInt(dst []byte, n int, arena *pool.Arena) []byte {
	if arena == nil {
		return strconv.AppendInt(dst, int64(n), 10)
	}
	scratch := arena.Allocate(20) // max digits in a 64-bit signed int, plus sign
	if scratch == nil {
		return strconv.AppendInt(dst, int64(n), 10)
	}
	return append(dst, strconv.AppendInt(scratch[:0], int64(n), 10)...)
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
