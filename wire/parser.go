package wire

import (
	"bytes"
	"errors"
	"unsafe"

	"golang.org/x/net/http/httpguts"
)

// ErrMalformed is returned by Feed when the accumulated bytes can never
// form a valid request, regardless of how much more data arrives.
var ErrMalformed = errors.New("wire: malformed request")

// unsafeString views a byte slice as a string without copying. The
// caller is responsible for not mutating buf while the string is alive.
func unsafeString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return *(*string)(unsafe.Pointer(&b))
}

// Parser incrementally parses one HTTP/1.1 request off a growing read
// buffer. Feed is idempotent: callers re-invoke it with the buffer's
// full contents so far (buf[:readPos]) after every socket read, rather
// than handing over deltas — this lets the parser stay entirely
// zero-copy, at the cost of re-scanning already-seen header bytes on
// each additional read, which for a bounded max_header_bytes is cheap.
type Parser struct {
	view RequestView
}

// NewParser returns a ready-to-use Parser.
func NewParser() *Parser { return &Parser{} }

// Reset prepares the parser for the next request on a Connection,
// called after a keep-alive cycle completes or on a fresh Connection.
func (p *Parser) Reset() { p.view.reset() }

// View returns the parser's current (possibly partial) request view.
func (p *Parser) View() *RequestView { return &p.view }

// Feed parses as much of data as currently forms a complete request
// line/headers/body. It returns ErrMalformed if the bytes parsed so far
// can never be valid regardless of future data (callers map this to a
// 400 response), or nil while more data may still complete the request
// (callers check View().IsComplete()).
func (p *Parser) Feed(data []byte) error {
	p.view.reset()

	lineEnd := bytes.IndexByte(data, '\n')
	if lineEnd == -1 {
		return nil // request line not fully buffered yet
	}

	line := data[:lineEnd]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}

	sp1 := bytes.IndexByte(line, ' ')
	if sp1 <= 0 {
		p.view.hasError = true
		return ErrMalformed
	}
	sp2 := bytes.IndexByte(line[sp1+1:], ' ')
	if sp2 == -1 {
		p.view.hasError = true
		return ErrMalformed
	}
	sp2 += sp1 + 1

	p.view.Method = unsafeString(line[:sp1])
	rawPath := line[sp1+1 : sp2]
	p.view.Proto = unsafeString(line[sp2+1:])

	if p.view.Proto != "HTTP/1.1" && p.view.Proto != "HTTP/1.0" {
		p.view.hasError = true
		return ErrMalformed
	}

	if q := bytes.IndexByte(rawPath, '?'); q != -1 {
		p.view.Path = unsafeString(rawPath[:q])
		p.view.Query = unsafeString(rawPath[q+1:])
	} else {
		p.view.Path = unsafeString(rawPath)
	}
	if len(p.view.Path) == 0 || p.view.Path[0] != '/' {
		p.view.hasError = true
		return ErrMalformed
	}

	rest := data[lineEnd+1:]
	headerEnd := bytes.Index(rest, []byte("\r\n\r\n"))
	sep := 4
	if headerEnd == -1 {
		headerEnd = bytes.Index(rest, []byte("\n\n"))
		sep = 2
		if headerEnd == -1 {
			return nil // headers not fully buffered yet
		}
	}

	if err := p.parseHeaders(rest[:headerEnd]); err != nil {
		p.view.hasError = true
		return err
	}
	p.view.headersDone = true

	if _, has := p.view.Header("Transfer-Encoding"); has {
		// Chunked transfer coding is not supported; treat it the same
		// as any other unparseable request rather than silently
		// dropping the body.
		p.view.hasError = true
		return ErrMalformed
	}

	p.view.keepAlive = deriveKeepAlive(&p.view)

	body := rest[headerEnd+sep:]
	contentLength := p.view.ContentLength()
	if contentLength <= 0 {
		p.view.complete = true
		return nil
	}
	if len(body) < contentLength {
		p.view.Body = body // partial; caller keeps reading
		return nil
	}
	p.view.Body = body[:contentLength]
	p.view.complete = true
	return nil
}

func (p *Parser) parseHeaders(data []byte) error {
	for len(data) > 0 {
		lineEnd := bytes.IndexByte(data, '\n')
		if lineEnd == -1 {
			lineEnd = len(data)
		}
		line := data[:lineEnd]
		if len(line) > 0 && line[len(line)-1] == '\r' {
			line = line[:len(line)-1]
		}
		if len(line) == 0 {
			break
		}

		colon := bytes.IndexByte(line, ':')
		if colon <= 0 {
			return ErrMalformed
		}
		name := unsafeString(bytes.TrimSpace(line[:colon]))
		value := unsafeString(bytes.TrimSpace(line[colon+1:]))
		if !httpguts.ValidHeaderFieldName(name) || !httpguts.ValidHeaderFieldValue(value) {
			return ErrMalformed
		}
		p.view.headers = append(p.view.headers, header{
			Name:  name,
			Value: value,
		})

		if lineEnd >= len(data)-1 {
			break
		}
		data = data[lineEnd+1:]
	}
	return nil
}

func deriveKeepAlive(v *RequestView) bool {
	conn, has := v.Header("Connection")
	if v.Proto == "HTTP/1.1" {
		return !has || !bytes.EqualFold([]byte(conn), []byte("close"))
	}
	return has && bytes.EqualFold([]byte(conn), []byte("keep-alive"))
}
