package wire

import "testing"

func TestParserSimpleGET(t *testing.T) {
	p := NewParser()
	raw := []byte("GET /hello?x=1 HTTP/1.1\r\nHost: example.com\r\n\r\n")
	if err := p.Feed(raw); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	v := p.View()
	if !v.IsComplete() {
		t.Fatal("expected complete request")
	}
	if v.Method != "GET" || v.Path != "/hello" || v.Query != "x=1" {
		t.Fatalf("parsed wrong: %+v", v)
	}
	if host, ok := v.Header("host"); !ok || host != "example.com" {
		t.Fatalf("case-insensitive header lookup failed: %q %v", host, ok)
	}
	if !v.ShouldKeepAlive() {
		t.Fatal("HTTP/1.1 defaults to keep-alive")
	}
}

func TestParserPartialRequestLine(t *testing.T) {
	p := NewParser()
	if err := p.Feed([]byte("GET /hel")); err != nil {
		t.Fatalf("Feed on partial data must not error: %v", err)
	}
	if p.View().IsComplete() {
		t.Fatal("partial request must not be complete")
	}
}

func TestParserPartialHeaders(t *testing.T) {
	p := NewParser()
	if err := p.Feed([]byte("GET / HTTP/1.1\r\nHost: example.com\r\n")); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if p.View().IsComplete() {
		t.Fatal("request missing terminal CRLFCRLF must not be complete")
	}
}

func TestParserConnectionCloseOverridesKeepAlive(t *testing.T) {
	p := NewParser()
	raw := []byte("GET / HTTP/1.1\r\nConnection: close\r\n\r\n")
	if err := p.Feed(raw); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if p.View().ShouldKeepAlive() {
		t.Fatal("Connection: close must disable keep-alive")
	}
}

func TestParserHTTP10DefaultsToClose(t *testing.T) {
	p := NewParser()
	raw := []byte("GET / HTTP/1.0\r\n\r\n")
	if err := p.Feed(raw); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if p.View().ShouldKeepAlive() {
		t.Fatal("HTTP/1.0 must default to close")
	}
}

func TestParserHTTP10KeepAliveHeaderHonored(t *testing.T) {
	p := NewParser()
	raw := []byte("GET / HTTP/1.0\r\nConnection: keep-alive\r\n\r\n")
	if err := p.Feed(raw); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if !p.View().ShouldKeepAlive() {
		t.Fatal("HTTP/1.0 with Connection: keep-alive must stay open")
	}
}

func TestParserBodyAwaitsFullContentLength(t *testing.T) {
	p := NewParser()
	raw := []byte("POST /items HTTP/1.1\r\nContent-Length: 10\r\n\r\npartial")
	if err := p.Feed(raw); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if p.View().IsComplete() {
		t.Fatal("request with short body must not be complete")
	}

	raw = []byte("POST /items HTTP/1.1\r\nContent-Length: 10\r\n\r\npartialbody")
	if err := p.Feed(raw); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	v := p.View()
	if !v.IsComplete() {
		t.Fatal("expected complete request once body fully buffered")
	}
	if string(v.Body) != "partialbod" {
		t.Fatalf("body = %q, want exactly Content-Length bytes", v.Body)
	}
}

func TestParserMalformedRequestLine(t *testing.T) {
	p := NewParser()
	err := p.Feed([]byte("NOTAREQUESTLINE\r\n\r\n"))
	if err != ErrMalformed {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if !p.View().HasError() {
		t.Fatal("expected HasError true")
	}
}

func TestParserRejectsUnsupportedProto(t *testing.T) {
	p := NewParser()
	err := p.Feed([]byte("GET / HTTP/2.0\r\n\r\n"))
	if err != ErrMalformed {
		t.Fatalf("expected ErrMalformed for unsupported proto, got %v", err)
	}
}

func TestParserLaterHeaderOverridesEarlier(t *testing.T) {
	p := NewParser()
	raw := []byte("GET / HTTP/1.1\r\nX-Tag: a\r\nX-Tag: b\r\n\r\n")
	if err := p.Feed(raw); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if v, _ := p.View().Header("X-Tag"); v != "b" {
		t.Fatalf("X-Tag = %q, want last match b", v)
	}
}

func TestParserRejectsChunkedTransferEncoding(t *testing.T) {
	p := NewParser()
	raw := []byte("POST /upload HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n4\r\nabcd\r\n0\r\n\r\n")
	err := p.Feed(raw)
	if err != ErrMalformed {
		t.Fatalf("expected ErrMalformed for chunked Transfer-Encoding, got %v", err)
	}
	if !p.View().HasError() {
		t.Fatal("expected HasError to be set")
	}
	if p.View().IsComplete() {
		t.Fatal("a rejected chunked request must not be marked complete")
	}
}

func TestParserResetClearsState(t *testing.T) {
	p := NewParser()
	_ = p.Feed([]byte("GET / HTTP/1.1\r\n\r\n"))
	p.Reset()
	if p.View().IsComplete() {
		t.Fatal("Reset must clear complete flag")
	}
	if p.View().Method != "" {
		t.Fatal("Reset must clear parsed fields")
	}
}
