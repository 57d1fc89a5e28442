package context

import (
	"testing"

	"github.com/federikowsky/aurora/router"
	"github.com/federikowsky/aurora/wire"
)

func TestContextParamLookup(t *testing.T) {
	c := New()
	req := &wire.RequestView{}
	c.Reset(req, router.Params{{Name: "id", Value: "42"}})

	if got := c.Param("id", ""); got != "42" {
		t.Fatalf("Param(id) = %q", got)
	}
	if got := c.Param("missing", "fallback"); got != "fallback" {
		t.Fatalf("Param(missing) = %q, want fallback", got)
	}
}

func TestContextQueryParsing(t *testing.T) {
	c := New()
	req := &wire.RequestView{Query: "a=1&b=2&flag"}
	c.Reset(req, nil)

	if got := c.Query("a", ""); got != "1" {
		t.Fatalf("Query(a) = %q", got)
	}
	if got := c.Query("b", ""); got != "2" {
		t.Fatalf("Query(b) = %q", got)
	}
	if got := c.Query("flag", "x"); got != "" {
		t.Fatalf("Query(flag) = %q, want empty string for a bare key", got)
	}
	if got := c.Query("missing", "def"); got != "def" {
		t.Fatalf("Query(missing) = %q", got)
	}
}

func TestContextJSONFinalizesResponse(t *testing.T) {
	c := New()
	c.Reset(&wire.RequestView{}, nil)

	if err := c.JSON(201, map[string]string{"ok": "true"}); err != nil {
		t.Fatalf("JSON: %v", err)
	}
	if !c.Response.IsFinalized() {
		t.Fatal("expected response finalized after JSON")
	}
	if c.Response.StatusCode() != 201 {
		t.Fatalf("status = %d", c.Response.StatusCode())
	}
	if ct, _ := headerValue(c.Response, "Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q", ct)
	}
}

func TestContextResetClearsStorageAndAbort(t *testing.T) {
	c := New()
	c.Reset(&wire.RequestView{}, nil)
	c.Set("k", 1)
	c.Abort()

	c.Reset(&wire.RequestView{}, nil)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected storage cleared on Reset")
	}
	if c.IsAborted() {
		t.Fatal("expected aborted flag cleared on Reset")
	}
}

func headerValue(r *Response, name string) (string, bool) {
	for _, h := range r.Headers() {
		if h.Name == name {
			return h.Value, true
		}
	}
	return "", false
}
