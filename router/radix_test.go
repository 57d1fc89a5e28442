package router

import "testing"

func mustHandler(t *testing.T, tag string) HandlerFunc {
	t.Helper()
	return func(ctx any) {}
}

func TestTreeStaticRoundTrip(t *testing.T) {
	tree := NewTree()
	h := mustHandler(t, "a")
	tree.Add("GET", "/users/list", h)
	tree.Add("GET", "/users/create", h)

	got, _ := tree.Find("GET", "/users/list")
	if got == nil {
		t.Fatal("expected match for /users/list")
	}
	if got, _ := tree.Find("GET", "/users/missing"); got != nil {
		t.Fatal("expected no match for unregistered path")
	}
}

func TestTreeParamCapture(t *testing.T) {
	tree := NewTree()
	var captured Params
	tree.Add("GET", "/users/:id", func(ctx any) {})

	got, params := tree.Find("GET", "/users/42")
	if got == nil {
		t.Fatal("expected param route match")
	}
	captured = params
	if v, ok := captured.Get("id"); !ok || v != "42" {
		t.Fatalf("id = %q, ok=%v", v, ok)
	}
}

func TestTreeWildcardCapture(t *testing.T) {
	tree := NewTree()
	tree.Add("GET", "/static/*filepath", func(ctx any) {})

	got, params := tree.Find("GET", "/static/css/app.css")
	if got == nil {
		t.Fatal("expected wildcard match")
	}
	if v, _ := params.Get("filepath"); v != "css/app.css" {
		t.Fatalf("filepath = %q", v)
	}
}

// TestTreeStaticBeatsParam is the core tie-break property from 4.5:
// STATIC > PARAM > WILDCARD at every node, regardless of registration
// order.
func TestTreeStaticBeatsParam(t *testing.T) {
	tree := NewTree()
	staticHit := false
	paramHit := false
	tree.Add("GET", "/users/:id", func(ctx any) { paramHit = true })
	tree.Add("GET", "/users/new", func(ctx any) { staticHit = true })

	h, _ := tree.Find("GET", "/users/new")
	if h == nil {
		t.Fatal("expected a match")
	}
	h(nil)
	if !staticHit || paramHit {
		t.Fatalf("expected static route to win over param route, staticHit=%v paramHit=%v", staticHit, paramHit)
	}
}

// TestTreeStaticBeatsParamRegisteredFirst repeats the above with the
// static route registered BEFORE the param route, to ensure the
// ordering is structural and not an artifact of insertion order.
func TestTreeStaticBeatsParamRegisteredFirst(t *testing.T) {
	tree := NewTree()
	staticHit := false
	tree.Add("GET", "/users/new", func(ctx any) { staticHit = true })
	tree.Add("GET", "/users/:id", func(ctx any) {})

	h, _ := tree.Find("GET", "/users/new")
	if h == nil {
		t.Fatal("expected a match")
	}
	h(nil)
	if !staticHit {
		t.Fatal("expected static route to win")
	}
}

// TestTreeParamBeatsWildcard ensures a param child wins over a sibling
// wildcard child, even when the wildcard is registered first.
func TestTreeParamBeatsWildcard(t *testing.T) {
	tree := NewTree()
	wildHit, paramHit := false, false
	tree.Add("GET", "/files/*rest", func(ctx any) { wildHit = true })
	tree.Add("GET", "/files/:name", func(ctx any) { paramHit = true })

	h, _ := tree.Find("GET", "/files/report")
	if h == nil {
		t.Fatal("expected a match")
	}
	h(nil)
	if !paramHit || wildHit {
		t.Fatalf("expected param route to win over wildcard, paramHit=%v wildHit=%v", paramHit, wildHit)
	}
}

func TestTreeBacktracksFromFailedStaticToParam(t *testing.T) {
	tree := NewTree()
	tree.Add("GET", "/users/new", func(ctx any) {})
	tree.Add("GET", "/users/:id", func(ctx any) {})

	h, params := tree.Find("GET", "/users/abc123")
	if h == nil {
		t.Fatal("expected fallback to param route")
	}
	if v, _ := params.Get("id"); v != "abc123" {
		t.Fatalf("id = %q", v)
	}
}

func TestRouterDuplicateRegistrationPanics(t *testing.T) {
	r := New()
	r.Handle("GET", "/x", func(ctx any) {})
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	r.Handle("GET", "/x", func(ctx any) {})
}

func TestTreeMethodIsolation(t *testing.T) {
	tree := NewTree()
	tree.Add("GET", "/a", func(ctx any) {})
	if h, _ := tree.Find("POST", "/a"); h != nil {
		t.Fatal("POST must not match a GET-only route")
	}
}

func TestRouterMount(t *testing.T) {
	sub := New()
	hit := false
	sub.Handle("GET", "/widgets", func(ctx any) { hit = true })

	root := New()
	root.Mount("/api/v1", sub)

	h, _, found := root.Match("GET", "/api/v1/widgets")
	if !found || h == nil {
		t.Fatal("expected mounted route to match under prefix")
	}
	h(nil)
	if !hit {
		t.Fatal("expected mounted handler to run")
	}
}

func TestRouterInclude(t *testing.T) {
	a := New()
	a.Handle("GET", "/a", func(ctx any) {})
	b := New()
	b.Handle("GET", "/b", func(ctx any) {})

	a.Include(b)
	if _, _, found := a.Match("GET", "/b"); !found {
		t.Fatal("expected included route to be present")
	}
}

func TestRouterMatchAnyMethodDistinguishes404From405(t *testing.T) {
	r := New()
	r.Handle("POST", "/widgets", func(ctx any) {})

	if _, _, found := r.Match("GET", "/widgets"); found {
		t.Fatal("GET must not match a POST-only route")
	}
	if !r.MatchAnyMethod("/widgets") {
		t.Fatal("expected MatchAnyMethod to report the path exists under another method")
	}
	if r.MatchAnyMethod("/nonexistent") {
		t.Fatal("expected no match for a truly unregistered path")
	}
}
