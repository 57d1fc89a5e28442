// Package hooks defines the lifecycle callbacks Aurora's embedder API
// exposes (`on_start`/`on_stop`/`on_request`/`on_response`/`on_error`).
// It is its own package, rather than living on `app` or
// `conn` directly, because both ends need the same types without
// creating an import cycle: `app` registers hooks pre-start, `conn`
// and `server` invoke them at the points the request/connection
// lifecycle actually reaches.
package hooks

import "github.com/federikowsky/aurora/context"

// Lifecycle bundles every hook an embedder may register. Each field is
// nil-checked by the caller before being invoked; leaving a hook unset
// is the normal case.
type Lifecycle struct {
	OnStart    func()
	OnStop     func()
	OnRequest  func(ctx *context.Context)
	OnResponse func(ctx *context.Context, status int)
	OnError    func(err error, status int)
}

// CallStart invokes l.OnStart if l and the hook are both set.
func CallStart(l *Lifecycle) {
	if l != nil && l.OnStart != nil {
		l.OnStart()
	}
}

// CallStop invokes l.OnStop if l and the hook are both set.
func CallStop(l *Lifecycle) {
	if l != nil && l.OnStop != nil {
		l.OnStop()
	}
}
