package router

import "fmt"

// Router is the per-HTTP-method radix forest (C5): one Tree per
// method, all built during startup wiring and never mutated once the
// Server enters ready (invariant 4 of the data model).
type Router struct {
	trees  map[string]*Tree
	routes map[string]bool // "METHOD PATTERN" -> registered, duplicate detection
}

// New returns an empty Router.
func New() *Router {
	return &Router{
		trees:  make(map[string]*Tree),
		routes: make(map[string]bool),
	}
}

// Handle registers handler for method+pattern. Panics on a duplicate
// (method, pattern) registration, per 4.5.
func (r *Router) Handle(method, pattern string, handler HandlerFunc) {
	key := method + " " + pattern
	if r.routes[key] {
		panic(fmt.Sprintf("router: duplicate registration for %s %s", method, pattern))
	}
	r.routes[key] = true

	tree, ok := r.trees[method]
	if !ok {
		tree = NewTree()
		r.trees[method] = tree
	}
	tree.Add(method, pattern, handler)
}

// Match resolves method+path. found is false when the method's tree has
// no matching pattern; callers use MatchAnyMethod to tell a 404 from a
// 405 Method Not Allowed.
func (r *Router) Match(method, path string) (handler HandlerFunc, params Params, found bool) {
	tree, ok := r.trees[method]
	if !ok {
		return nil, nil, false
	}
	h, p := tree.Find(method, path)
	if h == nil {
		return nil, nil, false
	}
	return h, p, true
}

// MatchAnyMethod reports whether any method has a route matching path,
// used to distinguish 404 (no such path) from 405 (path exists, wrong
// method).
func (r *Router) MatchAnyMethod(path string) bool {
	for method, tree := range r.trees {
		if h, _ := tree.Find(method, path); h != nil {
			return true
		}
	}
	return false
}

// Include merges every route of other into r, unchanged. Used to
// compose route groups registered in separate files/packages before
// server start.
func (r *Router) Include(other *Router) {
	for method, tree := range other.trees {
		walkTree(tree.root, "", func(pattern string, m string, h HandlerFunc) {
			if m != method {
				return
			}
			r.Handle(method, pattern, h)
		})
	}
}

// Mount registers every route of sub under prefix, composing sub-
// routers (e.g. an API versioned group) before server start.
func (r *Router) Mount(prefix string, sub *Router) {
	for method, tree := range sub.trees {
		walkTree(tree.root, "", func(pattern string, m string, h HandlerFunc) {
			if m != method {
				return
			}
			r.Handle(method, prefix+pattern, h)
		})
	}
}

// walkTree reconstructs each registered pattern string by recursively
// visiting the tree, invoking visit with the full (method-agnostic)
// pattern for every handler found at a node. Used only for Include and
// Mount, both pre-start, non-hot-path operations.
func walkTree(n *node, prefix string, visit func(pattern, method string, h HandlerFunc)) {
	full := prefix + n.path

	for method, h := range n.handlers {
		visit(full, method, h)
	}
	for _, c := range n.statics {
		walkTree(c, full, visit)
	}
	if n.paramNode != nil {
		walkTree(n.paramNode, full+":"+n.paramNode.paramName, visit)
	}
	if n.wildNode != nil {
		for method, h := range n.wildNode.handlers {
			visit(full+"*"+n.wildNode.paramName, method, h)
		}
	}
}
