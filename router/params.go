package router

// Params is the ordered list of path parameters captured by a route
// match. Most routes capture zero, one, or a handful of parameters, so
// this stays a small slice rather than a map — callers doing repeated
// lookups by name should use Get, which is a linear scan but over a
// list that is rarely longer than three or four entries.
type Params []Param

// Param is one captured ":name" or "*name" path segment.
type Param struct {
	Name  string
	Value string
}

// Get returns the value of the named parameter, or "" with ok=false if
// no such parameter was captured for this match.
func (p Params) Get(name string) (string, bool) {
	for _, entry := range p {
		if entry.Name == name {
			return entry.Value, true
		}
	}
	return "", false
}
