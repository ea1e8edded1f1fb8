// Package router resolves an incoming (listener address, Host header, path)
// triple down to the single Route that should handle it: first the virtual
// host whose server_name matches (or the first server block bound to that
// address as the default), then the longest configured route prefix that
// respects the path boundary rule.
//
// The longest-common-prefix edge-splitting technique of a classic radix
// tree doesn't fit here — routes are plain literal prefixes, never
// parameterized segments — so matching is a sorted linear scan plus a
// small result cache for the hot path, the same "static map that falls
// through to ordered search" shape a param-free router reduces to.
package router

import (
	"sort"
	"strings"
	"sync"
)

// RedirectType restates the two statuses a redirect Route may use.
type RedirectType int

const (
	RedirectNone RedirectType = 0
	RedirectMoved RedirectType = 301
	RedirectFound RedirectType = 302
)

// Route is one configured location block.
type Route struct {
	Prefix           string
	Methods          []string
	Directory        string
	DefaultFile      string
	DirectoryListing bool
	Redirect         string
	RedirectType     RedirectType
	UploadDir        string
	CGIExtension     string
}

// AllowsMethod reports whether method is permitted; an empty Methods list
// means all methods are accepted, per the config contract.
func (r *Route) AllowsMethod(method string) bool {
	if len(r.Methods) == 0 {
		return true
	}
	for _, m := range r.Methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

// RouteTable holds one virtual host's routes, sorted longest-prefix-first
// so the first boundary match found is also the longest.
type RouteTable struct {
	routes []*Route
	cache  sync.Map // path -> *Route, populated lazily, never invalidated
}

func NewRouteTable(routes []*Route) *RouteTable {
	sorted := make([]*Route, len(routes))
	copy(sorted, routes)
	sort.Slice(sorted, func(i, j int) bool {
		return len(sorted[i].Prefix) > len(sorted[j].Prefix)
	})
	return &RouteTable{routes: sorted}
}

// Match returns the longest configured route whose prefix is a path
// boundary ancestor of path: P matches Q iff Q == P or Q starts with
// P + "/".
var noRoute = &Route{}

func (t *RouteTable) Match(path string) (*Route, bool) {
	if cached, ok := t.cache.Load(path); ok {
		r := cached.(*Route)
		if r == noRoute {
			return nil, false
		}
		return r, true
	}
	for _, r := range t.routes {
		if boundaryMatch(r.Prefix, path) {
			t.cache.Store(path, r)
			return r, true
		}
	}
	t.cache.Store(path, noRoute)
	return nil, false
}

func boundaryMatch(prefix, path string) bool {
	if prefix == "" || prefix == "/" {
		return true
	}
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}
