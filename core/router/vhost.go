package router

import (
	"strings"
	"sync"

	"golang.org/x/text/cases"
)

// VirtualHost is one server{} block: a name, document root, CGI mapping and
// route table, bound to one or more listener addresses.
type VirtualHost struct {
	ServerName  string
	Root        string
	AdminAccess bool
	CGIHandlers map[string]string
	Routes      *RouteTable
	ErrorPages  map[int]string
}

// CGIHandlerFor returns the interpreter path configured for ext (including
// the leading dot), if any.
func (v *VirtualHost) CGIHandlerFor(ext string) (string, bool) {
	h, ok := v.CGIHandlers[ext]
	return h, ok
}

// ListenerTable maps a listener address ("host:port") to the ordered list
// of virtual hosts bound to it; the first one registered is the default
// used when no Host header matches any configured server_name.
type ListenerTable struct {
	mu    sync.RWMutex
	hosts map[string][]*VirtualHost
}

func NewListenerTable() *ListenerTable {
	return &ListenerTable{hosts: make(map[string][]*VirtualHost)}
}

func (t *ListenerTable) Register(addr string, vh *VirtualHost) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hosts[addr] = append(t.hosts[addr], vh)
}

// Resolve picks the virtual host for addr whose server_name matches the
// (case-folded, port-stripped) Host header, falling back to the first
// server block bound to that address.
func (t *ListenerTable) Resolve(addr, hostHeader string) *VirtualHost {
	t.mu.RLock()
	defer t.mu.RUnlock()
	list := t.hosts[addr]
	if len(list) == 0 {
		return nil
	}
	name := NormalizeHost(hostHeader)
	for _, vh := range list {
		if NormalizeHost(vh.ServerName) == name {
			return vh
		}
	}
	return list[0]
}

var hostFolder = cases.Fold()

// NormalizeHost strips an optional :port suffix and case-folds the result,
// matching the spec's case-insensitive Host-header comparison rule.
func NormalizeHost(h string) string {
	if idx := strings.LastIndexByte(h, ':'); idx >= 0 {
		h = h[:idx]
	}
	return hostFolder.String(h)
}
