package dispatch

import (
	"testing"

	httpmsg "github.com/kvasten/webmux/core/http"
	"github.com/kvasten/webmux/core/router"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, string) {
	t.Helper()
	listeners := router.NewListenerTable()
	vh := &router.VirtualHost{
		ServerName: "example.com",
		Root:       "/var/www",
		Routes: router.NewRouteTable([]*router.Route{
			{Prefix: "/", Methods: []string{"GET"}},
		}),
	}
	addr := "0.0.0.0:8080"
	listeners.Register(addr, vh)

	static := HandlerFunc(func(req *httpmsg.Request, rc *RouteContext) (*httpmsg.Response, *HandlerError) {
		return httpmsg.NewResponse(200), nil
	})
	d := New(listeners, Handlers{Static: static}, nil)
	return d, addr
}

func newRequest(method, path string) *httpmsg.Request {
	req := httpmsg.AcquireRequest()
	req.Method = method
	req.Path = path
	req.Header.Set("Host", "example.com")
	return req
}

func TestDispatchRejectsTraversalBeforeMatch(t *testing.T) {
	d, addr := newTestDispatcher(t)
	req := newRequest("GET", "/../etc/passwd")

	resp := d.Dispatch(addr, req)
	if resp.Status != 400 {
		t.Fatalf("status = %d, want 400", resp.Status)
	}
}

func TestDispatchServesOrdinaryPath(t *testing.T) {
	d, addr := newTestDispatcher(t)
	req := newRequest("GET", "/index.html")

	resp := d.Dispatch(addr, req)
	if resp.Status != 200 {
		t.Fatalf("status = %d, want 200", resp.Status)
	}
}

func TestDispatchDecodesPercentEncodedPath(t *testing.T) {
	d, addr := newTestDispatcher(t)
	req := newRequest("GET", "/caf%C3%A9.html")

	resp := d.Dispatch(addr, req)
	if resp.Status != 200 {
		t.Fatalf("status = %d, want 200", resp.Status)
	}
	if req.Path != "/café.html" {
		t.Fatalf("Path = %q, want decoded form", req.Path)
	}
}
