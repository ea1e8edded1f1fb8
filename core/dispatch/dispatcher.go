// Package dispatch implements the fixed handler-selection precedence: one
// Dispatch call resolves a virtual host, matches a route, and hands the
// request to exactly one of a closed set of built-in handlers — redirect,
// delete, upload, CGI, directory listing, static file — in that order.
// There is no user-extensible middleware chain; every external handler has
// the same signature and is chosen by route configuration, not registered
// per-path.
package dispatch

import (
	"os"
	"path/filepath"
	"strings"

	httpmsg "github.com/kvasten/webmux/core/http"
	"github.com/kvasten/webmux/core/router"
)

// RouteContext is everything a handler needs besides the request itself:
// which virtual host and route matched, and the path with the route's
// prefix stripped off.
type RouteContext struct {
	VHost         *router.VirtualHost
	Route         *router.Route
	MatchedPrefix string
	RelativePath  string
}

// HandlerError is what a handler returns instead of a Response when it
// cannot produce one; the Dispatcher turns it into an error-page response.
type HandlerError struct {
	Status int
	Err    error
}

func (e *HandlerError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return httpmsg.ReasonPhrase(e.Status)
}

func NewHandlerError(status int, err error) *HandlerError {
	return &HandlerError{Status: status, Err: err}
}

// Handler is the external handler contract every built-in handler
// implements.
type Handler interface {
	Handle(req *httpmsg.Request, rc *RouteContext) (*httpmsg.Response, *HandlerError)
}

type HandlerFunc func(req *httpmsg.Request, rc *RouteContext) (*httpmsg.Response, *HandlerError)

func (f HandlerFunc) Handle(req *httpmsg.Request, rc *RouteContext) (*httpmsg.Response, *HandlerError) {
	return f(req, rc)
}

// Handlers is the closed set the Dispatcher chooses from.
type Handlers struct {
	Redirect Handler
	Delete   Handler
	Upload   Handler
	CGI      Handler
	Listing  Handler
	Static   Handler
}

// ErrorPages resolves a status code (for a failed dispatch or a
// HandlerError) into a response, using the virtual host's configured error
// pages if any, falling back to a built-in body otherwise.
type ErrorPages interface {
	Resolve(vh *router.VirtualHost, status int) *httpmsg.Response
}

type defaultErrorPages struct{}

func (defaultErrorPages) Resolve(_ *router.VirtualHost, status int) *httpmsg.Response {
	return httpmsg.ErrorResponse(status)
}

// Dispatcher resolves (listener address, request) into a Response.
type Dispatcher struct {
	listeners  *router.ListenerTable
	handlers   Handlers
	errorPages ErrorPages
}

func New(listeners *router.ListenerTable, handlers Handlers, errorPages ErrorPages) *Dispatcher {
	if errorPages == nil {
		errorPages = defaultErrorPages{}
	}
	return &Dispatcher{listeners: listeners, handlers: handlers, errorPages: errorPages}
}

// Dispatch resolves the virtual host and route for req arriving on addr and
// invokes the chosen handler, converting any HandlerError into an
// error-page response so the event loop always gets back a Response to
// serialize.
func (d *Dispatcher) Dispatch(addr string, req *httpmsg.Request) *httpmsg.Response {
	vh := d.listeners.Resolve(addr, req.Header.Get("Host"))
	if vh == nil {
		return d.errorPages.Resolve(nil, 404)
	}

	normalized, fault := router.NormalizePath(req.Path)
	if fault != nil {
		return d.errorPages.Resolve(vh, fault.Status)
	}
	req.Path = normalized

	route, ok := vh.Routes.Match(req.Path)
	if !ok {
		return d.errorPages.Resolve(vh, 404)
	}
	if !route.AllowsMethod(req.Method) {
		return d.errorPages.Resolve(vh, 405)
	}

	rc := &RouteContext{
		VHost:         vh,
		Route:         route,
		MatchedPrefix: route.Prefix,
		RelativePath:  strings.TrimPrefix(req.Path, route.Prefix),
	}

	handler := d.choose(req, route, rc)
	if handler == nil {
		return d.errorPages.Resolve(vh, 501)
	}

	resp, herr := handler.Handle(req, rc)
	if herr != nil {
		return d.errorPages.Resolve(vh, herr.Status)
	}
	return resp
}

func (d *Dispatcher) choose(req *httpmsg.Request, route *router.Route, rc *RouteContext) Handler {
	// A listing is only produced for a directory target that has no default
	// file; files, and directories with a default file, go to Static.
	listDir := false
	if route.DirectoryListing {
		dir := filepath.Join(route.Directory, rc.RelativePath)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			defaultFile := route.DefaultFile
			if defaultFile == "" {
				defaultFile = "index.html"
			}
			_, err := os.Stat(filepath.Join(dir, defaultFile))
			listDir = err != nil
		}
	}
	switch {
	case route.Redirect != "":
		return d.handlers.Redirect
	case req.Method == "DELETE":
		return d.handlers.Delete
	case route.UploadDir != "" && req.Method == "POST":
		return d.handlers.Upload
	case route.CGIExtension != "" && strings.HasSuffix(rc.RelativePath, route.CGIExtension):
		return d.handlers.CGI
	case listDir:
		return d.handlers.Listing
	default:
		return d.handlers.Static
	}
}
