package handlers

import (
	"github.com/kvasten/webmux/core/dispatch"
	httpmsg "github.com/kvasten/webmux/core/http"
	"github.com/kvasten/webmux/core/router"
)

// Redirect answers a route's configured redirect target unconditionally,
// ahead of every other handler, DELETE included.
type Redirect struct{}

func NewRedirect() *Redirect { return &Redirect{} }

func (r *Redirect) Handle(req *httpmsg.Request, rc *dispatch.RouteContext) (*httpmsg.Response, *dispatch.HandlerError) {
	status := int(rc.Route.RedirectType)
	if status == 0 {
		status = int(router.RedirectFound)
	}
	resp := httpmsg.NewResponse(status)
	resp.Header.Set("Location", rc.Route.Redirect)
	resp.Body = []byte{}
	return resp, nil
}
