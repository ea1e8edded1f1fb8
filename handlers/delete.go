package handlers

import (
	"os"

	"github.com/kvasten/webmux/core/dispatch"
	httpmsg "github.com/kvasten/webmux/core/http"
)

// Delete removes the file a DELETE request names. In the dispatcher's
// precedence order it comes right after a route's redirect and ahead of
// every other handler, whatever else the route configures.
type Delete struct{}

func NewDelete() *Delete { return &Delete{} }

func (d *Delete) Handle(req *httpmsg.Request, rc *dispatch.RouteContext) (*httpmsg.Response, *dispatch.HandlerError) {
	path, ok := ResolvePath(rc.Route.Directory, rc.RelativePath)
	if !ok {
		return nil, dispatch.NewHandlerError(403, nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, dispatch.NewHandlerError(404, err)
		}
		return nil, dispatch.NewHandlerError(403, err)
	}
	if info.IsDir() {
		return nil, dispatch.NewHandlerError(403, nil)
	}

	if err := os.Remove(path); err != nil {
		return nil, dispatch.NewHandlerError(500, err)
	}

	return httpmsg.NewResponse(204), nil
}
