package handlers

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/kvasten/webmux/core/dispatch"
	httpmsg "github.com/kvasten/webmux/core/http"
)

// Upload persists a POST body under a Route's upload_dir using a
// collision-avoiding uuid-derived filename, and answers 201 Created with a
// Location header pointing at the stored resource.
type Upload struct{}

func NewUpload() *Upload { return &Upload{} }

func (u *Upload) Handle(req *httpmsg.Request, rc *dispatch.RouteContext) (*httpmsg.Response, *dispatch.HandlerError) {
	if req.Method != "POST" {
		return nil, dispatch.NewHandlerError(405, nil)
	}

	if err := os.MkdirAll(rc.Route.UploadDir, 0o755); err != nil {
		return nil, dispatch.NewHandlerError(500, err)
	}

	name := uuid.NewString()
	if ext := filepath.Ext(requestedName(req)); ext != "" {
		name += ext
	}

	dest, ok := ResolvePath(rc.Route.UploadDir, name)
	if !ok {
		return nil, dispatch.NewHandlerError(500, nil)
	}

	if err := os.WriteFile(dest, req.Body, 0o644); err != nil {
		return nil, dispatch.NewHandlerError(500, err)
	}

	resp := httpmsg.NewResponse(201)
	resp.Header.Set("Location", joinURLPath(rc.MatchedPrefix, name))
	return resp, nil
}

func requestedName(req *httpmsg.Request) string {
	if cd := req.Header.Get("Content-Disposition"); cd != "" {
		return cd
	}
	return req.Path
}

func joinURLPath(prefix, name string) string {
	if prefix == "" || prefix == "/" {
		return "/" + name
	}
	return prefix + "/" + name
}
