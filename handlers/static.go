package handlers

import (
	"os"

	"github.com/kvasten/webmux/core/dispatch"
	httpmsg "github.com/kvasten/webmux/core/http"
	"github.com/kvasten/webmux/core/sendfile"
)

// Static serves a single file under a Route's configured directory,
// substituting the route's default_file when the request targets the
// directory itself.
type Static struct {
	Cache *sendfile.FileCache
}

func NewStatic() *Static {
	return &Static{Cache: sendfile.Global()}
}

func (s *Static) Handle(req *httpmsg.Request, rc *dispatch.RouteContext) (*httpmsg.Response, *dispatch.HandlerError) {
	if req.Method != "GET" && req.Method != "HEAD" {
		return nil, dispatch.NewHandlerError(405, nil)
	}

	relative := rc.RelativePath
	path, ok := ResolvePath(rc.Route.Directory, relative)
	if !ok {
		return nil, dispatch.NewHandlerError(403, nil)
	}

	info, err := os.Stat(path)
	if err == nil && info.IsDir() {
		defaultFile := rc.Route.DefaultFile
		if defaultFile == "" {
			defaultFile = "index.html"
		}
		path, ok = ResolvePath(path, defaultFile)
		if !ok {
			return nil, dispatch.NewHandlerError(403, nil)
		}
	}

	data, info, err := sendfile.ReadFile(s.Cache, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, dispatch.NewHandlerError(404, err)
		}
		if os.IsPermission(err) {
			return nil, dispatch.NewHandlerError(403, err)
		}
		return nil, dispatch.NewHandlerError(500, err)
	}

	resp := httpmsg.NewResponse(200)
	resp.Header.Set("Content-Type", sendfile.GetContentType(path))
	resp.Header.Set("Last-Modified", info.ModTime().UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT"))
	if req.Method == "HEAD" {
		resp.Header.Set("Content-Length", itoa(len(data)))
		return resp, nil
	}
	resp.Body = data
	return resp, nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
