package handlers

import (
	"fmt"
	"html"
	"os"
	"sort"
	"strings"

	"github.com/kvasten/webmux/core/dispatch"
	httpmsg "github.com/kvasten/webmux/core/http"
)

// Listing renders a minimal HTML index for a directory Route when no
// static file matches the request path directly.
type Listing struct{}

func NewListing() *Listing { return &Listing{} }

func (l *Listing) Handle(req *httpmsg.Request, rc *dispatch.RouteContext) (*httpmsg.Response, *dispatch.HandlerError) {
	if req.Method != "GET" && req.Method != "HEAD" {
		return nil, dispatch.NewHandlerError(405, nil)
	}

	dirPath, ok := ResolvePath(rc.Route.Directory, rc.RelativePath)
	if !ok {
		return nil, dispatch.NewHandlerError(403, nil)
	}

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, dispatch.NewHandlerError(404, err)
		}
		return nil, dispatch.NewHandlerError(403, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var b strings.Builder
	fmt.Fprintf(&b, "<!DOCTYPE html>\n<html><head><title>Index of %s</title></head><body>\n", html.EscapeString(req.Path))
	fmt.Fprintf(&b, "<h1>Index of %s</h1>\n<ul>\n", html.EscapeString(req.Path))
	if req.Path != "/" {
		b.WriteString("<li><a href=\"../\">../</a></li>\n")
	}
	for _, e := range entries {
		name := e.Name()
		info, statErr := e.Info()
		size := int64(0)
		if statErr == nil {
			size = info.Size()
		}
		suffix := ""
		if e.IsDir() {
			suffix = "/"
		}
		fmt.Fprintf(&b, "<li><a href=\"%s%s\">%s%s</a> (%d bytes)</li>\n",
			html.EscapeString(name), suffix, html.EscapeString(name), suffix, size)
	}
	b.WriteString("</ul></body></html>\n")

	resp := httpmsg.NewResponse(200)
	resp.Body = []byte(b.String())
	resp.Header.Set("Content-Type", "text/html; charset=utf-8")
	return resp, nil
}
