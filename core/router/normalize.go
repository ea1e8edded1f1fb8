package router

import (
	"errors"
	"net/url"
	"strings"

	srverr "github.com/kvasten/webmux/core/errors"
)

var errUnsafePath = errors.New("path contains a traversal, NUL, or backslash component")

// NormalizePath guards a request's raw target path before it ever reaches
// route matching: it rejects any ".." / NUL / backslash component, then
// percent-decodes the path, then rejects those same components again in the
// decoded form (a percent-encoded ".." must not slip past the pre-decode
// check). The returned path is the decoded one route matching and handlers
// should use.
func NormalizePath(path string) (string, *srverr.Fault) {
	if !pathSafe(path) {
		return "", srverr.MalformedRequestLine(errUnsafePath)
	}
	decoded, err := url.PathUnescape(path)
	if err != nil {
		return "", srverr.MalformedRequestLine(err)
	}
	if !pathSafe(decoded) {
		return "", srverr.MalformedRequestLine(errUnsafePath)
	}
	return decoded, nil
}

func pathSafe(path string) bool {
	if strings.IndexByte(path, 0) >= 0 || strings.IndexByte(path, '\\') >= 0 {
		return false
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == ".." {
			return false
		}
	}
	return true
}
