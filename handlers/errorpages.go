package handlers

import (
	"os"

	httpmsg "github.com/kvasten/webmux/core/http"
	"github.com/kvasten/webmux/core/router"
)

// ErrorPages resolves a status into a Response, preferring the virtual
// host's configured error-page file and falling back to a built-in body
// when none is configured or the file can't be read.
type ErrorPages struct{}

func NewErrorPages() *ErrorPages { return &ErrorPages{} }

func (e *ErrorPages) Resolve(vh *router.VirtualHost, status int) *httpmsg.Response {
	if vh != nil {
		if filename, ok := vh.ErrorPages[status]; ok {
			if data, err := os.ReadFile(filename); err == nil {
				resp := httpmsg.NewResponse(status)
				resp.Body = data
				resp.Header.Set("Content-Type", "text/html; charset=utf-8")
				return resp
			}
		}
	}
	return httpmsg.ErrorResponse(status)
}
