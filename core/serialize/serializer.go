// Package serialize turns a Response into the exact bytes written to a
// socket. It is the one place that guarantees a well-formed status line,
// exactly one of Content-Length/Transfer-Encoding, a Date header, and a
// Connection header that reflects what the event loop actually decided —
// handlers never see or touch the wire format directly.
package serialize

import (
	"bytes"
	"net/textproto"
	"strconv"
	"time"

	httpmsg "github.com/kvasten/webmux/core/http"
	"golang.org/x/net/http/httpguts"
)

const dateFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

// Serialize renders resp to wire bytes. keepAlive is the event loop's own
// decision (not merely an echo of what the client asked for) about whether
// the connection will be reused; it is written into the Connection header
// verbatim. If resp carries a header name or value that would corrupt the
// wire format, Serialize substitutes a 500 response and forces close,
// rather than ever emitting a malformed response.
func Serialize(resp *httpmsg.Response, keepAlive bool) ([]byte, bool) {
	if !headersValid(resp.Header) {
		resp = httpmsg.ErrorResponse(500)
		keepAlive = false
	}

	header := resp.Header.Clone()

	hasContentLength := header.Has("Content-Length")
	hasTransferEncoding := header.Has("Transfer-Encoding")
	switch {
	case hasContentLength && hasTransferEncoding:
		// A buffered Response always has a known length; Content-Length
		// wins and Transfer-Encoding is dropped so exactly one survives.
		header.Del("Transfer-Encoding")
	case !hasContentLength && !hasTransferEncoding:
		header.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	}

	if !header.Has("Date") {
		header.Set("Date", time.Now().UTC().Format(dateFormat))
	}

	connValue := "close"
	if keepAlive {
		connValue = "keep-alive"
	}
	header.Set("Connection", connValue)

	version := resp.Version
	if version == "" {
		version = "HTTP/1.1"
	}

	var buf bytes.Buffer
	buf.WriteString(version)
	buf.WriteByte(' ')
	buf.WriteString(strconv.Itoa(resp.Status))
	buf.WriteByte(' ')
	buf.WriteString(httpmsg.ReasonPhrase(resp.Status))
	buf.WriteString("\r\n")
	writeHeaders(&buf, header)
	buf.WriteString("\r\n")
	buf.Write(resp.Body)

	return buf.Bytes(), keepAlive
}

func headersValid(h httpmsg.Header) bool {
	valid := true
	h.Range(func(name string, values []string) {
		if !httpguts.ValidHeaderFieldName(name) {
			valid = false
			return
		}
		for _, v := range values {
			if !httpguts.ValidHeaderFieldValue(v) {
				valid = false
				return
			}
		}
	})
	return valid
}

// writeHeaders emits headers in the order their names were first added, per
// §4.6's insertion-order guarantee — never Go's randomized map order.
func writeHeaders(buf *bytes.Buffer, h httpmsg.Header) {
	h.Range(func(name string, values []string) {
		canon := textproto.CanonicalMIMEHeaderKey(name)
		for _, v := range values {
			buf.WriteString(canon)
			buf.WriteString(": ")
			buf.WriteString(v)
			buf.WriteString("\r\n")
		}
	})
}
