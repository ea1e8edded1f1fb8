package serialize

import (
	"bytes"
	"strings"
	"testing"

	httpmsg "github.com/kvasten/webmux/core/http"
)

func TestSerializeSetsContentLengthAndConnection(t *testing.T) {
	resp := httpmsg.NewResponse(200).WithBody([]byte("hi"), "text/plain")
	out, keepAlive := Serialize(resp, true)
	if !keepAlive {
		t.Fatal("expected keepAlive echoed back true")
	}
	text := string(out)
	if !strings.HasPrefix(text, "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("unexpected status line: %q", text)
	}
	if !strings.Contains(text, "Content-Length: 2\r\n") {
		t.Fatalf("expected Content-Length: 2, got %q", text)
	}
	if !strings.Contains(text, "Connection: keep-alive\r\n") {
		t.Fatalf("expected Connection: keep-alive, got %q", text)
	}
	if !strings.HasSuffix(text, "hi") {
		t.Fatalf("expected body to trail headers, got %q", text)
	}
}

func TestSerializeNeverEmitsBothLengthHeaders(t *testing.T) {
	resp := httpmsg.NewResponse(200)
	resp.Header.Set("Content-Length", "0")
	resp.Header.Set("Transfer-Encoding", "chunked")
	out, _ := Serialize(resp, false)
	if bytes.Contains(out, []byte("Transfer-Encoding")) {
		t.Fatal("expected Transfer-Encoding to be dropped in favor of Content-Length")
	}
}

func TestSerializeRejectsControlCharactersInHeaderValue(t *testing.T) {
	resp := httpmsg.NewResponse(200)
	resp.Header.Set("X-Evil", "bad\r\nvalue")
	out, keepAlive := Serialize(resp, true)
	if keepAlive {
		t.Fatal("expected keepAlive forced false on header corruption")
	}
	if !strings.HasPrefix(string(out), "HTTP/1.1 500 ") {
		t.Fatalf("expected substituted 500 response, got %q", out)
	}
}
