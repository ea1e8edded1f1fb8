package http

import "testing"

func parseWhole(t *testing.T, raw string, maxBody int) (*Request, error) {
	t.Helper()
	p := NewParser(maxBody)
	status, err := p.Feed([]byte(raw))
	if status != StatusReady {
		return nil, err
	}
	return p.Request(), nil
}

func TestParserSimpleGET(t *testing.T) {
	req, err := parseWhole(t, "GET /index.html HTTP/1.1\r\nHost: example.com\r\n\r\n", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Method != "GET" || req.Path != "/index.html" || req.Version != "HTTP/1.1" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if req.Header.Get("Host") != "example.com" {
		t.Fatalf("host header not parsed: %+v", req.Header)
	}
}

func TestParserTagsUnsupportedVersionButAccepts(t *testing.T) {
	req, err := parseWhole(t, "GET / HTTP/2.0\r\nHost: example.com\r\n\r\n", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !req.UnsupportedVersion {
		t.Fatal("expected UnsupportedVersion to be set for HTTP/2.0")
	}
	if req.Version != "HTTP/2.0" {
		t.Fatalf("version = %q", req.Version)
	}
}

func TestParserMissingHostOnHTTP11(t *testing.T) {
	_, err := parseWhole(t, "GET / HTTP/1.1\r\n\r\n", 0)
	if err == nil {
		t.Fatal("expected missing-host error")
	}
}

func TestParserContentLengthBody(t *testing.T) {
	raw := "POST /upload HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\n\r\nhello"
	req, err := parseWhole(t, raw, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(req.Body) != "hello" {
		t.Fatalf("unexpected body: %q", req.Body)
	}
}

func TestParserConflictingContentLength(t *testing.T) {
	raw := "POST / HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\nContent-Length: 6\r\n\r\nhello!"
	_, err := parseWhole(t, raw, 0)
	if err == nil {
		t.Fatal("expected conflicting content-length error")
	}
}

func TestParserBodyTooLarge(t *testing.T) {
	raw := "POST / HTTP/1.1\r\nHost: x\r\nContent-Length: 10\r\n\r\n0123456789"
	_, err := parseWhole(t, raw, 5)
	if err == nil {
		t.Fatal("expected body-too-large error")
	}
}

func TestParserChunkedBody(t *testing.T) {
	raw := "POST / HTTP/1.1\r\nHost: x\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n"
	req, err := parseWhole(t, raw, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(req.Body) != "hello world" {
		t.Fatalf("unexpected chunked body: %q", req.Body)
	}
}

// TestParserByteAtATime checks that feeding the same request one byte at a
// time at every possible split point produces the same result as feeding it
// whole, which is the incremental/one-shot equivalence property.
func TestParserByteAtATime(t *testing.T) {
	raw := "GET /a/b/c?x=1 HTTP/1.1\r\nHost: example.com\r\nConnection: keep-alive\r\n\r\n"
	for split := 1; split < len(raw); split++ {
		p := NewParser(0)
		status, err := p.Feed([]byte(raw[:split]))
		if err != nil {
			t.Fatalf("split %d: unexpected early error: %v", split, err)
		}
		if status == StatusReady {
			continue
		}
		status, err = p.Feed([]byte(raw[split:]))
		if err != nil {
			t.Fatalf("split %d: unexpected error: %v", split, err)
		}
		if status != StatusReady {
			t.Fatalf("split %d: expected ready, got %v", split, status)
		}
		req := p.Request()
		if req.Method != "GET" || req.Path != "/a/b/c" || req.RawQuery != "x=1" {
			t.Fatalf("split %d: unexpected request %+v", split, req)
		}
	}
}

func TestParserMalformedRequestLine(t *testing.T) {
	_, err := parseWhole(t, "GET\r\n\r\n", 0)
	if err == nil {
		t.Fatal("expected malformed request line error")
	}
}

func TestParserObsoleteLineFoldingRejected(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nHost: x\r\n Folded: value\r\n\r\n"
	_, err := parseWhole(t, raw, 0)
	if err == nil {
		t.Fatal("expected obsolete line folding error")
	}
}
