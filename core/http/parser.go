package http

import (
	"bytes"
	"strconv"

	srverr "github.com/kvasten/webmux/core/errors"
)

// Phase names where Feed is positioned in the request grammar.
type Phase int

const (
	PhaseRequestLine Phase = iota
	PhaseHeaders
	PhaseBodyLength
	PhaseBodyChunked
	PhaseComplete
	PhaseError
)

// Status is Feed's report of progress for the byte range it was just given.
type Status int

const (
	StatusNeedMore Status = iota
	StatusReady
	StatusError
)

const (
	defaultMaxHeaderBytes = 8192
	chunkSizeLine         = iota
	chunkData
	chunkDataCRLF
	chunkTrailer
)

// Parser is the incremental HTTP/1.1 request-line+headers+body state
// machine. One Parser is owned by one Connection for its whole lifetime;
// Reset rearms it for the next pipelined-free request on a kept-alive
// connection.
type Parser struct {
	phase Phase

	buf []byte

	req *Request

	maxBodyBytes   int
	maxHeaderBytes int
	headerBytes    int

	contentLength     int
	seenContentLength bool
	chunked           bool

	chunkSub       int
	chunkRemaining int

	err *srverr.Fault
}

// NewParser constructs a Parser bounding request bodies to maxBodyBytes (0
// means unbounded, which callers should avoid in production configs).
func NewParser(maxBodyBytes int) *Parser {
	p := &Parser{maxBodyBytes: maxBodyBytes, maxHeaderBytes: defaultMaxHeaderBytes}
	p.Reset()
	return p
}

// Reset rearms the parser for a new request, keeping the accumulated byte
// buffer so bytes belonging to a subsequent pipelined-free request that
// arrived in the same read are not lost (though the spec's keep-alive model
// is strictly serial, a client may still pack two requests in one TCP
// segment across two separate handling turns).
func (p *Parser) Reset() {
	p.phase = PhaseRequestLine
	p.req = nil
	p.headerBytes = 0
	p.contentLength = 0
	p.seenContentLength = false
	p.chunked = false
	p.chunkSub = chunkSizeLine
	p.chunkRemaining = 0
	p.err = nil
}

// Feed appends data to the parser's internal buffer and advances through as
// many phases as the buffered bytes allow. It returns StatusReady once the
// request is complete, with Request() then returning the assembled value;
// later calls keep returning StatusReady (buffering any new bytes) until
// Reset.
func (p *Parser) Feed(data []byte) (Status, error) {
	if len(data) > 0 {
		p.buf = append(p.buf, data...)
	}

	for {
		switch p.phase {
		case PhaseRequestLine:
			line, rest, ok := takeLine(p.buf)
			if !ok {
				if len(p.buf) > maxRequestLineBytes {
					return p.fail(srverr.MalformedRequestLine(errLineTooLong))
				}
				return StatusNeedMore, nil
			}
			p.buf = rest
			if err := p.parseRequestLine(line); err != nil {
				return p.fail(err)
			}
			p.phase = PhaseHeaders

		case PhaseHeaders:
			line, rest, ok := takeLine(p.buf)
			if !ok {
				if p.headerBytes+len(p.buf) > p.maxHeaderBytes {
					return p.fail(srverr.HeaderTooLarge(errHeaderSectionTooLarge))
				}
				return StatusNeedMore, nil
			}
			p.headerBytes += len(line) + 2
			if p.headerBytes > p.maxHeaderBytes {
				return p.fail(srverr.HeaderTooLarge(errHeaderSectionTooLarge))
			}
			p.buf = rest
			if len(line) == 0 {
				if err := p.finishHeaders(); err != nil {
					return p.fail(err)
				}
				continue
			}
			if line[0] == ' ' || line[0] == '\t' {
				return p.fail(srverr.MalformedHeader(errObsoleteLineFolding))
			}
			if err := p.parseHeaderLine(line); err != nil {
				return p.fail(err)
			}

		case PhaseBodyLength:
			if len(p.req.Body) >= p.contentLength {
				p.phase = PhaseComplete
				continue
			}
			need := p.contentLength - len(p.req.Body)
			if len(p.buf) == 0 {
				return StatusNeedMore, nil
			}
			take := need
			if take > len(p.buf) {
				take = len(p.buf)
			}
			p.req.Body = append(p.req.Body, p.buf[:take]...)
			p.buf = p.buf[take:]
			if len(p.req.Body) >= p.contentLength {
				p.phase = PhaseComplete
			} else {
				return StatusNeedMore, nil
			}

		case PhaseBodyChunked:
			status, err := p.feedChunk()
			if err != nil {
				return p.fail(err)
			}
			if status == StatusNeedMore {
				return StatusNeedMore, nil
			}

		case PhaseComplete:
			return StatusReady, nil

		case PhaseError:
			return StatusError, p.err
		}
	}
}

// Request returns the assembled request once Feed has returned StatusReady.
func (p *Parser) Request() *Request { return p.req }

func (p *Parser) fail(f *srverr.Fault) (Status, error) {
	p.phase = PhaseError
	p.err = f
	return StatusError, f
}

const maxRequestLineBytes = 8192

func (p *Parser) parseRequestLine(line []byte) *srverr.Fault {
	sp1 := bytes.IndexByte(line, ' ')
	if sp1 <= 0 {
		return srverr.MalformedRequestLine(errBadRequestLine)
	}
	rest := line[sp1+1:]
	sp2 := bytes.IndexByte(rest, ' ')
	if sp2 <= 0 {
		return srverr.MalformedRequestLine(errBadRequestLine)
	}
	method := string(line[:sp1])
	target := string(rest[:sp2])
	version := string(rest[sp2+1:])
	if method == "" || target == "" || version == "" {
		return srverr.MalformedRequestLine(errBadRequestLine)
	}

	p.req = AcquireRequest()
	p.req.Method = method
	p.req.Version = version
	if version != "HTTP/1.1" {
		p.req.UnsupportedVersion = true
	}
	if qIdx := indexByte(target, '?'); qIdx >= 0 {
		p.req.Path = target[:qIdx]
		p.req.RawQuery = target[qIdx+1:]
	} else {
		p.req.Path = target
	}
	if p.req.Path == "" {
		return srverr.MalformedRequestLine(errBadRequestLine)
	}
	return nil
}

func (p *Parser) parseHeaderLine(line []byte) *srverr.Fault {
	colon := bytes.IndexByte(line, ':')
	if colon <= 0 {
		return srverr.MalformedHeader(errBadHeaderLine)
	}
	if line[colon-1] == ' ' || line[colon-1] == '\t' {
		return srverr.MalformedHeader(errBadHeaderLine)
	}
	name := string(line[:colon])
	value := string(bytes.TrimSpace(line[colon+1:]))

	switch toLowerASCII(name) {
	case "content-length":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return srverr.MalformedHeader(errBadContentLength)
		}
		if p.seenContentLength && n != p.contentLength {
			return srverr.ConflictingLength(errConflictingContentLength)
		}
		p.seenContentLength = true
		p.contentLength = n
	case "transfer-encoding":
		if headerTokenContains(value, "chunked") {
			p.chunked = true
		}
	}
	p.req.Header.Add(name, value)
	return nil
}

func (p *Parser) finishHeaders() *srverr.Fault {
	if p.req.Version == "HTTP/1.1" && p.req.Header.Get("Host") == "" {
		return srverr.MissingHost(errMissingHost)
	}
	if p.chunked {
		if p.seenContentLength {
			p.req.Header.Del("Content-Length")
		}
		p.phase = PhaseBodyChunked
		p.chunkSub = chunkSizeLine
		return nil
	}
	if p.seenContentLength && p.contentLength > 0 {
		if p.maxBodyBytes > 0 && p.contentLength > p.maxBodyBytes {
			return srverr.BodyTooLarge(errBodyTooLarge)
		}
		p.phase = PhaseBodyLength
		return nil
	}
	p.phase = PhaseComplete
	return nil
}

func (p *Parser) feedChunk() (Status, *srverr.Fault) {
	for {
		switch p.chunkSub {
		case chunkSizeLine:
			line, rest, ok := takeLine(p.buf)
			if !ok {
				return StatusNeedMore, nil
			}
			p.buf = rest
			if semi := bytes.IndexByte(line, ';'); semi >= 0 {
				line = line[:semi]
			}
			size, err := strconv.ParseInt(string(bytes.TrimSpace(line)), 16, 64)
			if err != nil || size < 0 {
				return StatusError, srverr.ChunkedMalformed(errBadChunkSize)
			}
			if size == 0 {
				p.chunkSub = chunkTrailer
				continue
			}
			if p.maxBodyBytes > 0 && len(p.req.Body)+int(size) > p.maxBodyBytes {
				return StatusError, srverr.BodyTooLarge(errBodyTooLarge)
			}
			p.chunkRemaining = int(size)
			p.chunkSub = chunkData

		case chunkData:
			if len(p.buf) == 0 {
				return StatusNeedMore, nil
			}
			take := p.chunkRemaining
			if take > len(p.buf) {
				take = len(p.buf)
			}
			p.req.Body = append(p.req.Body, p.buf[:take]...)
			p.buf = p.buf[take:]
			p.chunkRemaining -= take
			if p.chunkRemaining == 0 {
				p.chunkSub = chunkDataCRLF
			} else {
				return StatusNeedMore, nil
			}

		case chunkDataCRLF:
			line, rest, ok := takeLine(p.buf)
			if !ok {
				return StatusNeedMore, nil
			}
			if len(line) != 0 {
				return StatusError, srverr.ChunkedMalformed(errBadChunkTerminator)
			}
			p.buf = rest
			p.chunkSub = chunkSizeLine

		case chunkTrailer:
			line, rest, ok := takeLine(p.buf)
			if !ok {
				return StatusNeedMore, nil
			}
			p.buf = rest
			if len(line) == 0 {
				p.phase = PhaseComplete
				return StatusReady, nil
			}
		}
	}
}

// takeLine finds the first line terminator (tolerating a lone LF) in buf
// and returns the line content (without terminator), the remaining bytes,
// and whether a full line was found.
func takeLine(buf []byte) (line, rest []byte, ok bool) {
	idx := bytes.IndexByte(buf, '\n')
	if idx == -1 {
		return nil, nil, false
	}
	line = buf[:idx]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	return line, buf[idx+1:], true
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func toLowerASCII(s string) string {
	out := []byte(s)
	for i, c := range out {
		if 'A' <= c && c <= 'Z' {
			out[i] = c + ('a' - 'A')
		}
	}
	return string(out)
}
