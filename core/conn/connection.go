// Package conn holds the per-fd Connection state machine: Reading,
// Processing, Writing, KeepAlive, Closed. The event loop drives every
// transition; Connection itself never touches the poller or a socket, so it
// stays trivially testable.
package conn

import (
	"time"

	httpmsg "github.com/kvasten/webmux/core/http"
)

type State int

const (
	StateReading State = iota
	StateProcessing
	StateWriting
	StateKeepAlive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateReading:
		return "reading"
	case StateProcessing:
		return "processing"
	case StateWriting:
		return "writing"
	case StateKeepAlive:
		return "keepalive"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Connection is a pooled, fd-addressed unit of work. The engine owns one
// per accepted socket and recycles it through the pool once Closed.
type Connection struct {
	FD    int
	State State
	Peer  string

	ReadBuf []byte

	WriteBuf    []byte
	WriteCursor int

	Parser   *httpmsg.Parser
	Request  *httpmsg.Request
	Response *httpmsg.Response

	Deadline   time.Time
	LastActive time.Time
	KeepAlive  bool

	// ListenAddr is the "host:port" of the listener this connection was
	// accepted on, used to resolve the right virtual host table.
	ListenAddr string

	maxBodyBytes int
}

// New builds a Connection ready to be handed an fd via SetFD.
func New(maxBodyBytes int) *Connection {
	c := &Connection{
		ReadBuf:      make([]byte, 0, 4096),
		maxBodyBytes: maxBodyBytes,
	}
	c.Parser = httpmsg.NewParser(maxBodyBytes)
	return c
}

// Reset implements pools.ConnectionPoolable: it clears per-request state so
// the Connection can be handed to a brand new accepted fd.
func (c *Connection) Reset() {
	c.FD = -1
	c.State = StateReading
	c.Peer = ""
	c.ListenAddr = ""
	c.ReadBuf = c.ReadBuf[:0]
	c.WriteBuf = nil
	c.WriteCursor = 0
	c.Request = nil
	c.Response = nil
	c.KeepAlive = false
	// A fresh parser, not Parser.Reset: Reset keeps buffered bytes, which
	// belong to the previous fd and must not reach the next one.
	c.Parser = httpmsg.NewParser(c.maxBodyBytes)
}

// SetFD implements pools.ConnectionPoolable.
func (c *Connection) SetFD(fd int) {
	c.FD = fd
	c.State = StateReading
	c.LastActive = time.Now()
}

// PrepareForNextRequest rearms the connection's parser for the next request
// on a kept-alive connection without touching the fd or its read buffer
// (bytes belonging to a request the client sent early may already be
// buffered).
func (c *Connection) PrepareForNextRequest() {
	c.State = StateReading
	c.Request = nil
	c.Response = nil
	c.WriteBuf = nil
	c.WriteCursor = 0
	c.Parser.Reset()
}

// AppendRead feeds newly read bytes into the parser and returns its status.
func (c *Connection) AppendRead(data []byte) (httpmsg.Status, error) {
	c.LastActive = time.Now()
	return c.Parser.Feed(data)
}

// BeginWrite arms the connection to write resp's serialized bytes.
func (c *Connection) BeginWrite(payload []byte, keepAlive bool) {
	c.WriteBuf = payload
	c.WriteCursor = 0
	c.KeepAlive = keepAlive
	c.State = StateWriting
}

// PendingWrite returns the slice of bytes not yet written.
func (c *Connection) PendingWrite() []byte {
	return c.WriteBuf[c.WriteCursor:]
}

// AdvanceWrite records n more bytes as flushed and reports whether the
// whole buffer has now been written.
func (c *Connection) AdvanceWrite(n int) bool {
	c.WriteCursor += n
	c.LastActive = time.Now()
	return c.WriteCursor >= len(c.WriteBuf)
}

// IdleFor reports how long it has been since any I/O progress was made on
// this connection, for the event loop's deadline sweep.
func (c *Connection) IdleFor(now time.Time) time.Duration {
	return now.Sub(c.LastActive)
}
