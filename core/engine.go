// Package core implements the single-threaded, epoll/kqueue-driven event
// loop: one goroutine owns the Poller, accepts connections, drives each
// connection's Reading/Processing/Writing state machine, and sweeps
// deadlines. No handler or collaborator is ever called from a second
// goroutine on this loop's behalf except through the bounded, explicitly
// awaited WorkerPool handoff CGI uses.
package core

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/kvasten/webmux/core/conn"
	"github.com/kvasten/webmux/core/dispatch"
	srverr "github.com/kvasten/webmux/core/errors"
	httpmsg "github.com/kvasten/webmux/core/http"
	"github.com/kvasten/webmux/core/observability"
	"github.com/kvasten/webmux/core/poller"
	"github.com/kvasten/webmux/core/pools"
	"github.com/kvasten/webmux/core/router"
	"github.com/kvasten/webmux/core/serialize"
)

// ListenerSpec is one configured (address, port) the engine binds and the
// virtual hosts that should answer on it.
type ListenerSpec struct {
	Addr         string
	VirtualHosts []*router.VirtualHost
}

// Engine is the event loop: one Poller, one map of live connections, one
// Dispatcher. Serve never returns until Shutdown closes the listeners and
// every connection drains or the grace period expires.
type Engine struct {
	poll poller.Poller

	listenerFDs map[int]string // lfd -> listen addr
	listeners   []net.Listener

	connections map[int]*conn.Connection
	connMu      sync.RWMutex

	listenerTable *router.ListenerTable
	dispatcher    *dispatch.Dispatcher

	maxBodyBytes int
	idleTimeout  time.Duration

	connectionPool *pools.ConnectionPool
	workerPool     *pools.WorkerPool
	bytePool       *pools.BytePool
	monitor        *observability.PerformanceMonitor

	log *logrus.Logger

	stopping bool
	stopMu   sync.Mutex
}

type Config struct {
	MaxBodyBytes int
	IdleTimeout  time.Duration
	Logger       *logrus.Logger
}

func NewEngine(listenerTable *router.ListenerTable, dispatcher *dispatch.Dispatcher, cfg Config) *Engine {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	pools.OptimizeForHighThroughput()

	e := &Engine{
		listenerFDs:   make(map[int]string),
		connections:   make(map[int]*conn.Connection, 1024),
		listenerTable: listenerTable,
		dispatcher:    dispatcher,
		maxBodyBytes:  cfg.MaxBodyBytes,
		idleTimeout:   cfg.IdleTimeout,
		log:           cfg.Logger,
		workerPool:    pools.NewWorkerPool(0),
		bytePool:      pools.NewBytePool(),
		monitor:       observability.NewPerformanceMonitor(),
	}
	e.connectionPool = pools.NewConnectionPool(4096, func() any {
		return conn.New(cfg.MaxBodyBytes)
	})
	return e
}

// WorkerPool exposes the shared pool so handlers (CGI) can offload blocking
// work without importing core.
func (e *Engine) WorkerPool() *pools.WorkerPool { return e.workerPool }

// Serve binds every listener in specs, registers each with the virtual
// host table, and runs the event loop until Shutdown is called.
func (e *Engine) Serve(specs []ListenerSpec) error {
	p, err := poller.NewPoller()
	if err != nil {
		return err
	}
	e.poll = p

	for _, spec := range specs {
		for _, vh := range spec.VirtualHosts {
			e.listenerTable.Register(spec.Addr, vh)
		}
		ln, err := net.Listen("tcp", spec.Addr)
		if err != nil {
			e.poll.Close()
			return err
		}
		tcpLn := ln.(*net.TCPListener)
		file, err := tcpLn.File()
		if err != nil {
			ln.Close()
			e.poll.Close()
			return err
		}
		lfd := int(file.Fd())
		if err := unix.SetNonblock(lfd, true); err != nil {
			ln.Close()
			e.poll.Close()
			return err
		}
		if err := e.poll.Add(lfd, poller.Read); err != nil {
			ln.Close()
			e.poll.Close()
			return err
		}
		e.listenerFDs[lfd] = spec.Addr
		e.listeners = append(e.listeners, ln)
		e.log.WithField("addr", spec.Addr).Info("listening")
	}

	go e.sweepDeadlines()

	e.loop()
	return nil
}

func (e *Engine) loop() {
	for {
		e.stopMu.Lock()
		stopping := e.stopping
		e.stopMu.Unlock()
		if stopping && e.connectionCount() == 0 {
			return
		}

		events, err := e.poll.Wait(250)
		if err != nil {
			e.log.WithError(err).Warn("poller wait failed")
			continue
		}
		for _, ev := range events {
			if addr, isListener := e.listenerFDs[ev.FD]; isListener {
				if !stopping {
					e.accept(ev.FD, addr)
				}
				continue
			}
			e.handleEvent(ev)
		}
	}
}

func (e *Engine) connectionCount() int {
	e.connMu.RLock()
	defer e.connMu.RUnlock()
	return len(e.connections)
}

// accept handles exactly one pending connection per listener-readiness
// event, never looping to drain the listener: on a single-threaded event
// loop, looping until EAGAIN would let an accept burst starve every other
// ready fd behind it. If more connections are pending, the listener stays
// readable and the next poller wake-up re-triggers this.
func (e *Engine) accept(lfd int, addr string) {
	nfd, sa, err := unix.Accept(lfd)
	if err != nil {
		if err == unix.EAGAIN {
			return
		}
		if err == unix.EMFILE || err == unix.ENFILE {
			e.evictOldestIdle()
			return
		}
		e.log.WithError(err).Warn("accept failed")
		return
	}

	if err := unix.SetNonblock(nfd, true); err != nil {
		unix.Close(nfd)
		return
	}
	unix.SetsockoptInt(nfd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	unix.SetsockoptInt(nfd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)

	c := e.connectionPool.Get().(*conn.Connection)
	c.SetFD(nfd)
	c.ListenAddr = addr
	c.Peer = peerString(sa)

	if err := e.poll.Add(nfd, poller.Read); err != nil {
		unix.Close(nfd)
		e.connectionPool.Put(c)
		return
	}

	e.connMu.Lock()
	e.connections[nfd] = c
	e.connMu.Unlock()
}

func peerString(sa unix.Sockaddr) string {
	switch addr := sa.(type) {
	case *unix.SockaddrInet4:
		return net.JoinHostPort(net.IP(addr.Addr[:]).String(), itoaPort(addr.Port))
	case *unix.SockaddrInet6:
		return net.JoinHostPort(net.IP(addr.Addr[:]).String(), itoaPort(addr.Port))
	default:
		return ""
	}
}

func itoaPort(p int) string {
	if p == 0 {
		return "0"
	}
	var buf [6]byte
	i := len(buf)
	for p > 0 {
		i--
		buf[i] = byte('0' + p%10)
		p /= 10
	}
	return string(buf[i:])
}

func (e *Engine) handleEvent(ev poller.Event) {
	e.connMu.RLock()
	c, ok := e.connections[ev.FD]
	e.connMu.RUnlock()
	if !ok {
		return
	}

	if ev.Error {
		e.closeConnection(c)
		return
	}

	switch c.State {
	case conn.StateReading:
		if ev.Readable {
			e.doRead(c)
		}
	case conn.StateWriting:
		if ev.Writable {
			e.doWrite(c)
		}
	}
}

const readChunkSize = 8192

func (e *Engine) doRead(c *conn.Connection) {
	buf := e.bytePool.Get(readChunkSize)
	n, err := unix.Read(c.FD, buf)
	if err != nil {
		e.bytePool.Put(buf)
		if err == unix.EAGAIN {
			return
		}
		e.closeConnection(c)
		return
	}
	if n == 0 {
		e.bytePool.Put(buf)
		e.closeConnection(c)
		return
	}

	status, perr := c.AppendRead(buf[:n])
	e.bytePool.Put(buf)
	switch status {
	case httpmsg.StatusNeedMore:
		return
	case httpmsg.StatusError:
		resp := httpmsg.ErrorResponse(errStatus(perr))
		payload, _ := serialize.Serialize(resp, false)
		c.BeginWrite(payload, false)
		e.poll.Modify(c.FD, poller.Write)
	case httpmsg.StatusReady:
		c.State = conn.StateProcessing
		req := c.Parser.Request()
		req.Peer = c.Peer
		requestID := uuid.NewString()
		trace := e.monitor.StartTrace()
		var resp *httpmsg.Response
		if req.UnsupportedVersion {
			fault := srverr.UnsupportedVersion(fmt.Errorf("unsupported HTTP version %q", req.Version))
			resp = httpmsg.ErrorResponse(srverr.StatusOf(fault))
		} else {
			resp = e.dispatcher.Dispatch(c.ListenAddr, req)
		}
		e.monitor.EndTrace(req.Method+" "+req.Path, trace, resp.Status >= 500)
		e.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"peer":       req.Peer,
			"status":     resp.Status,
		}).Debugf("%s %s", req.Method, req.Path)
		keepAlive := req.KeepAliveRequested()
		payload, finalKeepAlive := serialize.Serialize(resp, keepAlive)
		httpmsg.ReleaseRequest(req)
		c.BeginWrite(payload, finalKeepAlive)
		e.poll.Modify(c.FD, poller.Write)
	}
}

func errStatus(err error) int {
	if err == nil {
		return 400
	}
	return srverr.StatusOf(err)
}

func (e *Engine) doWrite(c *conn.Connection) {
	pending := c.PendingWrite()
	n, err := unix.Write(c.FD, pending)
	if err != nil {
		if err == unix.EAGAIN {
			return
		}
		e.closeConnection(c)
		return
	}
	done := c.AdvanceWrite(n)
	if !done {
		return
	}

	if c.KeepAlive {
		c.PrepareForNextRequest()
		c.State = conn.StateReading
		e.poll.Modify(c.FD, poller.Read)
	} else {
		e.closeConnection(c)
	}
}

func (e *Engine) closeConnection(c *conn.Connection) {
	e.connMu.Lock()
	delete(e.connections, c.FD)
	e.connMu.Unlock()

	e.poll.Remove(c.FD)
	unix.Close(c.FD)
	e.connectionPool.Put(c)
}

// evictOldestIdle closes the least-recently-active non-processing
// connection, freeing one fd so a new accept can proceed under EMFILE/ENFILE
// pressure.
func (e *Engine) evictOldestIdle() bool {
	e.connMu.RLock()
	var oldest *conn.Connection
	for _, c := range e.connections {
		if c.State == conn.StateProcessing {
			continue
		}
		if oldest == nil || c.LastActive.Before(oldest.LastActive) {
			oldest = c
		}
	}
	e.connMu.RUnlock()
	if oldest == nil {
		return false
	}
	e.closeConnection(oldest)
	return true
}

func (e *Engine) sweepDeadlines() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	statsTicker := time.NewTicker(30 * time.Second)
	defer statsTicker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			var stale []*conn.Connection
			e.connMu.RLock()
			for _, c := range e.connections {
				if c.State != conn.StateProcessing && c.IdleFor(now) > e.idleTimeout {
					stale = append(stale, c)
				}
			}
			e.connMu.RUnlock()
			for _, c := range stale {
				e.closeConnection(c)
			}
		case <-statsTicker.C:
			e.log.WithField("stats", e.StatsText()).Info("engine stats")
			for _, b := range e.monitor.GetBottlenecks() {
				e.log.WithFields(logrus.Fields{"type": b.Type, "location": b.Location}).Warn(b.Details)
			}
		}
	}
}

// Shutdown stops accepting new connections and blocks until every in-flight
// connection drains or grace elapses.
func (e *Engine) Shutdown(grace time.Duration) {
	e.stopMu.Lock()
	e.stopping = true
	e.stopMu.Unlock()

	for _, ln := range e.listeners {
		ln.Close()
	}

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if e.connectionCount() == 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	e.connMu.Lock()
	for _, c := range e.connections {
		unix.Close(c.FD)
	}
	e.connections = map[int]*conn.Connection{}
	e.connMu.Unlock()

	if e.poll != nil {
		e.poll.Close()
	}
	e.workerPool.Close()
}
