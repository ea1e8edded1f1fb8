/*
Package webmux implements an event-driven, single-process HTTP/1.1 server.

One goroutine owns an epoll (Linux) or kqueue (BSD/Darwin) poller and
drives every accepted connection through an explicit Reading/Processing/
Writing state machine; no connection's I/O ever blocks that goroutine.
Static files, directory listings, uploads, deletes, redirects and CGI/1.1
scripts are served through a fixed, closed dispatch precedence rather than
an open middleware chain.

Configuration

A server is described by a single TOML file: a global client timeout and
body-size limit, and one or more server{} blocks each with an address,
ports, a document root, named routes and error pages. See package config.

Quick Start

	webmux /etc/webmux/server.toml

Modules

  - app: signal handling and graceful shutdown around a running Engine
  - config: TOML decoding and validation of the server configuration
  - core: the event loop, connection pools and performance monitor
  - core/http: the header multimap, incremental request parser and response type
  - core/poller: the epoll/kqueue abstraction
  - core/conn: the per-connection state machine
  - core/router: virtual host resolution and longest-prefix route matching
  - core/dispatch: the fixed handler-selection precedence
  - core/serialize: response-to-wire serialization
  - core/sendfile: cached, buffered static file reads
  - core/pools: worker, byte and connection pooling, GC tuning
  - core/observability: request-latency tracing and bottleneck detection
  - handlers: the built-in static, listing, upload, delete, redirect and CGI handlers
*/
package webmux
