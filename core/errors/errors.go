// Package errors defines the failure taxonomy shared across the parser,
// router, dispatcher and event loop so that any collaborator's error can be
// turned into an HTTP status without the caller knowing which layer raised
// it.
package errors

import "fmt"

// Kind names a class of failure from the request/response error surface.
type Kind int

const (
	KindNone Kind = iota
	KindMalformedRequestLine
	KindMalformedHeader
	KindHeaderTooLarge
	KindBodyTooLarge
	KindConflictingLength
	KindChunkedMalformed
	KindMissingHost
	KindUnsupportedVersion
	KindRouteMiss
	KindMethodNotAllowed
	KindHandlerFailed
	KindUpstreamTimeout
	KindClientClosed
	KindResourceExhausted
)

func (k Kind) String() string {
	switch k {
	case KindMalformedRequestLine:
		return "malformed_request_line"
	case KindMalformedHeader:
		return "malformed_header"
	case KindHeaderTooLarge:
		return "header_too_large"
	case KindBodyTooLarge:
		return "body_too_large"
	case KindConflictingLength:
		return "conflicting_length"
	case KindChunkedMalformed:
		return "chunked_malformed"
	case KindMissingHost:
		return "missing_host"
	case KindUnsupportedVersion:
		return "unsupported_version"
	case KindRouteMiss:
		return "route_miss"
	case KindMethodNotAllowed:
		return "method_not_allowed"
	case KindHandlerFailed:
		return "handler_failed"
	case KindUpstreamTimeout:
		return "upstream_timeout"
	case KindClientClosed:
		return "client_closed"
	case KindResourceExhausted:
		return "resource_exhausted"
	default:
		return "none"
	}
}

// Fault wraps an underlying cause with the Kind and HTTP status that a
// collaborator has already decided on, so the event loop never has to
// re-derive either.
type Fault struct {
	Kind   Kind
	Status int
	Cause  error
}

func (f *Fault) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("%s: %v", f.Kind, f.Cause)
	}
	return f.Kind.String()
}

func (f *Fault) Unwrap() error { return f.Cause }

func newFault(kind Kind, status int, cause error) *Fault {
	return &Fault{Kind: kind, Status: status, Cause: cause}
}

// Constructors used by the parser, router and dispatcher. Each pins the Kind
// to the status the taxonomy in §7 assigns it.

func MalformedRequestLine(cause error) *Fault { return newFault(KindMalformedRequestLine, 400, cause) }
func MalformedHeader(cause error) *Fault      { return newFault(KindMalformedHeader, 400, cause) }
func HeaderTooLarge(cause error) *Fault       { return newFault(KindHeaderTooLarge, 431, cause) }
func BodyTooLarge(cause error) *Fault         { return newFault(KindBodyTooLarge, 413, cause) }
func ConflictingLength(cause error) *Fault    { return newFault(KindConflictingLength, 400, cause) }
func ChunkedMalformed(cause error) *Fault     { return newFault(KindChunkedMalformed, 400, cause) }
func MissingHost(cause error) *Fault          { return newFault(KindMissingHost, 400, cause) }
func UnsupportedVersion(cause error) *Fault   { return newFault(KindUnsupportedVersion, 505, cause) }
func RouteMiss(cause error) *Fault            { return newFault(KindRouteMiss, 404, cause) }
func MethodNotAllowed(cause error) *Fault      { return newFault(KindMethodNotAllowed, 405, cause) }
func HandlerFailed(cause error) *Fault        { return newFault(KindHandlerFailed, 500, cause) }
func UpstreamTimeout(cause error) *Fault      { return newFault(KindUpstreamTimeout, 504, cause) }
func ResourceExhausted(cause error) *Fault    { return newFault(KindResourceExhausted, 503, cause) }

// ClientClosed marks a connection that went away mid-request; it carries no
// HTTP status because no response will ever be written for it.
func ClientClosed(cause error) *Fault { return newFault(KindClientClosed, 0, cause) }

// StatusOf recovers an HTTP status from any error, defaulting to 500 for
// errors that were never wrapped into a Fault.
func StatusOf(err error) int {
	var f *Fault
	if as(err, &f) {
		if f.Status == 0 {
			return 500
		}
		return f.Status
	}
	return 500
}

func as(err error, target **Fault) bool {
	for err != nil {
		if f, ok := err.(*Fault); ok {
			*target = f
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
