package http

import "errors"

var (
	errLineTooLong              = errors.New("request line exceeds cap before terminator")
	errHeaderSectionTooLarge    = errors.New("accumulated header bytes exceed cap")
	errObsoleteLineFolding      = errors.New("obsolete header line folding is not accepted")
	errBadRequestLine           = errors.New("request line is not method SP target SP version")
	errBadHeaderLine            = errors.New("header line is not name: value, or has whitespace before colon")
	errBadContentLength         = errors.New("content-length is not a valid non-negative decimal")
	errConflictingContentLength = errors.New("multiple content-length headers disagree")
	errMissingHost              = errors.New("HTTP/1.1 request has no Host header")
	errBodyTooLarge             = errors.New("body exceeds configured maximum size")
	errBadChunkSize             = errors.New("chunk size line is not a valid hex size")
	errBadChunkTerminator       = errors.New("chunk data not followed by CRLF")
)
