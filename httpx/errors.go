package httpx

import (
	"errors"

	"dqx0.com/go/lazyhttp/httpx/internal/http1"
)

var (
	ErrParse              = errors.New("httpx: malformed request")
	ErrBacktrack          = errors.New("httpx: request section already consumed")
	ErrResponseValidation = errors.New("httpx: invalid response")
	ErrHeaderTooLarge     = errors.New("httpx: header too large")
	ErrBodyTooLarge       = errors.New("httpx: body too large")
)

// ErrorKind classifies an *Error.
type ErrorKind int

const (
	KindMalformedStartLine ErrorKind = iota + 1
	KindUnknownMethod
	KindUnsupportedProtocol
	KindMalformedHeader
	KindBacktrack
	KindInvalidResponse
	KindTooLarge
)

func (k ErrorKind) String() string {
	switch k {
	case KindMalformedStartLine:
		return "malformed_start_line"
	case KindUnknownMethod:
		return "unknown_method"
	case KindUnsupportedProtocol:
		return "unsupported_protocol"
	case KindMalformedHeader:
		return "malformed_header"
	case KindBacktrack:
		return "backtrack"
	case KindInvalidResponse:
		return "invalid_response"
	case KindTooLarge:
		return "too_large"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by request parsing and response
// construction. Match on Kind, or use errors.Is with ErrParse,
// ErrBacktrack, ErrResponseValidation, ErrHeaderTooLarge or ErrBodyTooLarge.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return "httpx: " + e.Msg + ": " + e.Err.Error()
	}
	return "httpx: " + e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrParse:
		switch e.Kind {
		case KindMalformedStartLine, KindUnknownMethod, KindUnsupportedProtocol, KindMalformedHeader:
			return true
		}
	case ErrBacktrack:
		return e.Kind == KindBacktrack
	case ErrResponseValidation:
		return e.Kind == KindInvalidResponse
	case ErrHeaderTooLarge:
		return e.Kind == KindTooLarge && errors.Is(e.Err, http1.ErrLineTooLong)
	case ErrBodyTooLarge:
		return e.Kind == KindTooLarge && errors.Is(e.Err, http1.ErrBodyTooLarge)
	}
	return false
}

func parseError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func backtrack(msg string) *Error {
	return &Error{Kind: KindBacktrack, Msg: msg}
}

// limitError translates a wire-layer size violation.
func limitError(err error) error {
	switch {
	case errors.Is(err, http1.ErrLineTooLong):
		return &Error{Kind: KindTooLarge, Msg: "request line or header too long", Err: err}
	case errors.Is(err, http1.ErrBodyTooLarge):
		return &Error{Kind: KindTooLarge, Msg: "request body too large", Err: err}
	}
	return err
}

// StatusFor picks the status a server should answer with when a handler
// fails with err.
func StatusFor(err error) Status {
	var e *Error
	if !errors.As(err, &e) {
		return StatusInternalServerError
	}
	switch e.Kind {
	case KindMalformedStartLine, KindUnknownMethod, KindMalformedHeader, KindBacktrack:
		return StatusBadRequest
	case KindUnsupportedProtocol:
		return StatusHTTPVersionNotSupported
	case KindTooLarge:
		if errors.Is(e.Err, http1.ErrBodyTooLarge) {
			return StatusContentTooLarge
		}
		return StatusRequestHeaderFieldsTooLarge
	case KindInvalidResponse:
		return StatusInternalServerError
	default:
		return StatusInternalServerError
	}
}
