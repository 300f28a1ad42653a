package httpx

import (
	"strings"

	"dqx0.com/go/lazyhttp/httpx/internal/http1"
)

// Header is a single name/value pair. Request headers arrive with the name
// uppercased and the value trimmed; response headers are written as given.
type Header struct {
	Name  string
	Value string
}

// Headers keeps headers in arrival order.
type Headers []Header

// Get returns the first value for name, compared case-insensitively.
func (h Headers) Get(name string) string {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return f.Value
		}
	}
	return ""
}

// Values returns every value for name in order.
func (h Headers) Values(name string) []string {
	var vv []string
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			vv = append(vv, f.Value)
		}
	}
	return vv
}

type Method uint8

const (
	MethodGet Method = iota + 1
	MethodHead
	MethodPost
	MethodPut
	MethodDelete
	MethodConnect
	MethodOptions
	MethodTrace
	MethodPatch
)

var methodNames = [...]string{
	MethodGet:     "GET",
	MethodHead:    "HEAD",
	MethodPost:    "POST",
	MethodPut:     "PUT",
	MethodDelete:  "DELETE",
	MethodConnect: "CONNECT",
	MethodOptions: "OPTIONS",
	MethodTrace:   "TRACE",
	MethodPatch:   "PATCH",
}

func (m Method) String() string {
	if m.Valid() {
		return methodNames[m]
	}
	return "UNKNOWN"
}

func (m Method) Valid() bool { return m >= MethodGet && m <= MethodPatch }

// ParseMethod matches s against the known verbs, ignoring case.
func ParseMethod(s string) (Method, bool) {
	for m := MethodGet; m <= MethodPatch; m++ {
		if strings.EqualFold(methodNames[m], s) {
			return m, true
		}
	}
	return 0, false
}

type Protocol uint8

const (
	HTTP10 Protocol = iota + 1
	HTTP11
)

func (p Protocol) String() string {
	switch p {
	case HTTP10:
		return "HTTP/1.0"
	case HTTP11:
		return "HTTP/1.1"
	default:
		return "UNKNOWN"
	}
}

func (p Protocol) Valid() bool { return p == HTTP10 || p == HTTP11 }

// ParseProtocol accepts exactly "HTTP/1.0" and "HTTP/1.1".
func ParseProtocol(s string) (Protocol, bool) {
	switch s {
	case "HTTP/1.0":
		return HTTP10, true
	case "HTTP/1.1":
		return HTTP11, true
	}
	return 0, false
}

// Status is a response status code. Only codes with a reason phrase are
// valid.
type Status int

const (
	StatusContinue                    Status = 100
	StatusSwitchingProtocols          Status = 101
	StatusOK                          Status = 200
	StatusCreated                     Status = 201
	StatusAccepted                    Status = 202
	StatusNoContent                   Status = 204
	StatusMovedPermanently            Status = 301
	StatusFound                       Status = 302
	StatusSeeOther                    Status = 303
	StatusNotModified                 Status = 304
	StatusTemporaryRedirect           Status = 307
	StatusPermanentRedirect           Status = 308
	StatusBadRequest                  Status = 400
	StatusUnauthorized                Status = 401
	StatusForbidden                   Status = 403
	StatusNotFound                    Status = 404
	StatusMethodNotAllowed            Status = 405
	StatusRequestTimeout              Status = 408
	StatusContentTooLarge             Status = 413
	StatusURITooLong                  Status = 414
	StatusTooManyRequests             Status = 429
	StatusRequestHeaderFieldsTooLarge Status = 431
	StatusInternalServerError         Status = 500
	StatusNotImplemented              Status = 501
	StatusBadGateway                  Status = 502
	StatusServiceUnavailable          Status = 503
	StatusGatewayTimeout              Status = 504
	StatusHTTPVersionNotSupported     Status = 505
)

// Reason returns the canonical reason phrase, or "" for an unknown code.
func (s Status) Reason() string { return http1.StatusText(int(s)) }

func (s Status) Valid() bool { return s.Reason() != "" }
