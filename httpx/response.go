package httpx

import (
	"fmt"
	"io"

	"golang.org/x/net/http/httpguts"

	"dqx0.com/go/lazyhttp/httpx/internal/http1"
)

// Response is an immutable reply. Build it with NewResponse, which
// rejects unknown protocols and statuses and malformed headers.
type Response struct {
	proto   Protocol
	status  Status
	headers Headers
	body    []byte
}

type ResponseOption func(*Response)

// WithHeaders appends headers in the order given.
func WithHeaders(hs ...Header) ResponseOption {
	return func(r *Response) { r.headers = append(r.headers, hs...) }
}

func WithBody(b []byte) ResponseOption {
	return func(r *Response) { r.body = append([]byte(nil), b...) }
}

func NewResponse(proto Protocol, status Status, opts ...ResponseOption) (*Response, error) {
	if !proto.Valid() {
		return nil, &Error{Kind: KindInvalidResponse, Msg: fmt.Sprintf("unknown protocol %d", proto)}
	}
	if !status.Valid() {
		return nil, &Error{Kind: KindInvalidResponse, Msg: fmt.Sprintf("unknown status %d", status)}
	}
	r := &Response{proto: proto, status: status}
	for _, o := range opts {
		o(r)
	}
	for _, h := range r.headers {
		if !httpguts.ValidHeaderFieldName(h.Name) {
			return nil, &Error{Kind: KindInvalidResponse, Msg: fmt.Sprintf("invalid header name %q", h.Name)}
		}
		if !httpguts.ValidHeaderFieldValue(h.Value) {
			return nil, &Error{Kind: KindInvalidResponse, Msg: fmt.Sprintf("invalid value for header %q", h.Name)}
		}
	}
	return r, nil
}

func (r *Response) Protocol() Protocol { return r.proto }

func (r *Response) Status() Status { return r.status }

func (r *Response) Headers() Headers { return append(Headers(nil), r.headers...) }

func (r *Response) Body() []byte { return append([]byte(nil), r.body...) }

// Bytes returns the wire form of the response:
//
//	HTTP/1.1 200 OK\nContent-Type: text/plain\n\nbody
//
// The header block is left out when there are no headers, the body block
// when the body is empty. Nothing follows the last byte.
func (r *Response) Bytes() []byte {
	var fields []http1.Field
	if len(r.headers) > 0 {
		fields = make([]http1.Field, len(r.headers))
		for i, h := range r.headers {
			fields[i] = http1.Field{Name: h.Name, Value: h.Value}
		}
	}
	return http1.AppendResponse(nil, r.proto.String(), int(r.status), r.status.Reason(), fields, r.body)
}

// WriteTo writes Bytes to w.
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(r.Bytes())
	return int64(n), err
}
