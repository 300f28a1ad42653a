package httpx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"dqx0.com/go/lazyhttp/httpx/internal/http1"
)

type cursorState int

const (
	awaitingStartLine cursorState = iota
	headersPending
	headersDraining
	inBody
	exhausted
)

// LazyRequest reads a request off a byte stream only as far as the caller
// asks. A handler that only looks at Path never reads past the start line.
//
// Headers and Body can each be drained exactly once, in that order.
// Asking for Body while headers are still pending drains them into the
// buffer returned by DrainedHeaders. A LazyRequest is not safe for
// concurrent use.
type LazyRequest struct {
	lines *http1.LineReader
	ctx   context.Context
	id    string
	state cursorState

	startDone bool
	startErr  error
	method    Method
	path      string
	proto     Protocol

	drained Headers
	hdrErr  error
	hdrIter *HeaderIter
	body    *BodyIter
}

type requestConfig struct {
	ctx     context.Context
	bufSize int
	limits  http1.Limits
}

// RequestOption configures a LazyRequest.
type RequestOption func(*requestConfig)

// WithBufferSize sets how many bytes are requested per read. A read that
// returns fewer bytes ends the request.
func WithBufferSize(n int) RequestOption {
	return func(c *requestConfig) { c.bufSize = n }
}

// WithMaxLineBytes bounds the start line and each header line.
func WithMaxLineBytes(n int) RequestOption {
	return func(c *requestConfig) { c.limits.MaxLineBytes = n }
}

// WithMaxBodyBytes bounds the total body size.
func WithMaxBodyBytes(n int64) RequestOption {
	return func(c *requestConfig) { c.limits.MaxBodyBytes = n }
}

// WithContext attaches ctx to the request.
func WithContext(ctx context.Context) RequestOption {
	return func(c *requestConfig) { c.ctx = ctx }
}

// NewLazyRequest wraps src. Nothing is read until an accessor is called.
func NewLazyRequest(src io.Reader, opts ...RequestOption) *LazyRequest {
	cfg := requestConfig{bufSize: http1.DefaultBufferSize}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.ctx == nil {
		cfg.ctx = context.Background()
	}
	id, ok := RequestIDFrom(cfg.ctx)
	if !ok {
		id = newRequestID()
		cfg.ctx = WithRequestID(cfg.ctx, id)
	}
	r := &LazyRequest{
		lines: http1.NewLineReader(src, cfg.bufSize, cfg.limits),
		id:    id,
	}
	r.ctx = context.WithValue(cfg.ctx, ctxKeyRequest, r)
	return r
}

// Context returns the request's context. It always carries the request ID
// and the request itself, see LazyRequestFrom.
func (r *LazyRequest) Context() context.Context { return r.ctx }

// ID returns the identifier generated for this request.
func (r *LazyRequest) ID() string { return r.id }

// Method parses the start line on first use. Later calls, and calls to
// Path and Protocol, return the cached result without reading.
func (r *LazyRequest) Method() (Method, error) {
	if err := r.startLine(); err != nil {
		return 0, err
	}
	return r.method, nil
}

func (r *LazyRequest) Path() (string, error) {
	if err := r.startLine(); err != nil {
		return "", err
	}
	return r.path, nil
}

func (r *LazyRequest) Protocol() (Protocol, error) {
	if err := r.startLine(); err != nil {
		return 0, err
	}
	return r.proto, nil
}

// Headers returns an iterator over the remaining headers, parsing the start
// line first if needed. Once the header section has ended it fails with
// KindBacktrack.
func (r *LazyRequest) Headers() (*HeaderIter, error) {
	if err := r.startLine(); err != nil {
		return nil, err
	}
	if r.state >= inBody {
		return nil, backtrack("headers already consumed")
	}
	if r.hdrErr != nil {
		return nil, r.hdrErr
	}
	r.state = headersDraining
	if r.hdrIter == nil {
		r.hdrIter = &HeaderIter{r: r}
	}
	return r.hdrIter, nil
}

// DrainedHeaders returns every header read so far, whether it came out of
// a HeaderIter or was drained on the way to the body.
func (r *LazyRequest) DrainedHeaders() Headers {
	return append(Headers(nil), r.drained...)
}

// Body returns an iterator over the raw body, draining any unread headers
// first. Each chunk is one body line with its terminator. Once the body
// has been read to the end it fails with KindBacktrack.
func (r *LazyRequest) Body() (*BodyIter, error) {
	if err := r.startLine(); err != nil {
		return nil, err
	}
	if r.state == exhausted {
		return nil, backtrack("body already consumed")
	}
	if r.state < inBody {
		if r.hdrErr != nil {
			return nil, r.hdrErr
		}
		r.state = headersDraining
		for {
			_, ok, err := r.nextHeader()
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
		}
	}
	if r.body == nil {
		r.body = &BodyIter{r: r}
	}
	return r.body, nil
}

// startLineFields reports the start line without triggering a read.
func (r *LazyRequest) startLineFields() (Method, string, Protocol, bool) {
	if !r.startDone || r.startErr != nil {
		return 0, "", 0, false
	}
	return r.method, r.path, r.proto, true
}

func (r *LazyRequest) startLine() error {
	if r.startDone {
		return r.startErr
	}
	r.startDone = true

	line, ok, err := r.lines.Next()
	switch {
	case err != nil:
		r.startErr = limitError(err)
	case !ok:
		r.startErr = parseError(KindMalformedStartLine, "malformed start line: empty request")
	case line.Phase != http1.StartLine:
		r.startErr = parseError(KindMalformedStartLine, fmt.Sprintf("malformed start line: unexpected %s line", line.Phase))
	default:
		r.method, r.path, r.proto, r.startErr = parseStartLine(line.Data)
	}
	if r.startErr == nil {
		r.state = headersPending
	}
	return r.startErr
}

func parseStartLine(data []byte) (Method, string, Protocol, error) {
	fields := strings.Fields(string(data))
	if len(fields) != 3 {
		return 0, "", 0, parseError(KindMalformedStartLine, fmt.Sprintf("malformed start line %q", data))
	}
	m, ok := ParseMethod(fields[0])
	if !ok {
		return 0, "", 0, parseError(KindUnknownMethod, fmt.Sprintf("malformed start line: unknown method %q", fields[0]))
	}
	p, ok := ParseProtocol(fields[2])
	if !ok {
		return 0, "", 0, parseError(KindUnsupportedProtocol, fmt.Sprintf("unsupported protocol %q", fields[2]))
	}
	return m, fields[1], p, nil
}

// nextHeader pulls one header. ok is false when the header section ends,
// either at the first body line, which is pushed back, or at end of stream.
func (r *LazyRequest) nextHeader() (Header, bool, error) {
	if r.hdrErr != nil {
		return Header{}, false, r.hdrErr
	}
	if r.state != headersDraining {
		return Header{}, false, nil
	}
	line, ok, err := r.lines.Next()
	if err != nil {
		r.hdrErr = limitError(err)
		return Header{}, false, r.hdrErr
	}
	if !ok {
		r.state = inBody
		return Header{}, false, nil
	}
	if line.Phase != http1.Header {
		r.lines.Unread(line)
		r.state = inBody
		return Header{}, false, nil
	}
	h, err := parseHeader(line.Data)
	if err != nil {
		r.hdrErr = err
		return Header{}, false, err
	}
	r.drained = append(r.drained, h)
	return h, true, nil
}

func parseHeader(data []byte) (Header, error) {
	i := bytes.IndexByte(data, ':')
	if i < 0 {
		return Header{}, parseError(KindMalformedHeader, fmt.Sprintf("malformed header %q: missing ':'", data))
	}
	name := strings.TrimSpace(string(data[:i]))
	if name == "" {
		return Header{}, parseError(KindMalformedHeader, fmt.Sprintf("malformed header %q: empty name", data))
	}
	return Header{
		Name:  strings.ToUpper(name),
		Value: strings.TrimSpace(string(data[i+1:])),
	}, nil
}

// HeaderIter walks the header section once.
//
//	it, err := req.Headers()
//	for it.Next() {
//		h := it.Header()
//	}
//	if err := it.Err(); err != nil { ... }
type HeaderIter struct {
	r   *LazyRequest
	cur Header
	err error
}

// Next advances to the next header. It returns false at the end of the
// header section, on error, or once the body has been requested.
func (it *HeaderIter) Next() bool {
	if it.err != nil {
		return false
	}
	h, ok, err := it.r.nextHeader()
	if err != nil {
		it.err = err
		return false
	}
	it.cur = h
	return ok
}

func (it *HeaderIter) Header() Header { return it.cur }

func (it *HeaderIter) Err() error { return it.err }

// BodyIter walks the body once. Use either Next/Bytes or Read, not both.
type BodyIter struct {
	r    *LazyRequest
	cur  []byte
	rest []byte
	err  error
}

func (it *BodyIter) Next() bool {
	if it.err != nil || it.r.state == exhausted {
		it.cur = nil
		return false
	}
	line, ok, err := it.r.lines.Next()
	if err != nil {
		it.err = limitError(err)
		it.cur = nil
		return false
	}
	if !ok {
		it.r.state = exhausted
		it.cur = nil
		return false
	}
	it.cur = line.Data
	return true
}

// Bytes returns the current chunk verbatim, terminators included.
func (it *BodyIter) Bytes() []byte { return it.cur }

func (it *BodyIter) Err() error { return it.err }

// Read implements io.Reader over the remaining body chunks.
func (it *BodyIter) Read(p []byte) (int, error) {
	for len(it.rest) == 0 {
		if !it.Next() {
			if it.err != nil {
				return 0, it.err
			}
			return 0, io.EOF
		}
		it.rest = it.cur
	}
	n := copy(p, it.rest)
	it.rest = it.rest[n:]
	return n, nil
}

// Request is a fully read request.
type Request struct {
	Method   Method
	Path     string
	Protocol Protocol
	Headers  Headers
	Body     []byte
}

// ParseRequest reads a complete request out of msg. Body is nil when the
// request has none.
func ParseRequest(msg []byte, opts ...RequestOption) (*Request, error) {
	lr := NewLazyRequest(bytes.NewReader(msg), opts...)
	m, err := lr.Method()
	if err != nil {
		return nil, err
	}
	path, _ := lr.Path()
	proto, _ := lr.Protocol()

	it, err := lr.Body()
	if err != nil {
		return nil, err
	}
	var body []byte
	for it.Next() {
		body = append(body, it.Bytes()...)
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return &Request{
		Method:   m,
		Path:     path,
		Protocol: proto,
		Headers:  lr.DrainedHeaders(),
		Body:     body,
	}, nil
}
