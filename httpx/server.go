package httpx

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"dqx0.com/go/lazyhttp/internal/obs"
)

var ErrServerClosed = errors.New("httpx: server closed")

// Handler answers one request. It reads from r only as much as it needs.
// A returned error is turned into an error response by the server.
type Handler interface {
	ServeLazy(ctx context.Context, r *LazyRequest) (*Response, error)
}

type HandlerFunc func(ctx context.Context, r *LazyRequest) (*Response, error)

func (f HandlerFunc) ServeLazy(ctx context.Context, r *LazyRequest) (*Response, error) {
	return f(ctx, r)
}

// EchoHandler replies 200 with the request body, or "LOOKS GOOD!" when
// there is none.
func EchoHandler() Handler {
	return HandlerFunc(func(ctx context.Context, r *LazyRequest) (*Response, error) {
		it, err := r.Body()
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
		if len(body) == 0 {
			body = []byte("LOOKS GOOD!")
		}
		return NewResponse(HTTP11, StatusOK, WithBody(body))
	})
}

// Server accepts connections and serves exactly one request on each.
type Server struct {
	Addr           string
	Handler        Handler
	ReadBufferSize int
	MaxLineBytes   int
	MaxBodyBytes   int64
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	Logger obs.Logger
	Meter  obs.Meter

	mu     sync.Mutex
	ln     net.Listener
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

func (s *Server) ListenAndServe() error {
	addr := s.Addr
	if addr == "" {
		addr = "localhost:50007"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts on l until it fails or the server is shut down, in which
// case it returns ErrServerClosed.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = l.Close()
		return ErrServerClosed
	}
	s.ln = l
	s.mu.Unlock()
	defer l.Close()

	s.logf(obs.Info, "serving on %s", l.Addr())
	for {
		c, err := l.Accept()
		if err != nil {
			if s.isClosed() {
				return ErrServerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.logf(obs.Warn, "accept: %v", err)
				continue
			}
			return err
		}
		if !s.track(c) {
			_ = c.Close()
			return ErrServerClosed
		}
		go s.serveConn(c)
	}
}

// Shutdown stops accepting and waits for in-flight connections to finish
// or for ctx to expire, whichever comes first.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopListening()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting and closes every live connection.
func (s *Server) Close() error {
	s.stopListening()
	s.mu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	return nil
}

func (s *Server) stopListening() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.ln != nil {
		_ = s.ln.Close()
	}
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) track(c net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if s.conns == nil {
		s.conns = make(map[net.Conn]struct{})
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(c net.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	s.wg.Done()
}

func (s *Server) serveConn(c net.Conn) {
	defer s.untrack(c)
	defer c.Close()

	s.metricCounter("lazyhttp_connections_total", 1)
	if s.ReadTimeout > 0 {
		_ = c.SetReadDeadline(time.Now().Add(s.ReadTimeout))
	}

	req := NewLazyRequest(c,
		WithBufferSize(s.bufferSize()),
		WithMaxLineBytes(s.lineLimit()),
		WithMaxBodyBytes(s.MaxBodyBytes),
	)
	s.logf(obs.Debug, "[%s] client connected: %s", req.ID(), c.RemoteAddr())

	h := s.Handler
	if h == nil {
		h = EchoHandler()
	}
	start := time.Now()
	res, err := h.ServeLazy(req.Context(), req)
	s.metricHistogram("lazyhttp_handler_seconds", time.Since(start).Seconds())

	if m, path, proto, ok := req.startLineFields(); ok {
		s.logf(obs.Info, "[%s] %s %s %s", req.ID(), proto, m, path)
		s.metricCounter("lazyhttp_requests_total", 1, obs.Label{Key: "method", Value: m.String()})
	}
	if rerr := req.lines.ReadErr(); rerr != nil {
		s.logf(obs.Debug, "[%s] read after %d reads: %v", req.ID(), req.lines.Reads(), rerr)
	}
	if err == nil && res == nil {
		err = &Error{Kind: KindInvalidResponse, Msg: "handler returned no response"}
	}
	if err != nil {
		res = s.errorResponse(req, err)
	}

	if s.WriteTimeout > 0 {
		_ = c.SetWriteDeadline(time.Now().Add(s.WriteTimeout))
	}
	if _, err := res.WriteTo(c); err != nil {
		s.logf(obs.Error, "[%s] write response: %v", req.ID(), err)
		s.metricCounter("lazyhttp_write_errors_total", 1)
		return
	}
	s.closeWriteAndDrain(c)
}

const (
	lingerBytes   = 1 << 20
	lingerTimeout = 2 * time.Second
)

// closeWriteAndDrain ends the reply with a FIN and then discards whatever
// the handler left unread. Closing a socket with unread input makes the
// kernel send RST, and the peer may lose the reply.
func (s *Server) closeWriteAndDrain(c net.Conn) {
	if cw, ok := c.(interface{ CloseWrite() error }); ok {
		if err := cw.CloseWrite(); err != nil {
			return
		}
	}
	_ = c.SetReadDeadline(time.Now().Add(lingerTimeout))
	_, _ = io.Copy(io.Discard, io.LimitReader(c, lingerBytes))
}

// errorResponse turns a handler failure into a reply whose body is the
// error message.
func (s *Server) errorResponse(req *LazyRequest, err error) *Response {
	kind := "internal"
	var e *Error
	if errors.As(err, &e) {
		kind = e.Kind.String()
	}
	s.logf(obs.Warn, "[%s] request failed: %v", req.ID(), err)
	s.metricCounter("lazyhttp_requests_error", 1, obs.Label{Key: "kind", Value: kind})

	proto := HTTP11
	if _, _, p, ok := req.startLineFields(); ok {
		proto = p
	}
	res, rerr := NewResponse(proto, StatusFor(err), WithBody([]byte(err.Error())))
	if rerr != nil {
		s.logf(obs.Error, "[%s] build error response: %v", req.ID(), rerr)
		return &Response{proto: HTTP11, status: StatusInternalServerError}
	}
	return res
}

func (s *Server) bufferSize() int {
	if s.ReadBufferSize <= 0 {
		return 1024
	}
	return s.ReadBufferSize
}

func (s *Server) lineLimit() int {
	if s.MaxLineBytes <= 0 {
		return 8 << 10
	}
	return s.MaxLineBytes
}

func (s *Server) logf(level obs.Level, format string, args ...interface{}) {
	lg := s.Logger
	if lg == nil {
		lg = obs.NopLogger{}
	}
	lg.Logf(level, format, args...)
}

func (s *Server) metricCounter(name string, value float64, labels ...obs.Label) {
	s.getMeter().Counter(name, value, labels...)
}

func (s *Server) metricHistogram(name string, value float64, labels ...obs.Label) {
	s.getMeter().Histogram(name, value, labels...)
}

func (s *Server) getMeter() obs.Meter {
	if s.Meter != nil {
		return s.Meter
	}
	return obs.NopMeter{}
}
