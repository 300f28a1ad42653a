package httpx

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"dqx0.com/go/lazyhttp/internal/obs"
)

func startServer(t *testing.T, h Handler, cfg func(*Server)) (*Server, string, func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &Server{Handler: h}
	if cfg != nil {
		cfg(s)
	}
	errc := make(chan error, 1)
	go func() { errc <- s.Serve(ln) }()
	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(ctx); err != nil {
			t.Errorf("shutdown: %v", err)
		}
		if err := <-errc; err != ErrServerClosed {
			t.Errorf("Serve returned %v, want ErrServerClosed", err)
		}
	}
	return s, ln.Addr().String(), stop
}

func send(t *testing.T, addr, msg string) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c := &Client{}
	b, err := c.Send(ctx, addr, []byte(msg))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	return string(b)
}

func TestServer_EchoBody(t *testing.T) {
	m := obs.NewCounterMeter()
	_, addr, stop := startServer(t, nil, func(s *Server) { s.Meter = m })
	defer stop()

	got := send(t, addr, "GET /path/to/resource HTTP/1.1\nHost: localhost\nAccept-Language: en\n\nTHIS IS SOME BODY TEXT")
	if got != "HTTP/1.1 200 OK\n\nTHIS IS SOME BODY TEXT" {
		t.Fatalf("response=%q", got)
	}
	if v := m.Value("lazyhttp_requests_total", obs.Label{Key: "method", Value: "GET"}); v != 1 {
		t.Fatalf("requests_total=%v", v)
	}
}

func TestServer_EchoNoBody(t *testing.T) {
	_, addr, stop := startServer(t, EchoHandler(), nil)
	defer stop()

	if got := send(t, addr, "GET / HTTP/1.1\r\n\r\n"); got != "HTTP/1.1 200 OK\n\nLOOKS GOOD!" {
		t.Fatalf("response=%q", got)
	}
}

func TestServer_ParseErrorBecomes4xx(t *testing.T) {
	m := obs.NewCounterMeter()
	_, addr, stop := startServer(t, nil, func(s *Server) { s.Meter = m })
	defer stop()

	got := send(t, addr, "GET\r\n\r\n")
	if !strings.HasPrefix(got, "HTTP/1.1 400 Bad Request\n\n") || !strings.Contains(got, "malformed start line") {
		t.Fatalf("response=%q", got)
	}
	if v := m.Value("lazyhttp_requests_error", obs.Label{Key: "kind", Value: "malformed_start_line"}); v != 1 {
		t.Fatalf("requests_error=%v", v)
	}

	got = send(t, addr, "GET / FTP/2.0\r\n\r\n")
	if !strings.HasPrefix(got, "HTTP/1.1 505 HTTP Version Not Supported\n\n") {
		t.Fatalf("response=%q", got)
	}
}

func TestServer_PathRouting(t *testing.T) {
	h := HandlerFunc(func(ctx context.Context, r *LazyRequest) (*Response, error) {
		path, err := r.Path()
		if err != nil {
			return nil, err
		}
		if path != "/hello" {
			return NewResponse(HTTP11, StatusNotFound)
		}
		if _, ok := RequestIDFrom(ctx); !ok {
			t.Errorf("handler context has no request id")
		}
		return NewResponse(HTTP11, StatusOK,
			WithHeaders(Header{Name: "Content-Type", Value: "text/plain"}),
			WithBody([]byte("hi")))
	})
	_, addr, stop := startServer(t, h, nil)
	defer stop()

	if got := send(t, addr, "GET /hello HTTP/1.1\r\n\r\n"); got != "HTTP/1.1 200 OK\nContent-Type: text/plain\n\nhi" {
		t.Fatalf("response=%q", got)
	}
	if got := send(t, addr, "GET /other HTTP/1.1\r\n\r\n"); got != "HTTP/1.1 404 Not Found" {
		t.Fatalf("response=%q", got)
	}
}

func TestServer_NilResponseIs500(t *testing.T) {
	h := HandlerFunc(func(ctx context.Context, r *LazyRequest) (*Response, error) { return nil, nil })
	_, addr, stop := startServer(t, h, nil)
	defer stop()

	if got := send(t, addr, "GET / HTTP/1.1\n\n"); !strings.HasPrefix(got, "HTTP/1.1 500 Internal Server Error") {
		t.Fatalf("response=%q", got)
	}
}

func TestServer_ServeAfterShutdown(t *testing.T) {
	s := &Server{}
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	if err := s.Serve(ln); err != ErrServerClosed {
		t.Fatalf("Serve=%v, want ErrServerClosed", err)
	}
}

func TestServer_PathOnlyHandlerLeavesBodyUnread(t *testing.T) {
	h := HandlerFunc(func(ctx context.Context, r *LazyRequest) (*Response, error) {
		if _, err := r.Path(); err != nil {
			return nil, err
		}
		return NewResponse(HTTP11, StatusOK, WithBody([]byte("routed")))
	})
	_, addr, stop := startServer(t, h, func(s *Server) { s.ReadBufferSize = 1024 })
	defer stop()

	msg := "POST /upload HTTP/1.1\nHost: x\n\n" + strings.Repeat("a", 256<<10)
	for i := 0; i < 5; i++ {
		if got := send(t, addr, msg); got != "HTTP/1.1 200 OK\n\nrouted" {
			t.Fatalf("attempt %d: response=%q", i, got)
		}
	}
}

func TestServer_ErrorReplyWithUnreadBody(t *testing.T) {
	_, addr, stop := startServer(t, EchoHandler(), nil)
	defer stop()

	msg := "POST / HTTP/1.0\nno colon here\n\n" + strings.Repeat("b", 64<<10)
	got := send(t, addr, msg)
	if !strings.HasPrefix(got, "HTTP/1.0 400 Bad Request\n\n") || !strings.Contains(got, "malformed header") {
		t.Fatalf("response=%q", got)
	}
}

func TestServer_ErrorResponseProtocol(t *testing.T) {
	s := &Server{}
	r := NewLazyRequest(strings.NewReader("GET / HTTP/1.0\n\n"))
	if _, err := r.Path(); err != nil {
		t.Fatalf("Path error: %v", err)
	}
	res := s.errorResponse(r, backtrack("body already consumed"))
	if res.Protocol() != HTTP10 || res.Status() != StatusBadRequest {
		t.Fatalf("response=%q", res.Bytes())
	}

	r = NewLazyRequest(strings.NewReader("GET\n\n"))
	_, err := r.Path()
	if res := s.errorResponse(r, err); res.Protocol() != HTTP11 {
		t.Fatalf("response=%q, want HTTP/1.1 when the start line is unusable", res.Bytes())
	}
}
