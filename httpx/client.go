package httpx

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
	"time"
)

// Client sends one raw request per connection and returns the raw reply.
type Client struct {
	DialTimeout time.Duration
	// MaxResponseBytes caps how much of the reply is read; 0 means 1 MiB.
	MaxResponseBytes int64
}

// Send dials addr, writes msg, half-closes the connection so the server
// sees end of stream, and reads until the server closes. ctx bounds the
// whole exchange. A reset that arrives after reply bytes ends the reply
// rather than failing it.
func (c *Client) Send(ctx context.Context, addr string, msg []byte) ([]byte, error) {
	d := net.Dialer{Timeout: c.dialTimeout()}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Unix(1, 0)) })
	defer stop()

	// A server that answers before reading everything may reset the
	// connection under a pending write; its reply is still in our buffer.
	werr := c.write(conn, msg)
	b, rerr := io.ReadAll(io.LimitReader(conn, c.maxResponse()))
	if ctx.Err() != nil {
		return b, ctx.Err()
	}
	switch {
	case len(b) > 0 && (rerr == nil || isReset(rerr)):
		return b, nil
	case werr != nil:
		return b, werr
	}
	return b, rerr
}

func (c *Client) write(conn net.Conn, msg []byte) error {
	if _, err := conn.Write(msg); err != nil {
		return err
	}
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return nil
}

func isReset(err error) bool {
	return errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE)
}

func (c *Client) dialTimeout() time.Duration {
	if c.DialTimeout <= 0 {
		return 5 * time.Second
	}
	return c.DialTimeout
}

func (c *Client) maxResponse() int64 {
	if c.MaxResponseBytes <= 0 {
		return 1 << 20
	}
	return c.MaxResponseBytes
}
