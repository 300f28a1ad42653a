package httpx

import "context"

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
	ctxKeyRequest
)

// WithRequestID returns a new context that carries a request ID.
// NewLazyRequest keeps an ID already present in its context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// RequestIDFrom extracts the request ID from ctx.
func RequestIDFrom(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(ctxKeyRequestID).(string)
	return s, ok && s != ""
}

// LazyRequestFrom returns the request whose Context is ctx, or a context
// derived from it. Middleware that only holds the context can still read
// the request lazily.
func LazyRequestFrom(ctx context.Context) (*LazyRequest, bool) {
	r, ok := ctx.Value(ctxKeyRequest).(*LazyRequest)
	return r, ok && r != nil
}
