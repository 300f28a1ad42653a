package httpx

import (
	"crypto/rand"
	"encoding/hex"
	"sync/atomic"
	"time"
)

var idSeq atomic.Uint64

// newRequestID returns a 16-hex-digit identifier for a request.
func newRequestID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err == nil {
		return hex.EncodeToString(b[:])
	}
	// crypto/rand failing is not fatal for an identifier
	n := uint64(time.Now().UnixNano()) ^ idSeq.Add(1)
	for i := range b {
		b[i] = byte(n >> (uint(i) * 8))
	}
	return hex.EncodeToString(b[:])
}
