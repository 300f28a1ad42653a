package http1

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"testing"
)

// chunkReader hands out a fixed sequence of chunks, one per Read.
type chunkReader struct {
	t      *testing.T
	chunks [][]byte
	reads  int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	c.reads++
	if len(c.chunks) == 0 {
		c.t.Fatalf("read issued after the last chunk")
	}
	chunk := c.chunks[0]
	c.chunks = c.chunks[1:]
	if len(chunk) > len(p) {
		c.t.Fatalf("chunk of %d bytes does not fit a %d byte read", len(chunk), len(p))
	}
	return copy(p, chunk), nil
}

func collect(t *testing.T, r *LineReader) []Line {
	t.Helper()
	var out []Line
	for {
		l, ok, err := r.Next()
		if err != nil {
			t.Fatalf("Next error: %v", err)
		}
		if !ok {
			return out
		}
		out = append(out, l)
	}
}

func TestLineReader_StartLine(t *testing.T) {
	src := &chunkReader{t: t, chunks: [][]byte{[]byte("GET /path/to/resource HTTP/1.1\r\n\r\n")}}
	got := collect(t, NewLineReader(src, 0, Limits{}))
	want := []Line{line("GET /path/to/resource HTTP/1.1", StartLine)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("lines=%q, want %q", got, want)
	}
}

func TestLineReader_StartLineAndHeader(t *testing.T) {
	src := &chunkReader{t: t, chunks: [][]byte{
		[]byte("GET /path/to/res"),
		[]byte("ource HTTP/1.1\r\n"),
		[]byte("Host: localhost\r"),
		[]byte("\n\r\n"),
	}}
	got := collect(t, NewLineReader(src, 16, Limits{}))
	want := []Line{
		line("GET /path/to/resource HTTP/1.1", StartLine),
		line("Host: localhost", Header),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("lines=%q, want %q", got, want)
	}
	if src.reads != 4 {
		t.Fatalf("reads=%d, want 4", src.reads)
	}
}

func TestLineReader_StartLineHeaderAndBody(t *testing.T) {
	src := &chunkReader{t: t, chunks: [][]byte{
		[]byte("GET /path/to/resource HTTP/1.1\r\nHost: localhost\r\n\r\nbody text\r\n\r\n"),
	}}
	got := collect(t, NewLineReader(src, 0, Limits{}))
	want := []Line{
		line("GET /path/to/resource HTTP/1.1", StartLine),
		line("Host: localhost", Header),
		line("body text\r\n", Body),
		line("\r\n", Body),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("lines=%q, want %q", got, want)
	}
}

func TestLineReader_ReadsOnlyOnDemand(t *testing.T) {
	src := &chunkReader{t: t, chunks: [][]byte{
		[]byte("GET / HTTP/1.1\r\nA"),
		[]byte(": b\r\n\r\n"),
	}}
	r := NewLineReader(src, 17, Limits{})
	if _, ok, err := r.Next(); !ok || err != nil {
		t.Fatalf("Next=%v,%v", ok, err)
	}
	if src.reads != 1 || r.Reads() != 1 {
		t.Fatalf("reads=%d Reads()=%d after first line, want 1", src.reads, r.Reads())
	}
	l, ok, err := r.Next()
	if !ok || err != nil || string(l.Data) != "A: b" {
		t.Fatalf("Next=%q,%v,%v", l.Data, ok, err)
	}
	if src.reads != 2 {
		t.Fatalf("reads=%d, want 2", src.reads)
	}
	// the short second read ended the stream; no third read may happen
	if _, ok, _ := r.Next(); ok {
		t.Fatal("expected end of stream")
	}
	if _, ok, _ := r.Next(); ok {
		t.Fatal("expected end of stream to be sticky")
	}
	if r.Reads() != 2 {
		t.Fatalf("Reads()=%d after end of stream, want 2", r.Reads())
	}
}

func TestLineReader_Unread(t *testing.T) {
	r := NewLineReader(bytes.NewReader([]byte("GET / HTTP/1.1\n\nbody")), 0, Limits{})
	first, _, _ := r.Next()
	r.Unread(first)
	again, ok, err := r.Next()
	if !ok || err != nil || !reflect.DeepEqual(first, again) {
		t.Fatalf("after Unread got %q,%v,%v", again.Data, ok, err)
	}
}

func TestLineReader_ChunkInvariance(t *testing.T) {
	for _, in := range invarianceInputs {
		want := feedAll(t, NewBufferedParser(Limits{}), []byte(in))
		for size := 1; size <= len(in)+1; size++ {
			got := collect(t, NewLineReader(bytes.NewReader([]byte(in)), size, Limits{}))
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("input %q read %d at a time:\n got  %q\n want %q", in, size, got, want)
			}
		}
	}
}

type failingReader struct{ err error }

func (f failingReader) Read(p []byte) (int, error) { return 0, f.err }

func TestLineReader_ReadErrorIsEndOfStream(t *testing.T) {
	boom := errors.New("boom")
	r := NewLineReader(failingReader{err: boom}, 0, Limits{})
	if _, ok, err := r.Next(); ok || err != nil {
		t.Fatalf("Next=%v,%v; want clean end of stream", ok, err)
	}
	if !errors.Is(r.ReadErr(), boom) {
		t.Fatalf("ReadErr=%v", r.ReadErr())
	}

	r = NewLineReader(failingReader{err: io.EOF}, 0, Limits{})
	r.Next()
	if r.ReadErr() != nil {
		t.Fatalf("io.EOF should not be kept, got %v", r.ReadErr())
	}
}

func TestLineReader_LimitErrorAfterLines(t *testing.T) {
	in := "GET / HTTP/1.1\r\nX-Long: " + string(bytes.Repeat([]byte("v"), 64)) + "\r\n\r\n"
	r := NewLineReader(bytes.NewReader([]byte(in)), 0, Limits{MaxLineBytes: 32})
	l, ok, err := r.Next()
	if !ok || err != nil || l.Phase != StartLine {
		t.Fatalf("first Next=%q,%v,%v", l.Data, ok, err)
	}
	if _, _, err := r.Next(); !errors.Is(err, ErrLineTooLong) {
		t.Fatalf("err=%v, want ErrLineTooLong", err)
	}
}
