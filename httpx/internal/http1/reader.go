package http1

import (
	"errors"
	"io"
)

const DefaultBufferSize = 1024

// LineReader pulls lines out of src on demand. A read that returns fewer
// bytes than requested, or any error, marks the end of the stream; no read
// is issued after that.
type LineReader struct {
	src    io.Reader
	buf    []byte
	parser *BufferedParser

	queue   []Line
	pushed  Line
	hasPush bool

	eos     bool
	err     error
	readErr error
	reads   int
}

func NewLineReader(src io.Reader, bufSize int, lim Limits) *LineReader {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &LineReader{
		src:    src,
		buf:    make([]byte, bufSize),
		parser: NewBufferedParser(lim),
	}
}

// Next returns the next line in arrival order. ok is false once the stream
// is exhausted. A size-limit error is returned after every line completed
// before it has been handed out.
func (r *LineReader) Next() (line Line, ok bool, err error) {
	if r.hasPush {
		r.hasPush = false
		line = r.pushed
		r.pushed = Line{}
		return line, true, nil
	}
	for len(r.queue) == 0 {
		if r.err != nil {
			return Line{}, false, r.err
		}
		if r.eos {
			return Line{}, false, nil
		}
		r.fill()
	}
	line = r.queue[0]
	r.queue[0] = Line{}
	r.queue = r.queue[1:]
	return line, true, nil
}

// Unread pushes a single line back; the next call to Next returns it.
func (r *LineReader) Unread(line Line) {
	r.pushed = line
	r.hasPush = true
}

// Phase reports the parser's current section.
func (r *LineReader) Phase() MessageState { return r.parser.Phase() }

// ReadErr returns the last non-EOF error returned by src. It is kept for
// diagnostics only: the reader itself treats it as end of stream.
func (r *LineReader) ReadErr() error { return r.readErr }

// Reads reports how many reads have been issued against src.
func (r *LineReader) Reads() int { return r.reads }

func (r *LineReader) fill() {
	r.reads++
	n, err := r.src.Read(r.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		r.readErr = err
	}
	if n > 0 {
		lines, perr := r.parser.Feed(r.buf[:n])
		r.queue = append(r.queue, lines...)
		if perr != nil {
			r.err = perr
			return
		}
	}
	if n < len(r.buf) || err != nil {
		r.eos = true
		lines, perr := r.parser.Flush()
		r.queue = append(r.queue, lines...)
		r.err = perr
	}
}
