package http1

import (
	"bytes"
	"errors"
)

var (
	ErrLineTooLong  = errors.New("http1: line too long")
	ErrBodyTooLarge = errors.New("http1: body too large")
)

// MessageState tags the section of a request a line belongs to.
// A stream only ever moves StartLine -> Header -> Body.
type MessageState int

const (
	StartLine MessageState = iota
	Header
	Body
)

func (s MessageState) String() string {
	switch s {
	case StartLine:
		return "StartLine"
	case Header:
		return "Header"
	case Body:
		return "Body"
	default:
		return "Unknown"
	}
}

// Line is one logical line of a request. StartLine and Header data is
// trimmed of terminators and surrounding whitespace; Body data is the
// raw bytes including the terminator.
type Line struct {
	Data  []byte
	Phase MessageState
}

// Limits bounds what a BufferedParser will hold. Zero means unlimited.
type Limits struct {
	MaxLineBytes int
	MaxBodyBytes int64
}

// BufferedParser turns arbitrarily chunked bytes into phase-tagged lines.
// LF, CR and CRLF are all accepted as terminators, including a CRLF that
// is split across two chunks.
type BufferedParser struct {
	state     MessageState
	buf       []byte
	swallowLF bool
	bodyBytes int64
	lim       Limits
}

func NewBufferedParser(lim Limits) *BufferedParser {
	return &BufferedParser{lim: lim}
}

// Phase reports the section the next line will be tagged with.
func (p *BufferedParser) Phase() MessageState { return p.state }

// Feed appends chunk and returns every line it completes, in order.
// On a size-limit error the lines completed before the violation are
// returned alongside it.
func (p *BufferedParser) Feed(chunk []byte) ([]Line, error) {
	p.buf = append(p.buf, chunk...)

	var (
		lines []Line
		start int
	)
scan:
	for start < len(p.buf) {
		if p.swallowLF {
			// the previous line ended on a bare CR at a chunk boundary
			p.swallowLF = false
			if p.buf[start] == '\n' {
				start++
				continue
			}
		}

		i := bytes.IndexAny(p.buf[start:], "\r\n")
		if i < 0 {
			break
		}
		end := start + i
		next := end + 1
		if p.buf[end] == '\r' {
			switch {
			case next < len(p.buf):
				if p.buf[next] == '\n' {
					next++
				}
			case p.state == Body:
				// body lines are verbatim, so the CR has to wait for
				// its possible LF
				break scan
			default:
				p.swallowLF = true
			}
		}

		line, ok, err := p.emit(p.buf[start:end], p.buf[start:next])
		if err != nil {
			p.compact(next)
			return lines, err
		}
		if ok {
			lines = append(lines, line)
		}
		start = next
	}

	p.compact(start)
	return lines, p.checkResidual()
}

// Flush resolves whatever is left in the buffer at end of stream.
func (p *BufferedParser) Flush() ([]Line, error) {
	p.swallowLF = false
	if len(p.buf) == 0 {
		return nil, nil
	}
	rest := p.buf
	p.buf = nil

	line, ok, err := p.emit(rest, rest)
	if err != nil || !ok {
		return nil, err
	}
	return []Line{line}, nil
}

func (p *BufferedParser) emit(content, raw []byte) (Line, bool, error) {
	if p.state == Body {
		p.bodyBytes += int64(len(raw))
		if p.lim.MaxBodyBytes > 0 && p.bodyBytes > p.lim.MaxBodyBytes {
			return Line{}, false, ErrBodyTooLarge
		}
		return Line{Data: clone(raw), Phase: Body}, true, nil
	}

	if p.lim.MaxLineBytes > 0 && len(content) > p.lim.MaxLineBytes {
		return Line{}, false, ErrLineTooLong
	}
	trimmed := bytes.TrimSpace(content)
	phase := p.state
	switch {
	case len(trimmed) == 0 && phase == Header:
		p.state = Body
		return Line{}, false, nil
	case len(trimmed) == 0:
		return Line{}, false, nil
	case phase == StartLine:
		p.state = Header
	}
	return Line{Data: clone(trimmed), Phase: phase}, true, nil
}

func (p *BufferedParser) checkResidual() error {
	switch {
	case p.state == Body:
		if p.lim.MaxBodyBytes > 0 && p.bodyBytes+int64(len(p.buf)) > p.lim.MaxBodyBytes {
			return ErrBodyTooLarge
		}
	case p.lim.MaxLineBytes > 0 && len(p.buf) > p.lim.MaxLineBytes:
		return ErrLineTooLong
	}
	return nil
}

func (p *BufferedParser) compact(from int) {
	n := copy(p.buf, p.buf[from:])
	p.buf = p.buf[:n]
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
