package wire

import (
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

// DefaultChunkSize is the number of bytes requested per read.
const DefaultChunkSize = 1024

var headTerminator = []byte("\r\n\r\n")

// Accumulator collects a connection's bytes until a whole request is buffered:
// the head terminator has been seen and, when the head declares a
// Content-Length, at least that many body bytes follow it.
//
// Lengths are counted in bytes. Input must decode as UTF-8; with BinaryBodies
// set only the head is checked and the body may carry arbitrary bytes.
type Accumulator struct {
	ChunkSize    int
	BinaryBodies bool
}

// Read blocks until a complete request is buffered and returns it.
//
// ErrUndecodable and ErrIncomplete mean the connection should be dropped
// without a response. A malformed Content-Length is returned as a
// KindMalformed error together with the bytes read so far.
func (a Accumulator) Read(r io.Reader) ([]byte, error) {
	size := a.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}

	chunk := make([]byte, size)
	buf := make([]byte, 0, size)
	checked := 0
	headEnd := -1
	want := -1

	for {
		n, rerr := r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)

			var lenErr error
			if headEnd < 0 {
				// The terminator may straddle two reads.
				from := len(buf) - n - len(headTerminator) + 1
				if from < 0 {
					from = 0
				}
				if i := bytes.Index(buf[from:], headTerminator); i >= 0 {
					headEnd = from + i + len(headTerminator)
					want, lenErr = contentLength(buf[:from+i])
				}
			}

			limit := len(buf)
			if a.BinaryBodies && headEnd >= 0 {
				limit = headEnd
			}
			if checked < limit {
				k, ok := validPrefix(buf[checked:limit])
				if !ok {
					return nil, ErrUndecodable
				}
				checked += k
			}

			if lenErr != nil {
				return buf, lenErr
			}
			if headEnd >= 0 && (want < 0 || len(buf)-headEnd >= want) {
				if checked < limit {
					// A rune cut off at the very end of the request.
					return nil, ErrUndecodable
				}
				return buf, nil
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return nil, ErrIncomplete
			}
			return nil, rerr
		}
	}
}

// contentLength scans the head for a Content-Length header. It returns -1 when
// none is present.
func contentLength(head []byte) (int, error) {
	lines := strings.Split(string(head), "\r\n")
	for _, line := range lines[1:] {
		name, value, ok := strings.Cut(line, ": ")
		if !ok || name != "Content-Length" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return -1, Errorf(KindMalformed, "bad Content-Length %q", value)
		}
		return n, nil
	}
	return -1, nil
}

// validPrefix reports how many leading bytes of b are complete, valid UTF-8.
// A truncated multi-byte sequence at the end of b is not an error; the caller
// retries once more bytes arrive.
func validPrefix(b []byte) (int, bool) {
	i := 0
	for i < len(b) {
		if b[i] < utf8.RuneSelf {
			i++
			continue
		}
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size == 1 {
			if !utf8.FullRune(b[i:]) {
				return i, true
			}
			return i, false
		}
		i += size
	}
	return i, true
}
