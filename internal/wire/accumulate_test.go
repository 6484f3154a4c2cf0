package wire

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

// chunkedReader hands out data in fixed pieces regardless of the buffer size.
type chunkedReader struct {
	data  []byte
	piece int
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if len(c.data) == 0 {
		return 0, io.EOF
	}
	n := c.piece
	if n > len(p) {
		n = len(p)
	}
	if n > len(c.data) {
		n = len(c.data)
	}
	copy(p, c.data[:n])
	c.data = c.data[n:]
	return n, nil
}

// blockingReader returns its data and then fails the test if read again.
type blockingReader struct {
	t    *testing.T
	data []byte
}

func (b *blockingReader) Read(p []byte) (int, error) {
	if len(b.data) == 0 {
		b.t.Fatal("accumulator read past the end of a complete request")
	}
	n := copy(p, b.data)
	b.data = b.data[n:]
	return n, nil
}

func TestAccumulatorStopsAtHeadWithoutLength(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nHost: x\r\n\r\n"
	got, err := Accumulator{}.Read(&blockingReader{t: t, data: []byte(raw)})
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if string(got) != raw {
		t.Fatalf("got %q, want %q", got, raw)
	}
}

func TestAccumulatorWaitsForBody(t *testing.T) {
	body := strings.Repeat("a", 3000)
	raw := "POST /upload HTTP/1.1\r\nContent-Length: 3000\r\n\r\n" + body

	tests := []struct {
		name string
		r    io.Reader
	}{
		{"one byte at a time", iotest.OneByteReader(strings.NewReader(raw))},
		{"half reads", iotest.HalfReader(strings.NewReader(raw))},
		{"odd pieces", &chunkedReader{data: []byte(raw), piece: 7}},
		{"whole", strings.NewReader(raw)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Accumulator{}.Read(tt.r)
			if err != nil {
				t.Fatalf("Read error: %v", err)
			}
			if string(got) != raw {
				t.Fatalf("got %d bytes, want %d", len(got), len(raw))
			}
		})
	}
}

func TestAccumulatorTerminatorAcrossReads(t *testing.T) {
	raw := "GET /file-list HTTP/1.1\r\nHost: x\r\n\r\n"
	got, err := Accumulator{ChunkSize: 4}.Read(&chunkedReader{data: []byte(raw), piece: 3})
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if string(got) != raw {
		t.Fatalf("got %q", got)
	}
}

func TestAccumulatorCountsBytes(t *testing.T) {
	body := "héllo" // 6 bytes, 5 runes
	raw := "POST / HTTP/1.1\r\nContent-Length: 6\r\n\r\n" + body
	got, err := Accumulator{}.Read(&blockingReader{t: t, data: []byte(raw)})
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if !bytes.HasSuffix(got, []byte(body)) {
		t.Fatalf("body missing from %q", got)
	}
}

func TestAccumulatorRuneSplitAcrossReads(t *testing.T) {
	raw := "POST / HTTP/1.1\r\nContent-Length: 6\r\n\r\nhéllo"
	got, err := Accumulator{}.Read(iotest.OneByteReader(strings.NewReader(raw)))
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if string(got) != raw {
		t.Fatalf("got %q", got)
	}
}

func TestAccumulatorRejectsInvalidUTF8(t *testing.T) {
	raw := []byte("POST / HTTP/1.1\r\nContent-Length: 3\r\n\r\n\xff\xfe\x00")
	_, err := Accumulator{}.Read(bytes.NewReader(raw))
	if !errors.Is(err, ErrUndecodable) {
		t.Fatalf("expected ErrUndecodable, got %v", err)
	}
}

func TestAccumulatorTruncatedRuneAtEnd(t *testing.T) {
	raw := []byte("POST / HTTP/1.1\r\nContent-Length: 1\r\n\r\n\xc3")
	_, err := Accumulator{}.Read(bytes.NewReader(raw))
	if !errors.Is(err, ErrUndecodable) {
		t.Fatalf("expected ErrUndecodable, got %v", err)
	}
}

func TestAccumulatorBinaryBodies(t *testing.T) {
	raw := []byte("POST / HTTP/1.1\r\nContent-Length: 3\r\n\r\n\xff\xfe\x00")
	got, err := Accumulator{BinaryBodies: true}.Read(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if !bytes.Equal(got, raw) {
		t.Fatalf("got %q", got)
	}

	badHead := []byte("GET /\xff HTTP/1.1\r\n\r\n")
	if _, err := (Accumulator{BinaryBodies: true}).Read(bytes.NewReader(badHead)); !errors.Is(err, ErrUndecodable) {
		t.Fatalf("expected ErrUndecodable for bad head, got %v", err)
	}
}

func TestAccumulatorIncomplete(t *testing.T) {
	tests := []string{
		"GET / HTTP/1.1\r\nHost: x\r\n",
		"POST / HTTP/1.1\r\nContent-Length: 10\r\n\r\nabc",
		"",
	}
	for _, raw := range tests {
		_, err := Accumulator{}.Read(strings.NewReader(raw))
		if !errors.Is(err, ErrIncomplete) {
			t.Fatalf("Read(%q): expected ErrIncomplete, got %v", raw, err)
		}
	}
}

func TestAccumulatorBadContentLength(t *testing.T) {
	raw := "POST / HTTP/1.1\r\nContent-Length: ten\r\n\r\nabc"
	got, err := Accumulator{}.Read(strings.NewReader(raw))
	if KindOf(err) != KindMalformed {
		t.Fatalf("expected malformed error, got %v", err)
	}
	if len(got) == 0 {
		t.Fatalf("expected the bytes read so far")
	}
}

func TestValidPrefix(t *testing.T) {
	tests := []struct {
		in []byte
		n  int
		ok bool
	}{
		{[]byte("abc"), 3, true},
		{[]byte("h\xc3\xa9"), 3, true},
		{[]byte("h\xc3"), 1, true},
		{[]byte("h\xe2\x82"), 1, true},
		{[]byte("h\xff"), 1, false},
		{[]byte("\xe2\x28\xa1"), 0, false},
	}
	for _, tt := range tests {
		n, ok := validPrefix(tt.in)
		if n != tt.n || ok != tt.ok {
			t.Errorf("validPrefix(%q) = (%d,%v), want (%d,%v)", tt.in, n, ok, tt.n, tt.ok)
		}
	}
}
