package server

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// startServer serves s on a loopback port until the test ends.
func startServer(t *testing.T, s *Server) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ln) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
		if err := <-errCh; !errors.Is(err, ErrServerClosed) {
			t.Errorf("Serve returned %v, want ErrServerClosed", err)
		}
	})
	return ln.Addr().String()
}

// send writes raw in pieces of at most chunk bytes and returns everything
// the server sent back before closing.
func send(t *testing.T, addr string, raw []byte, chunk int) []byte {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	for len(raw) > 0 {
		n := chunk
		if n <= 0 || n > len(raw) {
			n = len(raw)
		}
		if _, err := conn.Write(raw[:n]); err != nil {
			t.Fatalf("write: %v", err)
		}
		raw = raw[n:]
		time.Sleep(time.Millisecond)
	}
	// A dropped connection may surface as a reset; what arrived still counts.
	out, _ := io.ReadAll(conn)
	return out
}

func parseResponse(t *testing.T, b []byte, method string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(b)), &http.Request{Method: method})
	if err != nil {
		t.Fatalf("parse response %q: %v", b, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}

func TestServeUploadAndDownloadOverTCP(t *testing.T) {
	s := newTestServer(t)
	addr := startServer(t, s)

	body, ct := multipartFile("XYZ", "a.txt", "héllo wörld", "")
	out := send(t, addr, []byte(rawRequest("POST", "/upload", body, authCookie, ct)), 7)
	resp, got := parseResponse(t, out, "POST")
	if resp.StatusCode != 200 || !strings.Contains(string(got), `"ok":true`) {
		t.Fatalf("upload = %d %s", resp.StatusCode, got)
	}
	if resp.Header.Get("Connection") != "close" {
		t.Fatalf("Connection = %q", resp.Header.Get("Connection"))
	}

	out = send(t, addr, []byte(rawRequest("GET", "/download/a.txt", "", authCookie)), 0)
	resp, got = parseResponse(t, out, "GET")
	if resp.StatusCode != 200 || string(got) != "héllo wörld" {
		t.Fatalf("download = %d %q", resp.StatusCode, got)
	}
	if resp.Status != "200 OK" {
		t.Fatalf("status line = %q", resp.Status)
	}
}

func TestServeHeadHasNoBody(t *testing.T) {
	s := newTestServer(t)
	uploadFile(t, s, "a.txt", "hello")
	addr := startServer(t, s)

	out := send(t, addr, []byte(rawRequest("HEAD", "/a.txt", "", authCookie)), 0)
	if !bytes.HasSuffix(out, []byte("\r\n\r\n")) {
		t.Fatalf("HEAD response = %q", out)
	}
	resp, _ := parseResponse(t, out, "HEAD")
	if resp.StatusCode != 200 || resp.ContentLength != 5 {
		t.Fatalf("HEAD = %d length %d", resp.StatusCode, resp.ContentLength)
	}
}

func TestServeBinaryBodies(t *testing.T) {
	payload := "\x00\xff\xfe binary"
	body, ct := multipartFile("XYZ", "blob.bin", payload, "")

	t.Run("rejected by default", func(t *testing.T) {
		s := newTestServer(t)
		addr := startServer(t, s)
		out := send(t, addr, []byte(rawRequest("POST", "/", body, authCookie, ct)), 0)
		if len(out) != 0 {
			t.Fatalf("expected the connection to be dropped, got %q", out)
		}
		if s.Metrics().Snapshot().DroppedConnsTotal != 1 {
			t.Fatalf("drop not counted")
		}
	})

	t.Run("accepted when enabled", func(t *testing.T) {
		s := newTestServer(t, func(c *Config) { c.BinaryBodies = true })
		addr := startServer(t, s)
		out := send(t, addr, []byte(rawRequest("POST", "/", body, authCookie, ct)), 5)
		resp, _ := parseResponse(t, out, "POST")
		if resp.StatusCode != 200 {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if got := readUpload(t, s, "blob.bin"); got != payload {
			t.Fatalf("stored %q, want %q", got, payload)
		}
	})
}

func TestServeBadContentLength(t *testing.T) {
	s := newTestServer(t)
	addr := startServer(t, s)
	out := send(t, addr, []byte("POST / HTTP/1.1\r\nContent-Length: ten\r\n\r\nx"), 0)
	resp, _ := parseResponse(t, out, "POST")
	if resp.StatusCode != 400 {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestServeDropsTruncatedRequest(t *testing.T) {
	s := newTestServer(t)
	addr := startServer(t, s)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	if _, err := conn.Write([]byte("POST / HTTP/1.1\r\nContent-Length: 100\r\n\r\nshort")); err != nil {
		t.Fatal(err)
	}
	if err := conn.(*net.TCPConn).CloseWrite(); err != nil {
		t.Fatal(err)
	}
	out, _ := io.ReadAll(conn)
	if len(out) != 0 {
		t.Fatalf("expected no response, got %q", out)
	}
}

func TestServeReadTimeout(t *testing.T) {
	s := newTestServer(t, func(c *Config) { c.ReadTimeout = 50 * time.Millisecond })
	addr := startServer(t, s)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	out, _ := io.ReadAll(conn)
	if len(out) != 0 {
		t.Fatalf("expected silent close, got %q", out)
	}

	// The loop moves on to the next connection.
	out = send(t, addr, []byte(rawRequest("GET", "/", "")), 0)
	if resp, _ := parseResponse(t, out, "GET"); resp.StatusCode != 301 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestServeCountsRequests(t *testing.T) {
	s := newTestServer(t)
	addr := startServer(t, s)
	send(t, addr, []byte(rawRequest("GET", "/", "")), 0)
	send(t, addr, []byte(rawRequest("HEAD", "/auth", "")), 0)
	send(t, addr, []byte("GET / HTTP/2.0\r\n\r\n"), 0)

	snap := s.Metrics().Snapshot()
	if snap.RequestsTotal != 3 || snap.RequestErrors4xx != 1 || snap.RequestErrors5xx != 1 || snap.AuthFailuresTotal != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestServeAfterShutdown(t *testing.T) {
	s := newTestServer(t)
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown before Serve: %v", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Serve(ln); !errors.Is(err, ErrServerClosed) {
		t.Fatalf("Serve = %v, want ErrServerClosed", err)
	}
}

func TestShutdownClosesStuckConnection(t *testing.T) {
	s := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ln) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("GET / HTTP/1.1\r\n")); err != nil {
		t.Fatal(err)
	}
	// Wait until the loop holds the connection.
	deadline := time.Now().Add(2 * time.Second)
	for {
		s.mu.Lock()
		active := s.active != nil
		s.mu.Unlock()
		if active {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("connection never became active")
		}
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := s.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Shutdown = %v, want deadline exceeded", err)
	}
	select {
	case err := <-errCh:
		if !errors.Is(err, ErrServerClosed) {
			t.Fatalf("Serve = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
}

func TestWatchUploadsCountsExternalChanges(t *testing.T) {
	s := newTestServer(t, func(c *Config) { c.WatchUploads = true })
	startServer(t, s)

	// Serve installs the watcher before accepting; give it a moment.
	deadline := time.Now().Add(3 * time.Second)
	i := 0
	for s.Metrics().Snapshot().ExternalChangesTotal == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no change observed")
		}
		i++
		name := filepath.Join(s.cfg.UploadRoot, "dropped-"+string(rune('a'+i%26))+".txt")
		if err := os.WriteFile(name, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(50 * time.Millisecond)
	}
}
