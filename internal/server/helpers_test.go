package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"socket-file-drop/internal/db"
	"socket-file-drop/internal/wire"
)

const testToken = "secret"

var authCookie = "Cookie: token=" + HashToken(testToken)

type fakeMirror struct {
	mu      sync.Mutex
	puts    map[string]string
	removed []string
	calls   int
	err     error
}

func (m *fakeMirror) Put(_ context.Context, name string, content []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	if m.puts == nil {
		m.puts = map[string]string{}
	}
	m.puts[name] = string(content)
	return nil
}

func (m *fakeMirror) Remove(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.removed = append(m.removed, name)
	return nil
}

type fakeAudit struct {
	mu     sync.Mutex
	events []db.Event
	err    error
}

func (a *fakeAudit) Record(_ context.Context, ev db.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.events = append(a.events, ev)
	return nil
}

func (a *fakeAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []string
	for _, ev := range a.events {
		out = append(out, fmt.Sprintf("%s:%s", ev.Action, ev.FileName))
	}
	return out
}

var errDependencyDown = errors.New("dependency down")

// newTestServer builds a server over temporary static and upload roots.
func newTestServer(t *testing.T, opts ...func(*Config)) *Server {
	t.Helper()
	root := t.TempDir()
	static := filepath.Join(root, "static")
	uploads := filepath.Join(root, "uploads")
	for _, d := range []string{"html", "js", "css", "images"} {
		if err := os.MkdirAll(filepath.Join(static, d), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(uploads, 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := Config{
		Host:       "127.0.0.1",
		Port:       8080,
		StaticRoot: static,
		UploadRoot: uploads,
		Token:      testToken,
		TokenHash:  HashToken(testToken),
		Logger:     NewLogger(io.Discard, LogLevelInfo, false),
	}
	for _, o := range opts {
		o(&cfg)
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

// rawRequest renders a request; a non-empty body gets a Content-Length.
func rawRequest(method, path string, body string, headers ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s HTTP/1.1\r\n", method, path)
	b.WriteString("Host: 127.0.0.1:8080\r\n")
	for _, h := range headers {
		b.WriteString(h + "\r\n")
	}
	if body != "" {
		fmt.Fprintf(&b, "Content-Length: %d\r\n", len(body))
	}
	b.WriteString("\r\n")
	b.WriteString(body)
	return b.String()
}

// do runs raw through the parser and the route table.
func do(t *testing.T, s *Server, raw string) *wire.Response {
	t.Helper()
	c := &call{ctx: context.Background(), rid: "test-rid", ip: "127.0.0.1"}
	return s.respond(c, []byte(raw), nil)
}

func decodeJSON(t *testing.T, resp *wire.Response) map[string]any {
	t.Helper()
	if ct, _ := resp.Header("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q, want application/json", ct)
	}
	var m map[string]any
	if err := json.Unmarshal(resp.Body, &m); err != nil {
		t.Fatalf("decode %q: %v", resp.Body, err)
	}
	return m
}

func multipartFile(boundary, filename, content, updateList string) (string, string) {
	var b strings.Builder
	fmt.Fprintf(&b, "--%s\r\n", boundary)
	fmt.Fprintf(&b, "Content-Disposition: form-data; name=\"file\"; filename=\"%s\"\r\n", filename)
	b.WriteString("Content-Type: text/plain\r\n\r\n")
	b.WriteString(content + "\r\n")
	if updateList != "" {
		fmt.Fprintf(&b, "--%s\r\n", boundary)
		b.WriteString("Content-Disposition: form-data; name=\"update_list\"\r\n\r\n")
		b.WriteString(updateList + "\r\n")
	}
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return b.String(), "Content-Type: multipart/form-data; boundary=" + boundary
}

func uploadFile(t *testing.T, s *Server, name, content string) *wire.Response {
	t.Helper()
	body, ct := multipartFile("XYZ", name, content, "")
	return do(t, s, rawRequest("POST", "/upload", body, authCookie, ct))
}

func readUpload(t *testing.T, s *Server, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(s.cfg.UploadRoot, name))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return string(b)
}
