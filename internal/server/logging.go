package server

import (
	"log"
	"net"
	"time"

	"github.com/google/uuid"

	"socket-file-drop/internal/wire"
)

// debugBodyLimit caps how much of a body the debug log prints.
const debugBodyLimit = 1024

func newRequestID() string {
	return uuid.NewString()
}

// clientIP strips the port from a remote address.
func clientIP(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

// logAccess writes one line per answered connection.
func logAccess(rid, method, path string, status int, d time.Duration, bytes int64, ip string) {
	log.Printf("rid=%s method=%s path=%s status=%d ms=%d bytes=%d ip=%s",
		rid, method, path, status, d.Milliseconds(), bytes, ip)
}

// logRequest dumps the parsed request at debug level.
func (s *Server) logRequest(rid string, req *wire.Request) {
	body := req.Body
	truncated := false
	if len(body) > debugBodyLimit {
		body = body[:debugBodyLimit]
		truncated = true
	}
	s.log.Debug("request", map[string]any{
		"rid":            rid,
		"method":         req.Method,
		"path":           req.Path,
		"headers":        req.Headers,
		"body":           string(body),
		"body_truncated": truncated,
	})
}
