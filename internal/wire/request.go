package wire

import (
	"bytes"
	"strings"
)

// Version is the only protocol version the server accepts.
const Version = "HTTP/1.1"

const (
	MethodGet    = "GET"
	MethodHead   = "HEAD"
	MethodPost   = "POST"
	MethodPut    = "PUT"
	MethodDelete = "DELETE"
)

// Request is a parsed request. It is never modified after ParseRequest.
type Request struct {
	Method  string
	Path    string
	Version string
	// Headers keeps names exactly as received; lookups are case-sensitive.
	Headers map[string]string
	// Body is nil when the request had no head terminator.
	Body []byte
}

// Header returns the value of the named header and whether it was sent.
func (r *Request) Header(name string) (string, bool) {
	v, ok := r.Headers[name]
	return v, ok
}

// Route returns the path without any query string.
func (r *Request) Route() string {
	if i := strings.IndexByte(r.Path, '?'); i >= 0 {
		return r.Path[:i]
	}
	return r.Path
}

// ParseRequest parses an accumulated request.
func ParseRequest(raw []byte) (*Request, error) {
	head := raw
	var body []byte
	if i := bytes.Index(raw, headTerminator); i >= 0 {
		head = raw[:i]
		body = raw[i+len(headTerminator):]
	}

	lines := strings.Split(string(head), "\r\n")
	parts := strings.Split(lines[0], " ")
	if len(parts) != 3 {
		return nil, Errorf(KindMalformed, "bad request line %q", lines[0])
	}
	req := &Request{
		Method:  parts[0],
		Path:    parts[1],
		Version: parts[2],
		Headers: make(map[string]string, len(lines)-1),
		Body:    body,
	}
	if req.Method == "" || !strings.HasPrefix(req.Path, "/") {
		return nil, Errorf(KindMalformed, "bad request line %q", lines[0])
	}
	if req.Version != Version {
		return nil, Errorf(KindUnsupportedVersion, "version %q", req.Version)
	}

	for _, line := range lines[1:] {
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ": ")
		if !ok {
			return nil, Errorf(KindMalformed, "bad header line %q", line)
		}
		req.Headers[name] = value
	}
	return req, nil
}
