package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// Header is a single response header line.
type Header struct {
	Name  string
	Value string
}

// Response is rendered verbatim: headers keep their insertion order.
type Response struct {
	Status  int
	Headers []Header
	// Body is nil for responses without a body.
	Body []byte
}

// NewResponse returns a response with the given status and headers.
func NewResponse(status int, headers ...Header) *Response {
	return &Response{Status: status, Headers: headers}
}

// JSON returns a 200 response carrying v encoded as JSON.
func JSON(v any) (*Response, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return &Response{
		Status:  200,
		Headers: []Header{{"Content-Type", "application/json"}},
		Body:    b,
	}, nil
}

// SetHeader appends a header line.
func (r *Response) SetHeader(name, value string) {
	r.Headers = append(r.Headers, Header{name, value})
}

// Header returns the first value set for name.
func (r *Response) Header(name string) (string, bool) {
	for _, h := range r.Headers {
		if h.Name == name {
			return h.Value, true
		}
	}
	return "", false
}

// Bytes renders the status line, headers, blank line and body.
func (r *Response) Bytes() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s %d %s\r\n", Version, r.Status, StatusText(r.Status))
	for _, h := range r.Headers {
		fmt.Fprintf(&b, "%s: %s\r\n", h.Name, h.Value)
	}
	if _, ok := r.Header("Content-Length"); !ok && r.Body != nil {
		fmt.Fprintf(&b, "Content-Length: %s\r\n", strconv.Itoa(len(r.Body)))
	}
	if _, ok := r.Header("Connection"); !ok {
		b.WriteString("Connection: close\r\n")
	}
	b.WriteString("\r\n")
	b.Write(r.Body)
	return b.Bytes()
}

// WriteTo writes the rendered response to w.
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(r.Bytes())
	return int64(n), err
}

// StatusText returns the reason phrase for the codes the server produces.
func StatusText(code int) string {
	switch code {
	case 200:
		return "OK"
	case 301:
		return "Moved Permanently"
	case 400:
		return "Bad Request"
	case 403:
		return "Forbidden"
	case 404:
		return "Not Found"
	case 500:
		return "Internal Server Error"
	case 501:
		return "Not Implemented"
	case 505:
		return "HTTP Version Not Supported"
	default:
		return ""
	}
}
