package server

import (
	"context"
	"net/url"
	"strings"

	"socket-file-drop/internal/wire"
)

// call carries one request through the handlers.
type call struct {
	ctx  context.Context
	req  *wire.Request
	path string // request path without the query string
	rid  string
	ip   string
}

type handlerFunc func(s *Server, c *call) (*wire.Response, error)

type route struct {
	method string
	match  func(path string) bool
	handle handlerFunc
}

func exact(p string) func(string) bool {
	return func(path string) bool { return path == p }
}

func prefix(p string) func(string) bool {
	return func(path string) bool { return strings.HasPrefix(path, p) }
}

func anyPath(string) bool { return true }

// routes is tried in order; the first match wins. Authentication is decided
// by each handler.
var routes = []route{
	{wire.MethodGet, exact("/"), handleIndex},
	{wire.MethodGet, exact("/token"), handleToken},
	{wire.MethodGet, prefix("/download/"), handleDownload},
	{wire.MethodGet, exact("/file-list"), handleFileList},
	{wire.MethodGet, anyPath, handleStatic},
	{wire.MethodHead, exact("/auth"), handleAuthProbe},
	{wire.MethodHead, anyPath, handleHeadFile},
	{wire.MethodPost, anyPath, handleUpload},
	{wire.MethodPut, anyPath, handleUpdate},
	{wire.MethodDelete, anyPath, handleDelete},
}

func (s *Server) dispatch(c *call) (*wire.Response, error) {
	known := false
	for _, r := range routes {
		if r.method != c.req.Method {
			continue
		}
		known = true
		if r.match(c.path) {
			return r.handle(s, c)
		}
	}
	if !known {
		return nil, wire.Errorf(wire.KindUnsupportedMethod, "method %q", c.req.Method)
	}
	return nil, wire.Errorf(wire.KindNotFound, "no route for %s %s", c.req.Method, c.path)
}

// unescape undoes percent-encoding in a path segment.
func unescape(seg string) (string, error) {
	name, err := url.PathUnescape(seg)
	if err != nil {
		return "", wire.Wrap(wire.KindMalformed, "path", err)
	}
	return name, nil
}

// lastSegment returns the decoded final segment of path.
func lastSegment(path string) (string, error) {
	return unescape(path[strings.LastIndexByte(path, '/')+1:])
}
