package server

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"socket-file-drop/internal/wire"
)

// statusByKind is the single place error kinds become status codes.
var statusByKind = map[wire.Kind]int{
	wire.KindMalformed:          400,
	wire.KindUnauthorized:       403,
	wire.KindNotFound:           404,
	wire.KindUnsupportedMethod:  501,
	wire.KindUnsupportedVersion: 505,
}

// errorPages are served from <static>/html when present.
var errorPages = map[int]string{
	403: "403.html",
	404: "404.html",
}

func statusFor(err error) int {
	kind := wire.KindOf(err)
	if kind == wire.KindInternal && errors.Is(err, fs.ErrNotExist) {
		kind = wire.KindNotFound
	}
	if code, ok := statusByKind[kind]; ok {
		return code
	}
	return 500
}

// errorResponse renders err. HEAD responses never carry a body.
func (s *Server) errorResponse(err error, method string) *wire.Response {
	status := statusFor(err)
	resp := wire.NewResponse(status)
	if method == wire.MethodHead {
		return resp
	}
	page, ok := errorPages[status]
	if !ok {
		return resp
	}
	b, rerr := os.ReadFile(filepath.Join(s.cfg.StaticRoot, "html", page))
	if rerr != nil {
		return resp
	}
	resp.SetHeader("Content-Type", "text/html")
	resp.Body = b
	return resp
}
