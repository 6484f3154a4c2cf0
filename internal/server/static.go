package server

import (
	"os"
	"path/filepath"
	"strings"

	"socket-file-drop/internal/store"
	"socket-file-drop/internal/wire"
)

// staticDirs places public assets by extension under the static root.
var staticDirs = map[string]string{
	"html": "html",
	"js":   "js",
	"css":  "css",
	"jpg":  "images",
	"jpeg": "images",
	"png":  "images",
	"gif":  "images",
	"ico":  "images",
}

func handleIndex(s *Server, c *call) (*wire.Response, error) {
	return wire.NewResponse(301, wire.Header{Name: "Location", Value: "/index.html"}), nil
}

// handleStatic serves public assets from the static root and, with the
// token, anything else from the upload root. Any file that cannot be read
// is a 404 here, permission errors included.
func handleStatic(s *Server, c *call) (*wire.Response, error) {
	rel, err := unescape(strings.TrimPrefix(c.path, "/"))
	if err != nil {
		return nil, err
	}

	var content []byte
	if dir, ok := staticDirs[store.Extension(rel)]; ok {
		content, err = os.ReadFile(store.Within(filepath.Join(s.cfg.StaticRoot, dir), rel))
		if err != nil {
			return nil, wire.Wrap(wire.KindNotFound, rel, err)
		}
	} else {
		if err := s.requireAuth(c); err != nil {
			return nil, err
		}
		content, err = s.store.ReadFile(rel)
		if err != nil {
			return nil, wire.Wrap(wire.KindNotFound, rel, err)
		}
	}

	resp := wire.NewResponse(200, wire.Header{Name: "Content-Type", Value: store.ContentType(rel)})
	resp.Body = content
	return resp, nil
}
