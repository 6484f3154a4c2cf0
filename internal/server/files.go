package server

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"socket-file-drop/internal/db"
	"socket-file-drop/internal/store"
	"socket-file-drop/internal/wire"
)

const errFileNotExists = "File not exists"

type fileEntry struct {
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

type fileListResponse struct {
	Total int                  `json:"total"`
	OK    bool                 `json:"ok"`
	Data  map[string]fileEntry `json:"data"`
}

type deleteResponse struct {
	OK    bool   `json:"ok"`
	Name  string `json:"name"`
	Error string `json:"error,omitempty"`
}

// notFound tags a missing file; other errors pass through as internal.
func notFound(name string, err error) error {
	if errors.Is(err, store.ErrNotExist) || errors.Is(err, store.ErrInvalidName) {
		return wire.Wrap(wire.KindNotFound, name, err)
	}
	return err
}

func (s *Server) downloadURL(name string) string {
	return "http://" + s.cfg.Addr() + "/download/" + url.PathEscape(name)
}

func handleDownload(s *Server, c *call) (*wire.Response, error) {
	if err := s.requireAuth(c); err != nil {
		return nil, err
	}
	name, err := unescape(strings.TrimPrefix(c.path, "/download/"))
	if err != nil {
		return nil, err
	}
	content, err := s.store.ReadFile(name)
	if err != nil {
		return nil, notFound(name, err)
	}

	s.metrics.RecordDownload(int64(len(content)))
	s.record(c, db.Event{Action: db.ActionDownload, FileName: name, Size: int64(len(content)), Success: true})

	resp := wire.NewResponse(200,
		wire.Header{Name: "Content-Disposition", Value: "attachment; filename=" + name},
		wire.Header{Name: "Content-Type", Value: "application/octet-stream"},
		wire.Header{Name: "Content-Length", Value: strconv.Itoa(len(content))},
	)
	resp.Body = content
	return resp, nil
}

// handleFileList lists the upload root. Without the token the listing is
// empty rather than refused.
func handleFileList(s *Server, c *call) (*wire.Response, error) {
	res := fileListResponse{OK: true, Data: map[string]fileEntry{}}
	if s.authenticate(c.req) {
		files, err := s.store.List()
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			res.Data[f.Name] = fileEntry{URL: s.downloadURL(f.Name), Size: f.Size}
		}
	}
	res.Total = len(res.Data)
	return wire.JSON(res)
}

func handleHeadFile(s *Server, c *call) (*wire.Response, error) {
	if err := s.requireAuth(c); err != nil {
		return nil, err
	}
	name, err := lastSegment(c.path)
	if err != nil {
		return nil, err
	}
	info, err := s.store.Stat(name)
	if err != nil {
		return nil, notFound(name, err)
	}
	return wire.NewResponse(200,
		wire.Header{Name: "Content-Length", Value: strconv.FormatInt(info.Size, 10)},
		wire.Header{Name: "Content-Type", Value: info.ContentType},
	), nil
}

func handleDelete(s *Server, c *call) (*wire.Response, error) {
	if err := s.requireAuth(c); err != nil {
		return nil, err
	}
	name, err := lastSegment(c.path)
	if err != nil {
		return nil, err
	}

	err = s.store.Remove(name)
	switch {
	case errors.Is(err, store.ErrInvalidName):
		return nil, wire.Wrap(wire.KindMalformed, name, err)
	case errors.Is(err, store.ErrNotExist):
		return wire.JSON(deleteResponse{OK: false, Name: name, Error: errFileNotExists})
	case err != nil:
		s.record(c, db.Event{Action: db.ActionDelete, FileName: name, Size: -1, Error: err.Error()})
		return nil, err
	}

	s.metrics.RecordDelete()
	s.mirrorRemove(c, name)
	s.record(c, db.Event{Action: db.ActionDelete, FileName: name, Size: -1, Success: true})
	return wire.JSON(deleteResponse{OK: true, Name: name})
}
