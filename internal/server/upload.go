package server

import (
	"errors"

	"socket-file-drop/internal/db"
	"socket-file-drop/internal/store"
	"socket-file-drop/internal/upload"
	"socket-file-drop/internal/wire"
)

const errFileExists = "File exists"

type uploadResponse struct {
	OK    bool   `json:"ok"`
	Name  string `json:"name"`
	Size  int    `json:"size"`
	Path  string `json:"path,omitempty"`
	Error string `json:"error,omitempty"`
}

type updateResponse struct {
	OK     bool     `json:"ok"`
	Update []string `json:"update"`
	Fail   []string `json:"fail"`
	Error  *string  `json:"error"`
}

func decodeItem(c *call) (upload.Item, error) {
	ct, _ := c.req.Header("Content-Type")
	return upload.Decode(c.req.Body, ct)
}

// handleUpload creates a new file. An existing name is reported, not replaced.
func handleUpload(s *Server, c *call) (*wire.Response, error) {
	if err := s.requireAuth(c); err != nil {
		return nil, err
	}
	item, err := decodeItem(c)
	if err != nil {
		return nil, err
	}
	if !store.ValidName(item.Name) {
		return nil, wire.Errorf(wire.KindMalformed, "bad file name %q", item.Name)
	}

	exists := uploadResponse{
		OK:    false,
		Name:  item.Name,
		Size:  item.Size(),
		Path:  "/file/" + item.Name,
		Error: errFileExists,
	}
	if s.store.Exists(item.Name) {
		s.metrics.RecordUploadConflict()
		return wire.JSON(exists)
	}
	if err := s.store.Create(item.Name, item.Content); err != nil {
		if errors.Is(err, store.ErrExist) {
			s.metrics.RecordUploadConflict()
			return wire.JSON(exists)
		}
		s.record(c, db.Event{Action: db.ActionUpload, FileName: item.Name, Size: int64(item.Size()), Error: err.Error()})
		return nil, err
	}

	s.metrics.RecordUpload(int64(item.Size()))
	s.mirrorPut(c, item.Name, item.Content, item.ContentType)
	s.record(c, db.Event{Action: db.ActionUpload, FileName: item.Name, Size: int64(item.Size()), Success: true})
	return wire.JSON(uploadResponse{OK: true, Name: item.Name, Size: item.Size()})
}

// handleUpdate overwrites every existing file named in update_list with the
// uploaded content. Names that do not exist are reported in fail.
func handleUpdate(s *Server, c *call) (*wire.Response, error) {
	if err := s.requireAuth(c); err != nil {
		return nil, err
	}
	item, err := decodeItem(c)
	if err != nil {
		return nil, err
	}

	res := updateResponse{Update: []string{}, Fail: []string{}}
	for _, name := range item.UpdateList {
		err := s.store.Overwrite(name, item.Content)
		switch {
		case err == nil:
			res.Update = append(res.Update, name)
			s.mirrorPut(c, name, item.Content, store.ContentType(name))
			s.record(c, db.Event{Action: db.ActionUpdate, FileName: name, Size: int64(item.Size()), Success: true})
		case errors.Is(err, store.ErrNotExist), errors.Is(err, store.ErrInvalidName):
			res.Fail = append(res.Fail, name)
		default:
			s.record(c, db.Event{Action: db.ActionUpdate, FileName: name, Size: int64(item.Size()), Error: err.Error()})
			return nil, err
		}
	}

	s.metrics.RecordUpdate(len(res.Update), len(res.Fail))
	res.OK = len(res.Fail) == 0
	if !res.OK {
		msg := errFileNotExists
		res.Error = &msg
	}
	return wire.JSON(res)
}
