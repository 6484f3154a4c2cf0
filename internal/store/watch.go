package store

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Change is a filesystem event seen under the upload root.
type Change struct {
	Name string
	Op   string
}

func opName(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Write):
		return "write"
	case op.Has(fsnotify.Remove):
		return "remove"
	case op.Has(fsnotify.Rename):
		return "rename"
	default:
		return ""
	}
}

// Watch reports changes to files directly under the store root until ctx is
// cancelled. Chmod events are dropped. Watcher errors go to onErr when it is
// non-nil.
func (s *Store) Watch(ctx context.Context, onChange func(Change), onErr func(error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("new watcher: %w", err)
	}
	if err := w.Add(s.root); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", s.root, err)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				op := opName(ev.Op)
				if op == "" {
					continue
				}
				onChange(Change{Name: filepath.Base(ev.Name), Op: op})
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				if onErr != nil {
					onErr(err)
				}
			}
		}
	}()
	return nil
}
