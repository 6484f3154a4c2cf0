// Package store keeps uploaded files in a single directory. The directory is
// the store: nothing is cached, every call goes to the filesystem.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

var (
	// ErrInvalidName is returned for names that are empty or would leave the root.
	ErrInvalidName = errors.New("invalid file name")
	// ErrExist is returned by Create when the name is taken.
	ErrExist = fs.ErrExist
	// ErrNotExist is returned when the named file is missing.
	ErrNotExist = fs.ErrNotExist
)

// StoredFile describes one file under the upload root.
type StoredFile struct {
	Name        string
	Size        int64
	ContentType string
}

// Store is a directory of uploaded files.
type Store struct {
	root string
}

// New returns a store rooted at dir. The directory must already exist.
func New(dir string) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("upload root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("upload root %s is not a directory", dir)
	}
	return &Store{root: dir}, nil
}

// Root returns the directory backing the store.
func (s *Store) Root() string { return s.root }

// MaxNameLen is the longest file name, in bytes, the store accepts.
const MaxNameLen = 255

// ValidName reports whether name is a plain file name inside the root that
// the filesystem can hold.
func ValidName(name string) bool {
	return plainName(name) && len(name) <= MaxNameLen
}

func plainName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}

// path resolves name under the root. A plain name too long to store cannot
// exist, so lookups report it as ErrNotExist.
func (s *Store) path(name string) (string, error) {
	if !plainName(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if len(name) > MaxNameLen {
		return "", fmt.Errorf("name longer than %d bytes: %w", MaxNameLen, ErrNotExist)
	}
	return filepath.Join(s.root, name), nil
}

// Stat returns the named file's metadata.
func (s *Store) Stat(name string) (StoredFile, error) {
	p, err := s.path(name)
	if err != nil {
		return StoredFile{}, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return StoredFile{}, err
	}
	if !info.Mode().IsRegular() {
		return StoredFile{}, fmt.Errorf("%s: %w", name, ErrNotExist)
	}
	return StoredFile{Name: name, Size: info.Size(), ContentType: ContentType(name)}, nil
}

// Exists reports whether the named file is present.
func (s *Store) Exists(name string) bool {
	_, err := s.Stat(name)
	return err == nil
}

// ReadFile returns the named file's content.
func (s *Store) ReadFile(name string) ([]byte, error) {
	if _, err := s.Stat(name); err != nil {
		return nil, err
	}
	p, _ := s.path(name)
	return os.ReadFile(p)
}

// Create writes a new file. It fails with ErrExist if the name is taken.
func (s *Store) Create(name string, content []byte) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	p, err := s.path(name)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		_ = os.Remove(p)
		return fmt.Errorf("write %s: %w", name, err)
	}
	return f.Close()
}

// Overwrite replaces the content of an existing file. It fails with
// ErrNotExist if there is nothing to replace.
func (s *Store) Overwrite(name string, content []byte) error {
	if _, err := s.Stat(name); err != nil {
		return err
	}
	p, _ := s.path(name)
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return err
	}
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	return f.Close()
}

// Remove deletes the named file.
func (s *Store) Remove(name string) error {
	if _, err := s.Stat(name); err != nil {
		return err
	}
	p, _ := s.path(name)
	return os.Remove(p)
}

// List returns every regular file in the root ordered by name.
func (s *Store) List() ([]StoredFile, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	files := make([]StoredFile, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		files = append(files, StoredFile{
			Name:        e.Name(),
			Size:        info.Size(),
			ContentType: ContentType(e.Name()),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Within joins a slash-separated relative path onto dir without letting it
// climb above dir.
func Within(dir, rel string) string {
	return filepath.Join(dir, filepath.FromSlash(path.Clean("/"+rel)))
}
