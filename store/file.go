package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	gamerhub "github.com/gamerhub/gamerhub-go"
	"gopkg.in/yaml.v3"
)

// File persists the session as a yaml file. Writes go through a temp file
// and rename so a crash mid-write never leaves a half-written session.
type File struct {
	path string
	mu   sync.Mutex
}

// NewFile creates a file-backed store at the given path. The parent
// directory is created if missing.
func NewFile(path string) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("session file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating session directory: %w", err)
	}
	return &File{path: path}, nil
}

// Restore reads the persisted session. A missing file, or a file without a
// token, means no session is stored.
func (f *File) Restore() (*gamerhub.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading session file: %w", err)
	}

	var session gamerhub.Session
	if err := yaml.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("parsing session file: %w", err)
	}
	if session.Token == "" {
		return nil, nil
	}
	return &session, nil
}

// Persist overwrites the session file entirely.
func (f *File) Persist(session *gamerhub.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if session == nil {
		return f.clearLocked()
	}

	data, err := yaml.Marshal(session)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing session file: %w", err)
	}
	return nil
}

// Clear removes the session file; a subsequent Restore returns nil.
func (f *File) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clearLocked()
}

func (f *File) clearLocked() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing session file: %w", err)
	}
	return nil
}
