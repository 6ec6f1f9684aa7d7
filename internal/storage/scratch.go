package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const workspacePrefix = "req-"

// Scratch hands out per-request workspaces under one transient directory.
// Each workspace is a directory named after a fresh UUID, so concurrent
// requests never share a path and need no locking.
type Scratch struct {
	dir string
}

// NewScratch creates the scratch directory if needed.
func NewScratch(dir string) (*Scratch, error) {
	if dir == "" {
		return nil, errors.New("scratch directory not configured")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &Scratch{dir: dir}, nil
}

// Dir returns the scratch directory path.
func (s *Scratch) Dir() string { return s.dir }

// Open creates a new empty workspace. The caller must Remove it.
func (s *Scratch) Open() (*Workspace, error) {
	id := uuid.New().String()
	path := filepath.Join(s.dir, workspacePrefix+id)
	if err := os.Mkdir(path, 0o700); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{id: id, dir: path}, nil
}

// Workspace is a private directory holding one request's temporary artifacts.
type Workspace struct {
	id  string
	dir string
}

func (w *Workspace) ID() string  { return w.id }
func (w *Workspace) Dir() string { return w.dir }

// Path returns the absolute path of a file inside the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, filepath.Base(name))
}

// Write stores data under name and returns its path.
func (w *Workspace) Write(name string, data []byte) (string, error) {
	path := w.Path(name)

	// Atomic write: temp file + rename
	tmp, err := os.CreateTemp(w.dir, ".artifact-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("rename: %w", err)
	}
	return path, nil
}

// Remove deletes the workspace and everything in it. Safe to call more than once.
func (w *Workspace) Remove() error {
	if err := os.RemoveAll(w.dir); err != nil {
		return fmt.Errorf("remove workspace %s: %w", w.id, err)
	}
	return nil
}

// isWorkspace reports whether a directory entry name belongs to a workspace.
func isWorkspace(name string) bool {
	return strings.HasPrefix(name, workspacePrefix)
}
