package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Store keeps the per-request artifacts (upload, heatmap, report) under one
// directory. File names are namespaced by the request token, so there is no
// cross-request contention.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) Dir() string { return s.dir }

// SaveUpload writes the uploaded image as <token>.jpg and returns its path.
func (s *Store) SaveUpload(r io.Reader, token string) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}
	path := filepath.Join(s.dir, token+".jpg")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	return path, nil
}

func (s *Store) HeatmapPath(token string) string {
	return filepath.Join(s.dir, token+"_heat.jpg")
}

// Resolve maps a client-supplied file name to a path inside the store. The
// name is reduced to its base to block path traversal; ok reports whether the
// file exists.
func (s *Store) Resolve(filename string) (path string, ok bool) {
	name := filepath.Base(filename)
	if name == "." || name == string(filepath.Separator) {
		return "", false
	}
	path = filepath.Join(s.dir, name)
	_, err := os.Stat(path)
	return path, err == nil
}

// Remove deletes an artifact if present. Used to clean up after aborted
// requests.
func (s *Store) Remove(path string) {
	if path != "" {
		os.Remove(path)
	}
}
