package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrExtension is returned for uploads that are not .csv files. Rejecting
// them up front keeps parse errors from ever reaching the core.
var ErrExtension = errors.New("storage: only .csv files are allowed")

// Local stores uploaded files on the local filesystem under unique names, so
// two uploads with the same original filename never collide.
type Local struct {
	root string
}

// NewLocal builds a store rooted at dir.
func NewLocal(dir string) *Local {
	return &Local{root: dir}
}

// Save validates the extension and writes the content under a fresh
// uuid-based name, returning the stored path.
func (l *Local) Save(originalName string, content io.Reader) (string, error) {
	if !strings.EqualFold(filepath.Ext(originalName), ".csv") {
		return "", ErrExtension
	}

	if err := os.MkdirAll(l.root, 0o755); err != nil {
		return "", fmt.Errorf("storage: create root dir: %w", err)
	}

	path := filepath.Join(l.root, uuid.NewString()+".csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("storage: create file: %w", err)
	}

	if _, err := io.Copy(f, content); err != nil {
		f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("storage: close file: %w", err)
	}
	return path, nil
}

// Open returns the stored content for reading.
func (l *Local) Open(_ context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	return f, nil
}
