// Package blob stores media payloads (camera frames) by relative path.
// Events carry blob paths, never raw bytes; the relay serves them back
// through the media endpoint.
package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
)

// ErrNotFound is returned by Get for paths that were never stored.
var ErrNotFound = errors.New("blob: not found")

// Store persists opaque payloads under slash-separated relative paths
// like "frames/ev-abc123.jpg".
type Store interface {
	Put(ctx context.Context, path string, data []byte) error
	Get(ctx context.Context, path string) ([]byte, error)
}

// FS stores blobs under a root directory on local disk.
type FS struct {
	root string
}

var _ Store = (*FS)(nil)

func NewFS(root string) (*FS, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root %s: %w", root, err)
	}
	return &FS{root: root}, nil
}

func (f *FS) Put(ctx context.Context, p string, data []byte) error {
	full, err := f.resolve(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create blob dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("write blob %s: %w", p, err)
	}
	return nil
}

func (f *FS) Get(ctx context.Context, p string) ([]byte, error) {
	full, err := f.resolve(p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", p, err)
	}
	return data, nil
}

// resolve maps a blob path to a location under root. Rooting the path at "/"
// before cleaning collapses any ".." segments, so callers cannot escape the
// blob directory.
func (f *FS) resolve(p string) (string, error) {
	cleaned := path.Clean("/" + p)
	if cleaned == "/" {
		return "", fmt.Errorf("empty blob path")
	}
	return filepath.Join(f.root, filepath.FromSlash(cleaned[1:])), nil
}
