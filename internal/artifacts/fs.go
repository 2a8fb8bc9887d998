package artifacts

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FSBackend stores artifact bytes under a root directory.
type FSBackend struct {
	root string
}

// NewFSBackend creates the root directory if needed.
func NewFSBackend(root string) (*FSBackend, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifacts dir: %w", err)
	}
	return &FSBackend{root: root}, nil
}

// resolve maps a key to an absolute path. Keys are cleaned against an
// absolute base first so ".." segments cannot escape the root.
func (f *FSBackend) resolve(key string) string {
	clean := strings.TrimPrefix(path.Clean("/"+key), "/")
	return filepath.Join(f.root, filepath.FromSlash(clean))
}

// Put writes the bytes exclusively; an existing file is never replaced.
func (f *FSBackend) Put(ctx context.Context, key string, data []byte, contentType string) error {
	p := f.resolve(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create artifact dir: %w", err)
	}
	fd, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create artifact file: %w", err)
	}
	if _, err := fd.Write(data); err != nil {
		fd.Close()
		os.Remove(p)
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	return fd.Close()
}

func (f *FSBackend) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return os.Open(f.resolve(key))
}

func (f *FSBackend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(f.resolve(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
