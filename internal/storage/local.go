package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalStore keeps artifacts below a root directory.
type LocalStore struct {
	root string
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to prepare storage directory: %w", err)
	}
	return &LocalStore{root: filepath.Clean(root)}, nil
}

// Put writes through a temporary file in the destination directory and
// renames it into place, so readers never see partial artifacts.
func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader) (string, error) {
	finalPath, err := s.path(key)
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(finalPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to prepare artifact directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, filepath.Base(finalPath)+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp artifact: %w", err)
	}
	tempPath := tempFile.Name()
	cleanup := func() { _ = os.Remove(tempPath) }

	if _, err := io.Copy(tempFile, &contextReader{ctx: ctx, r: r}); err != nil {
		_ = tempFile.Close()
		cleanup()
		return "", fmt.Errorf("failed to write artifact %s: %w", key, err)
	}
	if err := tempFile.Close(); err != nil {
		cleanup()
		return "", fmt.Errorf("failed to close artifact %s: %w", key, err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		cleanup()
		return "", fmt.Errorf("failed to finalize artifact %s: %w", key, err)
	}
	return finalPath, nil
}

func (s *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, key)
		}
		return nil, fmt.Errorf("failed to open artifact %s: %w", key, err)
	}
	return f, nil
}

func (s *LocalStore) path(key string) (string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", fmt.Errorf("%w: %q", err, key)
	}
	return filepath.Join(s.root, filepath.FromSlash(cleaned)), nil
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
