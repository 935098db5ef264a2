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

// FileStore implements ObjectStore on the local filesystem. Buckets map
// to directories under the root. Used by the local runner and tests.
type FileStore struct {
	root string
}

// NewFileStore creates a filesystem-backed object store rooted at dir
func NewFileStore(dir string) *FileStore {
	return &FileStore{root: dir}
}

// Get reads an object from disk
func (s *FileStore) Get(_ context.Context, bucket, key string) ([]byte, error) {
	path := filepath.Join(s.root, bucket, filepath.FromSlash(key))

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return data, nil
}

// Put writes an object to disk, creating parent directories as needed
func (s *FileStore) Put(_ context.Context, bucket, key string, body io.Reader) error {
	path := filepath.Join(s.root, bucket, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, body); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}
