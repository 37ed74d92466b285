package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jonathan/boot-release/internal/types"
)

// DiskStore keeps artifacts as flat files in a run-scoped directory.
// Write-once is enforced by the filesystem (O_EXCL).
type DiskStore struct {
	dir string
}

// NewDiskStore creates the directory if needed and returns a store rooted there
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &StoreError{Message: fmt.Sprintf("failed to create artifact directory %s", dir), Cause: err}
	}
	return &DiskStore{dir: dir}, nil
}

// Dir returns the directory backing the store
func (s *DiskStore) Dir() string {
	return s.dir
}

// Put implements Store
func (s *DiskStore) Put(_ context.Context, key string, data []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}

	path := filepath.Join(s.dir, key)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0755)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return &DuplicateKeyError{Key: key}
		}
		return &StoreError{Message: fmt.Sprintf("failed to create %s", path), Cause: err}
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return &StoreError{Message: fmt.Sprintf("failed to write %s", path), Cause: err}
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return &StoreError{Message: fmt.Sprintf("failed to close %s", path), Cause: err}
	}
	return nil
}

// Get implements Store
func (s *DiskStore) Get(_ context.Context, key string) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, &NotFoundError{Key: key}
	}

	data, err := os.ReadFile(filepath.Join(s.dir, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Key: key}
		}
		return nil, &StoreError{Message: fmt.Sprintf("failed to read %s", key), Cause: err}
	}
	return data, nil
}

// List implements Store
func (s *DiskStore) List(ctx context.Context) ([]types.Artifact, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, &StoreError{Message: fmt.Sprintf("failed to list %s", s.dir), Cause: err}
	}

	list := make([]types.Artifact, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		data, err := s.Get(ctx, entry.Name())
		if err != nil {
			return nil, err
		}
		list = append(list, types.NewArtifact(entry.Name(), data))
	}
	sortArtifacts(list)
	return list, nil
}
