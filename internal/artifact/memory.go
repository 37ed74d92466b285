package artifact

import (
	"context"
	"sync"

	"github.com/jonathan/boot-release/internal/types"
)

// MemoryStore keeps artifacts in process memory
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string][]byte)}
}

// Put implements Store
func (s *MemoryStore) Put(_ context.Context, key string, data []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[key]; exists {
		return &DuplicateKeyError{Key: key}
	}
	// Copy so later mutation of the caller's slice can't change stored bytes
	s.items[key] = append([]byte(nil), data...)
	return nil
}

// Get implements Store
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.items[key]
	if !ok {
		return nil, &NotFoundError{Key: key}
	}
	return append([]byte(nil), data...), nil
}

// List implements Store
func (s *MemoryStore) List(_ context.Context) ([]types.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]types.Artifact, 0, len(s.items))
	for key, data := range s.items {
		list = append(list, types.NewArtifact(key, append([]byte(nil), data...)))
	}
	sortArtifacts(list)
	return list, nil
}
