package store

import (
	"context"
	"os"
	"sort"
	"sync"
)

// MemStore is an in-memory BlobStore for tests and dry runs. It mirrors the
// real store's idempotent overwrite semantics.
type MemStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

// NewMem creates an empty MemStore.
func NewMem() *MemStore {
	return &MemStore{objects: make(map[string][]byte)}
}

func (s *MemStore) Put(ctx context.Context, key, localPath string) error {
	if err := ctx.Err(); err != nil {
		return &UploadError{Reason: ReasonTransportFailure, Key: key, Err: err}
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return &UploadError{Reason: ReasonTransportFailure, Key: key, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

// Get returns a stored object's content.
func (s *MemStore) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	return data, ok
}

// Keys returns all stored keys, sorted.
func (s *MemStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of stored objects.
func (s *MemStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
