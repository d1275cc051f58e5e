package memory

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// ObjectStore is an in-process blob store. Its URLs are not retrievable over
// the network; it exists for local runs and tests.
type ObjectStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	types   map[string]string
}

func NewObjectStore() *ObjectStore {
	return &ObjectStore{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (s *ObjectStore) Upload(_ context.Context, key string, r io.Reader, contentType string) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = b
	s.types[key] = contentType
	return "mem://" + key, nil
}

func (s *ObjectStore) PresignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("mem://%s?expires=%d", key, int64(ttl.Seconds())), nil
}

func (s *ObjectStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	delete(s.types, key)
	return nil
}

// Has reports whether key is stored.
func (s *ObjectStore) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok
}
