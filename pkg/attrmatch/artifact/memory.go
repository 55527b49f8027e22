package artifact

import (
	"context"
	"fmt"
	"sync"

	"github.com/cognicore/attrmatch/pkg/attrmatch/internalerr"
)

// MemoryStore keeps encoded bundles in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	bundles map[string][]byte
	latest  string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bundles: make(map[string][]byte)}
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, b *Bundle) error {
	data, err := b.Encode()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bundles[b.RunID] = data
	s.latest = b.RunID
	return nil
}

// Latest implements Store.
func (s *MemoryStore) Latest(ctx context.Context) (*Bundle, error) {
	s.mu.RLock()
	runID := s.latest
	s.mu.RUnlock()
	if runID == "" {
		return nil, fmt.Errorf("latest bundle: %w", internalerr.ErrNotFound)
	}
	return s.Get(ctx, runID)
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, runID string) (*Bundle, error) {
	s.mu.RLock()
	data, ok := s.bundles[runID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("bundle %s: %w", runID, internalerr.ErrNotFound)
	}
	return Decode(data)
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
