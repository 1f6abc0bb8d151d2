package dedup

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local claim store for single-instance
// deployments. Expired claims are swept lazily on each call.
type MemoryStore struct {
	mu      sync.Mutex
	claimed map[string]time.Time
}

// NewMemoryStore creates an empty in-memory claim store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		claimed: make(map[string]time.Time),
	}
}

// Claim marks the key as seen. Returns false if the key was already
// claimed and its TTL has not elapsed.
func (s *MemoryStore) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, expires := range s.claimed {
		if now.After(expires) {
			delete(s.claimed, k)
		}
	}

	if expires, ok := s.claimed[key]; ok && now.Before(expires) {
		return false, nil
	}
	s.claimed[key] = now.Add(ttl)
	return true, nil
}
