package dedupe

import (
	"context"
	"sync"
	"time"
)

// memoryStore implements Store with an expiring in-process map.
type memoryStore struct {
	mu        sync.Mutex
	seen      map[string]time.Time // id -> expiry
	ttl       time.Duration
	now       func() time.Time
	lastSweep time.Time
}

func newMemoryStore(ttl time.Duration, now func() time.Time) *memoryStore {
	return &memoryStore{
		seen:      make(map[string]time.Time),
		ttl:       ttl,
		now:       now,
		lastSweep: now(),
	}
}

// Claim implements Store.
func (s *memoryStore) Claim(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= s.ttl {
		for k, exp := range s.seen {
			if !now.Before(exp) {
				delete(s.seen, k)
			}
		}
		s.lastSweep = now
	}

	if exp, ok := s.seen[id]; ok && now.Before(exp) {
		return false, nil
	}
	s.seen[id] = now.Add(s.ttl)
	return true, nil
}

// Close implements Store.
func (s *memoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = make(map[string]time.Time)
	return nil
}

func (s *memoryStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
