package dedupe

import (
	"context"
	"sync"
	"time"
)

// sweepEvery bounds how often the memory store walks its map to drop
// expired entries.
const sweepEvery = 1000

// MemoryStore keeps seen IDs in a mutex-guarded map. State lives only
// as long as the process; this is the default driver.
type MemoryStore struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	ttl     time.Duration
	writes  int
	nowFunc func() time.Time
}

// NewMemoryStore returns an empty in-memory store. A zero ttl disables
// expiry; growth is then bounded only by process lifetime, which the
// expected deployment accepts.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		seen:    make(map[string]time.Time),
		ttl:     ttl,
		nowFunc: time.Now,
	}
}

// IsNew reports whether id has not been marked, treating expired marks
// as absent.
func (s *MemoryStore) IsNew(_ context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	at, ok := s.seen[id]
	if !ok {
		return true, nil
	}
	if s.expired(at) {
		delete(s.seen, id)
		return true, nil
	}
	return false, nil
}

// MarkSeen records id at the current time.
func (s *MemoryStore) MarkSeen(_ context.Context, id string) error {
	if id == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seen[id] = s.nowFunc()
	s.writes++
	if s.ttl > 0 && s.writes%sweepEvery == 0 {
		s.sweepLocked()
	}
	return nil
}

// Len returns the number of live entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// Close is a no-op for the memory driver.
func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) expired(at time.Time) bool {
	return s.ttl > 0 && s.nowFunc().Sub(at) > s.ttl
}

func (s *MemoryStore) sweepLocked() {
	for id, at := range s.seen {
		if s.expired(at) {
			delete(s.seen, id)
		}
	}
}
