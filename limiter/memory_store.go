package limiter

import (
	"context"
	"sync"
	"time"
)

// memoryStore keeps budgets for a single process.
type memoryStore struct {
	mu      sync.Mutex
	buckets map[string]bucket
	now     func() time.Time
}

// NewMemoryStore returns a Store whose budgets are not shared between processes.
func NewMemoryStore() Store {
	return newMemoryStore(time.Now)
}

func newMemoryStore(now func() time.Time) *memoryStore {
	return &memoryStore{
		buckets: make(map[string]bucket),
		now:     now,
	}
}

func (s *memoryStore) Allow(ctx context.Context, key string, rate float64, period float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	b, ok := s.buckets[key]
	if !ok {
		// a fresh bucket starts full
		b = bucket{Tokens: rate, Updated: now}
	}

	b.Tokens = min(rate, b.Tokens+now.Sub(b.Updated).Seconds()*(rate/period))
	b.Updated = now

	allowed := b.Tokens >= 1
	if allowed {
		b.Tokens--
	}
	s.buckets[key] = b
	return allowed, nil
}
