package ratelimit

import (
	"context"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps buckets in process memory. Each server instance has its
// own view, so with N instances the effective limit is N times the configured
// one. Use RedisStore when running more than one instance.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*Bucket
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		buckets: make(map[string]*Bucket),
	}
}

func (s *MemoryStore) Hit(_ context.Context, key string, window time.Duration, now time.Time) (Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok || !now.Before(b.ResetAt) {
		b = &Bucket{Count: 1, ResetAt: now.Add(window)}
		s.buckets[key] = b
		return *b, nil
	}
	b.Count++
	return *b, nil
}

// Sweep drops buckets whose window has elapsed and returns how many went.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, b := range s.buckets {
		if !now.Before(b.ResetAt) {
			delete(s.buckets, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of tracked buckets.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// StartSweeper sweeps expired buckets every interval until ctx is done.
func (s *MemoryStore) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.Sweep(now)
			}
		}
	}()
}
