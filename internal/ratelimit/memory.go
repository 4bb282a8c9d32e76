package ratelimit

import (
	"context"
	"sync"
	"time"
)

const sweepThreshold = 10000

type counter struct {
	count   int64
	resetAt time.Time
}

// MemoryStore keeps counters in process. Suitable for a single instance.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*counter
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[string]*counter), now: time.Now}
}

func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c, ok := s.counters[key]
	if !ok || !now.Before(c.resetAt) {
		if len(s.counters) >= sweepThreshold {
			s.sweep(now)
		}
		c = &counter{resetAt: now.Add(window)}
		s.counters[key] = c
	}
	c.count++
	return c.count, c.resetAt, nil
}

func (s *MemoryStore) sweep(now time.Time) {
	for k, c := range s.counters {
		if !now.Before(c.resetAt) {
			delete(s.counters, k)
		}
	}
}

func (s *MemoryStore) Reset(context.Context) error {
	s.mu.Lock()
	s.counters = make(map[string]*counter)
	s.mu.Unlock()
	return nil
}
