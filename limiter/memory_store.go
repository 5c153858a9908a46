package limiter

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// memoryStore implements the Store interface using an in-memory map.
type memoryStore struct {
	mu        sync.Mutex
	now       func() time.Time
	buckets   map[string]bucket
	lastSweep time.Time
}

// sweepInterval is how often idle buckets are looked for.
const sweepInterval = time.Minute

// NewMemoryStore creates a new in-memory rate limit store.
func NewMemoryStore() Store {
	return newMemoryStore(time.Now)
}

func newMemoryStore(now func() time.Time) *memoryStore {
	return &memoryStore{
		now:       now,
		buckets:   make(map[string]bucket),
		lastSweep: now(),
	}
}

// Allow implements the Store interface for memory storage.
func (s *memoryStore) Allow(_ context.Context, key string, rate float64, period float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= sweepInterval {
		s.sweep(now)
	}

	b, exists := s.buckets[key]
	if !exists {
		// first push for this key consumes one token
		s.buckets[key] = bucket{Allowance: rate - 1.0, LastCheck: now, Period: period}
		return true, nil
	}

	b.Allowance += now.Sub(b.LastCheck).Seconds() * (rate / period)
	b.LastCheck = now
	b.Period = period
	if b.Allowance > rate {
		b.Allowance = rate // clamp to burst
	}

	allowed := b.Allowance >= 1.0
	if allowed {
		b.Allowance -= 1.0
	} else {
		log.Debug().Str("key", key).Float64("allowance", b.Allowance).Msg("rate limit exceeded")
	}
	s.buckets[key] = b
	return allowed, nil
}

// sweep drops buckets idle for a full period. They have refilled
// completely, so a fresh bucket behaves the same.
func (s *memoryStore) sweep(now time.Time) {
	for key, b := range s.buckets {
		if now.Sub(b.LastCheck).Seconds() >= b.Period {
			delete(s.buckets, key)
		}
	}
	s.lastSweep = now
}
