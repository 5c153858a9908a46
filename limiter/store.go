package limiter

import (
	"context"
	"time"
)

// Store defines the interface for storing and checking rate limit states.
type Store interface {
	// Allow checks if a push identified by key is allowed (token bucket).
	// rate: max tokens (burst)
	// period: seconds to regenerate 'rate' tokens
	// It must update the internal state atomically.
	Allow(ctx context.Context, key string, rate float64, period float64) (bool, error)
}

// bucket holds the state for a specific key in the memory store.
type bucket struct {
	Allowance float64   // current number of tokens
	LastCheck time.Time // timestamp of the last check
	Period    float64   // seconds to refill the bucket completely
}
