package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAndPrepare(t *testing.T) {
	cfg := &Config{Rules: []Rule{{Event: "tick", Rate: 1, Period: 1}}}
	require.NoError(t, cfg.ValidateAndPrepare())
	assert.Equal(t, StorageMemory, cfg.StorageType)
	assert.Equal(t, []string{LimitByEvent}, cfg.Rules[0].LimitBy)

	bad := []*Config{
		{StorageType: "disk"},
		{Rules: []Rule{{Event: "a", Rate: 0, Period: 1}}},
		{Rules: []Rule{{Event: "a", Rate: 1, Period: 0}}},
		{Rules: []Rule{{Event: "a", Rate: 1, Period: 1}, {Event: "a", Rate: 1, Period: 1}}},
		{Rules: []Rule{{Event: "(", IsRegex: true, Rate: 1, Period: 1}}},
		{Rules: []Rule{{Event: "a", Rate: 1, Period: 1, LimitBy: []string{"ip"}}}},
	}
	for _, c := range bad {
		assert.Error(t, c.ValidateAndPrepare())
	}
}

func TestLimitByEvent(t *testing.T) {
	cfg := &Config{Rules: []Rule{{Event: "^price\\.", IsRegex: true, Rate: 2, Period: 60}}}
	require.NoError(t, cfg.ValidateAndPrepare())

	now := time.Unix(1000, 0)
	store := newMemoryStore(func() time.Time { return now })
	rl := NewRateLimiter(cfg, store)
	ctx := context.Background()

	assert.False(t, rl.Limit(ctx, "price.eur", ""))
	assert.False(t, rl.Limit(ctx, "price.eur", ""))
	assert.True(t, rl.Limit(ctx, "price.eur", ""))
	assert.False(t, rl.Limit(ctx, "tick", ""), "unmatched events are never limited")

	now = now.Add(45 * time.Second)
	assert.False(t, rl.Limit(ctx, "price.eur", ""), "tokens refill over the period")
}

func TestLimitByPeer(t *testing.T) {
	cfg := &Config{Rules: []Rule{{Event: "tick", Rate: 1, Period: 60, LimitBy: []string{LimitByPeer}}}}
	require.NoError(t, cfg.ValidateAndPrepare())
	rl := NewRateLimiter(cfg, NewMemoryStore())
	ctx := context.Background()

	assert.False(t, rl.Limit(ctx, "tick", "10.0.0.1"))
	assert.True(t, rl.Limit(ctx, "tick", "10.0.0.1"))
	assert.False(t, rl.Limit(ctx, "tick", "10.0.0.2"))
	assert.False(t, rl.Limit(ctx, "tick", ""), "peer buckets are skipped without a peer")
}

func TestNilLimiterAllows(t *testing.T) {
	var rl *RateLimiter
	assert.False(t, rl.Limit(context.Background(), "tick", ""))
}

func TestMemoryStoreDropsIdleBuckets(t *testing.T) {
	now := time.Unix(1000, 0)
	store := newMemoryStore(func() time.Time { return now })
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		allowed, err := store.Allow(ctx, key, 1, 30)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	now = now.Add(40 * time.Second)
	_, err := store.Allow(ctx, "c", 1, 30)
	require.NoError(t, err)
	require.Len(t, store.buckets, 3)

	now = now.Add(25 * time.Second)
	allowed, err := store.Allow(ctx, "a", 1, 30)
	require.NoError(t, err)
	assert.True(t, allowed, "a pruned bucket starts full")
	assert.Len(t, store.buckets, 2, "idle a and b are dropped, a is recreated")
	assert.Contains(t, store.buckets, "c")
}
