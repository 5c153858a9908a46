package pubsub

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolink/widgets/limiter"
	"github.com/toolink/widgets/meta"
)

type recordingPoster struct {
	posted int
}

func (p *recordingPoster) Post(_ context.Context, fn func()) error {
	p.posted++
	fn()
	return nil
}

func offlineClient() *redis.Client {
	// never dialled by these tests
	return redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
}

func encode(t *testing.T, event string, value any) []byte {
	t.Helper()
	env, err := NewEnvelope(event, value)
	require.NoError(t, err)
	data, err := json.Marshal(env)
	require.NoError(t, err)
	return data
}

func TestRelayHandleDeliversThroughPoster(t *testing.T) {
	ch := NewChannel()
	var got any
	var source, id string
	ch.Listen("tick", func(ctx context.Context, v any) {
		got = v
		source = meta.Source(ctx)
		id, _ = meta.Get[string](ctx, meta.KeyMessageID)
	})

	poster := &recordingPoster{}
	r := NewRedisRelay(offlineClient(), ch, WithPoster(poster))
	r.handle(context.Background(), r.ChannelName("tick"), encode(t, "tick", map[string]any{"n": 42}))

	assert.Equal(t, 1, poster.posted)
	assert.Equal(t, map[string]any{"n": float64(42)}, got)
	assert.Equal(t, meta.SourceRedis, source)
	assert.NotEmpty(t, id)
}

func TestRelayHandleDropsBadMessages(t *testing.T) {
	ch := NewChannel()
	calls := 0
	ch.Listen("tick", func(context.Context, any) { calls++ })

	r := NewRedisRelay(offlineClient(), ch, WithChannelPrefix("app:"))
	ctx := context.Background()

	r.handle(ctx, "app:tick", []byte("not json"))
	r.handle(ctx, "app:tick", []byte(`{"id":"1"}`))
	r.handle(ctx, "app:other", encode(t, "tick", 1))
	r.handle(ctx, "app:tock", encode(t, "tock", 1)) // no listener: dropped silently
	assert.Equal(t, 0, calls)

	r.handle(ctx, "app:tick", encode(t, "tick", 1))
	assert.Equal(t, 1, calls)
}

func TestRelayHandleRespectsLimiter(t *testing.T) {
	cfg := &limiter.Config{Rules: []limiter.Rule{{Event: "tick", Rate: 1, Period: 3600}}}
	require.NoError(t, cfg.ValidateAndPrepare())

	ch := NewChannel()
	calls := 0
	ch.Listen("tick", func(context.Context, any) { calls++ })

	r := NewRedisRelay(offlineClient(), ch, WithRelayLimiter(limiter.NewRateLimiter(cfg, limiter.NewMemoryStore())))
	for i := 0; i < 3; i++ {
		r.handle(context.Background(), r.ChannelName("tick"), encode(t, "tick", i))
	}
	assert.Equal(t, 1, calls)
}

func TestRelayRoundTrip(t *testing.T) {
	addr := os.Getenv("WIDGETS_REDIS_ADDR")
	if addr == "" {
		t.Skip("WIDGETS_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ch := NewChannel()
	got := make(chan any, 1)
	ch.Listen("tick", func(_ context.Context, v any) {
		select {
		case got <- v:
		default:
		}
	})

	prefix := "widgets:test:" + time.Now().Format("150405.000000") + ":"
	r := NewRedisRelay(client, ch, WithChannelPrefix(prefix))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	require.Eventually(t, func() bool {
		_ = r.Publish(ctx, "tick", "hello")
		select {
		case v := <-got:
			return v == "hello"
		default:
			return false
		}
	}, 4*time.Second, 100*time.Millisecond)
}
