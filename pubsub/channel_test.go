package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenOverwrites(t *testing.T) {
	c := NewChannel()
	var first, second []any
	c.Listen("tick", func(_ context.Context, v any) { first = append(first, v) })
	c.Listen("tick", func(_ context.Context, v any) { second = append(second, v) })

	require.NoError(t, c.Push(context.Background(), "tick", 42))
	assert.Empty(t, first)
	assert.Equal(t, []any{42}, second)
}

func TestPushWithoutListener(t *testing.T) {
	c := NewChannel()
	err := c.Push(context.Background(), "tock", 42)
	require.ErrorIs(t, err, ErrUnknownListener)
	assert.Contains(t, err.Error(), `"tock"`)
	assert.Empty(t, c.Names())
}

func TestPushPassesContextAndDefaultsValue(t *testing.T) {
	type key struct{}
	c := NewChannel()

	var got any
	var gotCtx context.Context
	c.Listen("", func(ctx context.Context, v any) {
		gotCtx = ctx
		got = v
	})

	ctx := context.WithValue(context.Background(), key{}, "pusher")
	require.NoError(t, c.Push(ctx, "", nil))
	assert.Equal(t, "", got)
	assert.Equal(t, "pusher", gotCtx.Value(key{}))
}

func TestListenerMayReenterChannel(t *testing.T) {
	c := NewChannel()
	var got []any
	c.Listen("b", func(_ context.Context, v any) { got = append(got, v) })
	c.Listen("a", func(ctx context.Context, v any) {
		c.Listen("c", nil)
		_ = c.Push(ctx, "b", v)
	})

	require.NoError(t, c.Push(context.Background(), "a", "x"))
	assert.Equal(t, []any{"x"}, got)
	assert.Equal(t, []string{"a", "b", "c"}, c.Names())
	assert.True(t, c.Has("c"))
	require.NoError(t, c.Push(context.Background(), "c", 1))
}
