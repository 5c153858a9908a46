package meta

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithDoesNotMutateParent(t *testing.T) {
	parent := With(context.Background(), KeyWidget, "clock")
	child := With(parent, KeyWidget, "calendar")

	assert.Equal(t, "clock", Widget(parent))
	assert.Equal(t, "calendar", Widget(child))
}

func TestGetTyped(t *testing.T) {
	ctx := With(context.Background(), KeyMessageID, "abc")

	id, err := Get[string](ctx, KeyMessageID)
	require.NoError(t, err)
	assert.Equal(t, "abc", id)

	_, err = Get[int](ctx, KeyMessageID)
	assert.ErrorContains(t, err, "has type string")

	_, err = Get[string](ctx, "missing")
	assert.ErrorContains(t, err, "not found")

	assert.Panics(t, func() { MustGet[int](ctx, KeyMessageID) })
}

func TestDefaults(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", Widget(ctx))
	assert.Equal(t, SourceLocal, Source(ctx))
	assert.Equal(t, SourceGRPC, Source(With(ctx, KeySource, SourceGRPC)))
}
