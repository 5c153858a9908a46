package extension

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func TestRegisterKeepsFirstDefinition(t *testing.T) {
	r := New()
	var calls []string
	first := func(context.Context, *html.Node, any) { calls = append(calls, "first") }
	second := func(context.Context, *html.Node, any) { calls = append(calls, "second") }

	require.NoError(t, r.Register("clock", first))
	err := r.Register("clock", second)
	require.ErrorIs(t, err, ErrDuplicateExtension)
	assert.Contains(t, err.Error(), `"clock"`)

	f, ok := r.Lookup("clock")
	require.True(t, ok)
	f(context.Background(), nil, nil)
	assert.Equal(t, []string{"first"}, calls)
	assert.Equal(t, 1, r.Len())
}

func TestRegisterNilFactoryIsNoop(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("", nil))

	f, ok := r.Lookup("")
	require.True(t, ok)
	require.NotNil(t, f)
	assert.NotPanics(t, func() { f(context.Background(), nil, "") })
}

func TestUnregister(t *testing.T) {
	r := New()
	require.ErrorIs(t, r.Unregister("missing"), ErrUnknownExtension)

	require.NoError(t, r.Register("a", nil))
	require.NoError(t, r.Register("b", nil))
	assert.Equal(t, []string{"a", "b"}, r.Names())

	require.NoError(t, r.Unregister("a"))
	assert.False(t, r.Has("a"))
	assert.True(t, r.Has("b"))

	// a removed name can be declared again
	require.NoError(t, r.Register("a", nil))
}
