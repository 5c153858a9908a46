package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/toolink/widgets/dom"
)

func TestChain(t *testing.T) {
	doc := dom.NewDocument()
	c := New(doc)

	var got any
	err := c.Chain(context.Background()).
		Extend("clock", func(_ context.Context, self *html.Node, params any) {
			dom.SetText(self, params.(string))
		}).
		Load("clock", "12:00", doc.Body()).
		Listen("tick", func(_ context.Context, v any) { got = v }).
		Push("tick", 42).
		Err()

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, "12:00", dom.Text(doc.GetElementByID("core-clock")))
}

func TestChainStopsAtFirstError(t *testing.T) {
	doc := dom.NewDocument()
	c := New(doc, WithErrors(true))

	loaded := false
	ch := c.Chain(context.Background()).
		Load("missing", nil, doc.Body()).
		Extend("late", func(context.Context, *html.Node, any) { loaded = true }).
		Load("late", nil, nil)

	assert.ErrorIs(t, ch.Err(), ErrUnknownExtension)
	assert.False(t, loaded)
	assert.False(t, ch.Core().Registry().Has("late"))
}
