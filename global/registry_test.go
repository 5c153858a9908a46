package global

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolink/widgets/core"
	"github.com/toolink/widgets/dom"
)

func TestSetCore(t *testing.T) {
	def := GetCore()
	require.NotNil(t, def)
	require.NotNil(t, def.Document().Body())

	c := core.New(dom.NewDocument())
	SetCore(c)
	t.Cleanup(func() { SetCore(def) })
	assert.Same(t, c, GetCore())
}
