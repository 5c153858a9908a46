package core

import (
	"context"

	"golang.org/x/net/html"

	"github.com/toolink/widgets/extension"
	"github.com/toolink/widgets/pubsub"
)

// Chain runs core operations one after another and keeps the first error.
// After an error the remaining calls are skipped.
//
//	err := c.Chain(ctx).
//		Extend("clock", clock).
//		Load("clock", params, body).
//		Err()
type Chain struct {
	ctx  context.Context
	core *Core
	err  error
}

// Chain starts a chain of operations on c using ctx for Load and Push.
func (c *Core) Chain(ctx context.Context) *Chain {
	return &Chain{ctx: ctx, core: c}
}

// Extend calls Core.Extend.
func (ch *Chain) Extend(name string, f extension.Factory) *Chain {
	if ch.err == nil {
		ch.err = ch.core.Extend(name, f)
	}
	return ch
}

// Load calls Core.Load.
func (ch *Chain) Load(name string, params any, parent *html.Node) *Chain {
	if ch.err == nil {
		ch.err = ch.core.Load(ch.ctx, name, params, parent)
	}
	return ch
}

// Remove calls Core.Remove.
func (ch *Chain) Remove(name string) *Chain {
	if ch.err == nil {
		ch.err = ch.core.Remove(name)
	}
	return ch
}

// Push calls Core.Push.
func (ch *Chain) Push(name string, value any) *Chain {
	if ch.err == nil {
		ch.err = ch.core.Push(ch.ctx, name, value)
	}
	return ch
}

// Listen calls Core.Listen.
func (ch *Chain) Listen(name string, l pubsub.Listener) *Chain {
	if ch.err == nil {
		ch.core.Listen(name, l)
	}
	return ch
}

// Core returns the core the chain operates on.
func (ch *Chain) Core() *Core { return ch.core }

// Err returns the first error of the chain.
func (ch *Chain) Err() error { return ch.err }
