// Package core ties the widget registry, the push/listen channel and the
// document together.
//
// A host creates one Core at startup and hands it to whatever needs to
// declare, load or remove widgets. Widgets talk to each other only through
// Push and Listen, so none of them needs a reference to another.
//
// Core is not safe for concurrent use. Drive it from one goroutine; code
// running elsewhere should post work through a loop.Loop.
package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"

	"github.com/toolink/widgets/dom"
	"github.com/toolink/widgets/extension"
	"github.com/toolink/widgets/meta"
	"github.com/toolink/widgets/pubsub"
)

// Errors reported by the core. The first three are only returned when the
// core was created WithErrors(true); ErrUnknownElement is always returned.
var (
	ErrDuplicateExtension = extension.ErrDuplicateExtension
	ErrUnknownExtension   = extension.ErrUnknownExtension
	ErrUnknownListener    = pubsub.ErrUnknownListener
	ErrUnknownElement     = dom.ErrUnknownElement
)

// Core is the widget registry and message channel of one host.
type Core struct {
	doc      *dom.Document
	registry *extension.Registry
	channel  *pubsub.Channel
	opts     options
	metrics  *metrics
}

// New creates a Core that mounts widgets into doc.
func New(doc *dom.Document, opts ...Option) *Core {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if doc == nil {
		doc = dom.NewDocument()
	}
	c := &Core{
		doc:      doc,
		registry: extension.New(),
		channel:  pubsub.NewChannel(),
		opts:     o,
		metrics:  newMetrics(o.registerer),
	}
	log.Info().
		Str("wrapper_tag", o.wrapperTag).
		Str("id_prefix", o.idPrefix).
		Bool("errors", o.errors).
		Msg("widget core created")
	return c
}

// Document returns the document widgets are mounted into.
func (c *Core) Document() *dom.Document { return c.doc }

// Registry returns the extension store. Its methods report every missing
// or duplicate name regardless of the core's error setting.
func (c *Core) Registry() *extension.Registry { return c.registry }

// Channel returns the listener store. Its Push reports a missing listener
// regardless of the core's error setting.
func (c *Core) Channel() *pubsub.Channel { return c.channel }

// ElementID returns the id of the wrapper element created for name.
func (c *Core) ElementID(name string) string {
	return c.opts.idPrefix + name
}

// Extend declares a widget. Nothing runs until Load.
// A name can be declared once; a second declaration is ignored and the
// first factory kept. A nil factory declares a widget that does nothing.
func (c *Core) Extend(name string, f extension.Factory) error {
	err := c.registry.Register(name, f)
	return c.report("extend", name, err)
}

// Load runs the factory declared under name.
//
// If parent is non-nil, a new wrapper element with id ElementID(name) is
// appended as parent's last child and passed to the factory as self;
// otherwise self is nil. A nil params is passed as "". The factory's ctx
// carries the widget name and element (see package meta).
// Every call creates a fresh element and calls the factory again.
func (c *Core) Load(ctx context.Context, name string, params any, parent *html.Node) error {
	f, ok := c.registry.Lookup(name)
	if !ok {
		return c.report("load", name, fmt.Errorf("%w: %q", extension.ErrUnknownExtension, name))
	}
	if params == nil {
		params = ""
	}

	var self *html.Node
	if parent != nil {
		self = c.doc.CreateElement(c.opts.wrapperTag)
		dom.SetAttribute(self, "id", c.ElementID(name))
		parent.AppendChild(self)
	}

	md := meta.FromContext(ctx).Clone()
	md.Set(meta.KeyWidget, name)
	if self != nil {
		md.Set(meta.KeyElement, self)
	}
	log.Debug().Str("extension", name).Bool("mounted", self != nil).Msg("loading extension")

	f(md.WithContext(ctx), self, params)
	return c.report("load", name, nil)
}

// Remove detaches the widget's wrapper element from the document and
// forgets the declaration.
//
// The element is looked up by ElementID(name) in the document. If it is
// not there (the widget was loaded without a parent, or the element was
// removed by someone else) Remove returns ErrUnknownElement, whatever the
// error setting, and the declaration is kept.
func (c *Core) Remove(name string) error {
	if !c.registry.Has(name) {
		return c.report("remove", name, fmt.Errorf("%w: %q", extension.ErrUnknownExtension, name))
	}

	id := c.ElementID(name)
	el := c.doc.GetElementByID(id)
	if err := dom.Detach(el); err != nil {
		if errors.Is(err, dom.ErrNoParent) {
			err = dom.ErrUnknownElement
		}
		return c.report("remove", name, fmt.Errorf("%w: #%s", err, id))
	}

	if err := c.registry.Unregister(name); err != nil {
		return c.report("remove", name, err)
	}
	log.Debug().Str("extension", name).Str("element_id", id).Msg("extension removed")
	return c.report("remove", name, nil)
}

// Push calls the listener of name with value, synchronously.
// The listener receives ctx as is. A nil value is delivered as "".
// Without a listener nothing happens.
func (c *Core) Push(ctx context.Context, name string, value any) error {
	err := c.channel.Push(ctx, name, value)
	return c.report("push", name, err)
}

// Listen makes l the listener of name, replacing any previous listener.
func (c *Core) Listen(name string, l pubsub.Listener) {
	c.channel.Listen(name, l)
	c.metrics.observe("listen", nil)
}

// Has reports whether something listens on name.
func (c *Core) Has(name string) bool {
	return c.channel.Has(name)
}

// report records the outcome of op and applies the error setting.
func (c *Core) report(op, name string, err error) error {
	c.metrics.observe(op, err)
	if err == nil {
		return nil
	}

	if errors.Is(err, dom.ErrUnknownElement) {
		log.Error().Err(err).Str("op", op).Str("extension", name).Msg("widget element missing")
		return err
	}
	if c.opts.errors {
		log.Warn().Err(err).Str("op", op).Str("name", name).Msg("core operation failed")
		return err
	}
	log.Debug().Err(err).Str("op", op).Str("name", name).Msg("core operation ignored")
	return nil
}

// Ensure Core implements pubsub.Pusher
var _ pubsub.Pusher = (*Core)(nil)
