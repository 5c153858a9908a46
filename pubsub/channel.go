// Package pubsub implements the push/listen channel widgets use to talk to
// each other, plus transports that feed pushes from other processes into it.
//
// A Channel holds at most one listener per event name. Listen always
// replaces the previous listener; Push calls the current one synchronously.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrUnknownListener is returned by Push when no listener is registered for the event.
var ErrUnknownListener = errors.New("listener doesn't exist")

// Listener receives pushed values. ctx is the context of the push.
type Listener func(ctx context.Context, value any)

// Pusher delivers a value to the listener of an event.
type Pusher interface {
	Push(ctx context.Context, name string, value any) error
}

// Channel maps event names to a single listener each.
type Channel struct {
	mu        sync.RWMutex
	listeners map[string]Listener
}

// NewChannel creates an empty Channel.
func NewChannel() *Channel {
	return &Channel{
		listeners: make(map[string]Listener),
	}
}

// Listen stores l as the listener for name, replacing any previous one.
// A nil l is stored as a no-op listener.
func (c *Channel) Listen(name string, l Listener) {
	if l == nil {
		l = func(context.Context, any) {}
	}

	c.mu.Lock()
	_, replaced := c.listeners[name]
	c.listeners[name] = l
	c.mu.Unlock()

	log.Debug().Str("event", name).Bool("replaced", replaced).Msg("listener registered")
}

// Push calls the listener registered for name with value.
// A nil value is delivered as "".
// Returns ErrUnknownListener if nothing listens on name.
func (c *Channel) Push(ctx context.Context, name string, value any) error {
	c.mu.RLock()
	l, ok := c.listeners[name]
	c.mu.RUnlock() // the listener may call back into the channel

	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownListener, name)
	}
	if value == nil {
		value = ""
	}
	l(ctx, value)
	return nil
}

// Has reports whether a listener is registered for name.
func (c *Channel) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.listeners[name]
	return ok
}

// Names returns the event names with a listener, sorted.
func (c *Channel) Names() []string {
	c.mu.RLock()
	names := make([]string, 0, len(c.listeners))
	for name := range c.listeners {
		names = append(names, name)
	}
	c.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Ensure Channel implements Pusher
var _ Pusher = (*Channel)(nil)
