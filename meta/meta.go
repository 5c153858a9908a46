// Package meta carries push and widget metadata in a context.Context.
// The core stores the running widget's name and element here before calling
// its factory, and transports store the origin of a remote push, so a
// listener can tell who pushed to it without holding a reference.
package meta

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Well-known keys.
const (
	KeyWidget    = "widget"     // string: widget whose factory is running
	KeyElement   = "element"    // *html.Node: that widget's wrapper element, if any
	KeySource    = "source"     // string: SourceLocal, SourceRedis or SourceGRPC
	KeyMessageID = "message_id" // string: envelope id of a relayed push
)

// Push sources.
const (
	SourceLocal = "local"
	SourceRedis = "redis"
	SourceGRPC  = "grpc"
)

// metadataKey is the private key type used for context.WithValue.
type metadataKey struct{}

// Metadata holds the key-value pairs.
type Metadata struct {
	mu   sync.RWMutex
	data map[string]any
}

// New creates a new, empty Metadata store.
func New() *Metadata {
	return &Metadata{
		data: make(map[string]any),
	}
}

// Set adds or updates a key-value pair.
func (m *Metadata) Set(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[string]any)
	}
	m.data[key] = value
}

// Get retrieves a value by key.
func (m *Metadata) Get(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.data[key]
	return value, ok
}

// Clone returns a copy that can be changed without affecting m.
func (m *Metadata) Clone() *Metadata {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c := &Metadata{data: make(map[string]any, len(m.data))}
	for k, v := range m.data {
		c.data[k] = v
	}
	return c
}

// WithContext returns a context derived from ctx that carries m.
func (m *Metadata) WithContext(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, metadataKey{}, m)
}

// FromContext extracts the metadata carried by ctx.
// It returns a new, empty Metadata if there is none.
func FromContext(ctx context.Context) *Metadata {
	if ctx == nil {
		return New()
	}
	value := ctx.Value(metadataKey{})
	if value == nil {
		return New()
	}
	if md, ok := value.(*Metadata); ok {
		return md
	}
	log.Error().Str("value_type", fmt.Sprintf("%T", value)).Msg("metadata key found in context but value has wrong type")
	return New()
}

// With returns a context carrying a copy of ctx's metadata with key set to value.
// The metadata of ctx itself is left untouched.
func With(ctx context.Context, key string, value any) context.Context {
	md := FromContext(ctx).Clone()
	md.Set(key, value)
	return md.WithContext(ctx)
}

// Get retrieves the value for key from the metadata in ctx as a T.
func Get[T any](ctx context.Context, key string) (t T, err error) {
	rawValue, ok := FromContext(ctx).Get(key)
	if !ok {
		err = fmt.Errorf("meta: key '%s' not found in context metadata", key)
		return
	}
	typedValue, ok := rawValue.(T)
	if !ok {
		err = fmt.Errorf("meta: value for key '%s' has type %T, but type %T was requested", key, rawValue, *new(T))
		return
	}
	return typedValue, nil
}

// MustGet is like Get but panics if the key is missing or has another type.
func MustGet[T any](ctx context.Context, key string) T {
	t, err := Get[T](ctx, key)
	if err != nil {
		panic(err)
	}
	return t
}

// Widget returns the name of the widget recorded in ctx, or "".
func Widget(ctx context.Context) string {
	name, _ := Get[string](ctx, KeyWidget)
	return name
}

// Source returns the push source recorded in ctx, defaulting to SourceLocal.
func Source(ctx context.Context) string {
	if src, err := Get[string](ctx, KeySource); err == nil {
		return src
	}
	return SourceLocal
}
