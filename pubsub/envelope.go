package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/toolink/widgets/meta"
)

var errEmptyEnvelope = errors.New("pubsub: envelope has no event")

// Envelope is the wire form of a push sent between processes.
type Envelope struct {
	ID     string          `json:"id"`
	Event  string          `json:"event"`
	Value  json.RawMessage `json:"value,omitempty"`
	Source string          `json:"source,omitempty"`
	SentAt time.Time       `json:"sent_at"`
}

// NewEnvelope encodes value as JSON and stamps a fresh id.
func NewEnvelope(event string, value any) (*Envelope, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("pubsub: encode value for %q: %w", event, err)
	}
	return &Envelope{
		ID:     uuid.NewString(),
		Event:  event,
		Value:  raw,
		SentAt: time.Now().UTC(),
	}, nil
}

// DecodeEnvelope parses the JSON form of an envelope.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("pubsub: decode envelope: %w", err)
	}
	if e.Event == "" {
		return nil, errEmptyEnvelope
	}
	return &e, nil
}

// Decode returns the value as generic JSON (map, slice, string, float64, bool or nil).
func (e *Envelope) Decode() (any, error) {
	if len(e.Value) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(e.Value, &v); err != nil {
		return nil, fmt.Errorf("pubsub: decode value of %q: %w", e.Event, err)
	}
	return v, nil
}

// Context returns ctx tagged with the envelope's source and id.
func (e *Envelope) Context(ctx context.Context, source string) context.Context {
	md := meta.FromContext(ctx).Clone()
	md.Set(meta.KeySource, source)
	md.Set(meta.KeyMessageID, e.ID)
	return md.WithContext(ctx)
}

// Poster schedules a function on the goroutine that owns the core.
type Poster interface {
	Post(ctx context.Context, fn func()) error
}

// Doer schedules a function on the goroutine that owns the core and waits for it.
type Doer interface {
	Do(ctx context.Context, fn func()) error
}
