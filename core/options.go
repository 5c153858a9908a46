package core

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/toolink/widgets/config"
)

type options struct {
	wrapperTag string
	idPrefix   string
	errors     bool
	registerer prometheus.Registerer
}

func defaultOptions() options {
	return options{
		wrapperTag: config.DefaultWrapperTag,
		idPrefix:   config.DefaultIDPrefix,
	}
}

// Option configures a Core.
type Option func(*options)

// WithWrapperTag sets the tag of the element created around a loaded widget.
func WithWrapperTag(tag string) Option {
	return func(o *options) {
		if tag != "" {
			o.wrapperTag = tag
		}
	}
}

// WithIDPrefix sets the prefix of wrapper element ids.
func WithIDPrefix(prefix string) Option {
	return func(o *options) {
		o.idPrefix = prefix
	}
}

// WithErrors makes the core return ErrDuplicateExtension,
// ErrUnknownExtension and ErrUnknownListener instead of ignoring them.
func WithErrors(enabled bool) Option {
	return func(o *options) {
		o.errors = enabled
	}
}

// WithRegisterer registers the core's metrics with r.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = r
	}
}

// WithConfig applies the wrapper, prefix and error settings of cfg.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) {
		WithWrapperTag(cfg.WrapperTag)(o)
		WithIDPrefix(cfg.IDPrefix)(o)
		WithErrors(cfg.Errors)(o)
	}
}
