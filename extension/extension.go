// Package extension defines the widget factory type and the registry that
// maps widget names to their factories.
package extension

import (
	"context"
	"errors"

	"golang.org/x/net/html"
)

// Factory builds one instance of a widget.
// self is the wrapper element created for this instance, or nil when the
// widget was loaded without a parent. params is passed through from Load.
type Factory func(ctx context.Context, self *html.Node, params any)

// Predefined errors for registry lookups.
var (
	ErrDuplicateExtension = errors.New("extension already exists")
	ErrUnknownExtension   = errors.New("extension doesn't exist")
)

// noop is stored in place of a nil factory.
func noop(context.Context, *html.Node, any) {}
