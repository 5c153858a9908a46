// Package global holds a process-wide default Core for hosts that want one.
// Libraries should take a *core.Core explicitly instead.
package global

import (
	"sync/atomic"

	"github.com/toolink/widgets/core"
	"github.com/toolink/widgets/dom"
)

func defaultCore() *atomic.Value {
	v := &atomic.Value{}
	v.Store(core.New(dom.NewDocument()))
	return v
}

var globalCore = defaultCore()

// SetCore sets the global core.
func SetCore(c *core.Core) {
	globalCore.Store(c)
}

// GetCore returns the global core.
func GetCore() *core.Core {
	return globalCore.Load().(*core.Core)
}
