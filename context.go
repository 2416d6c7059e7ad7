package v8host

import (
	"sync/atomic"

	"github.com/cryguy/v8host/internal/core"
	"github.com/cryguy/v8host/internal/esm"
	"go.uber.org/zap"
)

// registryOrigin names the internal module registry script in stack traces.
const registryOrigin = "v8host:registry"

// Context is a global object scope inside an isolate. Scripts run against
// a context and modules are instantiated into one.
type Context struct {
	iso     *Isolate
	backend core.Context
	closed  atomic.Bool
}

// NewContext creates a fresh context in iso. It returns nil if iso is nil
// or disposed, or if the engine fails to create the context.
func NewContext(iso *Isolate) *Context {
	if iso == nil {
		return nil
	}
	iso.mu.Lock()
	defer iso.mu.Unlock()
	if iso.disposed {
		return nil
	}

	bc, err := iso.backend.NewContext()
	if err != nil {
		Logger().Error("creating context", zap.Uint64("isolate", iso.id), zap.Error(err))
		return nil
	}
	if err := bc.Exec(esm.RegistryJS, registryOrigin); err != nil {
		bc.Close()
		Logger().Error("installing module registry", zap.Uint64("isolate", iso.id), zap.Error(err))
		return nil
	}

	ctx := &Context{iso: iso, backend: bc}
	iso.contexts[ctx] = struct{}{}
	return ctx
}

// Isolate returns the isolate the context belongs to.
func (c *Context) Isolate() *Isolate {
	return c.iso
}

// Close releases the context. Values and modules bound to it become
// unusable. Close is idempotent.
func (c *Context) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.iso.mu.Lock()
	defer c.iso.mu.Unlock()
	if c.iso.disposed {
		return
	}
	delete(c.iso.contexts, c)
	c.backend.Close()
}

// PerformMicrotaskCheckpoint runs pending promise jobs until the queue is
// empty.
func (c *Context) PerformMicrotaskCheckpoint() {
	if c.closed.Load() {
		return
	}
	c.iso.beginScope()
	defer c.iso.endScope()
	c.backend.PerformMicrotaskCheckpoint()
}
