//go:build v8

package v8engine

import (
	"fmt"
	"sync"

	"github.com/cryguy/v8host/internal/core"
	v8 "github.com/tommie/v8go"
)

// v8Isolate owns one V8 isolate and the contexts created in it.
type v8Isolate struct {
	iso *v8.Isolate

	mu       sync.Mutex
	contexts map[*v8Context]struct{}
	disposed bool
}

var _ core.Isolate = (*v8Isolate)(nil)

// NewContext creates a fresh global context.
func (i *v8Isolate) NewContext() (core.Context, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.disposed {
		return nil, fmt.Errorf("isolate is disposed")
	}
	ctx := v8.NewContext(i.iso)
	toStr, err := originalString(ctx)
	if err != nil {
		ctx.Close()
		return nil, err
	}
	c := &v8Context{owner: i, iso: i.iso, ctx: ctx, toStr: toStr}
	if i.contexts == nil {
		i.contexts = make(map[*v8Context]struct{})
	}
	i.contexts[c] = struct{}{}
	return c, nil
}

// originalString fetches String from a fresh global, before any user code
// can replace it.
func originalString(ctx *v8.Context) (*v8.Function, error) {
	val, err := ctx.Global().Get("String")
	if err != nil {
		return nil, fmt.Errorf("reading String: %w", err)
	}
	fn, err := val.AsFunction()
	if err != nil {
		return nil, fmt.Errorf("String is not a function: %w", err)
	}
	return fn, nil
}

// CheckSyntax compiles source as an unbound script and discards it.
func (i *v8Isolate) CheckSyntax(source, origin string) error {
	i.mu.Lock()
	disposed := i.disposed
	i.mu.Unlock()
	if disposed {
		return fmt.Errorf("isolate is disposed")
	}
	if _, err := i.iso.CompileUnboundScript(source, origin, v8.CompileOptions{}); err != nil {
		return toException(err)
	}
	return nil
}

// TerminateExecution forcefully stops the JavaScript running in the isolate.
func (i *v8Isolate) TerminateExecution() {
	i.iso.TerminateExecution()
}

// Dispose closes all contexts and then the isolate.
func (i *v8Isolate) Dispose() {
	i.mu.Lock()
	if i.disposed {
		i.mu.Unlock()
		return
	}
	i.disposed = true
	contexts := i.contexts
	i.contexts = nil
	i.mu.Unlock()

	for c := range contexts {
		c.closeContext()
	}
	i.iso.Dispose()
}

// forget drops a context that was closed on its own.
func (i *v8Isolate) forget(c *v8Context) {
	i.mu.Lock()
	delete(i.contexts, c)
	i.mu.Unlock()
}
