//go:build v8

package v8engine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cryguy/v8host/internal/core"
	v8 "github.com/tommie/v8go"
)

// v8Context implements core.Context for the V8 engine.
type v8Context struct {
	owner *v8Isolate
	iso   *v8.Isolate
	ctx   *v8.Context
	toStr *v8.Function // the context's original String

	closeOnce sync.Once
	closed    bool
}

var _ core.Context = (*v8Context)(nil)

// v8Script is an unbound compiled script; it can run in any context of
// the isolate it was compiled in.
type v8Script struct {
	iso    *v8.Isolate
	script *v8.UnboundScript
}

var _ core.Script = (*v8Script)(nil)

// CompileScript compiles source without running it.
func (c *v8Context) CompileScript(source, origin string) (core.Script, error) {
	if c.closed {
		return nil, core.NewException("Error: context is closed")
	}
	us, err := c.iso.CompileUnboundScript(source, origin, v8.CompileOptions{})
	if err != nil {
		return nil, toException(err)
	}
	return &v8Script{iso: c.iso, script: us}, nil
}

// Run compiles and runs source, returning its completion value.
func (c *v8Context) Run(source, origin string) (core.Value, error) {
	if c.closed {
		return nil, core.NewException("Error: context is closed")
	}
	val, err := c.ctx.RunScript(source, origin)
	if err != nil {
		return nil, toException(err)
	}
	return c.wrap(val), nil
}

// Exec runs source and drops the completion value.
func (c *v8Context) Exec(source, origin string) error {
	if c.closed {
		return core.NewException("Error: context is closed")
	}
	val, err := c.ctx.RunScript(source, origin)
	if err != nil {
		return toException(err)
	}
	if val != nil {
		val.Release()
	}
	return nil
}

// EvalString runs source and returns its completion value as a string.
func (c *v8Context) EvalString(source, origin string) (string, error) {
	if c.closed {
		return "", core.NewException("Error: context is closed")
	}
	val, err := c.ctx.RunScript(source, origin)
	if err != nil {
		return "", toException(err)
	}
	if val == nil {
		return "", nil
	}
	defer val.Release()
	return val.String(), nil
}

// PerformMicrotaskCheckpoint pumps the V8 microtask queue.
func (c *v8Context) PerformMicrotaskCheckpoint() {
	if c.closed {
		return
	}
	c.ctx.PerformMicrotaskCheckpoint()
}

// Close releases the context.
func (c *v8Context) Close() {
	c.closeContext()
	c.owner.forget(c)
}

func (c *v8Context) closeContext() {
	c.closeOnce.Do(func() {
		c.closed = true
		c.ctx.Close()
	})
}

// wrap turns a V8 result into a core.Value; a nil result is undefined.
func (c *v8Context) wrap(val *v8.Value) core.Value {
	if val == nil {
		return &v8Value{ctx: c, val: v8.Undefined(c.iso)}
	}
	return &v8Value{ctx: c, val: val, owned: true}
}

// Run executes the script in ctx.
func (s *v8Script) Run(ctx core.Context) (core.Value, error) {
	c, ok := ctx.(*v8Context)
	if !ok || c == nil {
		return nil, core.NewException("Error: script run in a non-V8 context (%T)", ctx)
	}
	if c.iso != s.iso {
		return nil, core.NewException("Error: script was compiled in a different isolate")
	}
	if c.closed {
		return nil, core.NewException("Error: context is closed")
	}
	val, err := s.script.Run(c.ctx)
	if err != nil {
		return nil, toException(err)
	}
	return c.wrap(val), nil
}

// toException converts a v8go error into a core.Exception. v8go reports
// thrown values as *v8.JSError whose Message is String(exception).
func toException(err error) *core.Exception {
	var jsErr *v8.JSError
	if errors.As(err, &jsErr) {
		return &core.Exception{
			Message:    jsErr.Message,
			Location:   jsErr.Location,
			StackTrace: jsErr.StackTrace,
		}
	}
	return core.AsException(fmt.Errorf("v8: %w", err))
}
