package v8host

import (
	"github.com/cryguy/v8host/internal/core"
)

// Origin names compiled source in stack traces and error locations.
type Origin struct {
	Name string
}

// NewOrigin returns an Origin for name, typically a file path or a
// synthetic identifier such as "<stdin>".
func NewOrigin(name string) Origin {
	return Origin{Name: name}
}

// Script is a compiled classic script. It can be run any number of times
// in any context of the isolate that compiled it.
type Script struct {
	iso    *Isolate
	origin Origin
	handle core.Script
}

// Origin returns the origin the script was compiled with.
func (s *Script) Origin() Origin { return s.origin }

// CompileScript compiles source as a classic script in ctx without
// running it. Syntax errors are reported as the failure arm.
func (iso *Isolate) CompileScript(ctx *Context, origin Origin, source string) Result[*Script] {
	return capture(iso, ctx, "compile script", func(tc *tryCatch) (*Script, bool) {
		if ctx == nil {
			tc.catch(core.NewException("TypeError: compile script: context is nil"))
			return nil, false
		}
		handle, err := ctx.backend.CompileScript(source, origin.Name)
		if err != nil {
			tc.catch(err)
			return nil, false
		}
		if handle == nil {
			return nil, false
		}
		return &Script{iso: iso, origin: origin, handle: handle}, true
	})
}

// RunScript runs s in ctx. The success arm holds the script's completion
// value; anything thrown is reported as the failure arm.
func (iso *Isolate) RunScript(ctx *Context, s *Script) Result[*Value] {
	return capture(iso, ctx, "run script", func(tc *tryCatch) (*Value, bool) {
		switch {
		case ctx == nil:
			tc.catch(core.NewException("TypeError: run script: context is nil"))
			return nil, false
		case s == nil:
			tc.catch(core.NewException("TypeError: run script: script is nil"))
			return nil, false
		case s.iso != iso:
			tc.catch(core.NewException("Error: script was compiled in a different isolate"))
			return nil, false
		}
		v, err := s.handle.Run(ctx.backend)
		if err != nil {
			tc.catch(err)
			return nil, false
		}
		if v == nil {
			return nil, false
		}
		return &Value{ctx: ctx, handle: v}, true
	})
}
