package v8host

import (
	"github.com/cryguy/v8host/internal/core"
)

// Value is a handle to a JavaScript value owned by a context, or to an
// exception captured by a failed Result.
type Value struct {
	ctx    *Context
	handle core.Value
}

// IsUndefined reports whether v is JavaScript undefined. A nil Value
// counts as undefined.
func (v *Value) IsUndefined() bool {
	if v == nil || v.handle == nil {
		return true
	}
	return v.handle.IsUndefined()
}

// ToString coerces v with String() in ctx, or in v's own context when ctx
// is nil. ok is false when the coercion throws or the value can no longer
// be read, for instance after its context was closed.
func (v *Value) ToString(ctx *Context) (s string, ok bool) {
	if v == nil || v.handle == nil {
		return "", false
	}
	if exc, isExc := v.handle.(*core.Exception); isExc {
		return exc.ToString(nil)
	}

	target := ctx
	if target == nil {
		target = v.ctx
	}
	if target == nil || target.closed.Load() {
		return "", false
	}
	if v.ctx != nil && target.iso != v.ctx.iso {
		return "", false
	}

	target.iso.beginScope()
	defer target.iso.endScope()
	defer func() {
		if recover() != nil {
			s, ok = "", false
		}
	}()
	return v.handle.ToString(target.backend)
}

// Release lets the engine collect v before its context closes. v reads
// as absent afterwards. A value that is never released lives until its
// context closes, or until it is garbage collected on QuickJS.
func (v *Value) Release() {
	if v == nil || v.handle == nil {
		return
	}
	if v.ctx != nil && v.ctx.closed.Load() {
		return
	}
	v.handle.Release()
}

// Exception returns the details of v when it holds a captured exception.
func (v *Value) Exception() (*JSError, bool) {
	if v == nil {
		return nil, false
	}
	exc, ok := v.handle.(*core.Exception)
	if !ok {
		return nil, false
	}
	return &JSError{
		Message:    exc.Message,
		Location:   exc.Location,
		StackTrace: exc.StackTrace,
	}, true
}
