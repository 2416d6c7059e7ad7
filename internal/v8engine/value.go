//go:build v8

package v8engine

import (
	"github.com/cryguy/v8host/internal/core"
	v8 "github.com/tommie/v8go"
)

// v8Value implements core.Value over a context-bound V8 value.
type v8Value struct {
	ctx   *v8Context
	val   *v8.Value
	owned bool // false for the isolate's shared undefined

	released bool
}

var _ core.Value = (*v8Value)(nil)

// IsUndefined reports whether the value is undefined.
func (v *v8Value) IsUndefined() bool {
	return v.val.IsUndefined()
}

// Release frees the value unless its context already did.
func (v *v8Value) Release() {
	if v.released || !v.owned || v.ctx.closed {
		return
	}
	v.released = true
	v.val.Release()
}

// ToString coerces the value with the String function captured when ctx
// (or the value's own context) was created, so a throwing toString() is
// reported as a failed coercion and a replaced global String is ignored.
func (v *v8Value) ToString(ctx core.Context) (string, bool) {
	c := v.ctx
	if vc, ok := ctx.(*v8Context); ok && vc != nil {
		c = vc
	}
	if c.closed || c.iso != v.ctx.iso || v.released {
		return "", false
	}
	if v.val.IsString() {
		return v.val.String(), true
	}
	out, err := c.toStr.Call(v8.Undefined(c.iso), v.val)
	if err != nil || out == nil {
		return "", false
	}
	return out.String(), true
}
