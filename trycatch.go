package v8host

import (
	"fmt"

	"github.com/cryguy/v8host/internal/core"
)

// tryCatch collects the exception raised by one engine operation. Every
// fallible pipeline call opens exactly one and closes it before returning;
// nothing produced inside escapes except through the Result.
type tryCatch struct {
	iso       *Isolate
	exception *core.Exception
}

func (iso *Isolate) openTryCatch() *tryCatch {
	iso.beginScope()
	return &tryCatch{iso: iso}
}

// catch records err as the scope's exception. The first one wins.
func (tc *tryCatch) catch(err error) {
	if err == nil || tc.exception != nil {
		return
	}
	tc.exception = core.AsException(err)
}

func (tc *tryCatch) hasCaught() bool { return tc.exception != nil }

func (tc *tryCatch) close() { tc.iso.endScope() }

// emptyHandleError is raised when the engine produced neither a result
// nor an exception. It is a bug in this package or the engine binding and
// is not recovered.
type emptyHandleError struct{ op string }

func (e emptyHandleError) Error() string {
	return fmt.Sprintf("v8host: %s produced neither a value nor an exception", e.op)
}

// capture runs fn inside a fresh tryCatch and converts the outcome into a
// Result. fn returns ok=false when it has no value; it must then have
// caught an exception. Panics raised by the engine binding are reported as
// exceptions.
func capture[T any](iso *Isolate, ctx *Context, op string, fn func(tc *tryCatch) (T, bool)) (res Result[T]) {
	if iso == nil {
		return failure[T](ctx, core.NewException("Error: %s: isolate is nil", op))
	}
	if exc := iso.checkUsable(ctx); exc != nil {
		return failure[T](ctx, exc)
	}

	tc := iso.openTryCatch()
	defer tc.close()
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if _, fatal := r.(emptyHandleError); fatal {
			panic(r)
		}
		tc.catch(core.NewException("Error: %s: %v", op, r))
		res = failure[T](ctx, tc.exception)
	}()

	v, ok := fn(tc)
	if tc.hasCaught() {
		return failure[T](ctx, tc.exception)
	}
	if !ok {
		panic(emptyHandleError{op: op})
	}
	return success(v)
}
