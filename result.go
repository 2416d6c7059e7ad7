package v8host

import (
	"fmt"

	"github.com/cryguy/v8host/internal/core"
)

// Result is the outcome of a compile, run or evaluate call: either a
// value or the exception that was thrown, never both.
type Result[T any] struct {
	ok        bool
	value     T
	exception *Value
}

func success[T any](v T) Result[T] {
	return Result[T]{ok: true, value: v}
}

func failure[T any](ctx *Context, exc *core.Exception) Result[T] {
	return Result[T]{exception: &Value{ctx: ctx, handle: exc}}
}

// OK reports whether the operation succeeded.
func (r Result[T]) OK() bool { return r.ok }

// Value returns the success value, or the zero T on failure.
func (r Result[T]) Value() T { return r.value }

// Exception returns the thrown value, or nil on success.
func (r Result[T]) Exception() *Value { return r.exception }

// Unpack converts the result to Go's value, error convention. The error
// is a *JSError.
func (r Result[T]) Unpack() (T, error) {
	if r.ok {
		return r.value, nil
	}
	if jsErr, ok := r.exception.Exception(); ok {
		return r.value, jsErr
	}
	return r.value, &JSError{Message: "unknown exception"}
}

// JSError describes a JavaScript exception.
type JSError struct {
	// Message is the string rendering of the thrown value, e.g.
	// "TypeError: x is not a function".
	Message string
	// Location is "origin:line:column" when the engine reports one.
	Location string
	// StackTrace is the engine's stack, which includes Message.
	StackTrace string
}

// Error implements error.
func (e *JSError) Error() string {
	if e.Location == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (at %s)", e.Message, e.Location)
}
