package core

import (
	"errors"
	"fmt"
	"strings"
)

// Exception is a thrown JavaScript value captured at the engine boundary.
// Message is the engine's string rendering of the thrown value
// (e.g. "Error: boom"), which is also what Exception returns from
// ToString.
type Exception struct {
	Message    string
	Location   string
	StackTrace string
}

var _ Value = (*Exception)(nil)
var _ error = (*Exception)(nil)

// Error implements error.
func (e *Exception) Error() string {
	if e.Location == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (at %s)", e.Message, e.Location)
}

// IsUndefined always reports false: a captured exception is rendered as
// its message.
func (e *Exception) IsUndefined() bool { return false }

// ToString returns the exception message.
func (e *Exception) ToString(Context) (string, bool) { return e.Message, true }

// Release is a no-op; an Exception holds no engine reference.
func (e *Exception) Release() {}

// NewException builds an Exception from a message.
func NewException(format string, args ...any) *Exception {
	return &Exception{Message: fmt.Sprintf(format, args...)}
}

// AsException converts an arbitrary engine error into an Exception. Errors
// that already are (or wrap) an *Exception are returned unchanged;
// anything else uses the first line of the error text as the message and
// the full text as the stack trace.
func AsException(err error) *Exception {
	if err == nil {
		return nil
	}
	var exc *Exception
	if errors.As(err, &exc) {
		return exc
	}
	text := strings.TrimSpace(err.Error())
	msg, _, _ := strings.Cut(text, "\n")
	return &Exception{Message: msg, StackTrace: text}
}
