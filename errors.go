package v8host

import "errors"

var (
	// ErrNotCurrent is returned by Exit when the isolate is not the one
	// most recently entered on the calling thread.
	ErrNotCurrent = errors.New("isolate is not current on this thread")

	// ErrIsolateInUse is returned by Dispose while the isolate is entered
	// or running engine work.
	ErrIsolateInUse = errors.New("isolate is in use")

	// ErrDisposed is returned by operations on an isolate after Dispose.
	ErrDisposed = errors.New("isolate is disposed")
)
