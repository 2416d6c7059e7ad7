package core

// Backend is the interface that engine implementations (QuickJS, V8)
// must satisfy. The root v8host package delegates to one of these based
// on build tags.
type Backend interface {
	// Name identifies the engine ("v8", "quickjs").
	Name() string

	// Initialize performs process-wide engine setup. It is called at most
	// once per process by the platform manager.
	Initialize(cfg PlatformConfig) error

	// NewIsolate allocates an independent isolate.
	NewIsolate(cfg IsolateConfig) (Isolate, error)
}

// Isolate is a backend isolate: an independently collected heap that owns
// its contexts.
type Isolate interface {
	// NewContext allocates a fresh global context inside the isolate.
	NewContext() (Context, error)

	// CheckSyntax parses source as classic global code without running
	// it and without needing a context.
	CheckSyntax(source, origin string) error

	// TerminateExecution stops any JavaScript currently running in the
	// isolate. Safe to call from another goroutine.
	TerminateExecution()

	// Dispose releases the isolate and every context it owns.
	Dispose()
}

// Context is a global object scope inside one isolate.
//
// Every method that may run JavaScript reports a thrown value as a
// non-nil error, normally an *Exception.
type Context interface {
	// CompileScript compiles classic script source without running it.
	CompileScript(source, origin string) (Script, error)

	// Run compiles and runs classic script source, returning its
	// completion value.
	Run(source, origin string) (Value, error)

	// Exec runs classic script source and discards the completion value.
	Exec(source, origin string) error

	// EvalString runs classic script source and converts the completion
	// value to a Go string.
	EvalString(source, origin string) (string, error)

	// PerformMicrotaskCheckpoint drains the pending job queue.
	PerformMicrotaskCheckpoint()

	// Close releases the context.
	Close()
}

// Script is a compiled classic script.
type Script interface {
	// Run executes the script in ctx, which must belong to the isolate
	// the script was compiled in.
	Run(ctx Context) (Value, error)
}

// Value is a handle to an engine-managed value.
type Value interface {
	// IsUndefined reports whether the value is JavaScript undefined.
	IsUndefined() bool

	// ToString coerces the value with the engine's String(). ok is false
	// when coercion throws or the handle is no longer usable. ctx may be
	// nil, in which case the value's own context is used.
	ToString(ctx Context) (s string, ok bool)

	// Release lets the engine collect the value. Later reads fail.
	Release()
}
