package v8host

import (
	"fmt"
	"os"
	"testing"
)

// initPlatform initializes the process-wide platform for tests.
func initPlatform(t *testing.T) {
	t.Helper()
	Init(os.Args[0])
	if !Initialized() {
		t.Fatal("platform failed to initialize")
	}
}

// withFreshPlatform swaps in an uninitialized platform for the duration
// of the test, so Init can be observed from scratch.
func withFreshPlatform(t *testing.T) {
	t.Helper()
	old := globalPlatform.Load()
	globalPlatform.Store(newPlatform(newBackend()))
	t.Cleanup(func() {
		globalPlatform.Store(old)
		SetLogger(nil)
	})
}

func newTestIsolate(t *testing.T) *Isolate {
	t.Helper()
	initPlatform(t)
	iso := NewIsolate()
	if iso == nil {
		t.Fatal("NewIsolate returned nil")
	}
	t.Cleanup(func() {
		if err := iso.Dispose(); err != nil {
			t.Errorf("Dispose: %v", err)
		}
	})
	return iso
}

func newTestContext(t *testing.T) (*Isolate, *Context) {
	t.Helper()
	iso := newTestIsolate(t)
	ctx := NewContext(iso)
	if ctx == nil {
		t.Fatal("NewContext returned nil")
	}
	return iso, ctx
}

// runScript compiles and runs source, failing the test on any exception.
func runScript(t *testing.T, iso *Isolate, ctx *Context, source string) *Value {
	t.Helper()
	compiled := iso.CompileScript(ctx, NewOrigin("test.js"), source)
	if !compiled.OK() {
		t.Fatalf("compile %q: %s", source, exceptionText(compiled.Exception()))
	}
	ran := iso.RunScript(ctx, compiled.Value())
	if !ran.OK() {
		t.Fatalf("run %q: %s", source, exceptionText(ran.Exception()))
	}
	return ran.Value()
}

// evalString runs source and coerces the completion value to a string.
func evalString(t *testing.T, iso *Isolate, ctx *Context, source string) string {
	t.Helper()
	s, ok := runScript(t, iso, ctx, source).ToString(ctx)
	if !ok {
		t.Fatalf("ToString of %q failed", source)
	}
	return s
}

func exceptionText(v *Value) string {
	s, ok := v.ToString(nil)
	if !ok {
		return "<exception not printable>"
	}
	return s
}

func mustCompileModule(t *testing.T, iso *Isolate, name, source string) *Module {
	t.Helper()
	res := iso.CompileModule(NewOrigin(name), source)
	if !res.OK() {
		t.Fatalf("compile module %s: %s", name, exceptionText(res.Exception()))
	}
	return res.Value()
}

// resolveFrom returns a ResolveFunc serving modules by specifier.
func resolveFrom(mods map[string]*Module) ResolveFunc {
	return func(_ *Context, specifier string, _ map[string]string, _ *Module) (*Module, error) {
		m, ok := mods[specifier]
		if !ok {
			return nil, fmt.Errorf("module %q not found", specifier)
		}
		return m, nil
	}
}
