package v8host

import (
	"errors"
	"testing"
	"time"
)

func TestIsolate_FreshIsNotInUse(t *testing.T) {
	iso := newTestIsolate(t)
	if iso.IsInUse() {
		t.Error("fresh isolate reports in use")
	}
}

func TestIsolate_EnterExitNesting(t *testing.T) {
	a := newTestIsolate(t)
	b := newTestIsolate(t)

	if err := a.Enter(); err != nil {
		t.Fatalf("a.Enter: %v", err)
	}
	if got := CurrentIsolate(); got != a {
		t.Fatalf("CurrentIsolate after a.Enter = %p, want a", got)
	}
	if !a.IsInUse() {
		t.Error("entered isolate is not in use")
	}

	if err := b.Enter(); err != nil {
		t.Fatalf("b.Enter: %v", err)
	}
	if got := CurrentIsolate(); got != b {
		t.Fatalf("CurrentIsolate after b.Enter = %p, want b", got)
	}

	if err := b.Exit(); err != nil {
		t.Fatalf("b.Exit: %v", err)
	}
	if got := CurrentIsolate(); got != a {
		t.Fatalf("CurrentIsolate after b.Exit = %p, want a", got)
	}
	if b.IsInUse() {
		t.Error("exited isolate still in use")
	}

	if err := a.Exit(); err != nil {
		t.Fatalf("a.Exit: %v", err)
	}
	if got := CurrentIsolate(); got != nil {
		t.Fatalf("CurrentIsolate after a.Exit = %p, want nil", got)
	}
}

func TestIsolate_ExitNotCurrent(t *testing.T) {
	a := newTestIsolate(t)
	b := newTestIsolate(t)

	if err := a.Enter(); err != nil {
		t.Fatalf("Enter: %v", err)
	}
	defer a.Exit()

	if err := b.Exit(); !errors.Is(err, ErrNotCurrent) {
		t.Errorf("b.Exit = %v, want ErrNotCurrent", err)
	}
	if got := CurrentIsolate(); got != a {
		t.Error("failed Exit changed the current isolate")
	}
}

func TestIsolate_DisposeWhileEntered(t *testing.T) {
	iso := newTestIsolate(t)

	if err := iso.Enter(); err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if err := iso.Dispose(); !errors.Is(err, ErrIsolateInUse) {
		t.Fatalf("Dispose while entered = %v, want ErrIsolateInUse", err)
	}
	if err := iso.Exit(); err != nil {
		t.Fatalf("Exit: %v", err)
	}
	if err := iso.Dispose(); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	if err := iso.Dispose(); err != nil {
		t.Fatalf("second Dispose: %v", err)
	}
}

func TestIsolate_UseAfterDispose(t *testing.T) {
	iso, ctx := newTestContext(t)
	if err := iso.Dispose(); err != nil {
		t.Fatalf("Dispose: %v", err)
	}

	if NewContext(iso) != nil {
		t.Error("NewContext on a disposed isolate returned a context")
	}
	if err := iso.Enter(); !errors.Is(err, ErrDisposed) {
		t.Errorf("Enter after Dispose = %v, want ErrDisposed", err)
	}
	res := iso.CompileScript(ctx, NewOrigin("late.js"), "1")
	if res.OK() {
		t.Fatal("CompileScript on a disposed isolate succeeded")
	}
	if msg := exceptionText(res.Exception()); msg != "Error: "+ErrDisposed.Error() {
		t.Errorf("exception = %q", msg)
	}
	iso.TerminateExecution()
}

func TestIsolate_Independent(t *testing.T) {
	isoA, ctxA := newTestContext(t)
	isoB, ctxB := newTestContext(t)

	runScript(t, isoA, ctxA, "globalThis.marker = 'a'")
	if got := evalString(t, isoB, ctxB, "typeof globalThis.marker"); got != "undefined" {
		t.Errorf("isolate B sees marker from A: typeof = %q", got)
	}
}

func TestIsolate_InUseDuringResolve(t *testing.T) {
	iso, ctx := newTestContext(t)
	main := mustCompileModule(t, iso, "main.js", `import "./dep.js";`)
	dep := mustCompileModule(t, iso, "dep.js", `export const x = 1;`)

	var sawInUse bool
	ok := ctx.InstantiateModule(main, func(c *Context, specifier string, _ map[string]string, _ *Module) (*Module, error) {
		sawInUse = c.Isolate().IsInUse()
		return dep, nil
	})
	if !ok {
		t.Fatal("InstantiateModule failed")
	}
	if !sawInUse {
		t.Error("isolate not in use during resolve callback")
	}
	if iso.IsInUse() {
		t.Error("isolate still in use after InstantiateModule")
	}
}

func TestIsolate_TerminateExecution(t *testing.T) {
	iso, ctx := newTestContext(t)
	compiled := iso.CompileScript(ctx, NewOrigin("spin.js"), "while (true) {}")
	if !compiled.OK() {
		t.Fatalf("compile: %s", exceptionText(compiled.Exception()))
	}

	done := make(chan Result[*Value], 1)
	go func() {
		done <- iso.RunScript(ctx, compiled.Value())
	}()

	deadline := time.After(10 * time.Second)
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case res := <-done:
			if res.OK() {
				t.Fatal("terminated script reported success")
			}
			return
		case <-tick.C:
			if iso.IsInUse() {
				iso.TerminateExecution()
			}
		case <-deadline:
			t.Fatal("script was not terminated")
		}
	}
}
