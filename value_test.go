package v8host

import (
	"testing"
)

func TestValue_IsUndefined(t *testing.T) {
	iso, ctx := newTestContext(t)

	tests := []struct {
		source string
		want   bool
	}{
		{"undefined", true},
		{"void 0", true},
		{"0", false},
		{"null", false},
		{"''", false},
		{"({})", false},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			if got := runScript(t, iso, ctx, tt.source).IsUndefined(); got != tt.want {
				t.Errorf("IsUndefined(%s) = %v, want %v", tt.source, got, tt.want)
			}
		})
	}
}

func TestValue_ToString(t *testing.T) {
	iso, ctx := newTestContext(t)

	tests := []struct {
		source string
		want   string
	}{
		{"'hello'", "hello"},
		{"40 + 2", "42"},
		{"true", "true"},
		{"null", "null"},
		{"undefined", "undefined"},
		{"[1, 2, 3]", "1,2,3"},
		{"({ toString() { return 'custom' } })", "custom"},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			got, ok := runScript(t, iso, ctx, tt.source).ToString(ctx)
			if !ok || got != tt.want {
				t.Errorf("ToString(%s) = %q, %v; want %q, true", tt.source, got, ok, tt.want)
			}
		})
	}
}

func TestValue_ToStringThrows(t *testing.T) {
	iso, ctx := newTestContext(t)

	v := runScript(t, iso, ctx, `({ toString() { throw new Error("nope") } })`)
	if s, ok := v.ToString(ctx); ok {
		t.Errorf("ToString = %q, true; want absent", s)
	}
	// The context stays usable afterwards.
	if got := evalString(t, iso, ctx, "'still alive'"); got != "still alive" {
		t.Errorf("after failed coercion got %q", got)
	}
}

func TestValue_ToStringAfterClose(t *testing.T) {
	iso, ctx := newTestContext(t)

	v := runScript(t, iso, ctx, "'hi'")
	ctx.Close()
	if s, ok := v.ToString(nil); ok {
		t.Errorf("ToString after Close = %q, true; want absent", s)
	}
}

func TestValue_ToStringAfterDispose(t *testing.T) {
	iso, ctx := newTestContext(t)

	v := runScript(t, iso, ctx, "'hi'")
	if err := iso.Dispose(); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	if _, ok := v.ToString(ctx); ok {
		t.Error("ToString after Dispose succeeded")
	}
}

func TestValue_ForeignIsolate(t *testing.T) {
	isoA, ctxA := newTestContext(t)
	_, ctxB := newTestContext(t)

	v := runScript(t, isoA, ctxA, "'a'")
	if _, ok := v.ToString(ctxB); ok {
		t.Error("ToString in a context of another isolate succeeded")
	}
}

func TestValue_Nil(t *testing.T) {
	var v *Value
	if !v.IsUndefined() {
		t.Error("nil Value is not undefined")
	}
	if _, ok := v.ToString(nil); ok {
		t.Error("nil Value coerced to a string")
	}
	if _, ok := v.Exception(); ok {
		t.Error("nil Value carries an exception")
	}
}

func TestValue_Exception(t *testing.T) {
	iso, ctx := newTestContext(t)

	plain := runScript(t, iso, ctx, "1")
	if _, ok := plain.Exception(); ok {
		t.Error("plain value reports exception details")
	}

	res := iso.CompileScript(ctx, NewOrigin("bad.js"), "let = ;")
	exc := res.Exception()
	if exc.IsUndefined() {
		t.Error("exception value is undefined")
	}
	jsErr, ok := exc.Exception()
	if !ok {
		t.Fatal("exception value has no details")
	}
	if s, _ := exc.ToString(ctx); s != jsErr.Message {
		t.Errorf("ToString = %q, Message = %q", s, jsErr.Message)
	}
	// Exception values outlive their context.
	ctx.Close()
	if _, ok := exc.ToString(nil); !ok {
		t.Error("exception value unreadable after Close")
	}
}

func TestValue_ToStringIgnoresReplacedString(t *testing.T) {
	iso, ctx := newTestContext(t)

	runScript(t, iso, ctx, `globalThis.String = function () { return "hijacked"; }`)
	if got := evalString(t, iso, ctx, "1 + 1"); got != "2" {
		t.Errorf("ToString = %q, want 2", got)
	}
	if got := evalString(t, iso, ctx, "({ toString() { return 'own'; } })"); got != "own" {
		t.Errorf("ToString = %q, want own", got)
	}
}

func TestValue_Release(t *testing.T) {
	iso, ctx := newTestContext(t)

	v := runScript(t, iso, ctx, "'kept'")
	w := runScript(t, iso, ctx, "'other'")
	v.Release()
	v.Release()

	if _, ok := v.ToString(ctx); ok {
		t.Error("released value still readable")
	}
	runScript(t, iso, ctx, "0")
	if s, ok := w.ToString(ctx); !ok || s != "other" {
		t.Errorf("unreleased value = %q, %v; want other", s, ok)
	}

	var nilValue *Value
	nilValue.Release()
}
