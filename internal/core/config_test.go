package core

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadPlatformConfig_Defaults(t *testing.T) {
	t.Setenv("V8HOST_FLAGS", "")
	t.Setenv("V8HOST_ICU_DATA", "")
	t.Setenv("V8HOST_SNAPSHOT_BLOB", "")
	t.Setenv("V8HOST_MEMORY_LIMIT_MB", "")

	argv0 := filepath.Join("opt", "app", "bin", "host")
	cfg, err := LoadPlatformConfig(argv0)
	if err != nil {
		t.Fatalf("LoadPlatformConfig: %v", err)
	}

	want := PlatformConfig{
		ICUDataFile:  filepath.Join("opt", "app", "bin", ICUDataName),
		SnapshotFile: filepath.Join("opt", "app", "bin", SnapshotBlobName),
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadPlatformConfig_FromEnv(t *testing.T) {
	t.Setenv("V8HOST_FLAGS", "--expose-gc --max-lazy")
	t.Setenv("V8HOST_ICU_DATA", "/data/icu.dat")
	t.Setenv("V8HOST_SNAPSHOT_BLOB", "/data/snap.bin")
	t.Setenv("V8HOST_MEMORY_LIMIT_MB", "64")

	cfg, err := LoadPlatformConfig("/usr/bin/host")
	if err != nil {
		t.Fatalf("LoadPlatformConfig: %v", err)
	}

	want := PlatformConfig{
		Flags:         []string{"--expose-gc", "--max-lazy"},
		ICUDataFile:   "/data/icu.dat",
		SnapshotFile:  "/data/snap.bin",
		MemoryLimitMB: 64,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	if got := cfg.Isolate().MemoryLimitMB; got != 64 {
		t.Errorf("Isolate().MemoryLimitMB = %d, want 64", got)
	}
}

func TestLoadPlatformConfig_InvalidMemoryLimit(t *testing.T) {
	t.Setenv("V8HOST_MEMORY_LIMIT_MB", "lots")
	if _, err := LoadPlatformConfig("host"); err == nil {
		t.Fatal("expected error for non-numeric memory limit")
	}

	t.Setenv("V8HOST_MEMORY_LIMIT_MB", "-1")
	if _, err := LoadPlatformConfig("host"); err == nil {
		t.Fatal("expected error for negative memory limit")
	}
}

func TestResourceDir(t *testing.T) {
	tests := []struct {
		argv0 string
		want  string
	}{
		{"", "."},
		{"host", "."},
		{filepath.Join("a", "b", "host"), filepath.Join("a", "b")},
	}
	for _, tt := range tests {
		if got := ResourceDir(tt.argv0); got != tt.want {
			t.Errorf("ResourceDir(%q) = %q, want %q", tt.argv0, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Exception
// ---------------------------------------------------------------------------

func TestAsException_PassesThroughWrapped(t *testing.T) {
	orig := &Exception{Message: "TypeError: nope", Location: "a.js:1:1"}
	wrapped := errors.Join(errors.New("context"), orig)

	if got := AsException(wrapped); got != orig {
		t.Errorf("AsException returned %#v, want original exception", got)
	}
	if AsException(nil) != nil {
		t.Error("AsException(nil) should be nil")
	}
}

func TestAsException_SplitsMessageAndStack(t *testing.T) {
	exc := AsException(errors.New("Error: boom\n    at <eval>:1\n"))
	if exc.Message != "Error: boom" {
		t.Errorf("Message = %q, want %q", exc.Message, "Error: boom")
	}
	if exc.StackTrace != "Error: boom\n    at <eval>:1" {
		t.Errorf("StackTrace = %q", exc.StackTrace)
	}
	if s, ok := exc.ToString(nil); !ok || s != "Error: boom" {
		t.Errorf("ToString = %q, %v", s, ok)
	}
	if exc.IsUndefined() {
		t.Error("exception must not be undefined")
	}
}

func TestException_Error(t *testing.T) {
	exc := &Exception{Message: "SyntaxError: x", Location: "m.js:2:3"}
	if got, want := exc.Error(), "SyntaxError: x (at m.js:2:3)"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if got := NewException("Error: %d", 7).Error(); got != "Error: 7" {
		t.Errorf("NewException().Error() = %q", got)
	}
}
