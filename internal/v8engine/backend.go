//go:build v8

package v8engine

import (
	"github.com/cryguy/v8host/internal/core"
	v8 "github.com/tommie/v8go"
)

// Backend implements core.Backend on top of V8.
type Backend struct{}

var _ core.Backend = (*Backend)(nil)

// NewBackend returns the V8 backend.
func NewBackend() *Backend { return &Backend{} }

// Name returns "v8".
func (b *Backend) Name() string { return "v8" }

// Initialize applies engine flags. v8go links ICU data and the startup
// snapshot into the binary and creates the platform itself on first
// isolate creation, so the resource paths in cfg are informational only.
func (b *Backend) Initialize(cfg core.PlatformConfig) error {
	if len(cfg.Flags) > 0 {
		v8.SetFlags(cfg.Flags...)
	}
	return nil
}

// NewIsolate creates a V8 isolate, applying heap constraints when a
// memory limit is configured.
func (b *Backend) NewIsolate(cfg core.IsolateConfig) (core.Isolate, error) {
	var iso *v8.Isolate
	if cfg.MemoryLimitMB > 0 {
		heapSize := uint64(cfg.MemoryLimitMB) * 1024 * 1024
		iso = v8.NewIsolate(v8.WithResourceConstraints(heapSize/2, heapSize))
	} else {
		iso = v8.NewIsolate()
	}
	return &v8Isolate{iso: iso}, nil
}
