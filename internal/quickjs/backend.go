//go:build !v8

package quickjs

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cryguy/v8host/internal/core"
	"modernc.org/quickjs"
)

// Backend implements core.Backend on top of QuickJS. QuickJS has no
// process-wide platform; Initialize only proves a VM can be created.
type Backend struct{}

var _ core.Backend = (*Backend)(nil)

// NewBackend returns the QuickJS backend.
func NewBackend() *Backend { return &Backend{} }

// Name returns "quickjs".
func (b *Backend) Name() string { return "quickjs" }

// Initialize creates and closes a throwaway VM. QuickJS needs no ICU or
// snapshot data and takes no engine flags.
func (b *Backend) Initialize(cfg core.PlatformConfig) error {
	vm, err := quickjs.NewVM()
	if err != nil {
		return fmt.Errorf("creating QuickJS VM: %w", err)
	}
	vm.Close()
	return nil
}

// NewIsolate returns a QuickJS isolate. Each of its contexts is backed by
// its own VM, since a VM is a runtime+context pair.
func (b *Backend) NewIsolate(cfg core.IsolateConfig) (core.Isolate, error) {
	return &qjsIsolate{memoryLimitMB: cfg.MemoryLimitMB}, nil
}

// qjsIsolate groups the VMs that make up the contexts of one isolate.
type qjsIsolate struct {
	memoryLimitMB int

	mu       sync.Mutex
	contexts map[*qjsContext]struct{}
	checker  *quickjs.VM // lazily created, for CheckSyntax
	disposed bool
}

var _ core.Isolate = (*qjsIsolate)(nil)

// NewContext creates a VM, applies the memory limit and installs the
// handle table.
func (i *qjsIsolate) NewContext() (core.Context, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.disposed {
		return nil, errors.New("isolate is disposed")
	}

	vm, err := quickjs.NewVM()
	if err != nil {
		return nil, fmt.Errorf("creating QuickJS VM: %w", err)
	}
	if i.memoryLimitMB > 0 {
		vm.SetMemoryLimit(uintptr(i.memoryLimitMB) * 1024 * 1024)
	}

	jobs, ok := newJobQueue(vm)
	if !ok {
		vm.Close()
		return nil, errors.New("locating QuickJS runtime for the job queue")
	}

	c := &qjsContext{owner: i, vm: vm, jobs: jobs}
	if err := c.eval(handleTableJS); err != nil {
		vm.Close()
		return nil, fmt.Errorf("installing handle table: %w", err)
	}

	if i.contexts == nil {
		i.contexts = make(map[*qjsContext]struct{})
	}
	i.contexts[c] = struct{}{}
	return c, nil
}

// CheckSyntax compiles source as global code in a VM of its own, so no
// context is needed and nothing runs.
func (i *qjsIsolate) CheckSyntax(source, origin string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.disposed {
		return errors.New("isolate is disposed")
	}
	if i.checker == nil {
		vm, err := quickjs.NewVM()
		if err != nil {
			return fmt.Errorf("creating QuickJS VM: %w", err)
		}
		if i.memoryLimitMB > 0 {
			vm.SetMemoryLimit(uintptr(i.memoryLimitMB) * 1024 * 1024)
		}
		i.checker = vm
	}
	return compileOnly(i.checker, source)
}

// TerminateExecution interrupts every VM of the isolate.
func (i *qjsIsolate) TerminateExecution() {
	i.mu.Lock()
	defer i.mu.Unlock()
	for c := range i.contexts {
		c.vm.Interrupt()
	}
}

// Dispose closes every VM of the isolate.
func (i *qjsIsolate) Dispose() {
	i.mu.Lock()
	if i.disposed {
		i.mu.Unlock()
		return
	}
	i.disposed = true
	contexts := i.contexts
	i.contexts = nil
	checker := i.checker
	i.checker = nil
	i.mu.Unlock()

	for c := range contexts {
		c.closeVM()
	}
	if checker != nil {
		checker.Close()
	}
}

func (i *qjsIsolate) forget(c *qjsContext) {
	i.mu.Lock()
	delete(i.contexts, c)
	i.mu.Unlock()
}
