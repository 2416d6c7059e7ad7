package v8host

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/cryguy/v8host/internal/core"
	"go.uber.org/zap"
)

// Isolate is an independent engine instance with its own heap. Contexts,
// scripts and modules created from one isolate cannot be used with
// another.
//
// An Isolate is not safe for concurrent use; the caller decides which
// goroutine drives it. TerminateExecution is the exception and may be
// called from anywhere.
type Isolate struct {
	id      uint64
	backend core.Isolate

	// entered counts Enter calls not yet matched by Exit; scopes counts
	// engine calls currently in progress.
	entered atomic.Int32
	scopes  atomic.Int32

	nextModuleID atomic.Int64

	mu       sync.Mutex
	disposed bool
	contexts map[*Context]struct{}
}

var isolateIDs atomic.Uint64

// threadStacks holds, per OS thread, the isolates entered on it with the
// innermost last.
var threadStacks = struct {
	sync.Mutex
	m map[int][]*Isolate
}{m: make(map[int][]*Isolate)}

// NewIsolate creates an isolate. It returns nil if Init has not completed
// successfully or the engine could not allocate one.
func NewIsolate() *Isolate {
	p := globalPlatform.Load()
	if !p.ready.Load() {
		return nil
	}

	bi, err := p.backend.NewIsolate(p.config.Isolate())
	if err != nil {
		Logger().Error("creating isolate", zap.String("backend", p.backend.Name()), zap.Error(err))
		return nil
	}

	iso := &Isolate{
		id:       isolateIDs.Add(1),
		backend:  bi,
		contexts: make(map[*Context]struct{}),
	}
	Logger().Debug("isolate created", zap.Uint64("isolate", iso.id))
	return iso
}

// CurrentIsolate returns the isolate most recently entered on the calling
// OS thread, or nil.
func CurrentIsolate() *Isolate {
	threadStacks.Lock()
	defer threadStacks.Unlock()
	stack := threadStacks.m[threadID()]
	if len(stack) == 0 {
		return nil
	}
	return stack[len(stack)-1]
}

// IsInUse reports whether the isolate is entered on some thread or is
// running engine work, including a module resolution callback.
func (iso *Isolate) IsInUse() bool {
	return iso.entered.Load() > 0 || iso.scopes.Load() > 0
}

// Enter makes iso the current isolate of the calling goroutine's OS
// thread. The goroutine stays locked to that thread until the matching
// Exit. Enter calls nest.
func (iso *Isolate) Enter() error {
	if iso.isDisposed() {
		return fmt.Errorf("enter isolate %d: %w", iso.id, ErrDisposed)
	}
	runtime.LockOSThread()
	tid := threadID()

	threadStacks.Lock()
	threadStacks.m[tid] = append(threadStacks.m[tid], iso)
	threadStacks.Unlock()

	iso.entered.Add(1)
	return nil
}

// Exit undoes the most recent Enter on the calling thread. It fails with
// ErrNotCurrent if iso is not the current isolate.
func (iso *Isolate) Exit() error {
	tid := threadID()

	threadStacks.Lock()
	stack := threadStacks.m[tid]
	if len(stack) == 0 || stack[len(stack)-1] != iso {
		threadStacks.Unlock()
		return fmt.Errorf("exit isolate %d: %w", iso.id, ErrNotCurrent)
	}
	stack[len(stack)-1] = nil
	stack = stack[:len(stack)-1]
	if len(stack) == 0 {
		delete(threadStacks.m, tid)
	} else {
		threadStacks.m[tid] = stack
	}
	threadStacks.Unlock()

	iso.entered.Add(-1)
	runtime.UnlockOSThread()
	return nil
}

// TerminateExecution stops the JavaScript currently running in iso. The
// interrupted operation reports an exception.
func (iso *Isolate) TerminateExecution() {
	if iso.isDisposed() {
		return
	}
	iso.backend.TerminateExecution()
}

// Dispose releases the isolate and every context created in it. It fails
// with ErrIsolateInUse while the isolate is entered or running; calling it
// again after success is a no-op.
func (iso *Isolate) Dispose() error {
	iso.mu.Lock()
	defer iso.mu.Unlock()
	if iso.disposed {
		return nil
	}
	if iso.IsInUse() {
		return fmt.Errorf("dispose isolate %d: %w", iso.id, ErrIsolateInUse)
	}

	iso.disposed = true
	for ctx := range iso.contexts {
		ctx.closed.Store(true)
	}
	iso.contexts = nil
	iso.backend.Dispose()

	Logger().Debug("isolate disposed", zap.Uint64("isolate", iso.id))
	return nil
}

func (iso *Isolate) isDisposed() bool {
	iso.mu.Lock()
	defer iso.mu.Unlock()
	return iso.disposed
}

// beginScope and endScope bracket engine work so that IsInUse reports it.
func (iso *Isolate) beginScope() { iso.scopes.Add(1) }
func (iso *Isolate) endScope()   { iso.scopes.Add(-1) }

// checkUsable reports why iso cannot run work in ctx, if it cannot. A nil
// ctx only checks the isolate.
func (iso *Isolate) checkUsable(ctx *Context) *core.Exception {
	if iso.isDisposed() {
		return core.NewException("Error: %v", ErrDisposed)
	}
	if ctx == nil {
		return nil
	}
	if ctx.iso != iso {
		return core.NewException("Error: context belongs to a different isolate")
	}
	if ctx.closed.Load() {
		return core.NewException("Error: context is closed")
	}
	return nil
}
