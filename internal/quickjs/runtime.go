//go:build !v8

package quickjs

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cryguy/v8host/internal/core"
	"github.com/cryguy/v8host/internal/esm"
	"modernc.org/quickjs"
)

// stashSlot is the temporary global a value passes through on its way
// into the handle table.
const stashSlot = "__v8host_tmp"

// handleTableJS installs the per-VM table that keeps values returned to
// the host alive and addressable by integer id. String is captured at
// install time so user code cannot replace the coercion.
const handleTableJS = `
(function() {
	if (globalThis.__v8host_handles) return;
	var toStr = String;
	var table = Object.create(null);
	var next = 1;
	Object.defineProperty(globalThis, '__v8host_handles', {
		value: Object.freeze({
			take: function() {
				var v = globalThis.__v8host_tmp;
				delete globalThis.__v8host_tmp;
				var id = next++;
				table[id] = v;
				return id;
			},
			isUndefined: function(id) {
				return table[id] === undefined;
			},
			toString: function(id) {
				if (!(id in table)) return '0';
				try { return '1' + toStr(table[id]); } catch (e) { return '0'; }
			},
			drop: function(ids) {
				for (var i = 0; i < ids.length; i++) delete table[ids[i]];
			},
		}),
		enumerable: false,
		configurable: false,
		writable: false,
	});
})();
`

// qjsContext implements core.Context for the QuickJS engine.
type qjsContext struct {
	owner *qjsIsolate
	vm    *quickjs.VM
	jobs  jobQueue

	closeOnce sync.Once
	closed    bool

	// released holds handle ids whose Go values were released or
	// collected; they are dropped from the table on the next call.
	releasedMu sync.Mutex
	released   []int
}

var _ core.Context = (*qjsContext)(nil)

// qjsScript is a syntax-checked script. QuickJS compiles and runs in one
// step, so the source is kept and evaluated on Run.
type qjsScript struct {
	owner  *qjsIsolate
	source string
	origin string
}

var _ core.Script = (*qjsScript)(nil)

// CompileScript syntax-checks source with esbuild, for located errors,
// and then compiles it as global code without running it.
func (c *qjsContext) CompileScript(source, origin string) (core.Script, error) {
	if c.closed {
		return nil, core.NewException("Error: context is closed")
	}
	if err := esm.CheckScript(source, origin); err != nil {
		return nil, err
	}
	if err := compileOnly(c.vm, source); err != nil {
		return nil, err
	}
	return &qjsScript{owner: c.owner, source: source, origin: origin}, nil
}

// compileOnly parses source as global code. The bytecode is discarded.
func compileOnly(vm *quickjs.VM, source string) error {
	if _, err := vm.Compile(source, quickjs.EvalGlobal); err != nil {
		return core.AsException(err)
	}
	return nil
}

// Run evaluates source as global code and stashes the completion value.
func (c *qjsContext) Run(source, origin string) (core.Value, error) {
	if c.closed {
		return nil, core.NewException("Error: context is closed")
	}
	c.dropReleased()
	v, err := c.vm.EvalValue(source, quickjs.EvalGlobal)
	if err != nil {
		return nil, core.AsException(err)
	}
	return c.stash(v)
}

// PerformMicrotaskCheckpoint pumps the QuickJS job queue. Rejections
// raised by jobs stay inside the engine, as with V8's checkpoint.
func (c *qjsContext) PerformMicrotaskCheckpoint() {
	if c.closed {
		return
	}
	c.dropReleased()
	c.jobs.drain()
}

// Exec evaluates source as global code without keeping its completion
// value.
func (c *qjsContext) Exec(source, origin string) error {
	if c.closed {
		return core.NewException("Error: context is closed")
	}
	c.dropReleased()
	if err := c.eval(source); err != nil {
		return core.AsException(err)
	}
	return nil
}

// EvalString evaluates source as global code and converts the completion
// value to a Go string.
func (c *qjsContext) EvalString(source, origin string) (string, error) {
	if c.closed {
		return "", core.NewException("Error: context is closed")
	}
	c.dropReleased()
	s, err := c.evalString(source)
	if err != nil {
		return "", core.AsException(err)
	}
	return s, nil
}

// release queues id for removal from the handle table. It may be called
// from any goroutine, including the runtime's cleanup goroutine.
func (c *qjsContext) release(id int) {
	c.releasedMu.Lock()
	c.released = append(c.released, id)
	c.releasedMu.Unlock()
}

// dropReleased deletes the queued ids from the handle table.
func (c *qjsContext) dropReleased() {
	c.releasedMu.Lock()
	ids := c.released
	c.released = nil
	c.releasedMu.Unlock()
	if len(ids) == 0 {
		return
	}

	var b strings.Builder
	b.WriteString("globalThis.__v8host_handles.drop([")
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(id))
	}
	b.WriteString("])")
	_ = c.eval(b.String())
}

// Close closes the context's VM.
func (c *qjsContext) Close() {
	c.closeVM()
	c.owner.forget(c)
}

func (c *qjsContext) closeVM() {
	c.closeOnce.Do(func() {
		c.closed = true
		c.vm.Close()
	})
}

// Run evaluates the script in ctx.
func (s *qjsScript) Run(ctx core.Context) (core.Value, error) {
	c, ok := ctx.(*qjsContext)
	if !ok || c == nil {
		return nil, core.NewException("Error: script run in a non-QuickJS context (%T)", ctx)
	}
	if c.owner != s.owner {
		return nil, core.NewException("Error: script was compiled in a different isolate")
	}
	return c.Run(s.source, s.origin)
}

// stash moves v into the handle table and frees the Go-side reference.
func (c *qjsContext) stash(v quickjs.Value) (core.Value, error) {
	defer v.Free()
	if err := c.setGlobal(stashSlot, v); err != nil {
		return nil, fmt.Errorf("stashing value: %w", err)
	}
	id, err := c.evalInt("globalThis.__v8host_handles.take()")
	if err != nil {
		return nil, fmt.Errorf("registering value handle: %w", err)
	}
	undef, err := c.evalBool(fmt.Sprintf("globalThis.__v8host_handles.isUndefined(%d)", id))
	if err != nil {
		return nil, fmt.Errorf("inspecting value handle: %w", err)
	}
	val := &qjsValue{ctx: c, id: id, undefined: undef}
	val.cleanup = runtime.AddCleanup(val, c.release, id)
	return val, nil
}

// eval evaluates JavaScript and discards the result.
func (c *qjsContext) eval(js string) error {
	v, err := c.vm.EvalValue(js, quickjs.EvalGlobal)
	if err != nil {
		return err
	}
	v.Free()
	return nil
}

// evalString evaluates JavaScript and returns the result as a Go string.
func (c *qjsContext) evalString(js string) (string, error) {
	result, err := c.vm.Eval(js, quickjs.EvalGlobal)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", nil
	}
	return fmt.Sprint(result), nil
}

// evalBool evaluates JavaScript and returns the result as a Go bool.
func (c *qjsContext) evalBool(js string) (bool, error) {
	result, err := c.vm.Eval(js, quickjs.EvalGlobal)
	if err != nil {
		return false, err
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expected bool, got %T", result)
	}
	return b, nil
}

// evalInt evaluates JavaScript and returns the result as a Go int.
func (c *qjsContext) evalInt(js string) (int, error) {
	result, err := c.vm.Eval(js, quickjs.EvalGlobal)
	if err != nil {
		return 0, err
	}
	switch v := result.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("expected int, got %T", result)
	}
}

// setGlobal sets a global property on the VM's global object.
func (c *qjsContext) setGlobal(name string, value any) error {
	atom, err := c.vm.NewAtom(name)
	if err != nil {
		return fmt.Errorf("creating atom %q: %w", name, err)
	}
	glob := c.vm.GlobalObject()
	defer glob.Free()
	return glob.SetProperty(atom, value)
}

// qjsValue is a handle-table entry. The entry is dropped when the value
// is released or garbage collected.
type qjsValue struct {
	ctx       *qjsContext
	id        int
	undefined bool

	cleanup  runtime.Cleanup
	released atomic.Bool
}

var _ core.Value = (*qjsValue)(nil)

// IsUndefined reports whether the value was undefined when captured.
func (v *qjsValue) IsUndefined() bool { return v.undefined }

// Release drops the table entry. Later reads fail.
func (v *qjsValue) Release() {
	if v.released.Swap(true) {
		return
	}
	v.cleanup.Stop()
	v.ctx.release(v.id)
}

// ToString coerces the value with String(). Handles are per VM, so a
// different context cannot read them.
func (v *qjsValue) ToString(ctx core.Context) (string, bool) {
	if c, ok := ctx.(*qjsContext); ok && c != nil && c != v.ctx {
		return "", false
	}
	if v.ctx.closed || v.released.Load() {
		return "", false
	}
	s, err := v.ctx.evalString(fmt.Sprintf("globalThis.__v8host_handles.toString(%d)", v.id))
	if err != nil {
		return "", false
	}
	rest, ok := strings.CutPrefix(s, "1")
	if !ok {
		return "", false
	}
	return rest, true
}
