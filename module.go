package v8host

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/cryguy/v8host/internal/core"
	"github.com/cryguy/v8host/internal/esm"
	"go.uber.org/zap"
)

// ModuleStatus is the lifecycle state of a Module.
type ModuleStatus int

const (
	ModuleUninstantiated ModuleStatus = iota
	ModuleInstantiating
	ModuleInstantiated
	ModuleEvaluating
	ModuleEvaluated
	ModuleErrored
)

func (s ModuleStatus) String() string {
	switch s {
	case ModuleUninstantiated:
		return "uninstantiated"
	case ModuleInstantiating:
		return "instantiating"
	case ModuleInstantiated:
		return "instantiated"
	case ModuleEvaluating:
		return "evaluating"
	case ModuleEvaluated:
		return "evaluated"
	case ModuleErrored:
		return "errored"
	default:
		return fmt.Sprintf("ModuleStatus(%d)", int(s))
	}
}

// ImportRequest is a static import declared by a module.
type ImportRequest struct {
	Specifier string
	// Attributes holds the import attributes from a `with { ... }`
	// clause, or nil.
	Attributes map[string]string
}

// ResolveFunc supplies the module a static import refers to. It is
// called synchronously during InstantiateModule, once for every import of
// every module being linked. referrer is the importing module.
//
// Returning an error or a nil module fails the instantiation.
type ResolveFunc func(ctx *Context, specifier string, attrs map[string]string, referrer *Module) (*Module, error)

// Module is a compiled ES module.
type Module struct {
	id       int64
	iso      *Isolate
	origin   Origin
	body     string
	requests []ImportRequest

	mu     sync.Mutex
	status ModuleStatus
	ctx    *Context
	links  []esm.Link
	deps   []*Module
}

// Origin returns the origin the module was compiled with.
func (m *Module) Origin() Origin { return m.origin }

// Status returns the module's current lifecycle state.
func (m *Module) Status() ModuleStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Requests returns the module's static imports in source order.
func (m *Module) Requests() []ImportRequest {
	out := make([]ImportRequest, len(m.requests))
	for i, r := range m.requests {
		out[i] = ImportRequest{Specifier: r.Specifier, Attributes: maps.Clone(r.Attributes)}
	}
	return out
}

func (m *Module) state() (ModuleStatus, *Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status, m.ctx
}

// CompileModule parses source as an ES module. Syntax errors are reported
// as the failure arm. The module must be instantiated in a context before
// it can be evaluated.
func (iso *Isolate) CompileModule(origin Origin, source string) Result[*Module] {
	return capture(iso, nil, "compile module", func(tc *tryCatch) (*Module, bool) {
		mod, err := esm.Transform(source, origin.Name)
		if err != nil {
			tc.catch(err)
			return nil, false
		}
		id := iso.nextModuleID.Add(1)
		// esbuild leaves some early errors, such as bad regular
		// expressions, to the engine.
		wrapped, err := esm.DefineSource(id, nil, mod.Body)
		if err != nil {
			tc.catch(err)
			return nil, false
		}
		if err := iso.backend.CheckSyntax(wrapped, origin.Name); err != nil {
			tc.catch(err)
			return nil, false
		}
		requests := make([]ImportRequest, len(mod.Requests))
		for i, r := range mod.Requests {
			requests[i] = ImportRequest{Specifier: r.Specifier, Attributes: r.Attributes}
		}
		return &Module{
			id:       id,
			iso:      iso,
			origin:   origin,
			body:     mod.Body,
			requests: requests,
		}, true
	})
}

// InstantiateModule links m and everything it imports into c, calling
// resolve for each static import of each module not yet linked. It
// reports whether linking fully succeeded; on failure every module this
// call touched is returned to ModuleUninstantiated and may be tried
// again.
//
// A module already instantiated in c is left as is and reported as
// success without calling resolve.
func (c *Context) InstantiateModule(m *Module, resolve ResolveFunc) (ok bool) {
	if c == nil || m == nil || c.closed.Load() || m.iso != c.iso || c.iso.isDisposed() {
		return false
	}
	if st, mctx := m.state(); mctx == c && st >= ModuleInstantiated {
		return true
	}

	log := Logger().With(zap.Uint64("isolate", c.iso.id), zap.String("module", m.origin.Name))

	c.iso.beginScope()
	defer c.iso.endScope()

	l := &linker{ctx: c, resolve: resolve}
	defer func() {
		if r := recover(); r != nil {
			log.Debug("module instantiation panicked", zap.Any("panic", r))
			l.reset()
			ok = false
		}
	}()

	if err := l.link(m); err != nil {
		log.Debug("module instantiation failed", zap.Error(err))
		l.reset()
		return false
	}
	if err := l.define(); err != nil {
		log.Debug("module definition failed", zap.Error(err))
		l.reset()
		return false
	}
	l.commit()
	return true
}

// linker walks one instantiation attempt depth first.
type linker struct {
	ctx     *Context
	resolve ResolveFunc

	touched []*Module // every module claimed by this attempt
	ordered []*Module // dependencies before importers
}

var errNoResolver = errors.New("no resolve callback")

func (l *linker) link(m *Module) error {
	m.mu.Lock()
	switch {
	case m.iso != l.ctx.iso:
		m.mu.Unlock()
		return fmt.Errorf("module %q belongs to a different isolate", m.origin.Name)
	case m.ctx != nil && m.ctx != l.ctx:
		m.mu.Unlock()
		return fmt.Errorf("module %q is linked in a different context", m.origin.Name)
	case m.status != ModuleUninstantiated:
		// Already linked here, or on the current path of a cycle.
		m.mu.Unlock()
		return nil
	}
	m.status = ModuleInstantiating
	m.ctx = l.ctx
	m.mu.Unlock()
	l.touched = append(l.touched, m)

	links := make([]esm.Link, 0, len(m.requests))
	deps := make([]*Module, 0, len(m.requests))
	for _, req := range m.requests {
		if l.resolve == nil {
			return fmt.Errorf("resolving %q from %q: %w", req.Specifier, m.origin.Name, errNoResolver)
		}
		dep, err := l.resolve(l.ctx, req.Specifier, maps.Clone(req.Attributes), m)
		if err != nil {
			return fmt.Errorf("resolving %q from %q: %w", req.Specifier, m.origin.Name, err)
		}
		if dep == nil {
			return fmt.Errorf("resolving %q from %q: no module returned", req.Specifier, m.origin.Name)
		}
		if err := l.link(dep); err != nil {
			return err
		}
		links = append(links, esm.Link{Specifier: req.Specifier, ID: dep.id})
		deps = append(deps, dep)
	}

	m.mu.Lock()
	m.links = links
	m.deps = deps
	m.mu.Unlock()
	l.ordered = append(l.ordered, m)
	return nil
}

// define registers each newly linked module body in the context. The
// engine parses the bodies here, so syntax the module parser accepted but
// the engine rejects fails the instantiation.
func (l *linker) define() error {
	for _, m := range l.ordered {
		src, err := esm.DefineSource(m.id, m.links, m.body)
		if err != nil {
			return err
		}
		if err := l.ctx.backend.Exec(src, m.origin.Name); err != nil {
			return fmt.Errorf("defining module %q: %w", m.origin.Name, err)
		}
	}
	return nil
}

func (l *linker) commit() {
	for _, m := range l.ordered {
		m.mu.Lock()
		m.status = ModuleInstantiated
		m.mu.Unlock()
	}
}

func (l *linker) reset() {
	for _, m := range l.touched {
		m.mu.Lock()
		m.status = ModuleUninstantiated
		m.ctx = nil
		m.links = nil
		m.deps = nil
		m.mu.Unlock()
	}
}

// EvaluateModule runs m in ctx after running the modules it imports, in
// import order. On success the value is the module's namespace object.
// A module that threw stays errored and evaluating it again reports the
// same exception.
func (iso *Isolate) EvaluateModule(ctx *Context, m *Module) Result[*Value] {
	return capture(iso, ctx, "evaluate module", func(tc *tryCatch) (*Value, bool) {
		switch {
		case ctx == nil:
			tc.catch(core.NewException("TypeError: evaluate module: context is nil"))
			return nil, false
		case m == nil:
			tc.catch(core.NewException("TypeError: evaluate module: module is nil"))
			return nil, false
		case m.iso != iso:
			tc.catch(core.NewException("Error: module was compiled in a different isolate"))
			return nil, false
		}
		if st, mctx := m.state(); mctx != ctx || st < ModuleInstantiated {
			tc.catch(core.NewException("Error: module %q is not instantiated in this context", m.origin.Name))
			return nil, false
		}

		graph := m.graph()
		for _, g := range graph {
			g.mu.Lock()
			if g.status == ModuleInstantiated {
				g.status = ModuleEvaluating
			}
			g.mu.Unlock()
		}

		v, err := ctx.backend.Run(esm.EvaluateSource(m.id), m.origin.Name)
		ctx.syncModuleStates(graph, err != nil)
		if err != nil {
			tc.catch(err)
			return nil, false
		}
		if v == nil {
			return nil, false
		}
		return &Value{ctx: ctx, handle: v}, true
	})
}

// graph returns m and every module it transitively imports, dependencies
// first.
func (m *Module) graph() []*Module {
	var (
		out  []*Module
		seen = make(map[*Module]bool)
		walk func(*Module)
	)
	walk = func(n *Module) {
		if seen[n] {
			return
		}
		seen[n] = true
		n.mu.Lock()
		deps := slices.Clone(n.deps)
		n.mu.Unlock()
		for _, d := range deps {
			walk(d)
		}
		out = append(out, n)
	}
	walk(m)
	return out
}

// syncModuleStates copies the registry's view of each module's outcome
// back onto the Go handles. If the registry cannot be queried, modules
// still marked evaluating take the outcome of the whole evaluation.
func (c *Context) syncModuleStates(graph []*Module, failed bool) {
	ids := make([]int64, len(graph))
	for i, m := range graph {
		ids[i] = m.id
	}

	var states []string
	if s, err := c.backend.EvalString(esm.StatesSource(ids), registryOrigin); err == nil {
		states = esm.ParseStates(s)
	}

	for i, m := range graph {
		var state string
		if i < len(states) {
			state = states[i]
		}
		m.mu.Lock()
		switch {
		case state == esm.StateEvaluated:
			m.status = ModuleEvaluated
		case state == esm.StateErrored:
			m.status = ModuleErrored
		case state == esm.StateLinked && m.status == ModuleEvaluating:
			m.status = ModuleInstantiated
		case m.status == ModuleEvaluating && failed:
			m.status = ModuleErrored
		case m.status == ModuleEvaluating:
			m.status = ModuleEvaluated
		}
		m.mu.Unlock()
	}
}
