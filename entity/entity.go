package entity

import (
	"sync"

	"github.com/metaffi/host/cdt"
	"github.com/metaffi/host/errs"
	"github.com/metaffi/host/registry"
	"github.com/metaffi/host/types"
	"github.com/metaffi/host/xllr"
	"github.com/metaffi/host/xlog"
)

var log = xlog.For("entity.loader")

// maxArity mirrors cdt.MaxCellCount: the ABI encodes param/retval counts as
// signed 8-bit integers (spec.md §4.6 step 2).
const maxArity = cdt.MaxCellCount

// lifecycleState models spec.md §4.8's Created → Loaded → Invocable → Freed
// state machine explicitly, rather than a bare bool, so double-free and
// call-before-load are caught defensively instead of silently corrupting
// state.
type lifecycleState int

const (
	stateCreated lifecycleState = iota
	stateLoaded
	stateInvocable
	stateFreed
)

// Entity wraps a resolved foreign stub: a function, method, field
// accessor, or global accessor (see GLOSSARY). An Entity transitions
// Created → Loaded on successful Load, → Invocable on its first successful
// call (package dispatch drives this transition), and → Freed exactly
// once, by an explicit Free. No finalizer is registered: an Entity that is
// garbage-collected without Free never reaches free_xcall.
type Entity struct {
	mu    sync.Mutex
	state lifecycleState

	Runtime string
	Module  string
	Path    string

	ParamsTypes []types.Info
	RetvalTypes []types.Info

	xcall   xllr.XCall
	owning  bool
	disp    xllr.Dispatcher
	reg     *registry.Registry
	runtime string // canonical (xllr.-prefixed) runtime name, for registry.Release
}

// Loader resolves entity paths against a bound dispatcher and plugin
// registry.
type Loader struct {
	disp xllr.Dispatcher
	reg  *registry.Registry
}

// NewLoader builds a Loader over disp and reg.
func NewLoader(disp xllr.Dispatcher, reg *registry.Registry) *Loader {
	return &Loader{disp: disp, reg: reg}
}

// Load resolves entityPath within module for runtime, acquiring the
// runtime plugin first if it is not already resident, per spec.md §4.6:
//  1. entityPath syntax is validated by ParsePath.
//  2. both type-descriptor lists must fit in 127 entries.
//  3. descriptors are defensively copied (the caller retains its own).
//  4. load_entity is invoked; a null stub with no error is EntityNotFound,
//     a non-empty out_err is PluginError.
//  5. the stub, types, and runtime name are wrapped in an owning Entity.
func (l *Loader) Load(runtime, module, entityPath string, params, retvals []types.Info) (*Entity, error) {
	if _, err := ParsePath(entityPath); err != nil {
		return nil, err
	}
	if len(params) > maxArity {
		return nil, &errs.ArityError{What: "parameters", Expected: maxArity, Actual: len(params)}
	}
	if len(retvals) > maxArity {
		return nil, &errs.ArityError{What: "return values", Expected: maxArity, Actual: len(retvals)}
	}

	canonicalRuntime, err := l.reg.Acquire(runtime)
	if err != nil {
		return nil, err
	}

	paramsCopy := append([]types.Info(nil), params...)
	retvalsCopy := append([]types.Info(nil), retvals...)

	paramKinds := infoKinds(paramsCopy)
	retvalKinds := infoKinds(retvalsCopy)

	x, err := l.disp.LoadEntity(canonicalRuntime, module, entityPath, paramKinds, retvalKinds)
	if err != nil {
		_ = l.reg.Release(runtime)
		return nil, err
	}
	if x.IsNull() {
		_ = l.reg.Release(runtime)
		return nil, &errs.EntityNotFound{Runtime: canonicalRuntime, Module: module, EntityPath: entityPath}
	}

	e := &Entity{
		state:       stateLoaded,
		Runtime:     runtime,
		Module:      module,
		Path:        entityPath,
		ParamsTypes: paramsCopy,
		RetvalTypes: retvalsCopy,
		xcall:       x,
		owning:      true,
		disp:        l.disp,
		reg:         l.reg,
		runtime:     canonicalRuntime,
	}
	log.Debug("entity loaded", "runtime", canonicalRuntime, "module", module, "path", entityPath)
	return e, nil
}

// Borrow wraps an already-resolved stub without taking ownership: Free on
// a borrowed Entity never calls free_xcall or releases the runtime plugin
// (spec.md §8 invariant 8 "dropping a borrowed entity calls it zero
// times"), matching a callable extracted from a CDT cell rather than
// loaded directly.
func Borrow(disp xllr.Dispatcher, runtime, module, path string, x xllr.XCall, params, retvals []types.Info) *Entity {
	return &Entity{
		state:       stateLoaded,
		Runtime:     runtime,
		Module:      module,
		Path:        path,
		ParamsTypes: params,
		RetvalTypes: retvals,
		xcall:       x,
		owning:      false,
		disp:        disp,
	}
}

// XCall returns the entity's underlying stub for package dispatch to
// invoke. Calling it on a Freed entity is a caller bug; dispatch validates
// state before using it.
func (e *Entity) XCall() xllr.XCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.xcall
}

// Dispatcher returns the bound XLLR dispatcher this entity's stub belongs
// to, for package dispatch to invoke against.
func (e *Entity) Dispatcher() xllr.Dispatcher {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.disp
}

// MarkInvocable transitions Loaded → Invocable after a successful first
// call. It is a no-op once already Invocable.
func (e *Entity) MarkInvocable() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == stateLoaded {
		e.state = stateInvocable
	}
}

// State reports the entity's current lifecycle state, exported for tests
// and diagnostics rather than call-path logic.
func (e *Entity) State() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case stateCreated:
		return "created"
	case stateLoaded:
		return "loaded"
	case stateInvocable:
		return "invocable"
	default:
		return "freed"
	}
}

// IsUsable reports whether the entity may still be passed to dispatch.Call.
func (e *Entity) IsUsable() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == stateLoaded || e.state == stateInvocable
}

// Free releases the entity's stub exactly once (spec.md §8 invariant 8).
// A borrowed entity's Free never reaches the dispatcher; an owning
// entity's does, then releases its runtime-plugin acquisition. Errors are
// logged and swallowed per spec.md §4.9 — destructors never propagate.
func (e *Entity) Free() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == stateFreed {
		return nil
	}
	e.state = stateFreed

	if !e.owning {
		return nil
	}

	if err := e.disp.FreeXCall(e.runtime, e.xcall); err != nil {
		log.Error("free_xcall failed", "runtime", e.runtime, "error", err)
	}
	if err := e.reg.Release(e.Runtime); err != nil {
		log.Error("release runtime plugin failed", "runtime", e.Runtime, "error", err)
	}
	return nil
}

func infoKinds(infos []types.Info) []types.Kind {
	out := make([]types.Kind, len(infos))
	for i, info := range infos {
		out[i] = info.Kind
	}
	return out
}
