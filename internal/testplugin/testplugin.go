// Package testplugin is an in-process fake of the XLLR C ABI (package
// xllr's Dispatcher interface), standing in for a real dlopen'd dispatcher
// shared library so the "test" runtime named in spec.md §8 scenarios S5
// and S6 can be exercised without a compiled .so on the test machine.
// Grounded on original_source/runtime_manager/go/runtime_manager_test.cpp's
// pattern of a fake/mock runtime manager wired in place of the real one
// for host-side tests.
package testplugin

import (
	"sync"
	"unsafe"

	"github.com/metaffi/host/cdt"
	"github.com/metaffi/host/errs"
	"github.com/metaffi/host/types"
	"github.com/metaffi/host/xllr"
)

// entityFn is the behavior bound to one entity path: given params, fill
// retvals in place (or return an error, mirroring a foreign xcall).
type entityFn func(params, retvals *cdt.CDTS) error

// stub is the XCall payload this package hands back: a pointer to the
// entityFn the caller must invoke, boxed so xllr.XCall's opaque
// unsafe.Pointer can carry it across the Dispatcher interface boundary.
type stub struct {
	path string
	fn   entityFn
}

// Dispatcher implements xllr.Dispatcher entirely in Go. The zero value is
// not usable; construct with New.
type Dispatcher struct {
	mu sync.Mutex

	loadedPlugins map[string]bool
	entities      map[string]entityFn

	// failLoadEntity, when non-empty, is returned as load_entity's out_err
	// string (spec.md §8 S6) on every LoadEntity call, regardless of path.
	failLoadEntity string
	loadAttempts   int
}

// New builds a Dispatcher with the "test" runtime's two canonical
// entities wired (spec.md §8 S5): "callable=add_int64" sums its two int64
// params into its one int64 retval; "callable=no_op" takes and returns
// nothing.
func New() *Dispatcher {
	d := &Dispatcher{
		loadedPlugins: make(map[string]bool),
		entities:      make(map[string]entityFn),
	}
	d.entities["callable=add_int64"] = func(params, retvals *cdt.CDTS) error {
		a, err := params.Cells[0].Int64()
		if err != nil {
			return err
		}
		b, err := params.Cells[1].Int64()
		if err != nil {
			return err
		}
		retvals.Cells[0].SetInt64(types.Int64, a+b)
		return nil
	}
	d.entities["callable=no_op"] = func(params, retvals *cdt.CDTS) error {
		return nil
	}
	return d
}

// FailLoadEntity configures every subsequent LoadEntity call to fail with
// message (spec.md §8 S6: "configure the runtime test to fail load_entity
// with the string \"bad\"").
func (d *Dispatcher) FailLoadEntity(message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failLoadEntity = message
}

// LoadAttempts reports how many times LoadEntity has been called, so S6's
// "a second load attempt still reaches the dispatcher" can be asserted.
func (d *Dispatcher) LoadAttempts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loadAttempts
}

func (d *Dispatcher) LoadRuntimePlugin(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loadedPlugins[name] = true
	return nil
}

func (d *Dispatcher) FreeRuntimePlugin(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.loadedPlugins, name)
	return nil
}

func (d *Dispatcher) LoadEntity(runtime, module, entityPath string, paramsTypes, retvalTypes []types.Kind) (xllr.XCall, error) {
	d.mu.Lock()
	d.loadAttempts++
	failMsg := d.failLoadEntity
	fn, ok := d.entities[entityPath]
	d.mu.Unlock()

	if failMsg != "" {
		return xllr.XCall{}, &errs.PluginError{Runtime: runtime, Op: "load_entity", Message: failMsg}
	}
	if !ok {
		return xllr.XCall{}, nil
	}
	s := &stub{path: entityPath, fn: fn}
	return xllr.NewXCall(unsafe.Pointer(s)), nil
}

func (d *Dispatcher) FreeXCall(runtime string, x xllr.XCall) error {
	return nil
}

func (d *Dispatcher) MakeCallable(runtime string, ctx unsafe.Pointer, paramsTypes, retvalTypes []types.Kind) (xllr.XCall, error) {
	return xllr.XCall{}, nil
}

func (d *Dispatcher) InvokeNoParamsNoRet(x xllr.XCall) error {
	return d.invoke(x, nil, nil)
}

func (d *Dispatcher) InvokeParamsNoRet(x xllr.XCall, params *cdt.CDTS) error {
	return d.invoke(x, params, nil)
}

func (d *Dispatcher) InvokeNoParamsRet(x xllr.XCall, retvals *cdt.CDTS) error {
	return d.invoke(x, nil, retvals)
}

func (d *Dispatcher) InvokeParamsRet(x xllr.XCall, params, retvals *cdt.CDTS) error {
	return d.invoke(x, params, retvals)
}

func (d *Dispatcher) invoke(x xllr.XCall, params, retvals *cdt.CDTS) error {
	s := stubFromXCall(x)
	if s == nil {
		return &errs.PluginError{Runtime: "test", Op: "invoke", Message: "null xcall"}
	}
	return s.fn(params, retvals)
}

func stubFromXCall(x xllr.XCall) *stub {
	ptr := xllr.RawPointer(x)
	if ptr == nil {
		return nil
	}
	return (*stub)(ptr)
}
