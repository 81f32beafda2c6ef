package cdt

import "github.com/metaffi/host/types"

// Callable is a value-form entity: a function pointer plus its type
// arrays, transportable inside a CDT cell (spec §3 "callable", §4.8
// "callables travelling in a CDT cell"). A callable wrapper on the
// receiving side never owns the underlying Fn; it owns only the local
// metadata copy (ParamsTypes/RetvalTypes). That copy is an ordinary Go
// slice: it is not allocated or freed through the cross-ABI allocator
// (alloc_memory/free_memory), and on the cgo path it crosses only as part
// of cdt's wire encoding.
type Callable struct {
	// Fn is the opaque foreign function pointer. On the Go host side this
	// is either a *xllr C function pointer (via cgo, crossing the ABI) or,
	// for a callable materialized from a host Go func passed out to a
	// foreign runtime, an internal dispatch token; see xllr for the cgo
	// binding.
	Fn any

	// RuntimeID identifies which runtime Fn is invocable through.
	// DESIGN.md open question #2: cross-runtime callables are treated as
	// unsupported, mirroring the source's JVM-accessor-assumes-local
	// behavior — RuntimeID must equal cdt.LocalRuntimeID for SetCallable
	// to accept the value.
	RuntimeID uint64

	ParamsTypes []types.Kind
	RetvalTypes []types.Kind
}

// IsNull reports whether c has no invocable function pointer.
func (c *Callable) IsNull() bool {
	return c == nil || c.Fn == nil
}
