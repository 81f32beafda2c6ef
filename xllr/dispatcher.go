// Package xllr binds the central MetaFFI dispatcher shared library (XLLR)
// and exposes its C ABI to the rest of the host engine. Grounded on the
// teacher's "load a native module, bind its exports, wrap them in typed Go
// methods" shape (saferwall-pe parses a PE's export directory; here the
// directory is dlopen/dlsym against the real XLLR library instead of a
// parsed file), and on the cgo struct-pointer idiom of
// other_examples/f1100efe_cohere-ai-melody's gobindings package (opaque
// native pointer wrapped in a Go type, released through a matching native
// call).
package xllr

import (
	"unsafe"

	"github.com/metaffi/host/cdt"
	"github.com/metaffi/host/types"
)

// XCall is an opaque handle to a resolved foreign entity stub ("xcall*" in
// spec.md §4.6/§4.7/§6), returned by LoadEntity or MakeCallable and
// consumed by the four Invoke* variants and FreeXCall. The zero value is
// null.
type XCall struct {
	ptr unsafe.Pointer
}

// IsNull reports whether x carries no native stub.
func (x XCall) IsNull() bool { return x.ptr == nil }

// NewXCall wraps a raw native stub pointer as an XCall. Production code
// never calls this directly — only the cgo dispatcher and a Dispatcher
// fake (internal/testplugin, or a test's own stand-in) construct XCall
// values; everyone else only ever receives and passes one through.
func NewXCall(ptr unsafe.Pointer) XCall { return XCall{ptr: ptr} }

// RawPointer returns x's underlying native pointer. Only a Dispatcher
// implementation (the cgo binding, or a fake like internal/testplugin)
// calls this, to recover what it boxed into x via NewXCall; package
// entity and package dispatch only ever pass an XCall through unexamined.
func RawPointer(x XCall) unsafe.Pointer { return x.ptr }

// Dispatcher is the Go-facing surface of the XLLR C ABI (spec.md §4.4): one
// method per bound symbol, plus the four call-invocation variants of §4.7
// (the xcall* returned by LoadEntity/MakeCallable is itself a vtable of
// these four signatures, selected by parameter/retval arity — see
// original_source/api/cpp/src/metaffi_api.cpp's call_with_cdts). Tests use
// internal/testplugin's pure-Go fake; production code uses the cgo dlopen
// binding in cgo_dlopen.go.
type Dispatcher interface {
	// LoadRuntimePlugin causes XLLR to dlopen the named runtime plugin.
	LoadRuntimePlugin(name string) error

	// FreeRuntimePlugin decrements the named plugin's refcount. Never
	// actually unloads (spec.md §4.5, §9 "Go's dlclose limitation").
	FreeRuntimePlugin(name string) error

	// LoadEntity resolves entityPath within module for runtime, returning a
	// stub. A null XCall with no error is not expected of a well-behaved
	// dispatcher; callers (package entity) treat null+no-error as
	// EntityNotFound.
	LoadEntity(runtime, module, entityPath string, paramsTypes, retvalTypes []types.Kind) (XCall, error)

	// FreeXCall releases a stub previously returned by LoadEntity or
	// MakeCallable.
	FreeXCall(runtime string, x XCall) error

	// MakeCallable builds a stub over a host-side context pointer, for
	// exposing a host callback to a foreign runtime.
	MakeCallable(runtime string, ctx unsafe.Pointer, paramsTypes, retvalTypes []types.Kind) (XCall, error)

	// InvokeNoParamsNoRet calls x with neither params nor retvals.
	InvokeNoParamsNoRet(x XCall) error

	// InvokeParamsNoRet calls x, passing params, expecting no retvals.
	InvokeParamsNoRet(x XCall, params *cdt.CDTS) error

	// InvokeNoParamsRet calls x with no params, filling retvals in place.
	InvokeNoParamsRet(x XCall, retvals *cdt.CDTS) error

	// InvokeParamsRet calls x, passing params, filling retvals in place.
	InvokeParamsRet(x XCall, params, retvals *cdt.CDTS) error
}
