// Package xllr's real binding: dlopen the resolved dispatcher library,
// dlsym each ABI entry point named in spec.md §4.4, and wrap them as a
// Dispatcher. Grounded on other_examples/f1100efe_cohere-ai-melody's
// gobindings package (C.CString/C.free, runtime.SetFinalizer-guarded
// native pointers) and on original_source/utils/xllr_api_wrapper.cpp's
// exact symbol signatures (load_runtime_plugin, load_entity, free_xcall,
// make_callable all take a trailing char** out_err). Because a dlsym'd
// address has no static C type, each symbol gets a tiny C shim in the
// cgo preamble that casts it to the right function-pointer type before
// calling through — the same "opaque pointer + typed call wrapper"
// shape the teacher's gobindings.go uses for its FFI boundary, just with
// the pointer resolved at runtime instead of linked at build time.
//
// The wire format crossing this boundary is cdt/wire.go's self-describing
// byte encoding (see that file's doc comment): params are encoded to
// bytes, copied into C heap memory with C.CBytes (freed by this side with
// C.free after the call), and handed across as (pointer, length) pairs;
// return buffers come back dispatcher-owned and are released through
// free_memory once decoded. alloc_memory is bound but not called here.
//
//go:build !windows

package xllr

// #cgo linux LDFLAGS: -ldl
// #include <dlfcn.h>
// #include <stdlib.h>
// #include <stdint.h>
//
// typedef void (*load_runtime_plugin_fn)(const char*, char**);
// typedef void (*free_runtime_plugin_fn)(const char*, char**);
// typedef void* (*load_entity_fn)(const char*, const char*, const char*, uint32_t*, int8_t, uint32_t*, int8_t, char**);
// typedef void (*free_xcall_fn)(const char*, void*, char**);
// typedef void* (*make_callable_fn)(const char*, void*, uint32_t*, int8_t, uint32_t*, int8_t, char**);
// typedef void (*xcall_no_params_no_ret_fn)(void*, char**);
// typedef void (*xcall_params_no_ret_fn)(void*, unsigned char*, uint64_t, char**);
// typedef void (*xcall_no_params_ret_fn)(void*, unsigned char**, uint64_t*, char**);
// typedef void (*xcall_params_ret_fn)(void*, unsigned char*, uint64_t, unsigned char**, uint64_t*, char**);
//
// static void call_load_runtime_plugin(void *fn, const char *name, char **err) {
//   ((load_runtime_plugin_fn)fn)(name, err);
// }
// static void call_free_runtime_plugin(void *fn, const char *name, char **err) {
//   ((free_runtime_plugin_fn)fn)(name, err);
// }
// static void* call_load_entity(void *fn, const char *runtime, const char *module, const char *entity_path,
//                                uint32_t *ptypes, int8_t nparams, uint32_t *rtypes, int8_t nretvals, char **err) {
//   return ((load_entity_fn)fn)(runtime, module, entity_path, ptypes, nparams, rtypes, nretvals, err);
// }
// static void call_free_xcall(void *fn, const char *runtime, void *x, char **err) {
//   ((free_xcall_fn)fn)(runtime, x, err);
// }
// static void* call_make_callable(void *fn, const char *runtime, void *ctx,
//                                  uint32_t *ptypes, int8_t nparams, uint32_t *rtypes, int8_t nretvals, char **err) {
//   return ((make_callable_fn)fn)(runtime, ctx, ptypes, nparams, rtypes, nretvals, err);
// }
// static void call_xcall_no_params_no_ret(void *fn, void *x, char **err) {
//   ((xcall_no_params_no_ret_fn)fn)(x, err);
// }
// static void call_xcall_params_no_ret(void *fn, void *x, unsigned char *params, uint64_t params_len, char **err) {
//   ((xcall_params_no_ret_fn)fn)(x, params, params_len, err);
// }
// static void call_xcall_no_params_ret(void *fn, void *x, unsigned char **ret, uint64_t *ret_len, char **err) {
//   ((xcall_no_params_ret_fn)fn)(x, ret, ret_len, err);
// }
// static void call_xcall_params_ret(void *fn, void *x, unsigned char *params, uint64_t params_len,
//                                    unsigned char **ret, uint64_t *ret_len, char **err) {
//   ((xcall_params_ret_fn)fn)(x, params, params_len, ret, ret_len, err);
// }
// static void call_free_string_wrapper(void *fn, char *s) {
//   ((void(*)(char*))fn)(s);
// }
// static void call_free_memory_wrapper(void *fn, void *p) {
//   ((void(*)(void*))fn)(p);
// }
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/metaffi/host/cdt"
	"github.com/metaffi/host/errs"
	"github.com/metaffi/host/types"
	"golang.org/x/sys/unix"
)

// symbolTable lists every export spec.md §4.4 requires the dispatcher to
// publish. A missing symbol fails the load up front rather than panicking
// on first use.
var symbolTable = []string{
	"load_runtime_plugin",
	"free_runtime_plugin",
	"load_entity",
	"free_xcall",
	"make_callable",
	"xcall_no_params_no_ret",
	"xcall_params_no_ret",
	"xcall_no_params_ret",
	"xcall_params_ret",
	"alloc_memory",
	"free_memory",
	"free_string",
}

type cgoDispatcher struct {
	handle  unsafe.Pointer
	symbols map[string]unsafe.Pointer
}

// dlopenDispatcher dlopens path with RTLD_NOW|RTLD_GLOBAL, plus
// RTLD_NODELETE where supported (spec.md §4.5, §9 "Go's dlclose
// limitation": the handle is never released for process lifetime).
func dlopenDispatcher(path string) (Dispatcher, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	mode := C.int(unix.RTLD_NOW | unix.RTLD_GLOBAL | unix.RTLD_NODELETE)
	h := C.dlopen(cpath, mode)
	if h == nil {
		return nil, fmt.Errorf("dlopen %s: %s", path, C.GoString(C.dlerror()))
	}

	d := &cgoDispatcher{handle: unsafe.Pointer(h), symbols: make(map[string]unsafe.Pointer, len(symbolTable))}
	for _, name := range symbolTable {
		csym := C.CString(name)
		sym := C.dlsym(h, csym)
		C.free(unsafe.Pointer(csym))
		if sym == nil {
			return nil, fmt.Errorf("dlsym %s in %s: %s", name, path, C.GoString(C.dlerror()))
		}
		d.symbols[name] = unsafe.Pointer(sym)
	}
	return d, nil
}

func (d *cgoDispatcher) sym(name string) unsafe.Pointer { return d.symbols[name] }

// takeOutErr converts a populated char** into a PluginError, copying the
// message and releasing the native buffer via free_string, per spec.md
// §4.4's "out_err" convention.
func (d *cgoDispatcher) takeOutErr(runtime, op string, errPtr *C.char) error {
	if errPtr == nil {
		return nil
	}
	msg := C.GoString(errPtr)
	C.call_free_string_wrapper(d.sym("free_string"), errPtr)
	return &errs.PluginError{Runtime: runtime, Op: op, Message: msg}
}

func (d *cgoDispatcher) LoadRuntimePlugin(name string) error {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	var cerr *C.char
	C.call_load_runtime_plugin(d.sym("load_runtime_plugin"), cname, &cerr)
	return d.takeOutErr(name, "load_runtime_plugin", cerr)
}

func (d *cgoDispatcher) FreeRuntimePlugin(name string) error {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	var cerr *C.char
	C.call_free_runtime_plugin(d.sym("free_runtime_plugin"), cname, &cerr)
	return d.takeOutErr(name, "free_runtime_plugin", cerr)
}

func kindsToC(ks []types.Kind) *C.uint32_t {
	if len(ks) == 0 {
		return nil
	}
	buf := make([]C.uint32_t, len(ks))
	for i, k := range ks {
		buf[i] = C.uint32_t(k)
	}
	return (*C.uint32_t)(unsafe.Pointer(&buf[0]))
}

func (d *cgoDispatcher) LoadEntity(runtime, module, entityPath string, paramsTypes, retvalTypes []types.Kind) (XCall, error) {
	cruntime := C.CString(runtime)
	defer C.free(unsafe.Pointer(cruntime))
	cmodule := C.CString(module)
	defer C.free(unsafe.Pointer(cmodule))
	centity := C.CString(entityPath)
	defer C.free(unsafe.Pointer(centity))

	var cerr *C.char
	ptr := C.call_load_entity(d.sym("load_entity"), cruntime, cmodule, centity,
		kindsToC(paramsTypes), C.int8_t(len(paramsTypes)),
		kindsToC(retvalTypes), C.int8_t(len(retvalTypes)), &cerr)
	if err := d.takeOutErr(runtime, "load_entity", cerr); err != nil {
		return XCall{}, err
	}
	return XCall{ptr: unsafe.Pointer(ptr)}, nil
}

func (d *cgoDispatcher) FreeXCall(runtime string, x XCall) error {
	cruntime := C.CString(runtime)
	defer C.free(unsafe.Pointer(cruntime))

	var cerr *C.char
	C.call_free_xcall(d.sym("free_xcall"), cruntime, x.ptr, &cerr)
	return d.takeOutErr(runtime, "free_xcall", cerr)
}

func (d *cgoDispatcher) MakeCallable(runtime string, ctx unsafe.Pointer, paramsTypes, retvalTypes []types.Kind) (XCall, error) {
	cruntime := C.CString(runtime)
	defer C.free(unsafe.Pointer(cruntime))

	var cerr *C.char
	ptr := C.call_make_callable(d.sym("make_callable"), cruntime, ctx,
		kindsToC(paramsTypes), C.int8_t(len(paramsTypes)),
		kindsToC(retvalTypes), C.int8_t(len(retvalTypes)), &cerr)
	if err := d.takeOutErr(runtime, "make_callable", cerr); err != nil {
		return XCall{}, err
	}
	return XCall{ptr: unsafe.Pointer(ptr)}, nil
}

func (d *cgoDispatcher) InvokeNoParamsNoRet(x XCall) error {
	var cerr *C.char
	C.call_xcall_no_params_no_ret(d.sym("xcall_no_params_no_ret"), x.ptr, &cerr)
	return d.takeOutErr("", "xcall_no_params_no_ret", cerr)
}

func (d *cgoDispatcher) InvokeParamsNoRet(x XCall, params *cdt.CDTS) error {
	buf, err := cdt.EncodeCDTS(params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	cbuf := C.CBytes(buf)
	defer C.free(cbuf)

	var cerr *C.char
	C.call_xcall_params_no_ret(d.sym("xcall_params_no_ret"), x.ptr, (*C.uchar)(cbuf), C.uint64_t(len(buf)), &cerr)
	return d.takeOutErr("", "xcall_params_no_ret", cerr)
}

func (d *cgoDispatcher) InvokeNoParamsRet(x XCall, retvals *cdt.CDTS) error {
	var cret *C.uchar
	var cretLen C.uint64_t
	var cerr *C.char
	C.call_xcall_no_params_ret(d.sym("xcall_no_params_ret"), x.ptr, &cret, &cretLen, &cerr)
	if err := d.takeOutErr("", "xcall_no_params_ret", cerr); err != nil {
		return err
	}
	return decodeInto(retvals, cret, cretLen, d)
}

func (d *cgoDispatcher) InvokeParamsRet(x XCall, params, retvals *cdt.CDTS) error {
	buf, err := cdt.EncodeCDTS(params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	cbuf := C.CBytes(buf)
	defer C.free(cbuf)

	var cret *C.uchar
	var cretLen C.uint64_t
	var cerr *C.char
	C.call_xcall_params_ret(d.sym("xcall_params_ret"), x.ptr, (*C.uchar)(cbuf), C.uint64_t(len(buf)), &cret, &cretLen, &cerr)
	if err := d.takeOutErr("", "xcall_params_ret", cerr); err != nil {
		return err
	}
	return decodeInto(retvals, cret, cretLen, d)
}

// decodeInto copies a dispatcher-owned (ptr, len) return buffer into retvals
// and releases the native buffer via free_memory.
func decodeInto(retvals *cdt.CDTS, ptr *C.uchar, length C.uint64_t, d *cgoDispatcher) error {
	if ptr == nil {
		return nil
	}
	defer C.call_free_memory_wrapper(d.sym("free_memory"), ptr)

	raw := C.GoBytes(unsafe.Pointer(ptr), C.int(length))
	decoded, _, err := cdt.DecodeCDTS(raw)
	if err != nil {
		return fmt.Errorf("decode retvals: %w", err)
	}
	*retvals = *decoded
	return nil
}
