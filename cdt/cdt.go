// Package cdt implements the MetaFFI common-data-typed cell (CDT) and its
// fixed-length sequence (CDTS) — the self-describing value container that
// flows across every foreign call (spec §3, §4.2). It is grounded on the
// teacher's typed-struct-over-a-byte-buffer idiom (saferwall-pe's
// dosheader.go/ntheader.go: a Go struct mirrors a fixed binary layout),
// adapted here from "parse an external byte buffer into named fields" to
// "encode/decode a self-describing tagged cell to/from the dispatcher
// ABI's byte layout" (see wire.go).
package cdt

import (
	"github.com/metaffi/host/errs"
	"github.com/metaffi/host/types"
)

// CDT is a tagged cell carrying one cross-language value. Go has no tagged
// union, so Payload is a plain `any` field whose dynamic type is implied by
// Kind; every accessor below tag-checks Kind before touching Payload. This
// is preferred here over a manual byte-union because the invariants
// spec.md §3 names — (a) kind/payload
// agreement, (b) free_required ownership, (c) exclusive array ownership,
// (d) handle release-or-none — hold identically whether the union is a C
// byte union or a checked Go interface field.
type CDT struct {
	Kind types.Kind

	// Payload holds, depending on Kind:
	//   integer/float/bool/char kinds -> the Go primitive value
	//   String8/16/32                -> string
	//   Kind|Array                   -> *CDTS (nested sequence, exclusively owned)
	//   Handle                       -> *Handle
	//   Callable                     -> *Callable
	//   Null                         -> nil
	Payload any

	// FreeRequired mirrors spec §3(b): true means this cell owns its
	// payload and must release it on Free. Primitive/inline kinds never
	// need this; arrays, owned strings, handles and callables do.
	FreeRequired bool
}

// Null returns a null CDT cell.
func Null() CDT { return CDT{Kind: types.Null} }

func kindMismatch(index int, expected types.Kind, actual types.Kind) error {
	return &errs.KindMismatch{Index: index, Expected: expected, Actual: actual}
}

// Int64 returns the cell's value as int64, or a KindMismatch if the cell
// does not hold one of the signed integer kinds.
func (c *CDT) Int64() (int64, error) {
	switch c.Kind {
	case types.Int8, types.Int16, types.Int32, types.Int64:
		return c.Payload.(int64), nil
	}
	return 0, kindMismatch(0, types.Int64, c.Kind)
}

// SetInt64 sets the cell to kind k (one of the signed integer kinds) with
// value v. Range checking against k's bit width happens in the
// serializer, not here — CDT itself is a container, not a validator of
// host input; see serializer/goh and serializer/dynamic.
func (c *CDT) SetInt64(k types.Kind, v int64) {
	c.Kind = k
	c.Payload = v
	c.FreeRequired = false
}

// Uint64 returns the cell's value as uint64, or a KindMismatch if the cell
// does not hold one of the unsigned integer kinds.
func (c *CDT) Uint64() (uint64, error) {
	switch c.Kind {
	case types.Uint8, types.Uint16, types.Uint32, types.Uint64:
		return c.Payload.(uint64), nil
	}
	return 0, kindMismatch(0, types.Uint64, c.Kind)
}

// SetUint64 sets the cell to kind k (one of the unsigned integer kinds)
// with value v.
func (c *CDT) SetUint64(k types.Kind, v uint64) {
	c.Kind = k
	c.Payload = v
	c.FreeRequired = false
}

// Float64 returns the cell's value as float64, widening from float32 if
// necessary, or a KindMismatch if the cell does not hold a float kind.
func (c *CDT) Float64() (float64, error) {
	switch c.Kind {
	case types.Float64:
		return c.Payload.(float64), nil
	case types.Float32:
		return float64(c.Payload.(float32)), nil
	}
	return 0, kindMismatch(0, types.Float64, c.Kind)
}

// SetFloat32 sets the cell to a float32 value.
func (c *CDT) SetFloat32(v float32) {
	c.Kind = types.Float32
	c.Payload = v
	c.FreeRequired = false
}

// SetFloat64 sets the cell to a float64 value.
func (c *CDT) SetFloat64(v float64) {
	c.Kind = types.Float64
	c.Payload = v
	c.FreeRequired = false
}

// Bool returns the cell's value as bool, or a KindMismatch.
func (c *CDT) Bool() (bool, error) {
	if c.Kind != types.Bool {
		return false, kindMismatch(0, types.Bool, c.Kind)
	}
	return c.Payload.(bool), nil
}

// SetBool sets the cell to a bool value.
func (c *CDT) SetBool(v bool) {
	c.Kind = types.Bool
	c.Payload = v
	c.FreeRequired = false
}

// String returns the cell's value as a Go string, or a KindMismatch if the
// cell does not hold one of the three string-width kinds. Width
// conversion (the payload is conceptually UTF-8/16/32 code units) is the
// serializer's job, not CDT's: CDT always stores the decoded Go string.
func (c *CDT) String() (string, error) {
	switch c.Kind {
	case types.String8, types.String16, types.String32:
		return c.Payload.(string), nil
	}
	return "", kindMismatch(0, types.String8, c.Kind)
}

// SetString sets the cell to kind k (one of the three string-width kinds)
// with value s. copy mirrors spec §4.3's "copied into allocator-owned
// buffers unless the caller explicitly donates ownership": when copy is
// true FreeRequired is set so Free releases the cell's exclusive claim on
// its buffer (Go strings are immutable and GC-owned regardless, so in
// this pure-Go core FreeRequired here only governs bookkeeping consumed by
// Free() cascades and the cgo marshalling layer in xllr, not actual
// memory).
func (c *CDT) SetString(k types.Kind, s string, copy bool) {
	c.Kind = k
	c.Payload = s
	c.FreeRequired = copy
}

// Char returns the cell's value as an int32 code point, or a KindMismatch
// if the cell does not hold one of the three character-width kinds.
func (c *CDT) Char() (int32, error) {
	switch c.Kind {
	case types.Char8, types.Char16, types.Char32:
		return c.Payload.(int32), nil
	}
	return 0, kindMismatch(0, types.Char8, c.Kind)
}

// SetChar sets the cell to kind k (one of the three character-width
// kinds) with code point v.
func (c *CDT) SetChar(k types.Kind, v int32) {
	c.Kind = k
	c.Payload = v
	c.FreeRequired = false
}

// Handle returns the cell's handle payload, or a KindMismatch.
func (c *CDT) Handle() (*Handle, error) {
	if c.Kind != types.Handle {
		return nil, kindMismatch(0, types.Handle, c.Kind)
	}
	return c.Payload.(*Handle), nil
}

// SetHandle sets the cell to hold h. The cell takes ownership (
// FreeRequired=true): Free will invoke h.Release unless the
// handle-ownership arbiter has nulled it out first because h.RuntimeID is
// foreign (spec §4.8).
func (c *CDT) SetHandle(h *Handle) {
	c.Kind = types.Handle
	c.Payload = h
	c.FreeRequired = true
}

// Callable returns the cell's callable payload, or a KindMismatch.
func (c *CDT) Callable() (*Callable, error) {
	if c.Kind != types.Callable {
		return nil, kindMismatch(0, types.Callable, c.Kind)
	}
	return c.Payload.(*Callable), nil
}

// SetCallable sets the cell to hold a copy of callable. Per DESIGN.md open
// question #2, a non-local callable is rejected: the source's JVM
// accessor assumes locality and a cross-runtime function pointer is
// effectively untested, so this core does not accept one either.
func (c *CDT) SetCallable(callable *Callable) error {
	if callable.RuntimeID != LocalRuntimeID {
		return &errs.NullCallable{Reason: "cross-runtime callables are not supported"}
	}
	cp := *callable
	cp.ParamsTypes = append([]types.Kind(nil), callable.ParamsTypes...)
	cp.RetvalTypes = append([]types.Kind(nil), callable.RetvalTypes...)
	c.Kind = types.Callable
	c.Payload = &cp
	c.FreeRequired = true
	return nil
}

// Array returns the cell's nested CDTS, or a KindMismatch if the cell is
// not an array kind.
func (c *CDT) Array() (*CDTS, error) {
	if !c.Kind.IsArray() {
		return nil, kindMismatch(0, types.Array, c.Kind)
	}
	return c.Payload.(*CDTS), nil
}

// SetNewArray allocates a fresh nested CDTS of the given length, sets the
// cell's kind to elementKind|Array, and records rank for array consumers
// that need to validate homogeneity without walking the tree (spec §3
// "fixed_dimensions annotates homogeneous n-dimensional arrays"). The
// returned CDTS is exclusively owned by this cell (invariant (c)).
func (c *CDT) SetNewArray(length int, rank int, elementKind types.Kind) (*CDTS, error) {
	nested, err := NewCDTS(length)
	if err != nil {
		return nil, err
	}
	nested.FixedDimensions = rank
	c.Kind = elementKind | types.Array
	c.Payload = nested
	c.FreeRequired = true
	return nested, nil
}

// IsNull reports whether the cell holds the Null kind.
func (c *CDT) IsNull() bool { return c.Kind == types.Null }

// Free releases the cell's payload if FreeRequired, cascading into nested
// CDTS for arrays and invoking Release for handles whose release function
// has not been nulled by the handle-ownership arbiter (spec §4.2 "free()
// cascades for arrays and for handles whose release_fn is non-null", §4.8).
// Entity and CDTS destructors call Free and log-and-swallow any error per
// spec §4.9 — Free itself never panics.
func (c *CDT) Free() error {
	if !c.FreeRequired {
		return nil
	}
	defer func() { c.FreeRequired = false }()

	switch {
	case c.Kind.IsArray():
		arr, _ := c.Payload.(*CDTS)
		if arr == nil {
			return nil
		}
		return arr.Free()
	case c.Kind == types.Handle:
		h, _ := c.Payload.(*Handle)
		if h == nil || h.Release == nil {
			return nil
		}
		return h.Release()
	case c.Kind == types.Callable:
		// Local metadata copy only; the underlying Fn is never owned here
		// (spec §4.8 "a callable wrapper on the receiving side never owns
		// the underlying xcall"). Nothing further to release.
		return nil
	default:
		// Owned string buffer: nothing to do in pure Go (GC-owned); a cgo
		// marshalling layer that donated a native buffer would free it
		// here instead.
		return nil
	}
}
