// Package dynamic implements the dynamically-typed host binding of the CDTS
// serializer (spec.md §4.3, §9 "dynamic dispatch over host types"): a
// single cell is filled by tagging the target kind at the call site rather
// than inferring it from a Go type parameter, the way a CPython- or
// JS-hosted binding of MetaFFI would have to, since the host language
// carries no static type to dispatch on.
package dynamic

import (
	"fmt"
	"math"

	"github.com/metaffi/host/cdt"
	"github.com/metaffi/host/errs"
	"github.com/metaffi/host/types"
)

// Binding wraps a CDTS for sequential, dynamically-kinded writes and reads.
// One Binding is used for one direction (params in, retvals out); it does
// not rewind.
type Binding struct {
	s   *cdt.CDTS
	pos int
}

// New wraps s for dynamic access.
func New(s *cdt.CDTS) *Binding {
	return &Binding{s: s}
}

func (b *Binding) current() (*cdt.CDT, error) {
	return b.s.At(b.pos)
}

func (b *Binding) advance() {
	b.pos++
}

// Add stores value as kind target in the next cell. target is mandatory
// for every numeric kind and for array-of-numeric (spec §4.3: "target kind
// mandatory for numeric/array-of-numeric"); range is enforced for integer
// kinds per spec §8 invariant 3 / scenario S3.
func (b *Binding) Add(value any, target types.Kind) error {
	c, err := b.current()
	if err != nil {
		return err
	}
	defer b.advance()

	if target.IsArray() {
		return b.addArray(c, value, target)
	}

	switch target {
	case types.Int8, types.Int16, types.Int32, types.Int64:
		iv, err := toInt64(value)
		if err != nil {
			return err
		}
		if err := checkSignedRange(target, iv); err != nil {
			return err
		}
		c.SetInt64(target, iv)
		return nil
	case types.Uint8, types.Uint16, types.Uint32, types.Uint64:
		// A negative signed value must surface as a RangeError (spec §8
		// scenario S3: add(-1, uint8) fails the same way add(300, int8)
		// does), not the plain error toUint64 would give it — so sign is
		// checked here, before narrowing, rather than inside toUint64.
		if iv, ok := signedValue(value); ok && iv < 0 {
			return &errs.RangeError{Value: iv, Kind: target, Min: 0, Max: int64(unsignedMax(target))}
		}
		uv, err := toUint64(value)
		if err != nil {
			return err
		}
		if err := checkUnsignedRange(target, uv); err != nil {
			return err
		}
		c.SetUint64(target, uv)
		return nil
	case types.Float32:
		f, err := toFloat64(value)
		if err != nil {
			return err
		}
		c.SetFloat32(float32(f))
		return nil
	case types.Float64:
		f, err := toFloat64(value)
		if err != nil {
			return err
		}
		c.SetFloat64(f)
		return nil
	case types.Bool:
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("add: expected bool, got %T", value)
		}
		c.SetBool(v)
		return nil
	case types.String8, types.String16, types.String32:
		v, ok := value.(string)
		if !ok {
			return fmt.Errorf("add: expected string, got %T", value)
		}
		c.SetString(target, v, true)
		return nil
	case types.Handle:
		h, ok := value.(*cdt.Handle)
		if !ok {
			return fmt.Errorf("add: expected *cdt.Handle, got %T", value)
		}
		c.SetHandle(h)
		return nil
	case types.Callable:
		cb, ok := value.(*cdt.Callable)
		if !ok {
			return fmt.Errorf("add: expected *cdt.Callable, got %T", value)
		}
		return c.SetCallable(cb)
	case types.Null:
		*c = cdt.Null()
		return nil
	default:
		return fmt.Errorf("add: unsupported target kind %s", target)
	}
}

// addArray stores a []any slice of homogeneous elementKind as a nested
// array cell.
func (b *Binding) addArray(c *cdt.CDT, value any, target types.Kind) error {
	elems, ok := value.([]any)
	if !ok {
		return fmt.Errorf("add: array target requires []any, got %T", value)
	}
	elementKind := target.Base()
	nested, err := c.SetNewArray(len(elems), 1, elementKind)
	if err != nil {
		return err
	}
	nb := New(nested)
	for _, e := range elems {
		if err := nb.Add(e, elementKind); err != nil {
			return err
		}
	}
	return nil
}

// PeekKind reports the kind of the next unread cell without consuming it.
func (b *Binding) PeekKind() (types.Kind, error) {
	c, err := b.current()
	if err != nil {
		return types.Null, err
	}
	return c.Kind, nil
}

// IsNull reports whether the next unread cell is null.
func (b *Binding) IsNull() (bool, error) {
	c, err := b.current()
	if err != nil {
		return false, err
	}
	return c.IsNull(), nil
}

// ExtractValue reads the next cell as a discriminated union keyed by its
// kind: the returned any holds the corresponding Go type (int64/uint64/
// float64/bool/string/int32 for chars/[]any/*cdt.Handle/*cdt.Callable/nil). Nested
// any-typed arrays are explicitly unsupported (spec §4.3): an array whose
// declared element kind is the Any wildcard fails rather than silently
// guessing element types.
func (b *Binding) ExtractValue() (any, types.Kind, error) {
	c, err := b.current()
	if err != nil {
		return nil, types.Null, err
	}
	defer b.advance()

	k := c.Kind
	switch {
	case k == types.Null:
		return nil, k, nil
	case k.IsArray():
		if k.Base().HasAny() {
			return nil, k, fmt.Errorf("extract: nested any-typed arrays are not supported")
		}
		nested, err := c.Array()
		if err != nil {
			return nil, k, err
		}
		nb := New(nested)
		out := make([]any, 0, nested.Len())
		for i := 0; i < nested.Len(); i++ {
			v, _, err := nb.ExtractValue()
			if err != nil {
				return nil, k, err
			}
			out = append(out, v)
		}
		return out, k, nil
	case k == types.Int8, k == types.Int16, k == types.Int32, k == types.Int64:
		v, err := c.Int64()
		return v, k, err
	case k == types.Uint8, k == types.Uint16, k == types.Uint32, k == types.Uint64:
		v, err := c.Uint64()
		return v, k, err
	case k == types.Float32, k == types.Float64:
		v, err := c.Float64()
		return v, k, err
	case k == types.Bool:
		v, err := c.Bool()
		return v, k, err
	case k == types.String8, k == types.String16, k == types.String32:
		v, err := c.String()
		return v, k, err
	case k == types.Char8, k == types.Char16, k == types.Char32:
		v, err := c.Char()
		return v, k, err
	case k == types.Handle:
		v, err := c.Handle()
		return v, k, err
	case k == types.Callable:
		v, err := c.Callable()
		return v, k, err
	default:
		return nil, k, fmt.Errorf("extract: unsupported kind %s", k)
	}
}

func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	default:
		return 0, fmt.Errorf("add: expected integer, got %T", value)
	}
}

// toUint64 converts a host int or unsigned integer value to uint64; the
// other signed types (int8/16/32/64) are rejected with an error. Callers
// reject a negative signedValue before reaching here, so an int seen here
// is never negative.
func toUint64(value any) (uint64, error) {
	switch v := value.(type) {
	case int:
		return uint64(v), nil
	case uint8:
		return uint64(v), nil
	case uint16:
		return uint64(v), nil
	case uint32:
		return uint64(v), nil
	case uint64:
		return v, nil
	default:
		return 0, fmt.Errorf("add: expected unsigned integer, got %T", value)
	}
}

// signedValue reports whether value is one of Go's signed integer types,
// returning its int64 representation when so. Used to detect a negative
// value headed for an unsigned kind before toUint64 ever sees it.
func signedValue(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	default:
		return 0, false
	}
}

// unsignedMax returns the largest value k's width holds, for RangeError's
// Max field. Uint64 itself is not range-checked on the positive side
// (spec §4.3 narrows only down to the declared width, and uint64 is the
// host's own widest unsigned type), so its max is math.MaxInt64 — the
// widest value Max's int64 field can carry.
func unsignedMax(k types.Kind) uint64 {
	switch k {
	case types.Uint8:
		return 255
	case types.Uint16:
		return 65535
	case types.Uint32:
		return 4294967295
	default:
		return math.MaxInt64
	}
}

func toFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	default:
		return 0, fmt.Errorf("add: expected float, got %T", value)
	}
}

func checkSignedRange(k types.Kind, v int64) error {
	var lo, hi int64
	switch k {
	case types.Int8:
		lo, hi = -128, 127
	case types.Int16:
		lo, hi = -32768, 32767
	case types.Int32:
		lo, hi = -2147483648, 2147483647
	default:
		return nil
	}
	if v < lo || v > hi {
		return &errs.RangeError{Value: v, Kind: k, Min: lo, Max: hi}
	}
	return nil
}

func checkUnsignedRange(k types.Kind, v uint64) error {
	if k == types.Uint64 {
		return nil
	}
	hi := unsignedMax(k)
	if v > hi {
		return &errs.RangeError{Value: int64(v), Kind: k, Min: 0, Max: int64(hi)}
	}
	return nil
}
