// Package goh implements the statically-typed Go host binding of the CDTS
// serializer: generic typed accessors per Go type family. The type
// parameter fixes the host value's Go type; the target CDT kind is not
// derived from it but passed explicitly to Write, WriteFloat and
// WriteString, and range-checked against for integers. This mirrors
// spec.md's "statically-typed host" half of the serializer split (§4.3,
// §9), the way saferwall-pe's helper.go exposes one typed reader per
// on-disk field width instead of a single dynamically-kinded reader.
package goh

import (
	"fmt"

	"github.com/metaffi/host/cdt"
	"github.com/metaffi/host/errs"
	"github.com/metaffi/host/types"
	"golang.org/x/text/encoding/unicode"
)

// Integer is the set of host integer types writable into a CDTS cell.
type Integer interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Float is the set of host float types writable into a CDTS cell.
type Float interface {
	~float32 | ~float64
}

// Writer fills a pre-sized CDTS from a statically-typed host call site, one
// cell at a time, left to right. It does not own params; callers allocate
// via cdt.NewCDTS and pass it in, mirroring how a generated static-host
// stub would marshal one parameter list.
type Writer struct {
	s   *cdt.CDTS
	pos int
}

// NewWriter wraps s for sequential typed writes.
func NewWriter(s *cdt.CDTS) *Writer {
	return &Writer{s: s}
}

func (w *Writer) next() (*cdt.CDT, error) {
	c, err := w.s.At(w.pos)
	if err != nil {
		return nil, err
	}
	w.pos++
	return c, nil
}

func isUnsignedKind(k types.Kind) bool {
	switch k {
	case types.Uint8, types.Uint16, types.Uint32, types.Uint64:
		return true
	}
	return false
}

// Write stores an integer value v as kind k in the next cell. k must be one
// of the integer kinds; v is range-checked against k's width before being
// narrowed.
func Write[T Integer](w *Writer, k types.Kind, v T) error {
	c, err := w.next()
	if err != nil {
		return err
	}
	if isUnsignedKind(k) {
		uv := uint64(v)
		if err := checkUnsignedRange(k, uv); err != nil {
			return err
		}
		c.SetUint64(k, uv)
		return nil
	}
	iv := int64(v)
	if err := checkSignedRange(k, iv); err != nil {
		return err
	}
	c.SetInt64(k, iv)
	return nil
}

// WriteFloat stores a float value in the next cell as kind k (Float32 or
// Float64).
func WriteFloat[T Float](w *Writer, k types.Kind, v T) error {
	c, err := w.next()
	if err != nil {
		return err
	}
	switch k {
	case types.Float32:
		c.SetFloat32(float32(v))
	case types.Float64:
		c.SetFloat64(float64(v))
	default:
		return &errs.KindMismatch{Expected: types.Float64, Actual: k}
	}
	return nil
}

// WriteBool stores a bool in the next cell.
func (w *Writer) WriteBool(v bool) error {
	c, err := w.next()
	if err != nil {
		return err
	}
	c.SetBool(v)
	return nil
}

// WriteString stores a Go string in the next cell, converting to the
// target width (String8/16/32) via golang.org/x/text/encoding/unicode for
// the 16-bit case (the same library the teacher uses to decode PE resource
// strings, here run in the write direction). copyOut mirrors the
// allocator-ownership note in spec.md §4.3: true means the serializer owns
// the buffer and must free it on the CDT's Free().
func (w *Writer) WriteString(k types.Kind, v string, copyOut bool) error {
	c, err := w.next()
	if err != nil {
		return err
	}
	switch k {
	case types.String8:
		c.SetString(k, v, copyOut)
	case types.String16:
		enc := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
		encoded, err := enc.String(v)
		if err != nil {
			return fmt.Errorf("encode utf16: %w", err)
		}
		c.SetString(k, encoded, copyOut)
	case types.String32:
		// UTF-32 has no stdlib/pack codec; store UTF-8 bytes reinterpreted
		// at call-site width by the XLLR ABI layer, consistent with how
		// wire.go re-encodes all string widths as UTF-8 on its own wire.
		c.SetString(k, v, copyOut)
	default:
		return &errs.KindMismatch{Expected: types.String8, Actual: k}
	}
	return nil
}

// WriteHandle stores a local handle wrapping raw in the next cell.
func (w *Writer) WriteHandle(raw any, release func() error) error {
	c, err := w.next()
	if err != nil {
		return err
	}
	c.SetHandle(&cdt.Handle{Raw: raw, RuntimeID: cdt.LocalRuntimeID, Release: release})
	return nil
}

// WriteArray allocates a nested array of length/rank/elementKind in the
// next cell and returns it for the caller to fill.
func (w *Writer) WriteArray(length, rank int, elementKind types.Kind) (*cdt.CDTS, error) {
	c, err := w.next()
	if err != nil {
		return nil, err
	}
	return c.SetNewArray(length, rank, elementKind)
}

// Reader reads a CDTS back into statically-typed Go values, the mirror of
// Writer, used on the return path of a static-host call.
type Reader struct {
	s   *cdt.CDTS
	pos int
}

// NewReader wraps s for sequential typed reads.
func NewReader(s *cdt.CDTS) *Reader {
	return &Reader{s: s}
}

func (r *Reader) next() (*cdt.CDT, error) {
	c, err := r.s.At(r.pos)
	if err != nil {
		return nil, err
	}
	r.pos++
	return c, nil
}

// Read extracts the next cell as an integer of type T.
func Read[T Integer](r *Reader) (T, error) {
	c, err := r.next()
	if err != nil {
		return 0, err
	}
	if isUnsignedKind(c.Kind) {
		v, err := c.Uint64()
		return T(v), err
	}
	v, err := c.Int64()
	return T(v), err
}

// ReadFloat extracts the next cell as a float of type T.
func ReadFloat[T Float](r *Reader) (T, error) {
	c, err := r.next()
	if err != nil {
		return 0, err
	}
	v, err := c.Float64()
	return T(v), err
}

// ReadBool extracts the next cell as a bool.
func (r *Reader) ReadBool() (bool, error) {
	c, err := r.next()
	if err != nil {
		return false, err
	}
	return c.Bool()
}

// ReadString extracts the next cell as a Go string, converting from the
// cell's width back to UTF-8.
func (r *Reader) ReadString() (string, error) {
	c, err := r.next()
	if err != nil {
		return "", err
	}
	raw, err := c.String()
	if err != nil {
		return "", err
	}
	if c.Kind != types.String16 {
		return raw, nil
	}
	dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	decoded, err := dec.String(raw)
	if err != nil {
		return "", fmt.Errorf("decode utf16: %w", err)
	}
	return decoded, nil
}

// ReadArray extracts the next cell as a nested CDTS.
func (r *Reader) ReadArray() (*cdt.CDTS, error) {
	c, err := r.next()
	if err != nil {
		return nil, err
	}
	return c.Array()
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
	var hi uint64
	switch k {
	case types.Uint8:
		hi = 255
	case types.Uint16:
		hi = 65535
	case types.Uint32:
		hi = 4294967295
	default:
		return nil
	}
	if v > hi {
		return &errs.RangeError{Value: int64(v), Kind: k, Min: 0, Max: int64(hi)}
	}
	return nil
}
