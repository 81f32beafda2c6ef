package cdt

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/metaffi/host/errs"
	"github.com/metaffi/host/types"
)

// Wire encoding of a CDTS, used by package xllr's cgo dispatcher binding
// to hand params and retvals across the ABI as (pointer, length) byte
// buffers, and by cdt's own round-trip tests (spec §8 invariant 1). This
// is a self-contained, length-prefixed byte encoding — not a byte-for-byte
// reproduction of the C struct layout in spec §6, which is a
// pointer-bearing in-memory layout that only makes sense inside one
// process's address space. Grounded on the
// teacher's typed-struct-over-buffer idiom (saferwall-pe's
// encoding/binary-based header parsers), generalized from a fixed struct
// layout to a recursive, self-describing one.
//
// Byte layout of a CDTS: [length uint32][fixed_dimensions int32][cells...].
// Byte layout per cell: [kind uint32][payload], where payload depends on
// kind:
//
//	integers/float/bool/char -> fixed-width value
//	string8/16/32            -> [len uint32][utf8 bytes] (always re-encoded as UTF-8 on the wire; width conversion is the serializer's concern)
//	handle                   -> [runtime_id uint64] (Release is never serialized: wire handles are always views on decode)
//	callable                 -> [runtime_id uint64][nparams uint32][params...][nretvals uint32][retvals...] (Fn is never serialized: wire callables are always null on decode)
//	array                    -> nested CDTS: [length uint32][fixed_dimensions int32][cells...]
//	null                     -> (no payload)
// EncodeCDTS serializes s into the wire format described above.
func EncodeCDTS(s *CDTS) ([]byte, error) {
	buf := make([]byte, 0, 64)
	buf = appendUint32(buf, uint32(s.Len()))
	buf = appendInt32(buf, int32(s.FixedDimensions))
	for i := range s.Cells {
		var err error
		buf, err = encodeCell(buf, &s.Cells[i])
		if err != nil {
			return nil, fmt.Errorf("encode cell %d: %w", i, err)
		}
	}
	return buf, nil
}

func encodeCell(buf []byte, c *CDT) ([]byte, error) {
	buf = appendUint32(buf, uint32(c.Kind))

	switch {
	case c.Kind == types.Null:
		return buf, nil
	case c.Kind.IsArray():
		arr, ok := c.Payload.(*CDTS)
		if !ok || arr == nil {
			return nil, fmt.Errorf("array cell has no nested CDTS")
		}
		nested, err := EncodeCDTS(arr)
		if err != nil {
			return nil, err
		}
		return append(buf, nested...), nil
	case c.Kind == types.Handle:
		h, _ := c.Payload.(*Handle)
		var rid uint64
		if h != nil {
			rid = h.RuntimeID
		}
		return appendUint64(buf, rid), nil
	case c.Kind == types.Callable:
		cb, _ := c.Payload.(*Callable)
		var rid uint64
		var params, retvals []types.Kind
		if cb != nil {
			rid = cb.RuntimeID
			params = cb.ParamsTypes
			retvals = cb.RetvalTypes
		}
		buf = appendUint64(buf, rid)
		buf = appendUint32(buf, uint32(len(params)))
		for _, k := range params {
			buf = appendUint32(buf, uint32(k))
		}
		buf = appendUint32(buf, uint32(len(retvals)))
		for _, k := range retvals {
			buf = appendUint32(buf, uint32(k))
		}
		return buf, nil
	case c.Kind == types.String8 || c.Kind == types.String16 || c.Kind == types.String32:
		s, _ := c.Payload.(string)
		buf = appendUint32(buf, uint32(len(s)))
		return append(buf, s...), nil
	case c.Kind == types.Char8 || c.Kind == types.Char16 || c.Kind == types.Char32:
		v, _ := c.Payload.(int32)
		return appendInt32(buf, v), nil
	case c.Kind == types.Bool:
		v, _ := c.Payload.(bool)
		if v {
			return append(buf, 1), nil
		}
		return append(buf, 0), nil
	case c.Kind == types.Float32:
		v, _ := c.Payload.(float32)
		return appendUint32(buf, math.Float32bits(v)), nil
	case c.Kind == types.Float64:
		v, _ := c.Payload.(float64)
		return appendUint64(buf, math.Float64bits(v)), nil
	case c.Kind == types.Int8 || c.Kind == types.Int16 || c.Kind == types.Int32 || c.Kind == types.Int64:
		v, _ := c.Payload.(int64)
		return appendUint64(buf, uint64(v)), nil
	case c.Kind == types.Uint8 || c.Kind == types.Uint16 || c.Kind == types.Uint32 || c.Kind == types.Uint64:
		v, _ := c.Payload.(uint64)
		return appendUint64(buf, v), nil
	default:
		return nil, fmt.Errorf("unencodable kind %s", c.Kind)
	}
}

// DecodeCDTS parses the wire format produced by EncodeCDTS, returning the
// decoded CDTS and the number of bytes consumed.
func DecodeCDTS(buf []byte) (*CDTS, int, error) {
	d := &decoder{buf: buf}
	s, err := d.decodeCDTS()
	if err != nil {
		return nil, d.pos, err
	}
	return s, d.pos, nil
}

type decoder struct {
	buf []byte
	pos int
}

func (d *decoder) need(n int) error {
	if d.pos+n > len(d.buf) {
		return &errs.BoundsError{Index: d.pos + n, Length: len(d.buf)}
	}
	return nil
}

func (d *decoder) readUint32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(d.buf[d.pos:])
	d.pos += 4
	return v, nil
}

func (d *decoder) readInt32() (int32, error) {
	v, err := d.readUint32()
	return int32(v), err
}

func (d *decoder) readUint64() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(d.buf[d.pos:])
	d.pos += 8
	return v, nil
}

func (d *decoder) readBytes(n int) ([]byte, error) {
	if err := d.need(n); err != nil {
		return nil, err
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) decodeCDTS() (*CDTS, error) {
	length, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	if int(length) > MaxCellCount {
		return nil, &errs.BoundsError{Index: int(length), Length: MaxCellCount}
	}
	dims, err := d.readInt32()
	if err != nil {
		return nil, err
	}
	cells := make([]CDT, length)
	for i := range cells {
		cell, err := d.decodeCell()
		if err != nil {
			return nil, fmt.Errorf("decode cell %d: %w", i, err)
		}
		cells[i] = cell
	}
	return &CDTS{Cells: cells, FixedDimensions: int(dims)}, nil
}

func (d *decoder) decodeCell() (CDT, error) {
	kindBits, err := d.readUint32()
	if err != nil {
		return CDT{}, err
	}
	kind := types.Kind(kindBits)

	switch {
	case kind == types.Null:
		return CDT{Kind: kind}, nil
	case kind.IsArray():
		nested, err := d.decodeCDTS()
		if err != nil {
			return CDT{}, err
		}
		return CDT{Kind: kind, Payload: nested, FreeRequired: true}, nil
	case kind == types.Handle:
		rid, err := d.readUint64()
		if err != nil {
			return CDT{}, err
		}
		// Decoded handles are always views: no Release function crosses
		// the wire, matching the handle-extraction policy in spec §4.3
		// for foreign-runtime handles.
		return CDT{Kind: kind, Payload: &Handle{RuntimeID: rid}, FreeRequired: false}, nil
	case kind == types.Callable:
		rid, err := d.readUint64()
		if err != nil {
			return CDT{}, err
		}
		params, err := d.readKindSlice()
		if err != nil {
			return CDT{}, err
		}
		retvals, err := d.readKindSlice()
		if err != nil {
			return CDT{}, err
		}
		return CDT{Kind: kind, Payload: &Callable{RuntimeID: rid, ParamsTypes: params, RetvalTypes: retvals}, FreeRequired: false}, nil
	case kind == types.String8 || kind == types.String16 || kind == types.String32:
		n, err := d.readUint32()
		if err != nil {
			return CDT{}, err
		}
		b, err := d.readBytes(int(n))
		if err != nil {
			return CDT{}, err
		}
		return CDT{Kind: kind, Payload: string(b), FreeRequired: true}, nil
	case kind == types.Char8 || kind == types.Char16 || kind == types.Char32:
		v, err := d.readInt32()
		if err != nil {
			return CDT{}, err
		}
		return CDT{Kind: kind, Payload: v}, nil
	case kind == types.Bool:
		b, err := d.readBytes(1)
		if err != nil {
			return CDT{}, err
		}
		return CDT{Kind: kind, Payload: b[0] != 0}, nil
	case kind == types.Float32:
		v, err := d.readUint32()
		if err != nil {
			return CDT{}, err
		}
		return CDT{Kind: kind, Payload: math.Float32frombits(v)}, nil
	case kind == types.Float64:
		v, err := d.readUint64()
		if err != nil {
			return CDT{}, err
		}
		return CDT{Kind: kind, Payload: math.Float64frombits(v)}, nil
	case kind == types.Int8 || kind == types.Int16 || kind == types.Int32 || kind == types.Int64:
		v, err := d.readUint64()
		if err != nil {
			return CDT{}, err
		}
		return CDT{Kind: kind, Payload: int64(v)}, nil
	case kind == types.Uint8 || kind == types.Uint16 || kind == types.Uint32 || kind == types.Uint64:
		v, err := d.readUint64()
		if err != nil {
			return CDT{}, err
		}
		return CDT{Kind: kind, Payload: v}, nil
	default:
		return CDT{}, fmt.Errorf("undecodable kind 0x%x", kindBits)
	}
}

func (d *decoder) readKindSlice() ([]types.Kind, error) {
	n, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	out := make([]types.Kind, n)
	for i := range out {
		v, err := d.readUint32()
		if err != nil {
			return nil, err
		}
		out[i] = types.Kind(v)
	}
	return out, nil
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendInt32(buf []byte, v int32) []byte {
	return appendUint32(buf, uint32(v))
}

func appendUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}
