package goh

import (
	"errors"
	"testing"

	"github.com/metaffi/host/cdt"
	"github.com/metaffi/host/errs"
	"github.com/metaffi/host/types"
	"github.com/stretchr/testify/require"
)

func TestWriteReadIntegerRoundTrip(t *testing.T) {
	s, err := cdt.NewCDTS(2)
	require.NoError(t, err)

	w := NewWriter(s)
	require.NoError(t, Write(w, types.Int32, int32(-42)))
	require.NoError(t, Write(w, types.Uint8, uint8(250)))

	r := NewReader(s)
	v0, err := Read[int32](r)
	require.NoError(t, err)
	require.Equal(t, int32(-42), v0)

	v1, err := Read[uint8](r)
	require.NoError(t, err)
	require.Equal(t, uint8(250), v1)
}

// TestWriteRejectsOutOfRange mirrors spec §8 scenario S3: add(300, int8)
// must fail with RangeError rather than silently truncating.
func TestWriteRejectsOutOfRange(t *testing.T) {
	s, err := cdt.NewCDTS(1)
	require.NoError(t, err)
	w := NewWriter(s)

	err = Write(w, types.Int8, int32(300))
	require.Error(t, err)
	var re *errs.RangeError
	require.True(t, errors.As(err, &re))
}

func TestWriteUnsignedRangeChecksAgainstWidth(t *testing.T) {
	s, err := cdt.NewCDTS(1)
	require.NoError(t, err)
	w := NewWriter(s)

	err = Write(w, types.Uint16, int32(70000))
	require.Error(t, err)
	var re *errs.RangeError
	require.True(t, errors.As(err, &re))
}

func TestWriteFloatRoundTrip(t *testing.T) {
	s, err := cdt.NewCDTS(2)
	require.NoError(t, err)
	w := NewWriter(s)
	require.NoError(t, WriteFloat(w, types.Float32, float32(1.5)))
	require.NoError(t, WriteFloat(w, types.Float64, 2.71828))

	r := NewReader(s)
	v0, err := ReadFloat[float32](r)
	require.NoError(t, err)
	require.Equal(t, float32(1.5), v0)

	v1, err := ReadFloat[float64](r)
	require.NoError(t, err)
	require.Equal(t, 2.71828, v1)
}

func TestWriteStringUTF16RoundTrip(t *testing.T) {
	s, err := cdt.NewCDTS(1)
	require.NoError(t, err)
	w := NewWriter(s)
	require.NoError(t, w.WriteString(types.String16, "metaffi éè", true))

	r := NewReader(s)
	got, err := r.ReadString()
	require.NoError(t, err)
	require.Equal(t, "metaffi éè", got)
}

func TestWriteStringUTF8PassesThrough(t *testing.T) {
	s, err := cdt.NewCDTS(1)
	require.NoError(t, err)
	w := NewWriter(s)
	require.NoError(t, w.WriteString(types.String8, "plain", false))

	r := NewReader(s)
	got, err := r.ReadString()
	require.NoError(t, err)
	require.Equal(t, "plain", got)
}

func TestWriteHandleRoundTrip(t *testing.T) {
	s, err := cdt.NewCDTS(1)
	require.NoError(t, err)
	w := NewWriter(s)
	released := false
	require.NoError(t, w.WriteHandle("obj", func() error { released = true; return nil }))

	c, err := s.At(0)
	require.NoError(t, err)
	h, err := c.Handle()
	require.NoError(t, err)
	require.Equal(t, cdt.LocalRuntimeID, h.RuntimeID)

	require.NoError(t, s.Free())
	require.True(t, released)
}

func TestWriteArrayThenReadArray(t *testing.T) {
	s, err := cdt.NewCDTS(1)
	require.NoError(t, err)
	w := NewWriter(s)
	arr, err := w.WriteArray(3, 1, types.Int32)
	require.NoError(t, err)
	for i := range arr.Cells {
		arr.Cells[i].SetInt64(types.Int32, int64(i))
	}

	r := NewReader(s)
	got, err := r.ReadArray()
	require.NoError(t, err)
	require.Equal(t, 3, got.Len())
}

func TestReaderBoundsError(t *testing.T) {
	s, err := cdt.NewCDTS(0)
	require.NoError(t, err)
	r := NewReader(s)
	_, err = Read[int32](r)
	require.Error(t, err)
	var be *errs.BoundsError
	require.True(t, errors.As(err, &be))
}
