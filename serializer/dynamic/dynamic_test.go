package dynamic

import (
	"errors"
	"testing"

	"github.com/metaffi/host/cdt"
	"github.com/metaffi/host/errs"
	"github.com/metaffi/host/types"
	"github.com/stretchr/testify/require"
)

// TestDynamicRangeRejection is spec §8 scenario S3: add(300, int8) and
// add(-1, uint8) fail with RangeError; add(127, int8) and add(0, uint8)
// succeed.
func TestDynamicRangeRejection(t *testing.T) {
	s, err := cdt.NewCDTS(1)
	require.NoError(t, err)

	b := New(s)
	err = b.Add(300, types.Int8)
	require.Error(t, err)
	var re *errs.RangeError
	require.True(t, errors.As(err, &re))

	s2, _ := cdt.NewCDTS(1)
	b2 := New(s2)
	err = b2.Add(-1, types.Uint8)
	require.Error(t, err)
	require.True(t, errors.As(err, &re))
}

func TestDynamicRangeBoundarySucceeds(t *testing.T) {
	s, err := cdt.NewCDTS(2)
	require.NoError(t, err)
	b := New(s)
	require.NoError(t, b.Add(127, types.Int8))
	require.NoError(t, b.Add(0, types.Uint8))
}

func TestDynamicExtractPrimitives(t *testing.T) {
	s, err := cdt.NewCDTS(3)
	require.NoError(t, err)
	b := New(s)
	require.NoError(t, b.Add(42, types.Int32))
	require.NoError(t, b.Add(3.14, types.Float64))
	require.NoError(t, b.Add(true, types.Bool))

	r := New(s)
	v0, k0, err := r.ExtractValue()
	require.NoError(t, err)
	require.Equal(t, types.Int32, k0)
	require.Equal(t, int64(42), v0)

	v1, _, err := r.ExtractValue()
	require.NoError(t, err)
	require.Equal(t, 3.14, v1)

	v2, _, err := r.ExtractValue()
	require.NoError(t, err)
	require.Equal(t, true, v2)
}

func TestDynamicAddArrayAndExtract(t *testing.T) {
	s, err := cdt.NewCDTS(1)
	require.NoError(t, err)
	b := New(s)
	require.NoError(t, b.Add([]any{1, 2, 3}, types.Int32|types.Array))

	r := New(s)
	v, k, err := r.ExtractValue()
	require.NoError(t, err)
	require.True(t, k.IsArray())
	got, ok := v.([]any)
	require.True(t, ok)
	require.Equal(t, []any{int64(1), int64(2), int64(3)}, got)
}

func TestDynamicExtractNestedAnyArrayFails(t *testing.T) {
	var c cdt.CDT
	_, err := c.SetNewArray(1, 1, types.Any)
	require.NoError(t, err)
	s := &cdt.CDTS{Cells: []cdt.CDT{c}}

	r := New(s)
	_, _, err = r.ExtractValue()
	require.Error(t, err)
}

func TestDynamicPeekAndIsNull(t *testing.T) {
	s, err := cdt.NewCDTS(1)
	require.NoError(t, err)
	b := New(s)
	isNull, err := b.IsNull()
	require.NoError(t, err)
	require.True(t, isNull)

	require.NoError(t, b.Add(int32(7), types.Int32))

	r := New(s)
	k, err := r.PeekKind()
	require.NoError(t, err)
	require.Equal(t, types.Int32, k)
}

func TestDynamicAddHandleAndCallable(t *testing.T) {
	s, err := cdt.NewCDTS(2)
	require.NoError(t, err)
	b := New(s)
	require.NoError(t, b.Add(&cdt.Handle{RuntimeID: cdt.LocalRuntimeID, Raw: "x"}, types.Handle))
	require.NoError(t, b.Add(&cdt.Callable{Fn: func() {}, RuntimeID: cdt.LocalRuntimeID}, types.Callable))

	r := New(s)
	v0, _, err := r.ExtractValue()
	require.NoError(t, err)
	_, ok := v0.(*cdt.Handle)
	require.True(t, ok)

	v1, _, err := r.ExtractValue()
	require.NoError(t, err)
	_, ok = v1.(*cdt.Callable)
	require.True(t, ok)
}
