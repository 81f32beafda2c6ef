package cdt

import (
	"errors"
	"testing"

	"github.com/metaffi/host/errs"
	"github.com/metaffi/host/types"
	"github.com/stretchr/testify/require"
)

// TestPrimitiveRoundTrip is spec §8 scenario S1: build a CDTS of length 3,
// put int32(42), float64(3.14), bool(true) in; the cells' tags are int32,
// float64, bool; reading them back yields the same values.
func TestPrimitiveRoundTrip(t *testing.T) {
	s, err := NewCDTS(3)
	require.NoError(t, err)

	s.Cells[0].SetInt64(types.Int32, 42)
	s.Cells[1].SetFloat64(3.14)
	s.Cells[2].SetBool(true)

	require.Equal(t, types.Int32, s.Cells[0].Kind)
	require.Equal(t, types.Float64, s.Cells[1].Kind)
	require.Equal(t, types.Bool, s.Cells[2].Kind)

	v0, err := s.Cells[0].Int64()
	require.NoError(t, err)
	require.Equal(t, int64(42), v0)

	v1, err := s.Cells[1].Float64()
	require.NoError(t, err)
	require.Equal(t, 3.14, v1)

	v2, err := s.Cells[2].Bool()
	require.NoError(t, err)
	require.True(t, v2)
}

func TestAccessorKindMismatch(t *testing.T) {
	var c CDT
	c.SetBool(true)

	_, err := c.Int64()
	require.Error(t, err)
	var km *errs.KindMismatch
	require.True(t, errors.As(err, &km))
}

func TestStringRoundTrip(t *testing.T) {
	var c CDT
	c.SetString(types.String8, "hello", true)
	v, err := c.String()
	require.NoError(t, err)
	require.Equal(t, "hello", v)
	require.True(t, c.FreeRequired)
}

func TestNullCell(t *testing.T) {
	c := Null()
	require.True(t, c.IsNull())
	require.NoError(t, c.Free())
}

// TestNestedArray is spec §8 scenario S2: serialize [[1,2,3],[4,5,6]] with
// element kind int32. The outer CDTS cell has kind array|int32, length=2,
// each nested cell has length=3, leaves hold the six int32 values.
func TestNestedArray(t *testing.T) {
	var outerCell CDT
	outer, err := outerCell.SetNewArray(2, 2, types.Int32)
	require.NoError(t, err)
	require.Equal(t, types.Int32|types.Array, outerCell.Kind)
	require.Equal(t, 2, outer.Len())

	rows := [][]int64{{1, 2, 3}, {4, 5, 6}}
	for i, row := range rows {
		nested, err := outer.Cells[i].SetNewArray(len(row), 1, types.Int32)
		require.NoError(t, err)
		require.Equal(t, 3, nested.Len())
		for j, v := range row {
			nested.Cells[j].SetInt64(types.Int32, v)
		}
	}

	for i, row := range rows {
		inner, err := outer.Cells[i].Array()
		require.NoError(t, err)
		for j, want := range row {
			got, err := inner.Cells[j].Int64()
			require.NoError(t, err)
			require.Equal(t, want, got)
		}
	}
}

func TestArrayFreeCascades(t *testing.T) {
	var outerCell CDT
	outer, err := outerCell.SetNewArray(1, 1, types.Int32)
	require.NoError(t, err)
	outer.Cells[0].SetInt64(types.Int32, 7)

	require.NoError(t, outerCell.Free())
	require.False(t, outerCell.FreeRequired)
}

func TestSetCallableRejectsForeignRuntime(t *testing.T) {
	var c CDT
	err := c.SetCallable(&Callable{Fn: func() {}, RuntimeID: LocalRuntimeID + 999})
	require.Error(t, err)
	var nc *errs.NullCallable
	require.True(t, errors.As(err, &nc))
}

func TestSetCallableAcceptsLocalAndCopiesTypeArrays(t *testing.T) {
	var c CDT
	original := &Callable{
		Fn:          func() {},
		RuntimeID:   LocalRuntimeID,
		ParamsTypes: []types.Kind{types.Int32},
		RetvalTypes: []types.Kind{types.Int64},
	}
	require.NoError(t, c.SetCallable(original))

	got, err := c.Callable()
	require.NoError(t, err)
	require.Equal(t, original.ParamsTypes, got.ParamsTypes)

	// mutating the caller's slice must not affect the stored copy
	original.ParamsTypes[0] = types.Bool
	require.Equal(t, types.Int32, got.ParamsTypes[0])
}
