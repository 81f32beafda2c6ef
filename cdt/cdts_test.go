package cdt

import (
	"errors"
	"testing"

	"github.com/metaffi/host/errs"
	"github.com/metaffi/host/types"
	"github.com/stretchr/testify/require"
)

func TestNewCDTSRejectsOverLength(t *testing.T) {
	_, err := NewCDTS(MaxCellCount + 1)
	require.Error(t, err)
	var be *errs.BoundsError
	require.True(t, errors.As(err, &be))
}

func TestNewCDTSAllCellsStartNull(t *testing.T) {
	s, err := NewCDTS(5)
	require.NoError(t, err)
	for i := 0; i < s.Len(); i++ {
		require.True(t, s.Cells[i].IsNull())
		require.False(t, s.Cells[i].FreeRequired)
	}
}

// TestBoundsEnforcement is part of spec §8 invariant 4: At beyond the
// declared CDTS length fails with BoundsError.
func TestBoundsEnforcement(t *testing.T) {
	s, err := NewCDTS(2)
	require.NoError(t, err)

	_, err = s.At(2)
	require.Error(t, err)
	var be *errs.BoundsError
	require.True(t, errors.As(err, &be))

	_, err = s.At(-1)
	require.Error(t, err)
}

func TestMoveTransfersOwnershipAndEmptiesSource(t *testing.T) {
	s, err := NewCDTS(1)
	require.NoError(t, err)
	s.Cells[0].SetInt64(types.Int32, 5)

	moved := Move(s)
	require.Equal(t, 1, moved.Len())
	require.Equal(t, 0, s.Len())
}

func TestCDTSFreeAggregatesCells(t *testing.T) {
	s, err := NewCDTS(2)
	require.NoError(t, err)
	calls := 0
	s.Cells[0].SetHandle(&Handle{RuntimeID: LocalRuntimeID, Release: func() error { calls++; return nil }})
	s.Cells[1].SetHandle(&Handle{RuntimeID: LocalRuntimeID, Release: func() error { calls++; return nil }})

	require.NoError(t, s.Free())
	require.Equal(t, 2, calls)
}
