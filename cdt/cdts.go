package cdt

import "github.com/metaffi/host/errs"

// MaxCellCount is the hard limit on a CDTS's length at every level, per
// spec §3: "length <= 127 at every level (encoded as signed 8-bit counts
// on the ABI)".
const MaxCellCount = 127

// CDTS is a fixed-length sequence of CDT cells — the unit of parameter and
// return-value passing across the FFI boundary (spec §3). FixedDimensions
// annotates homogeneous n-dimensional arrays so consumers can validate
// rank without walking the tree; it is MixedOrUnknownDimensions for a
// CDTS that is not itself a homogeneous array level (e.g. the top-level
// params/retvals sequence).
type CDTS struct {
	Cells           []CDT
	FixedDimensions int
}

// NewCDTS constructs a CDTS of the given length with every cell defaulted
// to Null / FreeRequired=false (spec §4.2). It rejects lengths outside
// [0, MaxCellCount].
func NewCDTS(length int) (*CDTS, error) {
	if length < 0 || length > MaxCellCount {
		return nil, &errs.BoundsError{Index: length, Length: MaxCellCount}
	}
	cells := make([]CDT, length)
	for i := range cells {
		cells[i] = Null()
	}
	return &CDTS{Cells: cells, FixedDimensions: -1}, nil
}

// Len returns the number of cells.
func (s *CDTS) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Cells)
}

// At returns a pointer to the cell at index, or a BoundsError if index is
// out of range.
func (s *CDTS) At(index int) (*CDT, error) {
	if s == nil || index < 0 || index >= len(s.Cells) {
		return nil, &errs.BoundsError{Index: index, Length: s.Len()}
	}
	return &s.Cells[index], nil
}

// Free releases every cell's payload (spec §4.2 cascading free, §4.8
// mandatory pre-free handle-ownership walk: callers that want the
// ownership arbiter to run should call Arbiter.Disarm(s) before Free;
// dispatch.Call does so on every return CDTS it hands back to its caller).
func (s *CDTS) Free() error {
	if s == nil {
		return nil
	}
	var firstErr error
	for i := range s.Cells {
		if err := s.Cells[i].Free(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Move transfers ownership of every cell from src to a new CDTS, leaving
// src empty (spec §4.2 "moving a CDTS transfers ownership of all its
// cells"). The caller must not use src afterward for anything but
// discarding it.
func Move(src *CDTS) *CDTS {
	if src == nil {
		return nil
	}
	moved := &CDTS{Cells: src.Cells, FixedDimensions: src.FixedDimensions}
	src.Cells = nil
	src.FixedDimensions = -1
	return moved
}
