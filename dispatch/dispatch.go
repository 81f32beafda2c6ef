// Package dispatch implements call dispatch (spec.md §4.7): selecting one
// of four ABI invocation variants by parameter/return arity, validating
// argument and return kinds against an entity's declared descriptors, and
// running the handle-ownership arbiter before any CDTS the core allocated
// is freed. Grounded on
// original_source/api/cpp/src/metaffi_api.cpp's call_with_cdts, which
// picks the same four variants by the same (params_count, retvals_count)
// test.
package dispatch

import (
	"github.com/metaffi/host/cdt"
	"github.com/metaffi/host/entity"
	"github.com/metaffi/host/errs"
	"github.com/metaffi/host/types"
	"github.com/metaffi/host/xlog"
)

var log = xlog.For("dispatch")

// Call invokes e with params, validating arity and per-cell kinds before
// the call and the declared return kinds after, per spec.md §4.7 steps
// 1-5. params may be nil when e declares no parameters. The returned CDTS
// is nil when e declares no return values.
func Call(e *entity.Entity, params *cdt.CDTS) (*cdt.CDTS, error) {
	if !e.IsUsable() {
		return nil, &errs.PluginError{Runtime: e.Runtime, Op: "call", Message: "entity is not invocable (already freed)"}
	}

	if err := validateCells(e.ParamsTypes, params, false); err != nil {
		return nil, err
	}

	nParams := len(e.ParamsTypes)
	nRetvals := len(e.RetvalTypes)

	var retvals *cdt.CDTS
	if nRetvals > 0 {
		var err error
		retvals, err = cdt.NewCDTS(nRetvals)
		if err != nil {
			return nil, err
		}
	}

	x := e.XCall()
	disp := e.Dispatcher()
	var err error
	switch {
	case nParams == 0 && nRetvals == 0:
		err = disp.InvokeNoParamsNoRet(x)
	case nParams > 0 && nRetvals == 0:
		err = disp.InvokeParamsNoRet(x, params)
	case nParams == 0 && nRetvals > 0:
		err = disp.InvokeNoParamsRet(x, retvals)
	default:
		err = disp.InvokeParamsRet(x, params, retvals)
	}
	if err != nil {
		return nil, err
	}

	e.MarkInvocable()

	if nRetvals > 0 {
		// retvals just crossed back from a foreign runtime; disarm any
		// handle whose runtime_id is not local before it is ever within
		// reach of a Free() call (spec.md §4.8, §8 invariant 7).
		cdt.DefaultArbiter().Disarm(retvals)
		if err := validateCells(e.RetvalTypes, retvals, true); err != nil {
			return nil, err
		}
	}
	log.Debug("call completed", "runtime", e.Runtime, "path", e.Path, "params", nParams, "retvals", nRetvals)
	return retvals, nil
}

// validateCells checks every cell in actual against its declared
// descriptor (spec.md §4.1 matching rule), returning ArityError on a
// length mismatch and KindMismatch (or ReturnKindMismatch when isReturn)
// on the first incompatible cell.
func validateCells(declared []types.Info, actual *cdt.CDTS, isReturn bool) error {
	what := "parameters"
	if isReturn {
		what = "return values"
	}
	if actual.Len() != len(declared) {
		return &errs.ArityError{What: what, Expected: len(declared), Actual: actual.Len()}
	}
	for i, info := range declared {
		cell, err := actual.At(i)
		if err != nil {
			return err
		}
		actualDims := types.MixedOrUnknownDimensions
		if cell.Kind.IsArray() {
			if nested, err := cell.Array(); err == nil {
				actualDims = nested.FixedDimensions
			}
		}
		if !info.Matches(cell.Kind, actualDims) {
			km := errs.KindMismatch{Index: i, Expected: info.Kind, Actual: cell.Kind}
			if isReturn {
				return &errs.ReturnKindMismatch{KindMismatch: km}
			}
			return &km
		}
	}
	return nil
}
