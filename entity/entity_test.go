package entity

import (
	"errors"
	"testing"
	"unsafe"

	"github.com/metaffi/host/cdt"
	"github.com/metaffi/host/errs"
	"github.com/metaffi/host/registry"
	"github.com/metaffi/host/types"
	"github.com/metaffi/host/xllr"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	freeXCallCalls  int
	nullEntity      bool
	loadEntityErr   error
	nextXCall       xllr.XCall
}

func (f *fakeDispatcher) LoadRuntimePlugin(string) error { return nil }
func (f *fakeDispatcher) FreeRuntimePlugin(string) error { return nil }
func (f *fakeDispatcher) LoadEntity(runtime, module, path string, params, retvals []types.Kind) (xllr.XCall, error) {
	if f.loadEntityErr != nil {
		return xllr.XCall{}, f.loadEntityErr
	}
	if f.nullEntity {
		return xllr.XCall{}, nil
	}
	return f.nextXCall, nil
}
func (f *fakeDispatcher) FreeXCall(string, xllr.XCall) error {
	f.freeXCallCalls++
	return nil
}
func (f *fakeDispatcher) MakeCallable(string, unsafe.Pointer, []types.Kind, []types.Kind) (xllr.XCall, error) {
	return xllr.XCall{}, nil
}
func (f *fakeDispatcher) InvokeNoParamsNoRet(xllr.XCall) error                  { return nil }
func (f *fakeDispatcher) InvokeParamsNoRet(xllr.XCall, *cdt.CDTS) error         { return nil }
func (f *fakeDispatcher) InvokeNoParamsRet(xllr.XCall, *cdt.CDTS) error         { return nil }
func (f *fakeDispatcher) InvokeParamsRet(xllr.XCall, *cdt.CDTS, *cdt.CDTS) error { return nil }

func newTestXCall() xllr.XCall {
	var x int
	return xllr.NewXCall(unsafe.Pointer(&x))
}

func TestLoadSuccessTransitionsToLoaded(t *testing.T) {
	d := &fakeDispatcher{nextXCall: newTestXCall()}
	l := NewLoader(d, registry.New(d))

	e, err := l.Load("test", "mod", "callable=add_int64", []types.Info{types.NewInfo(types.Int64)}, []types.Info{types.NewInfo(types.Int64)})
	require.NoError(t, err)
	require.Equal(t, "loaded", e.State())
	require.True(t, e.IsUsable())
}

func TestLoadNullEntityReturnsEntityNotFound(t *testing.T) {
	d := &fakeDispatcher{nullEntity: true}
	l := NewLoader(d, registry.New(d))

	_, err := l.Load("test", "mod", "callable=missing", nil, nil)
	require.Error(t, err)
	var enf *errs.EntityNotFound
	require.True(t, errors.As(err, &enf))
}

func TestLoadPluginErrorPropagates(t *testing.T) {
	d := &fakeDispatcher{loadEntityErr: &errs.PluginError{Runtime: "test", Op: "load_entity", Message: "bad"}}
	l := NewLoader(d, registry.New(d))

	_, err := l.Load("test", "mod", "callable=x", nil, nil)
	require.Error(t, err)
	var pe *errs.PluginError
	require.True(t, errors.As(err, &pe))
	require.Equal(t, "bad", pe.Message)
}

func TestLoadRejectsOversizedArity(t *testing.T) {
	d := &fakeDispatcher{nextXCall: newTestXCall()}
	l := NewLoader(d, registry.New(d))

	tooMany := make([]types.Info, maxArity+1)
	_, err := l.Load("test", "mod", "callable=x", tooMany, nil)
	require.Error(t, err)
	var ae *errs.ArityError
	require.True(t, errors.As(err, &ae))
}

// TestOwningEntityFreeCallsFreeXCallOnce is spec §8 invariant 8: dropping
// an owning entity calls free_xcall exactly once.
func TestOwningEntityFreeCallsFreeXCallOnce(t *testing.T) {
	d := &fakeDispatcher{nextXCall: newTestXCall()}
	l := NewLoader(d, registry.New(d))
	e, err := l.Load("test", "mod", "callable=add_int64", nil, nil)
	require.NoError(t, err)

	require.NoError(t, e.Free())
	require.NoError(t, e.Free())
	require.Equal(t, 1, d.freeXCallCalls)
	require.Equal(t, "freed", e.State())
}

// TestBorrowedEntityFreeNeverCallsFreeXCall is spec §8 invariant 8's other
// half: dropping a borrowed entity calls it zero times.
func TestBorrowedEntityFreeNeverCallsFreeXCall(t *testing.T) {
	d := &fakeDispatcher{}
	e := Borrow(d, "test", "mod", "callable=x", newTestXCall(), nil, nil)

	require.NoError(t, e.Free())
	require.Equal(t, 0, d.freeXCallCalls)
}

func TestMarkInvocableTransitionsOnce(t *testing.T) {
	d := &fakeDispatcher{nextXCall: newTestXCall()}
	l := NewLoader(d, registry.New(d))
	e, err := l.Load("test", "mod", "callable=x", nil, nil)
	require.NoError(t, err)

	e.MarkInvocable()
	require.Equal(t, "invocable", e.State())
	e.MarkInvocable()
	require.Equal(t, "invocable", e.State())
}
