package testplugin

import (
	"errors"
	"testing"

	"github.com/metaffi/host/cdt"
	"github.com/metaffi/host/dispatch"
	"github.com/metaffi/host/entity"
	"github.com/metaffi/host/errs"
	"github.com/metaffi/host/registry"
	"github.com/metaffi/host/types"
	"github.com/stretchr/testify/require"
)

// TestAddInt64 is spec.md §8 scenario S5's first half.
func TestAddInt64(t *testing.T) {
	d := New()
	l := entity.NewLoader(d, registry.New(d))
	e, err := l.Load("test", "", "callable=add_int64",
		[]types.Info{types.NewInfo(types.Int64), types.NewInfo(types.Int64)},
		[]types.Info{types.NewInfo(types.Int64)})
	require.NoError(t, err)

	params, err := cdt.NewCDTS(2)
	require.NoError(t, err)
	params.Cells[0].SetInt64(types.Int64, 2)
	params.Cells[1].SetInt64(types.Int64, 3)

	retvals, err := dispatch.Call(e, params)
	require.NoError(t, err)
	v, err := retvals.Cells[0].Int64()
	require.NoError(t, err)
	require.Equal(t, int64(5), v)

	require.NoError(t, e.Free())
}

// TestNoOp is spec.md §8 scenario S5's second half: no params, no
// retvals, no error, and no return CDTS.
func TestNoOp(t *testing.T) {
	d := New()
	l := entity.NewLoader(d, registry.New(d))
	e, err := l.Load("test", "", "callable=no_op", nil, nil)
	require.NoError(t, err)

	retvals, err := dispatch.Call(e, nil)
	require.NoError(t, err)
	require.Nil(t, retvals)

	require.NoError(t, e.Free())
}

// TestLoadEntityFailurePropagatesAndRetries is spec.md §8 scenario S6:
// load_entity fails with "bad", the caller receives a PluginError
// carrying that string, and a second attempt still reaches the
// dispatcher.
func TestLoadEntityFailurePropagatesAndRetries(t *testing.T) {
	d := New()
	d.FailLoadEntity("bad")
	l := entity.NewLoader(d, registry.New(d))

	_, err := l.Load("test", "", "callable=add_int64", nil, nil)
	require.Error(t, err)
	var pe *errs.PluginError
	require.True(t, errors.As(err, &pe))
	require.Equal(t, "bad", pe.Message)
	require.Equal(t, 1, d.LoadAttempts())

	_, err = l.Load("test", "", "callable=add_int64", nil, nil)
	require.Error(t, err)
	require.Equal(t, 2, d.LoadAttempts())
}

func TestLoadUnknownEntityReturnsEntityNotFound(t *testing.T) {
	d := New()
	l := entity.NewLoader(d, registry.New(d))

	_, err := l.Load("test", "", "callable=missing", nil, nil)
	require.Error(t, err)
	var enf *errs.EntityNotFound
	require.True(t, errors.As(err, &enf))
}
