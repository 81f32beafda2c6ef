package xllr

import (
	"os"
	"path/filepath"
	"testing"
	"unsafe"

	"github.com/metaffi/host/cdt"
	"github.com/metaffi/host/types"
	"github.com/stretchr/testify/require"
)

// fakeDispatcher is a minimal Dispatcher used only to prove Load()'s
// singleton/caching behavior without a real shared library, analogous to
// internal/testplugin's pure-Go fake Dispatcher.
type fakeDispatcher struct{ opens int }

func (f *fakeDispatcher) LoadRuntimePlugin(string) error { return nil }
func (f *fakeDispatcher) FreeRuntimePlugin(string) error { return nil }
func (f *fakeDispatcher) LoadEntity(string, string, string, []types.Kind, []types.Kind) (XCall, error) {
	return XCall{}, nil
}
func (f *fakeDispatcher) FreeXCall(string, XCall) error { return nil }
func (f *fakeDispatcher) MakeCallable(string, unsafe.Pointer, []types.Kind, []types.Kind) (XCall, error) {
	return XCall{}, nil
}
func (f *fakeDispatcher) InvokeNoParamsNoRet(XCall) error                { return nil }
func (f *fakeDispatcher) InvokeParamsNoRet(XCall, *cdt.CDTS) error       { return nil }
func (f *fakeDispatcher) InvokeNoParamsRet(XCall, *cdt.CDTS) error       { return nil }
func (f *fakeDispatcher) InvokeParamsRet(XCall, *cdt.CDTS, *cdt.CDTS) error { return nil }

func TestLoadCachesSingletonAcrossCalls(t *testing.T) {
	resetForTest()
	t.Cleanup(resetForTest)

	dir := t.TempDir()
	libPath := filepath.Join(dir, dispatcherFileName())
	require.NoError(t, os.WriteFile(libPath, []byte("stub"), 0o644))
	t.Setenv("METAFFI_HOME", dir)

	opens := 0
	openDispatcher = func(path string) (Dispatcher, error) {
		opens++
		require.Equal(t, libPath, path)
		return &fakeDispatcher{}, nil
	}
	t.Cleanup(func() { openDispatcher = dlopenDispatcher })

	d1, err := Load()
	require.NoError(t, err)
	d2, err := Load()
	require.NoError(t, err)

	require.Same(t, d1, d2)
	require.Equal(t, 1, opens, "dispatcher must be opened exactly once, even across repeated Load() calls")
}

func TestLoadFailsWhenInstallationMissing(t *testing.T) {
	resetForTest()
	t.Cleanup(resetForTest)

	t.Setenv("METAFFI_HOME", "")
	t.Setenv("PATH", t.TempDir())
	dir := t.TempDir()
	oldWD, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(oldWD) })

	_, err = Load()
	require.Error(t, err)
}
