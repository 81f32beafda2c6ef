package xllr

import (
	"fmt"
	"sync"

	"github.com/metaffi/host/xlog"
)

var log = xlog.For("xllr.loader")

// openDispatcher constructs the real Dispatcher for a resolved library
// path. Production builds bind this to the cgo dlopen implementation in
// cgo_dlopen.go; tests reassign it to inject a fake, since this package's
// own tests must run without a real XLLR shared library on the test
// machine (the teacher's analogue is saferwall-pe's table-driven tests
// operating on an in-memory byte slice rather than a real PE file on
// disk — here the seam is a function variable instead of a constructor
// argument because Load()'s signature is fixed by spec.md §4.4 to take no
// arguments and cache a process-wide singleton).
var openDispatcher = dlopenDispatcher

var (
	singletonOnce sync.Once
	singleton     Dispatcher
	singletonErr  error
	singletonMu   sync.Mutex
)

// Load resolves and binds the central dispatcher exactly once per process;
// subsequent calls return the cached handle (spec.md §4.4, §9 "one
// lazily-initialized singleton guarded by a mutex").
func Load() (Dispatcher, error) {
	singletonMu.Lock()
	defer singletonMu.Unlock()

	singletonOnce.Do(func() {
		path, err := resolveLibraryPath()
		if err != nil {
			singletonErr = err
			return
		}
		d, err := openDispatcher(path)
		if err != nil {
			singletonErr = fmt.Errorf("bind dispatcher at %s: %w", path, err)
			return
		}
		log.Info("dispatcher loaded", "path", path)
		singleton = d
	})
	return singleton, singletonErr
}

// resetForTest clears the cached singleton so a test can exercise Load()
// again under a different openDispatcher. Unexported: only this package's
// own tests may call it.
func resetForTest() {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	singletonOnce = sync.Once{}
	singleton = nil
	singletonErr = nil
}
