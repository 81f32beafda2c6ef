// Package registry implements the process-wide runtime-plugin cache
// (spec.md §4.5): load requests are normalized to a canonical
// "xllr."-prefixed name and deduplicated; release is idempotent; plugins
// are never actually torn down, since several embedded runtimes (Python's
// Py_Finalize, the JVM's DestroyJavaVM, Go's inability to dlclose) corrupt
// process state if unloaded mid-process. Grounded on the teacher's explicit
// package-level mutex-guarded state idiom (cmd/dump.go's worker pool
// synchronizes access to shared results with a mutex + WaitGroup; here the
// shared state is the plugin cache rather than a result slice).
package registry

import (
	"strings"
	"sync"

	"github.com/metaffi/host/xllr"
	"github.com/metaffi/host/xlog"
)

var log = xlog.For("runtime.registry")

const namePrefix = "xllr."

// canonicalName ensures name carries the "xllr." prefix exactly once.
func canonicalName(name string) string {
	if strings.HasPrefix(name, namePrefix) {
		return name
	}
	return namePrefix + name
}

// entry tracks one loaded plugin's reference count. Plugins are resident
// for process lifetime regardless of refcount reaching zero (spec.md §4.5,
// §9 "Go's dlclose limitation"); the entry is kept once created, so only
// the first Acquire reaches LoadRuntimePlugin, and refcount only gates
// whether a Release reaches FreeRuntimePlugin.
type entry struct {
	refcount int
}

// Registry is a plugin cache over one dispatcher. The zero value is not
// usable; construct with New. Each New call returns an independent cache;
// the package keeps no process-wide instance, so sharing one cache across
// a process means sharing one *Registry.
type Registry struct {
	mu      sync.Mutex
	plugins map[string]*entry
	disp    xllr.Dispatcher
}

// New builds a Registry backed by disp, the bound XLLR dispatcher.
func New(disp xllr.Dispatcher) *Registry {
	return &Registry{plugins: make(map[string]*entry), disp: disp}
}

// Acquire loads name (normalizing its prefix) if this is the first request
// for it, or increments its refcount if already resident. The dispatcher's
// load_runtime_plugin is only ever invoked on the first Acquire for a given
// name (spec.md invariant 6 extended to loads: repeated loads are
// indistinguishable from one).
func (r *Registry) Acquire(name string) (string, error) {
	canonical := canonicalName(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.plugins[canonical]; ok {
		e.refcount++
		return canonical, nil
	}

	if err := r.disp.LoadRuntimePlugin(canonical); err != nil {
		return "", err
	}
	r.plugins[canonical] = &entry{refcount: 1}
	log.Info("runtime plugin loaded", "runtime", canonical)
	return canonical, nil
}

// Release decrements name's refcount. It is idempotent (spec.md §8
// invariant 6): releasing a name with no resident entry, or releasing past
// zero, is a silent no-op rather than an error, matching "release_runtime_
// plugin called twice is indistinguishable from calling it once" — the
// underlying dispatcher's free_runtime_plugin is invoked at most once per
// net acquisition, but even that call never actually unloads the plugin.
func (r *Registry) Release(name string) error {
	canonical := canonicalName(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.plugins[canonical]
	if !ok || e.refcount <= 0 {
		return nil
	}
	e.refcount--
	if e.refcount > 0 {
		return nil
	}
	// refcount reached zero: tell the dispatcher, but keep the cache entry
	// so a second Release is a no-op rather than re-invoking FreeRuntimePlugin.
	if err := r.disp.FreeRuntimePlugin(canonical); err != nil {
		log.Error("free_runtime_plugin failed", "runtime", canonical, "error", err)
		return err
	}
	return nil
}

// IsLoaded reports whether name (after prefix normalization) has an
// outstanding Acquire.
func (r *Registry) IsLoaded(name string) bool {
	canonical := canonicalName(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.plugins[canonical]
	return ok && e.refcount > 0
}
