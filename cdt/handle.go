package cdt

// Handle is an opaque reference to an object owned by a specific runtime,
// tagged with that runtime's id (spec §3, §4.8, §9 "cyclic ownership"
// design note). Handles are modeled as this (raw, runtimeID,
// release-or-none) triple rather than a single smart pointer, because the
// release decision is data-driven (does RuntimeID match the local runtime
// right now?), not type-driven.
type Handle struct {
	// Raw is the opaque native reference. Its concrete type is owned by
	// whichever runtime produced it; the host core never inspects it.
	Raw any

	// RuntimeID identifies which runtime owns Raw.
	RuntimeID uint64

	// Release, if non-nil, frees Raw's native-side resources (and, for a
	// local-runtime releaser, also decrements the host-language refcount
	// / removes the object from that runtime's per-process object table —
	// spec §4.8). The handle-ownership arbiter nulls this out before a
	// CDTS is freed whenever RuntimeID does not match the local runtime,
	// so the destructor never calls back into a runtime that is not
	// authoritative for Raw (and may already be gone).
	Release func() error
}

// LocalRuntimeID is the runtime id this process uses to tag handles it
// produces itself. It is a process-wide constant assigned once at
// startup by whichever host binding embeds this package; 0 is reserved
// for "unset" and never matches a real runtime.
var LocalRuntimeID uint64 = 1

// IsLocal reports whether h is owned by this process's runtime.
func (h *Handle) IsLocal() bool {
	return h != nil && h.RuntimeID == LocalRuntimeID
}
