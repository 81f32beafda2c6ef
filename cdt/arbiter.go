package cdt

import "github.com/metaffi/host/types"

// Arbiter implements the handle-ownership pre-free walk mandated by spec
// §4.8: before any CDTS is freed, every handle reachable from the buffer
// is visited, and any handle whose RuntimeID is not the local runtime has
// its Release function nulled, so the destructor becomes a no-op for
// foreign handles. This is the single chokepoint that makes testable
// property 7 ("no CDTS freed by the core invokes a release function on a
// foreign handle") hold regardless of how deeply the handle is nested.
type Arbiter struct {
	// LocalRuntimeID overrides cdt.LocalRuntimeID for this walk, letting
	// tests exercise multiple "local" identities without mutating global
	// state. Zero means "use cdt.LocalRuntimeID".
	LocalRuntimeID uint64
}

func (a Arbiter) localID() uint64 {
	if a.LocalRuntimeID != 0 {
		return a.LocalRuntimeID
	}
	return LocalRuntimeID
}

// Disarm walks s and every nested array, nulling Release on any handle
// whose RuntimeID differs from the arbiter's local id. Call this exactly
// once, immediately before Free, on any CDTS that may contain handles
// produced by a foreign runtime.
func (a Arbiter) Disarm(s *CDTS) {
	if s == nil {
		return
	}
	for i := range s.Cells {
		a.disarmCell(&s.Cells[i])
	}
}

func (a Arbiter) disarmCell(c *CDT) {
	switch {
	case c.Kind.IsArray():
		if arr, ok := c.Payload.(*CDTS); ok {
			a.Disarm(arr)
		}
	case c.Kind == types.Handle:
		if h, ok := c.Payload.(*Handle); ok && h != nil {
			if h.RuntimeID != a.localID() {
				h.Release = nil
			}
		}
	}
}

// DefaultArbiter disarms s against the process-wide cdt.LocalRuntimeID.
func DefaultArbiter() Arbiter { return Arbiter{} }
