//go:build windows

package xllr

import "fmt"

// dlopenDispatcher has no Windows implementation: spec.md's loader section
// documents a LoadLibrary/GetProcAddress equivalent path without
// implementing it, carried over here as an explicit non-goal rather than a
// silent gap.
func dlopenDispatcher(path string) (Dispatcher, error) {
	return nil, fmt.Errorf("xllr: windows dispatcher binding not implemented (path %s)", path)
}
