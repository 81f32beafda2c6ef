package xllr

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/metaffi/host/errs"
)

// libraryBaseName is the dispatcher's file stem, platform suffix applied by
// dispatcherFileName.
const libraryBaseName = "xllr"

// dispatcherFileName returns the platform-appropriate shared-library file
// name for the central dispatcher.
func dispatcherFileName() string {
	switch runtime.GOOS {
	case "windows":
		return libraryBaseName + ".dll"
	case "darwin":
		return "lib" + libraryBaseName + ".dylib"
	default:
		return "lib" + libraryBaseName + ".so"
	}
}

// resolveLibraryPath implements spec.md §4.4's precedence: METAFFI_HOME,
// then the process working directory, then the optional dev-path injection
// METAFFI_SOURCE_ROOT, then the OS search path. Returns InstallationMissing,
// carrying every path tried, if none exist.
func resolveLibraryPath() (string, error) {
	name := dispatcherFileName()
	var searched []string

	if home := os.Getenv("METAFFI_HOME"); home != "" {
		candidate := filepath.Join(home, name)
		searched = append(searched, candidate)
		if fileExists(candidate) {
			return candidate, nil
		}
	}

	if cwd, err := os.Getwd(); err == nil {
		candidate := filepath.Join(cwd, name)
		searched = append(searched, candidate)
		if fileExists(candidate) {
			return candidate, nil
		}
	}

	if sourceRoot := os.Getenv("METAFFI_SOURCE_ROOT"); sourceRoot != "" {
		candidate := filepath.Join(sourceRoot, name)
		searched = append(searched, candidate)
		if fileExists(candidate) {
			return candidate, nil
		}
	}

	if found, err := exec.LookPath(name); err == nil {
		searched = append(searched, found)
		return found, nil
	}
	searched = append(searched, name+" (PATH)")

	return "", &errs.InstallationMissing{Searched: searched}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
