// Package platform answers the few OS questions the engine launcher needs.
package platform

import (
	"os/exec"
	"runtime"
)

// OS represents the operating system
type OS string

const (
	MacOS   OS = "darwin"
	Linux   OS = "linux"
	Windows OS = "windows"
)

// Current returns the current operating system
func Current() OS {
	return OS(runtime.GOOS)
}

// IsWindows returns true if running on Windows
func IsWindows() bool {
	return Current() == Windows
}

// DefaultPython returns the interpreter name used when none is configured.
// Windows installers ship "python"; most Unix systems only ship "python3".
func DefaultPython() string {
	return pythonFor(Current())
}

func pythonFor(target OS) string {
	if target == Windows {
		return "python"
	}
	return "python3"
}

// LookPath resolves an executable name to a full path using PATH.
// Paths containing a separator are returned unchanged if they exist.
func LookPath(name string) (string, error) {
	return exec.LookPath(name)
}
