// Package version provides build version information.
package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is the semantic version (set by build flags).
	Version = "dev"

	// GitCommit is the git commit hash (set by build flags).
	GitCommit = "unknown"

	// GoVersion is the Go version used to build.
	GoVersion = runtime.Version()
)

// String returns a single-line version description.
func String() string {
	return fmt.Sprintf("loopprof %s (%s, %s)", Version, GitCommit, GoVersion)
}
