// Package version carries build metadata injected with -ldflags -X.
package version

import (
	"fmt"
	"io"
	"runtime"
)

// Set at build time, e.g.
// -X github.com/agri-identity/agrigate/internal/version.Version=v1.2.0
var (
	Version   string
	GitCommit string
	BuildTime string
)

const binaryName = "agrigate"

// GetVersion returns the build version, or "dev" for local builds.
func GetVersion() string {
	if Version != "" {
		return Version
	}
	return "dev"
}

// Fprint writes the banner shown by `agrigate version`.
func Fprint(w io.Writer) {
	fmt.Fprintf(w, "%s %s (consent server)\n", binaryName, GetVersion())
	if GitCommit != "" {
		fmt.Fprintf(w, "  commit:  %s\n", shortCommit(GitCommit))
	}
	if BuildTime != "" {
		fmt.Fprintf(w, "  built:   %s\n", BuildTime)
	}
	fmt.Fprintf(w, "  runtime: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func shortCommit(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}
