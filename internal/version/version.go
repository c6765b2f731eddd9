// Package version holds build information injected with -ldflags, e.g.
//
//	-X github.com/redtrack-io/redtrack/internal/version.Version=v1.2.0
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	GitCommit = "none"
	BuildDate = "unknown"
)

// Info is the build description reported by the health endpoint.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

func GetInfo() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
}

// String formats the build for --version output.
func String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate)
}
