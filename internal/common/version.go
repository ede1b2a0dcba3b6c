package common

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Stamped by the justfile through -ldflags -X
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

// GetVersion returns the release version, "dev" for local builds
func GetVersion() string {
	return Version
}

// GetFullVersion adds the build date, commit and platform to the version
func GetFullVersion() string {
	return fmt.Sprintf("%s (built %s, commit %s, %s %s/%s)",
		Version, Build, commit(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// commit falls back to the VCS revision go build embeds when -ldflags left it unset
func commit() string {
	if GitCommit != "unknown" {
		return GitCommit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" && len(setting.Value) >= 7 {
				return setting.Value[:7]
			}
		}
	}
	return GitCommit
}
