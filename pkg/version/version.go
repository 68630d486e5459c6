// Package version reports the buildtracker binary version.
package version

import (
	"runtime/debug"
	"sync"
)

const unknown = "<unknown>"

// Set at link time with -ldflags "-X github.com/Sumatoshi-tech/buildtracker/pkg/version.Version=...".
var (
	Version = "dev"
	Commit  = unknown
	Date    = unknown
)

var initOnce sync.Once

// InitBinaryVersion fills Version and Commit from the module build info when
// they were not set at link time.
func InitBinaryVersion() {
	initOnce.Do(func() {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}

		if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			Version = info.Main.Version
		}

		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				if Commit == unknown {
					Commit = setting.Value
				}
			case "vcs.time":
				if Date == unknown {
					Date = setting.Value
				}
			}
		}
	})
}

// String formats the version for the version command and the OTel resource.
func String() string {
	return Version + " (commit: " + Commit + ", built: " + Date + ")"
}
