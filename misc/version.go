// Package misc keeps build related information in a single place.
package misc

import (
	"runtime/debug"
	"sync"
)

const appName = "cssopt"

var (
	// set by linker: -X cssopt/misc.version=...
	version = "dev"
	gitHash = ""

	readBuildInfo = sync.OnceValue(func() map[string]string {
		settings := make(map[string]string)
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, s := range bi.Settings {
				settings[s.Key] = s.Value
			}
		}
		return settings
	})
)

func GetAppName() string {
	return appName
}

func GetVersion() string {
	return version
}

// GetGitHash returns the commit the binary was built from, falling back to
// VCS information embedded by the Go toolchain.
func GetGitHash() string {
	if len(gitHash) > 0 {
		return gitHash
	}
	if rev, ok := readBuildInfo()["vcs.revision"]; ok {
		if len(rev) > 12 {
			rev = rev[:12]
		}
		return rev
	}
	return "unknown"
}
