// Package buildinfo holds version data stamped in at link time, e.g.
//
//	go build -ldflags "-X heatmap.tricitytransit.org/internal/buildinfo.CommitHash=$(git rev-parse HEAD)"
package buildinfo

import "runtime/debug"

var (
	Version    = "dev"
	CommitHash = ""
	BuildTime  = ""
	Dirty      = ""
)

// Commit returns CommitHash, falling back to the VCS revision the Go toolchain
// records in the binary.
func Commit() string {
	if CommitHash != "" {
		return CommitHash
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return ""
}
