package version

import (
	"fmt"
	"runtime"

	"github.com/oshokin/cpx-bridge/internal/domain/host"
)

//nolint:gochecknoglobals // Overridden with -ldflags "-X".
var (
	// Version is the release of the bridge.
	Version = "0.1.0"
	// Commit is the short git SHA of the build.
	Commit = "none"
	// BuildTime is the UTC build timestamp.
	BuildTime = "unknown"
)

// Short returns the release only.
func Short() string {
	return Version
}

// Full returns the release with build metadata and the host platform tag.
func Full() string {
	return fmt.Sprintf("cpx-bridge %s (commit %s, built %s, %s, platform %s)",
		Version, Commit, BuildTime, runtime.Version(), host.CurrentPlatform())
}
