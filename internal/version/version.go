// Package version holds build information injected at link time.
package version

// Populated via -ldflags "-X github.com/fusedex/fusedex/internal/version.Version=..."
var (
	Version = "dev"
	Commit  = "unknown"
)
