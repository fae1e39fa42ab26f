package version

import "fmt"

var (
	// Version is the release of the deployer.
	Version = "0.1.0-dev"
	// Commit is the short git SHA of the build, "none" for local builds.
	Commit = "none"
	// BuildTime is the UTC build timestamp.
	BuildTime = "unknown"
)

// Short returns the release only.
func Short() string {
	return Version
}

// Full returns the release with its commit and build time.
func Full() string {
	return fmt.Sprintf("customization-deployer %s (commit %s, built %s)", Version, Commit, BuildTime)
}
