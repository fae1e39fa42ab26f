// Package version holds the build metadata printed by `customization-deployer version`.
//
// Version, Commit and BuildTime are set through -ldflags "-X" at release time.
package version
