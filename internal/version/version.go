// Package version holds build version information, kept separate so any
// package can report it without importing the cli.
package version

// Version is the build version string, set by ldflags during build.
// Format: vX.Y.Z or vX.Y.Z-dev for development builds.
var Version = "v0.1.0-dev"

// BuildTime is the build timestamp, set by ldflags during build.
var BuildTime = "unknown"

// UserAgent identifies the client to the file server.
func UserAgent() string {
	return "tfsync/" + Version
}
