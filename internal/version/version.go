// Package version provides build version information for the application.
// This is a separate package to avoid import cycles between cli and api.
package version

import "runtime"

// Version is the build version string, set by ldflags during build.
// Format: vX.Y.Z or vX.Y.Z-dev for development builds.
var Version = "v0.1.0-dev"

// BuildTime is the build timestamp, set by ldflags during build.
var BuildTime = "unknown"

// UserAgent is sent with every API request.
func UserAgent() string {
	return "capishare/" + Version + " (" + runtime.GOOS + "/" + runtime.GOARCH + ")"
}
