// Package version holds build metadata, set with -ldflags "-X".
package version

// Version is the release version.
var Version = "0.0.0"

// GitCommit is the git commit hash.
var GitCommit = "unknown"

// BuildDate is the build timestamp.
var BuildDate = "unknown"

// Info returns the build metadata in the shape served by /version.
func Info() map[string]string {
	return map[string]string{
		"version":    Version,
		"commit":     GitCommit,
		"build_date": BuildDate,
	}
}
