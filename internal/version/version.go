// Package version holds build metadata set through -ldflags.
package version

var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

// String renders the version line shown by --version.
func String() string {
	return Version + " (" + Commit + ") " + BuildTime
}
