package build

import "fmt"

// Commit is the commit hash the binary was built from. Set at link time.
var Commit string

// Semantic version components.
const (
	appMajor uint = 0
	appMinor uint = 1
	appPatch uint = 0

	// appPreRelease marks the version as a pre-release when non-empty.
	appPreRelease = "beta"
)

// Version returns the application version as a properly formed string.
func Version() string {
	version := fmt.Sprintf("%d.%d.%d", appMajor, appMinor, appPatch)
	if appPreRelease != "" {
		version = fmt.Sprintf("%s-%s", version, appPreRelease)
	}

	return version
}
