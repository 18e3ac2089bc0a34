// Package version carries the build fingerprints stamped into car via
// -ldflags.
package version

import (
	"strings"

	"github.com/fatih/color"
)

var (
	// Version is the semantic version of the car tool.
	Version = "0.1.0-dev"

	// GitCommit is the git commit hash of the build, when stamped.
	GitCommit = ""

	// BuildDate is the build date in ISO-8601, when stamped.
	BuildDate = ""
)

// Colored renders Version with the major, minor and patch components
// highlighted for terminal output. Strings that do not split into three
// dot-separated components are returned unchanged.
func Colored() string {
	parts := strings.SplitN(Version, ".", 3)
	if len(parts) != 3 {
		return Version
	}
	return color.New(color.FgYellow, color.Bold).Sprint(parts[0]) + "." +
		color.New(color.FgGreen, color.Bold).Sprint(parts[1]) + "." +
		color.New(color.FgBlue, color.Bold).Sprint(parts[2])
}
