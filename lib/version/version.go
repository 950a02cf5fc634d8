package version

import "regexp"

// Pre-built binaries will have version set correctly during build time.
var Version = "v0.1.0-HEAD"

var semverRegex = regexp.MustCompile(`[0-9]+\.[0-9]+\.[0-9]+`)

func OnlyNumbers() string {
	return semverRegex.FindString(Version)
}
