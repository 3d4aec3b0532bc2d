package version

import (
	_ "embed"
	"strings"
)

//go:embed version.txt
var version string

// Get returns the version baked into the binary.
func Get() string {
	return strings.TrimSpace(version)
}
