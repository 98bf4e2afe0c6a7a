// Package version reports the pocd release version.
package version

import (
	"fmt"
	"strings"
	"sync"
)

const (
	appMajor uint = 0
	appMinor uint = 3
	appPatch uint = 0
)

// appBuild may be set at link time with
// -ldflags "-X github.com/pocnet/pocd/version.appBuild=foo".
// Build metadata containing characters outside [0-9A-Za-z-] is ignored.
var appBuild string

// Version returns the semantic version of this build, with the build
// metadata appended when present.
var Version = sync.OnceValue(func() string {
	return format(appMajor, appMinor, appPatch, appBuild)
})

func format(major, minor, patch uint, build string) string {
	version := fmt.Sprintf("%d.%d.%d", major, minor, patch)
	if build != "" && isValidBuild(build) {
		version += "-" + build
	}
	return version
}

func isValidBuild(build string) bool {
	return strings.IndexFunc(build, func(r rune) bool {
		return !(r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r == '-')
	}) == -1
}
