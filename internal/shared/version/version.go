// Package version reports the build version and compares release versions.
package version

import (
	"strings"

	"golang.org/x/mod/semver"
)

// Version is set at build time:
//
//	go build -ldflags "-X github.com/alissayuxuan/OMNI-SYS/internal/shared/version.Version=1.2.0"
var Version = "dev"

// Normalize ensures version string has "v" prefix for semver compatibility.
// Examples: "1.2.3" -> "v1.2.3", "v1.2.3" -> "v1.2.3"
func Normalize(version string) string {
	version = strings.TrimSpace(version)
	if version == "" {
		return ""
	}
	if !strings.HasPrefix(version, "v") {
		return "v" + version
	}
	return version
}

// String returns the canonical build version, or the raw value for
// non-release builds such as "dev".
func String() string {
	if v := semver.Canonical(Normalize(Version)); v != "" {
		return v
	}
	return Version
}

// Compatible reports whether a peer running version other can share the
// wire formats of this build: both must be releases with the same major
// version. Development builds are compatible with everything.
func Compatible(other string) bool {
	current := Normalize(Version)
	peer := Normalize(other)
	if !semver.IsValid(current) || !semver.IsValid(peer) {
		return true
	}
	return semver.Major(current) == semver.Major(peer)
}
