package version

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/mod/semver"
)

// Version is the resolver's released version.
// This value can be overridden at build time using ldflags:
//
//	go build -ldflags "-X github.com/hrygo/slotsense/internal/version.Version=0.3.0"
var Version = "0.1.0"

// GitCommit is the git commit hash at build time.
// Set via ldflags: -X github.com/hrygo/slotsense/internal/version.GitCommit=$(git rev-parse HEAD)
var GitCommit = "unknown"

// BuildTime is the build timestamp in RFC3339 format.
var BuildTime = "unknown"

func GetCurrentVersion(mode string) string {
	if mode == "dev" || mode == "demo" {
		return Version + "-dev"
	}
	return Version
}

func canonical(v string) string {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

// IsVersionGreaterOrEqualThan returns true if version is greater than or equal to target.
func IsVersionGreaterOrEqualThan(version, target string) bool {
	return semver.Compare(canonical(version), canonical(target)) > -1
}

// CheckMinimum returns an error unless the running version satisfies min.
func CheckMinimum(min string) error {
	if !semver.IsValid(canonical(min)) {
		return errors.Errorf("invalid version %q", min)
	}
	if !IsVersionGreaterOrEqualThan(Version, min) {
		return errors.Errorf("version %s is older than required %s", Version, min)
	}
	return nil
}

// String returns the version string with optional commit hash.
func String() string {
	v := Version
	if GitCommit != "" && GitCommit != "unknown" {
		shortCommit := GitCommit
		if len(shortCommit) > 8 {
			shortCommit = shortCommit[:8]
		}
		v = fmt.Sprintf("%s-%s", v, shortCommit)
	}
	if BuildTime != "" && BuildTime != "unknown" {
		v = fmt.Sprintf("%s (built %s)", v, BuildTime)
	}
	return v
}
