package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsVersionGreaterOrEqualThan(t *testing.T) {
	tests := []struct {
		version, target string
		want            bool
	}{
		{"0.1.0", "0.1.0", true},
		{"0.2.0", "0.1.9", true},
		{"0.1.0", "v0.2.0", false},
		{"1.0.0", "0.99.99", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsVersionGreaterOrEqualThan(tt.version, tt.target), "%s >= %s", tt.version, tt.target)
	}
}

func TestCheckMinimum(t *testing.T) {
	old := Version
	t.Cleanup(func() { Version = old })
	Version = "0.4.2"

	assert.NoError(t, CheckMinimum("0.4.0"))
	assert.ErrorContains(t, CheckMinimum("0.5"), "older than required")
	assert.ErrorContains(t, CheckMinimum("latest"), "invalid version")
}

func TestString(t *testing.T) {
	oldCommit, oldBuild := GitCommit, BuildTime
	t.Cleanup(func() { GitCommit, BuildTime = oldCommit, oldBuild })

	GitCommit, BuildTime = "0123456789abcdef", "unknown"
	assert.Equal(t, Version+"-01234567", String())
	assert.Equal(t, Version+"-dev", GetCurrentVersion("dev"))
	assert.Equal(t, Version, GetCurrentVersion("prod"))
}
