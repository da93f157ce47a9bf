package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/mod/semver"
)

func TestVersionIsSemantic(t *testing.T) {
	if Version == "unknown" {
		t.Skip("Version is only stamped into release builds via -ldflags.")
	}
	assert.Truef(t, semver.IsValid(Version), "Version %s is not a valid semantic version", Version)
}

func TestBuildAttrs(t *testing.T) {
	attrs := BuildAttrs()
	assert.Equal(t, []any{"version", Version, "commit", Commit, "build", BuildTime}, attrs)
}
