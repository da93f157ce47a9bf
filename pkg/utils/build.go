// This file contains build information stamped by the release build, e.g.
//
//	go build -ldflags "-X github.com/nobletooth/cmdcache/pkg/utils.Version=v0.1.0" ./cmd/cmdcache
//
// CAUTION: This file shouldn't be removed or else the linker flags wouldn't resolve.

package utils

import (
	"log/slog"
	"strconv"
	"time"
)

var (
	TestMode   string // Should be true when running tests.
	IsTestMode bool
	Version    string
	Commit     string
	BuildTime  string
	StartTime  time.Time
)

func init() {
	StartTime = time.Now()

	// If build info is not set, make that clear.
	if Version == "" {
		Version = "unknown"
	}
	if Commit == "" {
		Commit = "unknown"
	}
	if BuildTime == "" {
		BuildTime = "unknown"
	}
	if len(TestMode) > 0 {
		if isTestMode, err := strconv.ParseBool(TestMode); err == nil {
			IsTestMode = isTestMode
		} else {
			slog.Warn("Failed to parse TestMode build flag, defaulting to false", "error", err)
		}
	}
}

// BuildAttrs returns the build information as slog attributes.
func BuildAttrs() []any {
	return []any{"version", Version, "commit", Commit, "build", BuildTime}
}
