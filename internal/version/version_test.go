package version

import (
	"runtime/debug"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func withBuildInfo(t *testing.T, bi *debug.BuildInfo, stamped [3]string) {
	t.Helper()
	oldRead, oldV, oldC, oldT := readBuildInfo, Version, GitCommit, BuildTime
	t.Cleanup(func() {
		readBuildInfo, Version, GitCommit, BuildTime = oldRead, oldV, oldC, oldT
	})

	readBuildInfo = func() (*debug.BuildInfo, bool) { return bi, bi != nil }
	Version, GitCommit, BuildTime = stamped[0], stamped[1], stamped[2]
}

func TestGetStamped(t *testing.T) {
	withBuildInfo(t, nil, [3]string{"v1.2.3", "0123456789abcdef", "2025-01-02T03:04:05Z"})

	info := Get()
	assert.Equal(t, "v1.2.3", info.Version)
	assert.Equal(t, "0123456789abcdef", info.GitCommit)
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), info.BuildTime)
	assert.True(t, info.IsRelease())
	assert.Equal(t, "v1.2.3 (0123456)", info.Short())
	assert.True(t, strings.HasPrefix(info.Detailed(), "Version: v1.2.3\nCommit: 0123456789abcdef\nBuilt: 2025-01-02T03:04:05Z"))
}

func TestGetFromVCSSettings(t *testing.T) {
	withBuildInfo(t, &debug.BuildInfo{
		Main: debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abcdef0123456789"},
			{Key: "vcs.time", Value: "2024-06-01T12:00:00Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	}, [3]string{"dev", "unknown", "unknown"})

	info := Get()
	assert.Equal(t, "dev-abcdef0", info.Version)
	assert.Equal(t, "abcdef0123456789", info.GitCommit)
	assert.True(t, info.Dirty)
	assert.False(t, info.IsRelease())
	assert.Equal(t, "dev-abcdef0", info.Short())
	assert.Contains(t, info.Detailed(), "Working directory: dirty")
	assert.Equal(t, 2024, info.BuildTime.Year())
}

func TestGetModuleVersion(t *testing.T) {
	withBuildInfo(t, &debug.BuildInfo{Main: debug.Module{Version: "v0.4.0"}}, [3]string{"dev", "unknown", "unknown"})

	info := Get()
	assert.Equal(t, "v0.4.0", info.Version)
	assert.Equal(t, "v0.4.0", info.Short())
	assert.NotContains(t, info.Detailed(), "Commit:")
}

func TestGetWithoutBuildInfo(t *testing.T) {
	withBuildInfo(t, nil, [3]string{"dev", "unknown", "bogus"})

	info := Get()
	assert.Equal(t, "dev", info.Version)
	assert.True(t, info.BuildTime.IsZero())
	assert.False(t, info.IsRelease())
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.Platform, "/")
}
