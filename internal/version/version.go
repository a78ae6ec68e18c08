// Package version reports build information stamped with -ldflags or read
// from the module build info.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"git_commit"`
	BuildTime time.Time `json:"build_time"`
	GoVersion string    `json:"go_version"`
	Platform  string    `json:"platform"`
	Dirty     bool      `json:"dirty"`
}

// These variables are set at build time using -ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	// BuildTime is RFC3339
	BuildTime = "unknown"
)

// readBuildInfo is swapped in tests.
var readBuildInfo = debug.ReadBuildInfo

// Get returns the build information, preferring stamped values over the
// module's VCS settings.
func Get() *BuildInfo {
	info := &BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: parseTime(BuildTime),
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}

	bi, ok := readBuildInfo()
	if !ok {
		return info
	}

	settings := make(map[string]string, len(bi.Settings))
	for _, s := range bi.Settings {
		settings[s.Key] = s.Value
	}

	if info.GitCommit == "" || info.GitCommit == "unknown" {
		if rev := settings["vcs.revision"]; rev != "" {
			info.GitCommit = rev
		}
	}
	if info.BuildTime.IsZero() {
		info.BuildTime = parseTime(settings["vcs.time"])
	}
	info.Dirty = settings["vcs.modified"] == "true"

	if info.Version == "" || info.Version == "dev" {
		switch {
		case bi.Main.Version != "" && bi.Main.Version != "(devel)":
			info.Version = bi.Main.Version
		case len(info.GitCommit) >= 7 && info.GitCommit != "unknown":
			info.Version = "dev-" + info.GitCommit[:7]
		default:
			info.Version = "dev"
		}
	}

	return info
}

// IsRelease reports whether this is a tagged build
func (b *BuildInfo) IsRelease() bool {
	return b.Version != "dev" && !strings.HasPrefix(b.Version, "dev-")
}

// Short returns the version with an abbreviated commit
func (b *BuildInfo) Short() string {
	if len(b.GitCommit) < 7 || b.GitCommit == "unknown" || strings.HasPrefix(b.Version, "dev-") {
		return b.Version
	}
	return fmt.Sprintf("%s (%s)", b.Version, b.GitCommit[:7])
}

// Detailed returns one "Key: value" line per known field
func (b *BuildInfo) Detailed() string {
	lines := []string{"Version: " + b.Version}
	if b.GitCommit != "unknown" && b.GitCommit != "" {
		lines = append(lines, "Commit: "+b.GitCommit)
	}
	if !b.BuildTime.IsZero() {
		lines = append(lines, "Built: "+b.BuildTime.UTC().Format(time.RFC3339))
	}
	lines = append(lines, "Go: "+b.GoVersion, "Platform: "+b.Platform)
	if b.Dirty {
		lines = append(lines, "Working directory: dirty")
	}
	return strings.Join(lines, "\n")
}

func parseTime(s string) time.Time {
	if s == "" || s == "unknown" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
