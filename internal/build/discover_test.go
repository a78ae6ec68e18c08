package build

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/gridinline/internal/config"
)

func defaultSources() config.SourcesConfig {
	return config.SourcesConfig{
		Include: []string{"*.js", "*.ts"},
		Exclude: []string{"node_modules", ".git", "*.min.js"},
	}
}

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}
}

func paths(sources []Source) []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = s.Path
	}
	return out
}

func TestDiscoverWalksDirectories(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir,
		"app/grid.js",
		"app/grid.ts",
		"app/grid.min.js",
		"app/views/cell.html",
		"node_modules/lib/index.js",
		".git/hooks/x.js",
		"README.md",
	)

	d := NewDiscoverer(defaultSources(), config.OutputConfig{})
	sources, err := d.Discover(context.Background(), []string{dir})
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(dir, "app", "grid.js"),
		filepath.Join(dir, "app", "grid.ts"),
	}, paths(sources))
	for _, s := range sources {
		assert.Equal(t, dir, s.Root)
	}
}

func TestDiscoverTakesFilesAsGiven(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "vendor.min.js", "a.js")

	d := NewDiscoverer(defaultSources(), config.OutputConfig{})
	file := filepath.Join(dir, "vendor.min.js")
	sources, err := d.Discover(context.Background(), []string{file, dir, file})
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(dir, "a.js"), file}, paths(sources))
	assert.Equal(t, dir, sources[1].Root)
}

func TestDiscoverSkipsOutputs(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "src/a.js", "src/a.inlined.js", "src/dist/a.js")

	d := NewDiscoverer(defaultSources(), config.OutputConfig{
		Dir:    filepath.Join(dir, "src", "dist"),
		Suffix: ".inlined",
	})
	sources, err := d.Discover(context.Background(), []string{filepath.Join(dir, "src")})
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(dir, "src", "a.js")}, paths(sources))
	assert.True(t, d.IsOutput("a.inlined.js"))
	assert.False(t, d.IsOutput("a.js"))
}

func TestDiscoverMissingPath(t *testing.T) {
	d := NewDiscoverer(defaultSources(), config.OutputConfig{})
	_, err := d.Discover(context.Background(), []string{filepath.Join(t.TempDir(), "nope")})
	assert.Error(t, err)
}

func TestDiscoverCancelled(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a/b.js")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDiscoverer(defaultSources(), config.OutputConfig{})
	_, err := d.Discover(ctx, []string{dir})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMatch(t *testing.T) {
	d := NewDiscoverer(defaultSources(), config.OutputConfig{})

	tests := []struct {
		path string
		want bool
	}{
		{"grid.js", true},
		{"src/grid.ts", true},
		{"grid.min.js", false},
		{"cell.html", false},
		{"node_modules", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Match(tt.path))
		})
	}
}
