package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/gridinline/internal/build"
	"github.com/conneroisu/gridinline/internal/config"
	"github.com/conneroisu/gridinline/internal/version"
	"github.com/conneroisu/gridinline/internal/watcher"
)

const cellHTML = "<div class=\"cell\">\n  {{COL_FIELD}}\n</div>\n"

// inTempProject changes into a fresh directory holding a small project.
func inTempProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	oldDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(oldDir) })

	writeFile(t, "views/cell.html", cellHTML)
	writeFile(t, "app/grid.js", `cols.push({cellTemplate: "../views/cell.html"});`)
	writeFile(t, "app/plain.js", `var x = 1;`)
	return dir
}

func writeFile(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(name), 0o755))
	require.NoError(t, os.WriteFile(name, []byte(content), 0o644))
}

func readFile(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(name)
	require.NoError(t, err)
	return string(data)
}

// resetFlags puts every flag of cmd and its children back to its default.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, child := range cmd.Commands() {
		resetFlags(child)
	}
}

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	viper.Reset()
	resetFlags(rootCmd)
	t.Cleanup(viper.Reset)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

const inlinedGrid = `cols.push({cellTemplate:'<div class=cell> {{COL_FIELD}} </div>'});`

func TestInlineInPlace(t *testing.T) {
	inTempProject(t)

	stdout, _, err := execute(t, "inline", "app")
	require.NoError(t, err)

	assert.Equal(t, inlinedGrid, readFile(t, "app/grid.js"))
	assert.Equal(t, `var x = 1;`, readFile(t, "app/plain.js"))
	assert.Contains(t, stdout, "rewrote 1 of 2 files: 1 references inlined, 0 skipped, 0 files failed (100% ok, 0% cache hits")
}

func TestInlineDefaultsToCurrentDirectory(t *testing.T) {
	inTempProject(t)

	_, _, err := execute(t, "inline")
	require.NoError(t, err)
	assert.Equal(t, inlinedGrid, readFile(t, "app/grid.js"))
}

func TestInlineStdout(t *testing.T) {
	inTempProject(t)

	stdout, stderr, err := execute(t, "inline", "--stdout", "app/grid.js")
	require.NoError(t, err)

	assert.Equal(t, inlinedGrid, stdout)
	assert.Contains(t, stderr, "rewrote 1 of 1 files")
	assert.Equal(t, `cols.push({cellTemplate: "../views/cell.html"});`, readFile(t, "app/grid.js"))
}

func TestInlineDryRun(t *testing.T) {
	inTempProject(t)

	stdout, _, err := execute(t, "inline", "-n", "app")
	require.NoError(t, err)

	assert.Contains(t, stdout, "would rewrite 1 of 2 files")
	assert.Equal(t, `cols.push({cellTemplate: "../views/cell.html"});`, readFile(t, "app/grid.js"))
}

func TestInlineOutDirAndSuffix(t *testing.T) {
	inTempProject(t)

	_, _, err := execute(t, "inline", "app", "-o", "dist", "--suffix", ".inlined")
	require.NoError(t, err)

	assert.Equal(t, inlinedGrid, readFile(t, "dist/grid.inlined.js"))
	assert.Equal(t, `var x = 1;`, readFile(t, "dist/plain.inlined.js"))
	assert.Equal(t, `cols.push({cellTemplate: "../views/cell.html"});`, readFile(t, "app/grid.js"))
}

func TestInlineJSONSummary(t *testing.T) {
	inTempProject(t)

	stdout, _, err := execute(t, "inline", "--format", "json", "app")
	require.NoError(t, err)

	var summary map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(stdout), &summary))
	assert.Equal(t, float64(2), summary["files"])
	assert.Equal(t, float64(1), summary["changed_files"])
	assert.Equal(t, float64(1), summary["patched"])
	assert.Equal(t, float64(100), summary["success_rate"])
	assert.Equal(t, float64(0), summary["cache_hit_rate"])
	assert.NotContains(t, summary, "failures")
}

func TestInlineFailure(t *testing.T) {
	inTempProject(t)
	writeFile(t, "app/broken.js", `cols.push({rowTemplate: "missing.html"});`)

	stdout, _, err := execute(t, "inline", "app")
	require.Error(t, err)

	assert.Contains(t, stdout, "1 files failed (67% ok")
	assert.Contains(t, stdout, "FAIL")
	assert.Equal(t, `cols.push({rowTemplate: "missing.html"});`, readFile(t, "app/broken.js"))
	assert.Equal(t, inlinedGrid, readFile(t, "app/grid.js"), "other sources are still rewritten")
}

func TestInlineSkipErrors(t *testing.T) {
	inTempProject(t)
	writeFile(t, "app/broken.js", `cols.push({rowTemplate: "missing.html"});`)

	stdout, _, err := execute(t, "inline", "--skip-errors", "app")
	require.NoError(t, err)
	assert.Contains(t, stdout, "1 references inlined, 1 skipped, 0 files failed")
}

func TestInlineRejectsUnknownFormat(t *testing.T) {
	inTempProject(t)

	_, _, err := execute(t, "inline", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format: xml")
}

func TestCheck(t *testing.T) {
	inTempProject(t)
	writeFile(t, "app/broken.js", "\n\ncols.push({headerCellTemplate: \"missing.html\"});")

	stdout, _, err := execute(t, "check", "app")
	require.Error(t, err)

	assert.Contains(t, stdout, filepath.Join("app", "grid.js")+":1: cellTemplate ../views/cell.html ok (37 bytes minified)")
	assert.Contains(t, stdout, filepath.Join("app", "broken.js")+":3: headerCellTemplate missing.html FAIL")
	assert.Contains(t, stdout, "2 references in 3 files, 1 unresolved")
}

func TestCheckQuiet(t *testing.T) {
	inTempProject(t)

	stdout, _, err := execute(t, "check", "-q", "app")
	require.NoError(t, err)
	assert.Empty(t, stdout)
}

func TestCheckReadsConfigFile(t *testing.T) {
	inTempProject(t)
	writeFile(t, ".gridinline.yml", "max_size: 10\n")

	stdout, _, err := execute(t, "check", "app")
	require.NoError(t, err)
	assert.Contains(t, stdout, "cellTemplate ../views/cell.html skipped")

	stdout, _, err = execute(t, "check", "--max-size", "0", "app")
	require.NoError(t, err)
	assert.Contains(t, stdout, "cellTemplate ../views/cell.html ok", "flags override the config file")
}

func TestCheckDoesNotWrite(t *testing.T) {
	inTempProject(t)

	_, _, err := execute(t, "check", "app")
	require.NoError(t, err)
	assert.Equal(t, `cols.push({cellTemplate: "../views/cell.html"});`, readFile(t, "app/grid.js"))
}

func TestConfigShow(t *testing.T) {
	inTempProject(t)
	writeFile(t, ".gridinline.yml", "max_size: 2048\ncache:\n  ttl: 90s\n")

	stdout, _, err := execute(t, "config", "show")
	require.NoError(t, err)

	assert.Contains(t, stdout, "max_size: 2048")
	assert.Contains(t, stdout, "ttl: 1m30s")
	assert.Contains(t, stdout, "debounce: 300ms")
	assert.Contains(t, stdout, "template_encoding: utf-8")
	assert.True(t, strings.HasPrefix(stdout, "# "), "names the config file used")
}

func TestConfigValidate(t *testing.T) {
	inTempProject(t)
	writeFile(t, "good.yml", "workers: 2\n")
	writeFile(t, "bad.yml", "log_format: xml\n")

	stdout, _, err := execute(t, "config", "validate")
	require.NoError(t, err)
	assert.Equal(t, "defaults: configuration is valid\n", stdout)

	stdout, _, err = execute(t, "config", "validate", "--file", "good.yml")
	require.NoError(t, err)
	assert.Equal(t, "good.yml: configuration is valid\n", stdout)

	_, _, err = execute(t, "config", "validate", "--file", "bad.yml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")

	_, _, err = execute(t, "config", "validate", "--file", "absent.yml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file does not exist")
}

func TestWatchRejectsInPlace(t *testing.T) {
	inTempProject(t)

	_, _, err := execute(t, "watch", "app")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watch needs --out-dir or --suffix")
}

func TestFlagValidation(t *testing.T) {
	inTempProject(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"negative max size", []string{"inline", "--max-size=-1"}, "must not be negative"},
		{"negative workers", []string{"check", "--workers=-2"}, "must not be negative"},
		{"not a number", []string{"inline", "--max-size", "big"}, "invalid number"},
		{"unknown encoding", []string{"inline", "--encoding", "klingon"}, "unknown encoding: klingon"},
		{"unknown log level", []string{"inline", "--log-level", "loud"}, "loud"},
		{"missing config", []string{"inline", "--config", "nope.yml"}, "file does not exist"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestVersion(t *testing.T) {
	info := version.Get()

	stdout, _, err := execute(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, info.Short()+"\n", stdout)

	stdout, _, err = execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "gridinline "))

	stdout, _, err = execute(t, "version", "-f", "json")
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(stdout), &decoded))
	assert.Equal(t, info.Version, decoded["version"])
	assert.Contains(t, decoded, "is_release")

	_, _, err = execute(t, "version", "-f", "xml")
	require.Error(t, err)
}

func testHandler(t *testing.T, paths ...string) (*changeHandler, *bytes.Buffer) {
	t.Helper()
	cfg, err := config.LoadFrom(viper.New())
	require.NoError(t, err)
	cfg.Paths = paths
	cfg.Output.Dir = "dist"

	runner, err := build.NewRunner(cfg, build.Options{}, nil)
	require.NoError(t, err)

	var out bytes.Buffer
	return &changeHandler{cfg: cfg, runner: runner, out: &out}, &out
}

func TestChangeHandlerAffected(t *testing.T) {
	inTempProject(t)
	h, _ := testHandler(t, "app", "views/cell.html")

	sources, all := h.affected([]watcher.ChangeEvent{
		{Type: watcher.EventTypeModified, Path: filepath.Join("app", "grid.js")},
		{Type: watcher.EventTypeDeleted, Path: filepath.Join("app", "gone.js")},
		{Type: watcher.EventTypeModified, Path: filepath.Join("elsewhere", "x.js")},
	})
	assert.False(t, all)
	require.Len(t, sources, 1)
	assert.Equal(t, build.Source{Path: filepath.Join("app", "grid.js"), Root: "app"}, sources[0])

	sources, all = h.affected([]watcher.ChangeEvent{
		{Type: watcher.EventTypeModified, Path: filepath.Join("app", "grid.js")},
		{Type: watcher.EventTypeModified, Path: filepath.Join("views", "cell.html")},
	})
	assert.True(t, all, "a template change affects every source")
	assert.Nil(t, sources)
}

func TestChangeHandlerRootOf(t *testing.T) {
	inTempProject(t)
	h, _ := testHandler(t, "app", filepath.Join("views", "cell.html"))

	root, ok := h.rootOf(filepath.Join("app", "grid.js"))
	assert.True(t, ok)
	assert.Equal(t, "app", root)

	root, ok = h.rootOf(filepath.Join("views", "cell.html"))
	assert.True(t, ok)
	assert.Equal(t, "views", root)

	_, ok = h.rootOf("other.js")
	assert.False(t, ok)
}

func TestChangeHandlerHandle(t *testing.T) {
	inTempProject(t)
	h, out := testHandler(t, "app")
	h.verbose = true

	err := h.handle(context.Background(), []watcher.ChangeEvent{
		{Type: watcher.EventTypeModified, Path: filepath.Join("app", "grid.js")},
	})
	require.NoError(t, err)
	assert.Equal(t, inlinedGrid, readFile(t, "dist/grid.js"))
	assert.NoFileExists(t, "dist/plain.js", "only the changed source is re-inlined")
	assert.Contains(t, out.String(), "modified: "+filepath.Join("app", "grid.js"))
	assert.Contains(t, out.String(), "rewrote "+filepath.Join("app", "grid.js")+" -> "+filepath.Join("dist", "grid.js")+": 1 references inlined, 0 skipped")

	writeFile(t, "views/cell.html", "<b>new</b>")
	err = h.handle(context.Background(), []watcher.ChangeEvent{
		{Type: watcher.EventTypeModified, Path: filepath.Join("views", "cell.html")},
	})
	require.NoError(t, err)
	assert.Equal(t, `cols.push({cellTemplate:'<b>new</b>'});`, readFile(t, "dist/grid.js"))
	assert.FileExists(t, "dist/plain.js")
}

func TestSourceWatcherDirectories(t *testing.T) {
	inTempProject(t)
	writeFile(t, "app/sub/more.js", `var y = 2;`)
	writeFile(t, "app/node_modules/dep/index.js", `var z = 3;`)

	h, _ := testHandler(t, filepath.Join("app", "grid.js"))
	fw, err := newSourceWatcher(h.cfg, h.runner, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"app"}, fw.WatchList(), "a single source watches only its directory")
	require.NoError(t, fw.Stop())

	h, _ = testHandler(t, "app")
	fw, err = newSourceWatcher(h.cfg, h.runner, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"app", filepath.Join("app", "sub")}, fw.WatchList())
	require.NoError(t, fw.Stop())

	h, _ = testHandler(t, "missing")
	_, err = newSourceWatcher(h.cfg, h.runner, nil)
	assert.Error(t, err)
}
