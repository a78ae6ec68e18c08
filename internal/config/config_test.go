package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/gridinline/internal/errors"
	"github.com/conneroisu/gridinline/internal/logging"
	"github.com/conneroisu/gridinline/internal/pattern"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()

	config, err := Load()
	require.NoError(t, err)
	require.NotNil(t, config)

	assert.Equal(t, "utf-8", config.TemplateEncoding)
	assert.Equal(t, int64(0), config.MaxSize)
	assert.False(t, config.SkipErrors)
	assert.Equal(t, []string{"cellTemplate", "headerCellTemplate", "rowTemplate", "editableCellTemplate"}, config.Kinds)
	assert.Equal(t, []string{"*.js", "*.ts"}, config.Sources.Include)
	assert.Equal(t, []string{"node_modules", ".git", "*.min.js"}, config.Sources.Exclude)
	assert.True(t, config.InPlace())
	assert.Equal(t, DefaultWorkers(), config.Workers)
	assert.Equal(t, int64(32*1024*1024), config.Cache.MaxBytes)
	assert.Equal(t, 10*time.Minute, config.Cache.TTL)
	assert.Equal(t, 300*time.Millisecond, config.Watch.Debounce)
	assert.Equal(t, "info", config.LogLevel)
	assert.Equal(t, "text", config.LogFormat)
	assert.False(t, config.Minimize.Loose)
}

func TestDefaultWorkers(t *testing.T) {
	n := DefaultWorkers()
	assert.GreaterOrEqual(t, n, 1)
	assert.LessOrEqual(t, n, MaxDefaultWorkers)
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(v *viper.Viper)
		expectError string
		check       func(t *testing.T, c *Config)
	}{
		{
			name: "minimize options",
			setup: func(v *viper.Viper) {
				v.Set("minimize.loose", true)
				v.Set("minimize.comments", true)
			},
			check: func(t *testing.T, c *Config) {
				assert.True(t, c.Minimize.Loose)
				assert.True(t, c.Minimize.Comments)
				assert.False(t, c.Minimize.Quotes)
			},
		},
		{
			name: "output dir and suffix",
			setup: func(v *viper.Viper) {
				v.Set("output.dir", "dist")
				v.Set("output.suffix", ".inlined")
			},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "dist", c.Output.Dir)
				assert.Equal(t, ".inlined", c.Output.Suffix)
				assert.False(t, c.InPlace())
			},
		},
		{
			name: "durations from strings",
			setup: func(v *viper.Viper) {
				v.Set("cache.ttl", "1h")
				v.Set("watch.debounce", "50ms")
			},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, time.Hour, c.Cache.TTL)
				assert.Equal(t, 50*time.Millisecond, c.Watch.Debounce)
			},
		},
		{
			name: "comma separated kinds",
			setup: func(v *viper.Viper) {
				v.Set("kinds", []string{"cellTemplate, footerTemplate"})
			},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, []pattern.Kind{"cellTemplate", "footerTemplate"}, c.PatternKinds())
			},
		},
		{
			name:  "explicit workers",
			setup: func(v *viper.Viper) { v.Set("workers", 3) },
			check: func(t *testing.T, c *Config) { assert.Equal(t, 3, c.Workers) },
		},
		{
			name:  "encoding alias",
			setup: func(v *viper.Viper) { v.Set("template_encoding", "latin1") },
			check: func(t *testing.T, c *Config) { assert.Equal(t, "latin1", c.TemplateEncoding) },
		},
		{
			name:        "unknown encoding",
			setup:       func(v *viper.Viper) { v.Set("template_encoding", "klingon") },
			expectError: "template_encoding",
		},
		{
			name:        "negative max size",
			setup:       func(v *viper.Viper) { v.Set("max_size", -1) },
			expectError: "max_size",
		},
		{
			name:        "negative workers",
			setup:       func(v *viper.Viper) { v.Set("workers", -2) },
			expectError: "workers",
		},
		{
			name:        "invalid kind",
			setup:       func(v *viper.Viper) { v.Set("kinds", []string{"cell-template"}) },
			expectError: "kinds",
		},
		{
			name:        "duplicate kind",
			setup:       func(v *viper.Viper) { v.Set("kinds", []string{"rowTemplate", "rowTemplate"}) },
			expectError: "kinds",
		},
		{
			name:        "bad glob",
			setup:       func(v *viper.Viper) { v.Set("sources.exclude", []string{"[a-"}) },
			expectError: "bad pattern",
		},
		{
			name:        "suffix with separator",
			setup:       func(v *viper.Viper) { v.Set("output.suffix", "out/x") },
			expectError: "suffix",
		},
		{
			name:        "output dir is cwd",
			setup:       func(v *viper.Viper) { v.Set("output.dir", "./") },
			expectError: "working directory",
		},
		{
			name:        "unknown log level",
			setup:       func(v *viper.Viper) { v.Set("log_level", "loud") },
			expectError: "log level",
		},
		{
			name:        "unknown log format",
			setup:       func(v *viper.Viper) { v.Set("log_format", "xml") },
			expectError: "log_format",
		},
		{
			name:        "undecodable value",
			setup:       func(v *viper.Viper) { v.Set("max_size", "big") },
			expectError: "decoding configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			tt.setup(v)

			config, err := LoadFrom(v)

			if tt.expectError != "" {
				require.Error(t, err)
				assert.Nil(t, config)
				assert.Contains(t, err.Error(), tt.expectError)
				assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
				return
			}
			require.NoError(t, err)
			tt.check(t, config)
		})
	}
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".gridinline.yml")
	content := `
max_size: 2048
skip_errors: true
minimize:
  quotes: true
sources:
  include: ["*.js"]
output:
  suffix: .out
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("GRIDINLINE_MAX_SIZE", "4096")

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("GRIDINLINE")
	v.AutomaticEnv()
	require.NoError(t, v.ReadInConfig())

	config, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, int64(4096), config.MaxSize)
	assert.True(t, config.SkipErrors)
	assert.True(t, config.Minimize.Quotes)
	assert.Equal(t, []string{"*.js"}, config.Sources.Include)
	assert.Equal(t, ".out", config.Output.Suffix)
}

func TestInlineConfig(t *testing.T) {
	v := viper.New()
	v.Set("max_size", 100)
	v.Set("skip_errors", true)
	v.Set("minimize.spare", true)
	config, err := LoadFrom(v)
	require.NoError(t, err)

	ic := config.Inline(nil)
	assert.Equal(t, int64(100), ic.MaxSize)
	assert.True(t, ic.SkipErrors)
	assert.True(t, ic.Minimize.Spare)
	assert.Equal(t, pattern.DefaultKinds, ic.Kinds)
	assert.Nil(t, ic.Cache)
}

func TestLoggingConfig(t *testing.T) {
	v := viper.New()
	v.Set("log_level", "debug")
	v.Set("log_format", "json")
	config, err := LoadFrom(v)
	require.NoError(t, err)

	lc := config.Logging()
	assert.Equal(t, logging.LevelDebug, lc.Level)
	assert.Equal(t, "json", lc.Format)
}
