// Package config provides configuration management for gridinline using
// Viper for loading from files, environment variables, and command-line
// flags.
//
// The configuration system supports YAML files, environment variable
// overrides with the GRIDINLINE_ prefix, and validation. Configuration is
// validated once at load and treated as read-only afterwards.
package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/conneroisu/gridinline/internal/errors"
	"github.com/conneroisu/gridinline/internal/inline"
	"github.com/conneroisu/gridinline/internal/logging"
	"github.com/conneroisu/gridinline/internal/minify"
	"github.com/conneroisu/gridinline/internal/pattern"
)

// MaxDefaultWorkers caps the worker count picked when none is configured.
const MaxDefaultWorkers = 8

type Config struct {
	Minimize         minify.Options `mapstructure:"minimize" yaml:"minimize"`
	TemplateEncoding string         `mapstructure:"template_encoding" yaml:"template_encoding"`
	MaxSize          int64          `mapstructure:"max_size" yaml:"max_size"`
	SkipErrors       bool           `mapstructure:"skip_errors" yaml:"skip_errors"`
	Kinds            []string       `mapstructure:"kinds" yaml:"kinds"`
	Sources          SourcesConfig  `mapstructure:"sources" yaml:"sources"`
	Output           OutputConfig   `mapstructure:"output" yaml:"output"`
	Workers          int            `mapstructure:"workers" yaml:"workers"`
	Cache            CacheConfig    `mapstructure:"cache" yaml:"cache"`
	Watch            WatchConfig    `mapstructure:"watch" yaml:"watch"`
	LogLevel         string         `mapstructure:"log_level" yaml:"log_level"`
	LogFormat        string         `mapstructure:"log_format" yaml:"log_format"`
	Paths            []string       `mapstructure:"-" yaml:"-"` // CLI arguments, not from config file
}

type SourcesConfig struct {
	Include []string `mapstructure:"include" yaml:"include"`
	Exclude []string `mapstructure:"exclude" yaml:"exclude"`
}

// OutputConfig selects where rewritten sources go. With neither field set
// sources are rewritten in place.
type OutputConfig struct {
	Dir    string `mapstructure:"dir" yaml:"dir"`
	Suffix string `mapstructure:"suffix" yaml:"suffix"`
}

type CacheConfig struct {
	MaxBytes int64         `mapstructure:"max_bytes" yaml:"max_bytes"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("minimize.empty", false)
	v.SetDefault("minimize.cdata", false)
	v.SetDefault("minimize.comments", false)
	v.SetDefault("minimize.ssi", false)
	v.SetDefault("minimize.conditionals", false)
	v.SetDefault("minimize.spare", false)
	v.SetDefault("minimize.quotes", false)
	v.SetDefault("minimize.loose", false)
	v.SetDefault("template_encoding", inline.DefaultEncoding)
	v.SetDefault("max_size", 0)
	v.SetDefault("skip_errors", false)
	v.SetDefault("kinds", kindNames(pattern.DefaultKinds))
	v.SetDefault("sources.include", []string{"*.js", "*.ts"})
	v.SetDefault("sources.exclude", []string{"node_modules", ".git", "*.min.js"})
	v.SetDefault("output.dir", "")
	v.SetDefault("output.suffix", "")
	v.SetDefault("workers", 0)
	v.SetDefault("cache.max_bytes", 32*1024*1024)
	v.SetDefault("cache.ttl", 10*time.Minute)
	v.SetDefault("watch.debounce", 300*time.Millisecond)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("decoding configuration: %v", err))
	}

	// Slices given as a single comma separated env var arrive as one element.
	config.Kinds = splitList(config.Kinds)
	config.Sources.Include = splitList(config.Sources.Include)
	config.Sources.Exclude = splitList(config.Sources.Exclude)

	if config.Workers == 0 {
		config.Workers = DefaultWorkers()
	}

	if err := validateConfig(&config); err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("invalid configuration: %v", err))
	}

	return &config, nil
}

// DefaultWorkers is the number of CPUs, capped at MaxDefaultWorkers.
func DefaultWorkers() int {
	n := runtime.NumCPU()
	if n > MaxDefaultWorkers {
		n = MaxDefaultWorkers
	}
	if n < 1 {
		n = 1
	}
	return n
}

// InPlace reports whether sources are overwritten.
func (c *Config) InPlace() bool {
	return c.Output.Dir == "" && c.Output.Suffix == ""
}

// PatternKinds returns the configured kinds as pattern kinds.
func (c *Config) PatternKinds() []pattern.Kind {
	kinds := make([]pattern.Kind, len(c.Kinds))
	for i, k := range c.Kinds {
		kinds[i] = pattern.Kind(k)
	}
	return kinds
}

// Inline returns the inliner configuration. cache may be nil.
func (c *Config) Inline(cache inline.Cache) inline.Config {
	return inline.Config{
		Minimize:         c.Minimize,
		TemplateEncoding: c.TemplateEncoding,
		MaxSize:          c.MaxSize,
		SkipErrors:       c.SkipErrors,
		Kinds:            c.PatternKinds(),
		Cache:            cache,
	}
}

// Logging returns the logger configuration.
func (c *Config) Logging() *logging.LoggerConfig {
	cfg := logging.DefaultConfig()
	if level, err := logging.ParseLevel(c.LogLevel); err == nil {
		cfg.Level = level
	}
	cfg.Format = c.LogFormat
	return cfg
}

func kindNames(kinds []pattern.Kind) []string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return names
}

func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// validateConfig validates configuration values
func validateConfig(config *Config) error {
	if _, err := htmlindex.Get(config.TemplateEncoding); err != nil {
		return fmt.Errorf("template_encoding %q is not a known encoding", config.TemplateEncoding)
	}

	if config.MaxSize < 0 {
		return fmt.Errorf("max_size %d must not be negative", config.MaxSize)
	}

	if config.Workers < 0 {
		return fmt.Errorf("workers %d must not be negative", config.Workers)
	}

	if _, err := pattern.NewRegistry(config.PatternKinds()...); err != nil {
		return fmt.Errorf("kinds: %w", err)
	}

	if err := validateSourcesConfig(&config.Sources); err != nil {
		return fmt.Errorf("sources config: %w", err)
	}

	if err := validateOutputConfig(&config.Output); err != nil {
		return fmt.Errorf("output config: %w", err)
	}

	if config.Cache.MaxBytes < 0 {
		return fmt.Errorf("cache.max_bytes %d must not be negative", config.Cache.MaxBytes)
	}
	if config.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl %s must not be negative", config.Cache.TTL)
	}
	if config.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce %s must not be negative", config.Watch.Debounce)
	}

	if _, err := logging.ParseLevel(config.LogLevel); err != nil {
		return err
	}
	if config.LogFormat != "text" && config.LogFormat != "json" {
		return fmt.Errorf("log_format %q must be text or json", config.LogFormat)
	}

	return nil
}

// validateSourcesConfig checks every glob compiles
func validateSourcesConfig(config *SourcesConfig) error {
	if len(config.Include) == 0 {
		return fmt.Errorf("include needs at least one pattern")
	}
	for _, p := range append(append([]string{}, config.Include...), config.Exclude...) {
		if _, err := filepath.Match(p, ""); err != nil {
			return fmt.Errorf("bad pattern %q: %w", p, err)
		}
	}
	return nil
}

func validateOutputConfig(config *OutputConfig) error {
	if strings.ContainsAny(config.Suffix, `/\`) {
		return fmt.Errorf("suffix %q must not contain a path separator", config.Suffix)
	}
	if config.Dir != "" && filepath.Clean(config.Dir) == "." {
		return fmt.Errorf("dir %q is the working directory; leave it empty to rewrite in place", config.Dir)
	}
	return nil
}
