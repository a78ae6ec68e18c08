// Package inline replaces template references in source files with the
// referenced template's minified markup as a single-quoted string literal.
//
// For every reference match the Resolver:
//
//  1. fails hard when the match carries no url
//  2. joins the source directory with the url
//  3. skips the match when the template exceeds Options.MaxSize
//  4. reads the template in the configured encoding
//  5. minifies it
//  6. escapes it and builds a patch replacing the whole match
//
// Read and minify failures are hard errors unless Options.SkipErrors is set,
// in which case they are logged as warnings and the match is left as is.
package inline

import (
	"context"

	"github.com/conneroisu/gridinline/internal/driver"
	"github.com/conneroisu/gridinline/internal/errors"
	"github.com/conneroisu/gridinline/internal/logging"
	"github.com/conneroisu/gridinline/internal/minify"
	"github.com/conneroisu/gridinline/internal/pattern"
)

// Config is everything needed to build an Inliner.
type Config struct {
	Minimize minify.Options
	// Parser overrides the default markup parser fed to the minifier.
	Parser minify.Parser
	// Engine replaces the minifier entirely. Minimize and Parser are ignored
	// when set.
	Engine           minify.Engine
	TemplateEncoding string
	MaxSize          int64
	SkipErrors       bool
	Kinds            []pattern.Kind
	Cache            Cache
}

// Inliner processes whole source files.
type Inliner struct {
	registry  *pattern.Registry
	resolver  *Resolver
	processor *driver.Processor[pattern.Match]
}

// New builds the pattern registry, loader, minifier and resolver from cfg.
func New(cfg Config, logger logging.Logger) (*Inliner, error) {
	registry, err := pattern.NewRegistry(cfg.Kinds...)
	if err != nil {
		return nil, err
	}

	loader, err := NewLoader(cfg.TemplateEncoding)
	if err != nil {
		return nil, err
	}

	engine := cfg.Engine
	if engine == nil {
		engine = minify.New(cfg.Minimize, cfg.Parser)
	}

	if logger == nil {
		logger = logging.NopLogger{}
	}
	logger.Debug(context.Background(), "inliner ready",
		"kinds", registry.Kinds(),
		"encoding", loader.Encoding(),
		"max_size", cfg.MaxSize,
		"skip_errors", cfg.SkipErrors)

	resolver := NewResolver(Options{
		MaxSize:    cfg.MaxSize,
		SkipErrors: cfg.SkipErrors,
	}, loader, engine, cfg.Cache, logger)

	return &Inliner{
		registry:  registry,
		resolver:  resolver,
		processor: driver.New[pattern.Match](registry, resolver),
	}, nil
}

// Registry returns the pattern registry.
func (in *Inliner) Registry() *pattern.Registry {
	return in.registry
}

// Resolver returns the per-match resolver.
func (in *Inliner) Resolver() *Resolver {
	return in.resolver
}

// Process rewrites src, the contents of the source file at path.
func (in *Inliner) Process(ctx context.Context, path string, src []byte) (*driver.Result, error) {
	res, err := in.processor.Process(ctx, driver.NewFile(path), src)
	if err != nil {
		return nil, errors.Wrap(err, "inlining templates in %s", path)
	}
	return res, nil
}
