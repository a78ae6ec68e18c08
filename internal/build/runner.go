// Package build runs the inliner over many source files.
//
// A Runner discovers sources, hands them to a WorkerPool, and writes the
// rewritten files. Templates referenced from several sources are minified
// once and shared through a TemplateCache. A file that fails hard is
// recorded in the error collector and left unwritten; the rest of the batch
// carries on.
package build

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/conneroisu/gridinline/internal/config"
	"github.com/conneroisu/gridinline/internal/errors"
	"github.com/conneroisu/gridinline/internal/inline"
	"github.com/conneroisu/gridinline/internal/logging"
)

// Options controls a single run.
type Options struct {
	// DryRun processes files without writing anything.
	DryRun bool
	// Stdout, when set, receives every rewritten source instead of the
	// filesystem.
	Stdout io.Writer
}

// Report is the outcome of a run.
type Report struct {
	Summary  Summary
	Results  []FileResult
	Failures []errors.FileFailure
}

// Runner inlines templates across a set of source files.
type Runner struct {
	cfg        *config.Config
	opts       Options
	inliner    *inline.Inliner
	cache      *TemplateCache
	discoverer *Discoverer
	logger     logging.Logger
}

// NewRunner creates a runner from a validated configuration.
func NewRunner(cfg *config.Config, opts Options, logger logging.Logger) (*Runner, error) {
	if logger == nil {
		logger = logging.NopLogger{}
	}

	var cache *TemplateCache
	var icache inline.Cache
	if cfg.Cache.MaxBytes > 0 {
		cache = NewTemplateCache(cfg.Cache.MaxBytes, cfg.Cache.TTL)
		icache = cache
	}

	inliner, err := inline.New(cfg.Inline(icache), logger)
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, err.Error())
	}

	return &Runner{
		cfg:        cfg,
		opts:       opts,
		inliner:    inliner,
		cache:      cache,
		discoverer: NewDiscoverer(cfg.Sources, cfg.Output),
		logger:     logger.WithComponent("runner"),
	}, nil
}

// Inliner returns the inliner shared by all workers.
func (r *Runner) Inliner() *inline.Inliner {
	return r.inliner
}

// Discoverer returns the source selector.
func (r *Runner) Discoverer() *Discoverer {
	return r.discoverer
}

// Run discovers sources under paths and inlines them. The returned error is
// non-nil when any file failed; the report is complete either way.
func (r *Runner) Run(ctx context.Context, paths []string) (*Report, error) {
	sources, err := r.discoverer.Discover(ctx, paths)
	if err != nil {
		return nil, err
	}
	return r.RunSources(ctx, sources)
}

// RunSources inlines already discovered sources.
func (r *Runner) RunSources(ctx context.Context, sources []Source) (*Report, error) {
	start := time.Now()
	metrics := NewRunMetrics()
	collector := errors.NewCollector()

	r.logger.Debug(ctx, "starting run", "files", len(sources), "workers", r.cfg.Workers)

	pool := NewWorkerPool(r.cfg.Workers, func(ctx context.Context, src Source) FileResult {
		result := r.processFile(ctx, src)
		collector.Add(src.Path, result.Error)
		return result
	}, metrics)
	results := pool.Run(ctx, sources)

	if r.opts.Stdout != nil && !r.opts.DryRun {
		if err := r.emit(results); err != nil {
			return nil, err
		}
	}

	summary := metrics.Snapshot()
	summary.Elapsed = time.Since(start)
	if r.cache != nil {
		stats := r.cache.Stats()
		summary.CacheHits = stats.Hits
		summary.CacheMisses = stats.Misses
		summary.CacheHitRate = stats.HitRate()
	}

	report := &Report{
		Summary:  summary,
		Results:  results,
		Failures: collector.Failures(),
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return report, ctxErr
	}

	r.logger.Info(ctx, "run finished",
		"files", summary.Files,
		"changed", summary.ChangedFiles,
		"failed", summary.FailedFiles,
		"patched", summary.Patched,
		"skipped", summary.Skipped,
		"elapsed", summary.Elapsed)

	return report, collector.Err()
}

// ProcessFile inlines a single source outside of a batch.
func (r *Runner) ProcessFile(ctx context.Context, src Source) FileResult {
	start := time.Now()
	result := r.processFile(ctx, src)
	result.Duration = time.Since(start)
	return result
}

// processFile reads, inlines and writes one source.
func (r *Runner) processFile(ctx context.Context, src Source) FileResult {
	result := FileResult{Path: src.Path}

	content, err := os.ReadFile(src.Path)
	if err != nil {
		result.Error = errors.NewIOError(errors.ErrCodeSourceRead,
			fmt.Sprintf("reading source %s: %v", src.Path, err), err).
			WithLocation(src.Path, 0)
		r.logger.Error(ctx, result.Error, "source failed", "path", src.Path)
		return result
	}

	res, err := r.inliner.Process(ctx, src.Path, content)
	if err != nil {
		result.Error = err
		r.logger.Error(ctx, err, "source failed", "path", src.Path)
		return result
	}

	result.Matches = res.Matches
	result.Patched = res.Patched
	result.Skipped = res.Skipped
	result.Changed = res.Changed()

	if r.opts.DryRun {
		return result
	}
	if r.opts.Stdout != nil {
		result.content = res.Output
		return result
	}

	// Nothing to rewrite in place.
	if r.cfg.InPlace() && !result.Changed {
		return result
	}

	out, err := r.OutputPath(src)
	if err != nil {
		result.Error = err
		return result
	}
	if err := writeFile(out, res.Output, src.Path); err != nil {
		result.Error = errors.NewIOError(errors.ErrCodeOutputWrite,
			fmt.Sprintf("writing %s: %v", out, err), err).
			WithLocation(src.Path, 0)
		r.logger.Error(ctx, result.Error, "write failed", "path", out)
		return result
	}
	result.Output = out

	r.logger.Debug(ctx, "source written", "path", src.Path, "output", out,
		"patched", result.Patched, "skipped", result.Skipped)
	return result
}

// OutputPath returns where the rewritten src is written. The output
// directory mirrors the layout below src.Root; the suffix goes in front of
// the file extension, so grid.js becomes grid.inlined.js.
func (r *Runner) OutputPath(src Source) (string, error) {
	path := src.Path

	if dir := r.cfg.Output.Dir; dir != "" {
		rel, err := filepath.Rel(src.Root, src.Path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			rel = filepath.Base(src.Path)
		}
		path = filepath.Join(dir, rel)
	}

	if suffix := r.cfg.Output.Suffix; suffix != "" {
		ext := filepath.Ext(path)
		path = strings.TrimSuffix(path, ext) + suffix + ext
	}

	if path == src.Path && !r.cfg.InPlace() {
		return "", errors.NewConfigError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("output for %s would overwrite the source", src.Path))
	}
	return path, nil
}

// emit writes rewritten sources to the configured writer in input order.
func (r *Runner) emit(results []FileResult) error {
	multiple := len(results) > 1
	for _, res := range results {
		if res.Error != nil {
			continue
		}
		if multiple {
			if _, err := fmt.Fprintf(r.opts.Stdout, "// %s\n", res.Path); err != nil {
				return err
			}
		}
		if _, err := r.opts.Stdout.Write(res.content); err != nil {
			return err
		}
		if multiple && !bytes.HasSuffix(res.content, []byte("\n")) {
			if _, err := io.WriteString(r.opts.Stdout, "\n"); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeFile replaces path atomically, keeping the mode of the source file.
func writeFile(path string, data []byte, modeFrom string) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(modeFrom); err == nil {
		mode = info.Mode().Perm()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
