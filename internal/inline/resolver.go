package inline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/conneroisu/gridinline/internal/driver"
	"github.com/conneroisu/gridinline/internal/errors"
	"github.com/conneroisu/gridinline/internal/logging"
	"github.com/conneroisu/gridinline/internal/minify"
	"github.com/conneroisu/gridinline/internal/pattern"
)

// Options controls resolution. It is fixed for the lifetime of a Resolver.
type Options struct {
	// MaxSize is the largest template, in bytes, that will be inlined. Zero
	// disables the check.
	MaxSize int64
	// SkipErrors downgrades template read and minify failures to warnings.
	SkipErrors bool
}

// Cache stores escaped template bodies keyed by the sha256 of the raw
// template text.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
}

// Resolver turns a template reference match into a patch.
type Resolver struct {
	opts   Options
	loader *Loader
	engine minify.Engine
	cache  Cache
	logger logging.Logger
}

var _ driver.Resolver[pattern.Match] = (*Resolver)(nil)

// NewResolver creates a resolver. cache may be nil.
func NewResolver(opts Options, loader *Loader, engine minify.Engine, cache Cache, logger logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &Resolver{
		opts:   opts,
		loader: loader,
		engine: engine,
		cache:  cache,
		logger: logger.WithComponent("resolver"),
	}
}

// Resolve implements driver.Resolver. A nil patch with a nil error means the
// match is skipped and left as written.
func (r *Resolver) Resolve(ctx context.Context, file driver.File, m pattern.Match) (*driver.Patch, error) {
	if m.Ref.URL == "" {
		return nil, errors.NewExtractionError(errors.ErrCodeMissingURL,
			fmt.Sprintf("No url found for %s around file index %d", file.Dir, m.Start)).
			WithLocation(file.Path, m.Start)
	}

	tpl := Locate(file, m.Ref)
	r.logger.Debug(ctx, "template path", "path", tpl.Path, "kind", string(m.Ref.Kind), "source", file.Path)

	if r.opts.MaxSize > 0 {
		// A failed stat is left to the read below.
		if size, err := r.loader.Size(tpl.Path); err == nil && size > r.opts.MaxSize {
			r.logger.Warn(ctx, nil, fmt.Sprintf(
				`template file "%s" exceeds configured max size "%d" actual size is "%d"`,
				tpl.Path, r.opts.MaxSize, size), "source", file.Path)
			return nil, nil
		}
	}

	body, err := r.body(ctx, tpl)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if r.opts.SkipErrors && errors.IsRecoverable(err) {
			r.logger.Warn(ctx, nil, err.Error(), "source", file.Path)
			return nil, nil
		}
		return nil, err
	}

	return BuildPatch(m, body), nil
}

// body reads, minifies and escapes a template.
func (r *Resolver) body(ctx context.Context, tpl Template) ([]byte, error) {
	text, err := r.loader.Read(tpl.Path)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeTemplateRead,
			fmt.Sprintf(`Can't read template file: "%s". Error details: %v`, tpl.Path, err), err).
			WithLocation(tpl.Path, 0).
			WithContext("encoding", r.loader.Encoding())
	}

	key := cacheKey(text)
	if r.cache != nil {
		if cached, ok := r.cache.Get(key); ok {
			return cached, nil
		}
	}

	minified, err := r.engine.Minify(ctx, text)
	if err != nil {
		return nil, errors.NewMinifyError(errors.ErrCodeTemplateMinify,
			fmt.Sprintf(`Error while minifying template "%s". Error from minifier: %v`, tpl.Path, err), err).
			WithLocation(tpl.Path, 0)
	}

	body := []byte(Escape(minified))
	if r.cache != nil {
		r.cache.Set(key, body)
	}
	return body, nil
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
