// Package driver runs a pattern-driven rewrite over a source buffer.
//
// A Processor finds every match of a Matcher in the source, hands each match
// to a Resolver one at a time, and splices the returned patches into the
// original buffer. Resolvers answer one of three ways:
//
//   - a Patch: replace the matched region
//   - nil patch, nil error: soft skip, leave the match untouched
//   - an error: abort the whole file, no output is produced
//
// The driver knows nothing about what a match means. The inline package
// supplies the template-reference matcher and resolver.
package driver

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/conneroisu/gridinline/internal/errors"
)

// Span locates a match in the original buffer.
type Span interface {
	Offset() int
	Len() int
}

// File describes the source file being processed.
type File struct {
	// Path is the source file path as given to the processor.
	Path string
	// Dir is the directory relative references are resolved against.
	Dir string
}

// NewFile returns a File whose Dir is the directory containing path.
func NewFile(path string) File {
	return File{Path: path, Dir: filepath.Dir(path)}
}

// Patch replaces Length bytes at Start with the concatenation of Replace.
type Patch struct {
	Start   int
	Length  int
	Replace [][]byte
}

// End returns the offset just past the replaced region.
func (p *Patch) End() int {
	return p.Start + p.Length
}

// Bytes returns the replacement as a single slice.
func (p *Patch) Bytes() []byte {
	return bytes.Join(p.Replace, nil)
}

// Matcher finds all matches in a source buffer, in source order.
type Matcher[M Span] interface {
	FindAll(src []byte) []M
}

// Resolver turns a single match into a patch, a skip, or an error.
type Resolver[M Span] interface {
	Resolve(ctx context.Context, file File, m M) (*Patch, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc[M Span] func(ctx context.Context, file File, m M) (*Patch, error)

// Resolve calls f.
func (f ResolverFunc[M]) Resolve(ctx context.Context, file File, m M) (*Patch, error) {
	return f(ctx, file, m)
}

// Result is the outcome of processing one file.
type Result struct {
	Output  []byte
	Matches int
	Patched int
	Skipped int
}

// Changed reports whether any patch was applied.
func (r *Result) Changed() bool {
	return r.Patched > 0
}

// Processor applies a Resolver to every match of a Matcher.
type Processor[M Span] struct {
	matcher  Matcher[M]
	resolver Resolver[M]
}

// New creates a processor.
func New[M Span](matcher Matcher[M], resolver Resolver[M]) *Processor[M] {
	return &Processor[M]{matcher: matcher, resolver: resolver}
}

// Process resolves every match in src sequentially and returns the rewritten
// buffer. Only one match is in flight at a time. The first resolver error
// aborts processing and is returned unchanged.
func (p *Processor[M]) Process(ctx context.Context, file File, src []byte) (*Result, error) {
	matches := p.matcher.FindAll(src)
	result := &Result{Matches: len(matches)}

	patches := make([]*Patch, 0, len(matches))
	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		patch, err := p.resolver.Resolve(ctx, file, m)
		if err != nil {
			return nil, err
		}
		if patch == nil {
			result.Skipped++
			continue
		}
		patches = append(patches, patch)
	}

	out, err := Apply(src, patches)
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInternalError,
			fmt.Sprintf("applying patches to %s: %v", file.Path, err), err).
			WithLocation(file.Path, 0)
	}

	result.Output = out
	result.Patched = len(patches)
	return result, nil
}

// Apply splices patches into src. Patches are applied in offset order and
// must not overlap or extend past the end of src. src is not modified.
func Apply(src []byte, patches []*Patch) ([]byte, error) {
	if len(patches) == 0 {
		out := make([]byte, len(src))
		copy(out, src)
		return out, nil
	}

	sorted := make([]*Patch, len(patches))
	copy(sorted, patches)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	var buf bytes.Buffer
	buf.Grow(len(src))

	pos := 0
	for _, p := range sorted {
		switch {
		case p.Start < 0 || p.Length < 0:
			return nil, fmt.Errorf("patch at %d has negative bounds", p.Start)
		case p.End() > len(src):
			return nil, fmt.Errorf("patch [%d,%d) exceeds source length %d", p.Start, p.End(), len(src))
		case p.Start < pos:
			return nil, fmt.Errorf("patch at %d overlaps previous patch ending at %d", p.Start, pos)
		}

		buf.Write(src[pos:p.Start])
		for _, seg := range p.Replace {
			buf.Write(seg)
		}
		pos = p.End()
	}
	buf.Write(src[pos:])

	return buf.Bytes(), nil
}
