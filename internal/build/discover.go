package build

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/conneroisu/gridinline/internal/config"
)

// Source is one file selected for inlining.
type Source struct {
	Path string
	// Root is the argument the file was found under. Output paths are
	// computed relative to it.
	Root string
}

// Discoverer selects source files from command line paths.
type Discoverer struct {
	include   []string
	exclude   []string
	outputDir string
	suffix    string
}

// NewDiscoverer creates a discoverer for the given source and output
// settings. Files under the output directory and files carrying the output
// suffix are never selected when walking directories.
func NewDiscoverer(sources config.SourcesConfig, output config.OutputConfig) *Discoverer {
	d := &Discoverer{
		include: sources.Include,
		exclude: sources.Exclude,
		suffix:  output.Suffix,
	}
	if output.Dir != "" {
		if abs, err := filepath.Abs(output.Dir); err == nil {
			d.outputDir = abs
		}
	}
	return d
}

// Discover expands paths into sources. Files are taken as given; directories
// are walked and filtered by the include and exclude globs. The result is
// sorted and free of duplicates.
func (d *Discoverer) Discover(ctx context.Context, paths []string) ([]Source, error) {
	seen := make(map[string]bool)
	var sources []Source

	add := func(src Source) {
		if !seen[src.Path] {
			seen[src.Path] = true
			sources = append(sources, src)
		}
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", root, err)
		}

		if !info.IsDir() {
			add(Source{Path: filepath.Clean(root), Root: filepath.Dir(root)})
			continue
		}

		err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}

			if entry.IsDir() {
				if path != root && (d.Excluded(path) || d.inOutputDir(path)) {
					return filepath.SkipDir
				}
				return nil
			}

			if d.Match(path) {
				add(Source{Path: path, Root: root})
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", root, err)
		}
	}

	sort.Slice(sources, func(i, j int) bool {
		return sources[i].Path < sources[j].Path
	})
	return sources, nil
}

// Match reports whether a file found while walking is a source.
func (d *Discoverer) Match(path string) bool {
	if d.Excluded(path) || d.inOutputDir(path) || d.IsOutput(path) {
		return false
	}
	return matchAny(d.include, filepath.Base(path))
}

// Excluded reports whether the base name of path matches an exclude glob.
func (d *Discoverer) Excluded(path string) bool {
	return matchAny(d.exclude, filepath.Base(path))
}

// IsOutput reports whether path looks like a file written with the output
// suffix.
func (d *Discoverer) IsOutput(path string) bool {
	if d.suffix == "" {
		return false
	}
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return strings.HasSuffix(stem, d.suffix)
}

func (d *Discoverer) inOutputDir(path string) bool {
	if d.outputDir == "" {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(d.outputDir, abs)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}
