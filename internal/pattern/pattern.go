// Package pattern builds the combined search pattern for template references
// and decodes regexp matches into typed references.
//
// A template reference is a key/value pair in source text such as
//
//	cellTemplate: "views/cell.html"
//
// where the key names a template kind and the value is a path relative to the
// source file. Each registered kind contributes one alternative to a single
// compiled expression. Capture groups are named after the kind, so a match is
// decoded by name rather than by position.
package pattern

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind names a template reference key such as cellTemplate.
type Kind string

// Grid template kinds.
const (
	CellTemplate         Kind = "cellTemplate"
	HeaderCellTemplate   Kind = "headerCellTemplate"
	RowTemplate          Kind = "rowTemplate"
	EditableCellTemplate Kind = "editableCellTemplate"
)

// DefaultKinds lists the grid template kinds in registration order.
var DefaultKinds = []Kind{
	CellTemplate,
	HeaderCellTemplate,
	RowTemplate,
	EditableCellTemplate,
}

var validKind = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// urlGroupSuffix names the url group of a kind: cellTemplate captures its
// url in cellTemplateUrl.
const urlGroupSuffix = "Url"

// Reference is a decoded template reference.
type Reference struct {
	Kind Kind
	// URL is the template path exactly as written in the source. Empty when
	// the match carried no url.
	URL string
}

// Match is one occurrence of a template reference in source text.
type Match struct {
	// Start is the byte offset of the match in the source.
	Start int
	// Text is the full matched text, quotes included.
	Text string
	Ref  Reference
}

// Offset returns the byte offset of the match.
func (m Match) Offset() int { return m.Start }

// Len returns the length of the matched text in bytes.
func (m Match) Len() int { return len(m.Text) }

// Registry holds the ordered set of template kinds and the compiled
// alternation built from them. It is immutable after construction and safe
// for concurrent use.
type Registry struct {
	kinds  []Kind
	re     *regexp.Regexp
	groups []groupIndex
}

type groupIndex struct {
	kind Kind
	name int
	url  int
}

// NewRegistry compiles the combined pattern for the given kinds. With no
// kinds it registers DefaultKinds.
func NewRegistry(kinds ...Kind) (*Registry, error) {
	if len(kinds) == 0 {
		kinds = DefaultKinds
	}

	seen := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		if !validKind.MatchString(string(k)) {
			return nil, fmt.Errorf("invalid template kind %q: must be an identifier", k)
		}
		if seen[k] {
			return nil, fmt.Errorf("template kind %q registered twice", k)
		}
		seen[k] = true
	}
	for _, k := range kinds {
		if seen[k+urlGroupSuffix] {
			return nil, fmt.Errorf("template kind %q clashes with the url group of %q", k+urlGroupSuffix, k)
		}
	}

	r := &Registry{kinds: append([]Kind(nil), kinds...)}

	re, err := regexp.Compile(r.Pattern())
	if err != nil {
		return nil, fmt.Errorf("compiling template pattern: %w", err)
	}
	r.re = re

	r.groups = make([]groupIndex, 0, len(r.kinds))
	for _, k := range r.kinds {
		r.groups = append(r.groups, groupIndex{
			kind: k,
			name: re.SubexpIndex(string(k)),
			url:  re.SubexpIndex(string(k) + urlGroupSuffix),
		})
	}

	return r, nil
}

// MustRegistry is like NewRegistry but panics on error.
func MustRegistry(kinds ...Kind) *Registry {
	r, err := NewRegistry(kinds...)
	if err != nil {
		panic(err)
	}
	return r
}

// Kinds returns the registered kinds in registration order.
func (r *Registry) Kinds() []Kind {
	return append([]Kind(nil), r.kinds...)
}

// Pattern returns the combined alternation, one alternative per kind in
// registration order.
func (r *Registry) Pattern() string {
	alts := make([]string, 0, len(r.kinds))
	for _, k := range r.kinds {
		alts = append(alts, subPattern(k))
	}
	return strings.Join(alts, "|")
}

// subPattern matches an optionally quoted kind name, a colon and a url quoted
// with single, double or backtick quotes.
func subPattern(k Kind) string {
	name := regexp.QuoteMeta(string(k))
	return `['"]?(?P<` + string(k) + `>` + name + `)['"]?\s*:\s*` +
		"['\"`]" + `(?P<` + string(k) + urlGroupSuffix + ">[^'\"`]+)" + "['\"`]"
}

// Regexp returns the compiled combined pattern.
func (r *Registry) Regexp() *regexp.Regexp {
	return r.re
}

// FindAll returns every non-overlapping reference in src in source order.
func (r *Registry) FindAll(src []byte) []Match {
	locs := r.re.FindAllSubmatchIndex(src, -1)
	if len(locs) == 0 {
		return nil
	}

	matches := make([]Match, 0, len(locs))
	for _, loc := range locs {
		matches = append(matches, r.decode(src, loc))
	}
	return matches
}

// decode maps a submatch index slice onto the first kind whose groups took
// part in the match.
func (r *Registry) decode(src []byte, loc []int) Match {
	m := Match{
		Start: loc[0],
		Text:  string(src[loc[0]:loc[1]]),
	}

	for _, g := range r.groups {
		if !participated(loc, g.name) {
			continue
		}
		m.Ref.Kind = Kind(src[loc[2*g.name]:loc[2*g.name+1]])
		if participated(loc, g.url) {
			m.Ref.URL = string(src[loc[2*g.url]:loc[2*g.url+1]])
		}
		break
	}

	return m
}

func participated(loc []int, group int) bool {
	return group > 0 && 2*group+1 < len(loc) && loc[2*group] >= 0
}
