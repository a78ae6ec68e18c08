// Package minify compacts HTML templates before they are inlined.
//
// The Minifier consumes events from a Parser. The parser is injected at
// construction; NewParser is used when none is given.
package minify

import (
	"context"
	"strings"
)

// Engine minifies template markup.
type Engine interface {
	Minify(ctx context.Context, text string) (string, error)
}

// Options controls what the Minifier keeps. The zero value is the most
// aggressive setting.
type Options struct {
	// Empty keeps attributes with empty values.
	Empty bool `mapstructure:"empty" yaml:"empty"`
	// CDATA keeps CDATA sections.
	CDATA bool `mapstructure:"cdata" yaml:"cdata"`
	// Comments keeps ordinary comments.
	Comments bool `mapstructure:"comments" yaml:"comments"`
	// SSI keeps server side includes (<!--#include ...-->).
	SSI bool `mapstructure:"ssi" yaml:"ssi"`
	// Conditionals keeps conditional comments (<!--[if IE]>...).
	Conditionals bool `mapstructure:"conditionals" yaml:"conditionals"`
	// Spare keeps attributes that restate the default, like type="text/css".
	Spare bool `mapstructure:"spare" yaml:"spare"`
	// Quotes always quotes attribute values.
	Quotes bool `mapstructure:"quotes" yaml:"quotes"`
	// Loose keeps a single space where whitespace was removed between tags.
	Loose bool `mapstructure:"loose" yaml:"loose"`
}

// Minifier is the default Engine. It is safe for concurrent use.
type Minifier struct {
	opts   Options
	parser Parser
}

// New creates a Minifier. A nil parser selects NewParser.
func New(opts Options, parser Parser) *Minifier {
	if parser == nil {
		parser = NewParser()
	}
	return &Minifier{opts: opts, parser: parser}
}

// Minify implements Engine.
func (m *Minifier) Minify(ctx context.Context, text string) (string, error) {
	w := &writer{opts: m.opts}
	if err := m.parser.Parse(ctx, strings.NewReader(text), w); err != nil {
		return "", err
	}
	return w.sb.String(), nil
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// Contents of these elements are emitted byte for byte.
var preservedElements = map[string]bool{
	"pre": true, "textarea": true, "script": true, "style": true,
}

var booleanAttributes = map[string]bool{
	"allowfullscreen": true, "async": true, "autofocus": true, "autoplay": true,
	"checked": true, "controls": true, "default": true, "defer": true,
	"disabled": true, "formnovalidate": true, "hidden": true, "ismap": true,
	"loop": true, "multiple": true, "muted": true, "novalidate": true,
	"open": true, "readonly": true, "required": true, "reversed": true,
	"selected": true,
}

// redundantAttributes maps element -> attribute -> default value.
var redundantAttributes = map[string]map[string]string{
	"script": {"type": "text/javascript", "language": "javascript"},
	"style":  {"type": "text/css"},
	"link":   {"type": "text/css"},
	"form":   {"method": "get"},
	"input":  {"type": "text"},
}

type writer struct {
	opts     Options
	sb       strings.Builder
	preserve int
	// space is a collapsed whitespace run waiting to be written.
	space bool
}

func (w *writer) flushSpace() {
	if w.space && w.sb.Len() > 0 {
		w.sb.WriteByte(' ')
	}
	w.space = false
}

func (w *writer) StartTag(name string, attrs []Attr, selfClosing bool) error {
	w.flushSpace()

	w.sb.WriteByte('<')
	w.sb.WriteString(name)
	for _, a := range attrs {
		w.writeAttr(name, a)
	}

	switch {
	case voidElements[name]:
		w.sb.WriteByte('>')
	case selfClosing:
		w.sb.WriteString("/>")
	default:
		w.sb.WriteByte('>')
		if preservedElements[name] {
			w.preserve++
		}
	}
	return nil
}

func (w *writer) writeAttr(tag string, a Attr) {
	lower := strings.ToLower(a.Name)

	if !w.opts.Spare {
		if def, ok := redundantAttributes[tag][lower]; ok && strings.EqualFold(a.Value, def) {
			return
		}
	}

	if !a.HasValue || a.Value == "" {
		switch {
		case booleanAttributes[lower]:
			w.sb.WriteByte(' ')
			w.sb.WriteString(a.Name)
		case w.opts.Empty:
			w.sb.WriteByte(' ')
			w.sb.WriteString(a.Name)
			if a.HasValue {
				w.sb.WriteString(`=""`)
			}
		}
		return
	}

	w.sb.WriteByte(' ')
	w.sb.WriteString(a.Name)
	w.sb.WriteByte('=')
	switch {
	case !w.opts.Quotes && safeUnquoted(a.Value):
		w.sb.WriteString(a.Value)
	case strings.ContainsRune(a.Value, '"'):
		w.sb.WriteByte('\'')
		w.sb.WriteString(a.Value)
		w.sb.WriteByte('\'')
	default:
		w.sb.WriteByte('"')
		w.sb.WriteString(a.Value)
		w.sb.WriteByte('"')
	}
}

// safeUnquoted reports whether v can be written without quotes.
func safeUnquoted(v string) bool {
	if v == "" || strings.HasSuffix(v, "/") {
		return false
	}
	return !strings.ContainsAny(v, " \t\n\r\f\"'=<>`")
}

func (w *writer) EndTag(name string) error {
	if voidElements[name] {
		return nil
	}
	if preservedElements[name] && w.preserve > 0 {
		w.preserve--
	}

	w.flushSpace()
	w.sb.WriteString("</")
	w.sb.WriteString(name)
	w.sb.WriteByte('>')
	return nil
}

func (w *writer) Text(raw string) error {
	if w.preserve > 0 {
		w.flushSpace()
		w.sb.WriteString(raw)
		return nil
	}

	if strings.TrimSpace(raw) == "" {
		if w.opts.Loose && raw != "" {
			w.space = true
		}
		return nil
	}

	collapsed := collapseSpace(raw)
	if strings.HasPrefix(collapsed, " ") {
		w.space = true
		collapsed = collapsed[1:]
	}
	w.flushSpace()
	if strings.HasSuffix(collapsed, " ") {
		collapsed = collapsed[:len(collapsed)-1]
		w.space = true
	}
	w.sb.WriteString(collapsed)
	return nil
}

func (w *writer) Comment(raw string) error {
	keep := w.opts.Comments
	switch {
	case strings.HasPrefix(raw, "<!--[if") || strings.HasPrefix(raw, "<!--<![endif]") || strings.HasPrefix(raw, "<![endif]"):
		keep = w.opts.Conditionals
	case strings.HasPrefix(raw, "<!--#"):
		keep = w.opts.SSI
	case strings.HasPrefix(raw, "<![CDATA["):
		keep = w.opts.CDATA
	}

	if keep {
		w.flushSpace()
		w.sb.WriteString(raw)
	}
	return nil
}

func (w *writer) Doctype(raw string) error {
	w.flushSpace()
	w.sb.WriteString(raw)
	return nil
}

// collapseSpace replaces every run of HTML whitespace with a single space.
func collapseSpace(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	inSpace := false
	for i := 0; i < len(s); i++ {
		if isSpace(s[i]) {
			if !inSpace {
				sb.WriteByte(' ')
				inSpace = true
			}
			continue
		}
		inSpace = false
		sb.WriteByte(s[i])
	}
	return sb.String()
}
