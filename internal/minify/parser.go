package minify

import (
	"context"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Attr is an attribute of a start tag as written in the source. Value is the
// raw, undecoded value without its quotes.
type Attr struct {
	Name     string
	Value    string
	HasValue bool
}

// Handler receives markup events from a Parser.
type Handler interface {
	StartTag(name string, attrs []Attr, selfClosing bool) error
	EndTag(name string) error
	// Text receives raw text, entities not decoded.
	Text(raw string) error
	// Comment receives the whole comment including its delimiters.
	Comment(raw string) error
	Doctype(raw string) error
}

// Parser turns markup into Handler events.
type Parser interface {
	Parse(ctx context.Context, r io.Reader, h Handler) error
}

// TokenizerParser is the default Parser, built on the x/net/html tokenizer.
//
// Tag names are lower-cased. Attribute names keep the case they were written
// in unless LowerCaseAttributeNames is set, so camelCase directives survive.
type TokenizerParser struct {
	LowerCaseAttributeNames bool
	// MaxBuf limits the tokenizer buffer in bytes. Zero means unlimited.
	MaxBuf int
}

// NewParser returns the default case-preserving parser.
func NewParser() *TokenizerParser {
	return &TokenizerParser{}
}

// Parse implements Parser.
func (p *TokenizerParser) Parse(ctx context.Context, r io.Reader, h Handler) error {
	z := html.NewTokenizer(r)
	if p.MaxBuf > 0 {
		z.SetMaxBuf(p.MaxBuf)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		tt := z.Next()

		var err error
		switch tt {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return nil
			}
			return z.Err()
		case html.TextToken:
			err = h.Text(string(z.Raw()))
		case html.StartTagToken, html.SelfClosingTagToken:
			// Copy raw before TagName, which lower-cases the buffer in place.
			raw := string(z.Raw())
			name, _ := z.TagName()
			err = h.StartTag(string(name), scanAttrs(raw, p.LowerCaseAttributeNames), tt == html.SelfClosingTagToken)
		case html.EndTagToken:
			name, _ := z.TagName()
			err = h.EndTag(string(name))
		case html.CommentToken:
			err = h.Comment(string(z.Raw()))
		case html.DoctypeToken:
			err = h.Doctype(string(z.Raw()))
		}
		if err != nil {
			return err
		}
	}
}

// scanAttrs reads the attributes of a raw start tag, following the tokenizer's
// rules for where names and unquoted values end.
func scanAttrs(raw string, lower bool) []Attr {
	i := 1
	for i < len(raw) && !isSpace(raw[i]) && raw[i] != '/' && raw[i] != '>' {
		i++
	}

	var attrs []Attr
	for i < len(raw) {
		for i < len(raw) && (isSpace(raw[i]) || raw[i] == '/') {
			i++
		}
		if i >= len(raw) || raw[i] == '>' {
			break
		}

		start := i
		i++ // a leading '=' belongs to the name
		for i < len(raw) && !isSpace(raw[i]) && raw[i] != '=' && raw[i] != '>' && raw[i] != '/' {
			i++
		}
		attr := Attr{Name: raw[start:i]}
		if lower {
			attr.Name = strings.ToLower(attr.Name)
		}

		j := skipSpace(raw, i)
		if j < len(raw) && raw[j] == '=' {
			attr.HasValue = true
			j = skipSpace(raw, j+1)
			switch {
			case j < len(raw) && (raw[j] == '"' || raw[j] == '\''):
				end := strings.IndexByte(raw[j+1:], raw[j])
				if end < 0 {
					attr.Value = strings.TrimSuffix(raw[j+1:], ">")
					i = len(raw)
				} else {
					attr.Value = raw[j+1 : j+1+end]
					i = j + end + 2
				}
			default:
				k := j
				for k < len(raw) && !isSpace(raw[k]) && raw[k] != '>' {
					k++
				}
				attr.Value = raw[j:k]
				i = k
			}
		}

		attrs = append(attrs, attr)
	}

	return attrs
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func skipSpace(s string, i int) int {
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	return i
}
