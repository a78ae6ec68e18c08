package inline

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/conneroisu/gridinline/internal/driver"
	"github.com/conneroisu/gridinline/internal/pattern"
)

// DefaultEncoding is used when no template encoding is configured.
const DefaultEncoding = "utf-8"

// Template describes one resolved template reference.
type Template struct {
	// Dir is the directory of the referencing source file.
	Dir string
	// URL is the reference as written in the source.
	URL string
	// Path is the template location on disk.
	Path string
}

// Locate joins the source directory with the reference url.
func Locate(file driver.File, ref pattern.Reference) Template {
	return Template{
		Dir:  file.Dir,
		URL:  ref.URL,
		Path: filepath.Join(file.Dir, ref.URL),
	}
}

// Loader reads template files and decodes them to UTF-8.
type Loader struct {
	name string
	enc  encoding.Encoding
}

// NewLoader returns a loader for a WHATWG encoding label such as "utf-8",
// "latin1" or "shift_jis". An empty label means DefaultEncoding.
func NewLoader(label string) (*Loader, error) {
	if label == "" {
		label = DefaultEncoding
	}

	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported template encoding %q: %w", label, err)
	}

	name, err := htmlindex.Name(enc)
	if err != nil {
		name = label
	}

	return &Loader{name: name, enc: enc}, nil
}

// Encoding returns the canonical name of the loader's encoding.
func (l *Loader) Encoding() string {
	return l.name
}

// Size returns the size of the file at path in bytes.
func (l *Loader) Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", path)
	}
	return info.Size(), nil
}

// Read returns the decoded contents of the file at path. Invalid byte
// sequences are replaced with U+FFFD.
func (l *Loader) Read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	decoded, err := l.enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decoding %s as %s: %w", path, l.name, err)
	}
	return string(decoded), nil
}
