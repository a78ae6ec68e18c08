package inline

import (
	"github.com/conneroisu/gridinline/internal/driver"
	"github.com/conneroisu/gridinline/internal/pattern"
)

var templateEnd = []byte("'")

// BuildPatch replaces the whole matched reference with
// kind:'<body>'. Text around the match is left alone.
func BuildPatch(m pattern.Match, body []byte) *driver.Patch {
	return &driver.Patch{
		Start:  m.Start,
		Length: len(m.Text),
		Replace: [][]byte{
			[]byte(string(m.Ref.Kind) + ":'"),
			body,
			templateEnd,
		},
	}
}
