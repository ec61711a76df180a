// Package fonts supplies the font data used when the caller provides none.
//
// The engine itself never falls back: a missing font is a FONT_LOAD error.
// The CLI and the HTTP server apply the fallback here so an upload without a
// font file still renders with Go Regular, which ships with golang.org/x/image
// and needs no files on disk.
package fonts

import (
	"os"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/matzehuels/maskcloud/pkg/errors"
)

// Name identifies a built-in font.
type Name string

// Built-in fonts.
const (
	Regular Name = "regular"
	Bold    Name = "bold"
)

// Default returns the Go Regular TTF data.
func Default() []byte {
	return goregular.TTF
}

// Builtin returns the data for a built-in font.
func Builtin(name Name) ([]byte, bool) {
	switch name {
	case Regular, "":
		return goregular.TTF, true
	case Bold:
		return gobold.TTF, true
	}
	return nil, false
}

// Resolve picks the font for a run. Uploaded data wins; otherwise spec is
// either a built-in name or a path to a TTF/OTF file. An empty spec yields
// the default font.
func Resolve(uploaded []byte, spec string) ([]byte, error) {
	if len(uploaded) > 0 {
		return uploaded, nil
	}
	if data, ok := Builtin(Name(spec)); ok {
		return data, nil
	}
	data, err := os.ReadFile(spec)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFontLoad, err, "read font %s", spec)
	}
	return data, nil
}
