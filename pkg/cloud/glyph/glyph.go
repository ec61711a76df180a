// Package glyph renders words into coverage masks and ink footprints.
//
// A Renderer wraps one parsed OpenType/TrueType font and caches a face per
// pixel size. Each rendered Glyph carries two views of the same word:
//
//   - Alpha: antialiased coverage, used by the compositor
//   - Ink: the pixels with coverage ≥ InkThreshold, used for collision
//
// Vertical words are rotated 90° counter-clockwise so they read bottom to top.
package glyph

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/matzehuels/maskcloud/pkg/cloud/bitmap"
	"github.com/matzehuels/maskcloud/pkg/errors"
)

// InkThreshold is the minimum coverage for a pixel to count as ink.
const InkThreshold = 128

// Orientation of a rendered word.
type Orientation int

const (
	Horizontal Orientation = iota
	Vertical
)

func (o Orientation) String() string {
	if o == Vertical {
		return "vertical"
	}
	return "horizontal"
}

// MarshalText encodes the orientation by name.
func (o Orientation) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (o *Orientation) UnmarshalText(text []byte) error {
	switch string(text) {
	case "horizontal":
		*o = Horizontal
	case "vertical":
		*o = Vertical
	default:
		return fmt.Errorf("glyph: unknown orientation %q", text)
	}
	return nil
}

// Flip returns the other orientation.
func (o Orientation) Flip() Orientation {
	if o == Vertical {
		return Horizontal
	}
	return Vertical
}

// Glyph is one word rendered at one size and orientation.
type Glyph struct {
	Word        string
	Size        int
	Orientation Orientation

	Alpha *image.Alpha
	Ink   *bitmap.Bitmap
}

// Empty reports whether the glyph has no ink.
func (g *Glyph) Empty() bool {
	return g == nil || g.Ink.Empty()
}

// Renderer rasterizes words with a single font. It is not safe for
// concurrent use; create one per run.
type Renderer struct {
	font  *opentype.Font
	faces map[int]font.Face
}

// Parse loads font data. Unreadable or unsupported data is FONT_LOAD.
func Parse(data []byte) (*Renderer, error) {
	if len(data) == 0 {
		return nil, errors.New(errors.ErrCodeFontLoad, "font data is empty")
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFontLoad, err, "parse font")
	}
	// Faces are created lazily; build one now so a font whose tables parse
	// but cannot produce a face fails before any placement.
	r := &Renderer{font: f, faces: make(map[int]font.Face)}
	if _, err := r.face(12); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Renderer) face(size int) (font.Face, error) {
	if f, ok := r.faces[size]; ok {
		return f, nil
	}
	f, err := opentype.NewFace(r.font, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFontLoad, err, "create face at size %d", size)
	}
	r.faces[size] = f
	return f, nil
}

// Render draws word at size pixels in the given orientation. A word with no
// visible outline (for example whitespace or unmapped runes) yields an empty
// glyph, not an error.
func (r *Renderer) Render(word string, size int, o Orientation) (*Glyph, error) {
	g := &Glyph{Word: word, Size: size, Orientation: o}
	if size <= 0 {
		g.Alpha, g.Ink = image.NewAlpha(image.Rect(0, 0, 0, 0)), bitmap.New(0, 0)
		return g, nil
	}
	face, err := r.face(size)
	if err != nil {
		return nil, err
	}

	bounds, _ := font.BoundString(face, word)
	minX, minY := bounds.Min.X.Floor(), bounds.Min.Y.Floor()
	w, h := bounds.Max.X.Ceil()-minX, bounds.Max.Y.Ceil()-minY
	if w <= 0 || h <= 0 {
		g.Alpha, g.Ink = image.NewAlpha(image.Rect(0, 0, 0, 0)), bitmap.New(0, 0)
		return g, nil
	}

	alpha := image.NewAlpha(image.Rect(0, 0, w, h))
	d := &font.Drawer{
		Dst:  alpha,
		Src:  image.Opaque,
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(-minX), Y: fixed.I(-minY)},
	}
	d.DrawString(word)

	if o == Vertical {
		alpha = rotate(alpha)
	}
	g.Alpha = alpha
	g.Ink = inkOf(alpha)
	return g, nil
}

// Close releases the cached faces.
func (r *Renderer) Close() error {
	for size, f := range r.faces {
		_ = f.Close()
		delete(r.faces, size)
	}
	return nil
}

// rotate turns a coverage mask 90° counter-clockwise.
func rotate(src *image.Alpha) *image.Alpha {
	rot := imaging.Rotate90(src)
	b := rot.Bounds()
	dst := image.NewAlpha(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			dst.Pix[y*dst.Stride+x] = rot.Pix[y*rot.Stride+x*4+3]
		}
	}
	return dst
}

func inkOf(a *image.Alpha) *bitmap.Bitmap {
	b := a.Bounds()
	ink := bitmap.New(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			ink.Bits[y*ink.W+x] = a.Pix[y*a.Stride+x] >= InkThreshold
		}
	}
	return ink
}
