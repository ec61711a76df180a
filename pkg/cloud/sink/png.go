// Package sink paints placements onto a canvas and encodes the result.
//
// Painting is hard-edged by default: every ink pixel of every glyph is set to
// the placement color, using the same coverage threshold the planner uses for
// collision. The output therefore contains only the background, the word
// color and the optional contour color. WithAntialias switches to coverage
// blending for smoother edges at the cost of intermediate colors.
//
// The compositor never modifies the placements it is given.
package sink

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/draw"

	"github.com/matzehuels/maskcloud/pkg/cloud/bitmap"
	"github.com/matzehuels/maskcloud/pkg/cloud/layout"
	"github.com/matzehuels/maskcloud/pkg/cloud/mask"
)

// Option configures a render.
type Option func(*options)

type options struct {
	background   color.Color
	contour      *mask.Field
	contourWidth float64
	contourColor color.Color
	antialias    bool
}

// WithBackground sets the canvas fill. The default is opaque white.
func WithBackground(c color.Color) Option {
	return func(o *options) {
		if c != nil {
			o.background = c
		}
	}
}

// WithContour outlines the drawable region of field with a stroke of the
// given width. A width of zero or less disables the outline.
func WithContour(field *mask.Field, width float64, c color.Color) Option {
	return func(o *options) {
		o.contour, o.contourWidth, o.contourColor = field, width, c
	}
}

// WithAntialias blends glyph coverage instead of painting hard edges.
func WithAntialias(on bool) Option {
	return func(o *options) { o.antialias = on }
}

// Render paints placements onto a new w×h canvas. Glyphs are re-rendered
// through fonts at their recorded size and orientation.
func Render(w, h int, placements []layout.Placement, fonts layout.Renderer, opts ...Option) (*image.RGBA, error) {
	o := options{background: color.White, contourColor: color.Black}
	for _, opt := range opts {
		opt(&o)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(o.background), image.Point{}, draw.Src)

	for _, pl := range placements {
		g, err := fonts.Render(pl.Word, pl.FontSize, pl.Orientation)
		if err != nil {
			return nil, err
		}
		c := pl.Color
		if c == nil {
			c = color.Black
		}
		if o.antialias && g.Alpha != nil {
			r := image.Rect(pl.X, pl.Y, pl.X+g.Alpha.Bounds().Dx(), pl.Y+g.Alpha.Bounds().Dy())
			draw.DrawMask(canvas, r, image.NewUniform(c), image.Point{}, g.Alpha, image.Point{}, draw.Over)
			continue
		}
		paint(canvas, g.Ink, pl.X, pl.Y, c)
	}

	if o.contour != nil && o.contourWidth > 0 {
		stroke := Contour(o.contour, o.contourWidth)
		paint(canvas, stroke, -radius(o.contourWidth), -radius(o.contourWidth), o.contourColor)
	}
	return canvas, nil
}

// Contour returns the outline of field's drawable region thickened to width.
// The result is padded like bitmap.Dilate: its origin is at
// (-r, -r) where r = ceil(width/2).
func Contour(field *mask.Field, width float64) *bitmap.Bitmap {
	return field.Forbidden.Edges().Dilate(radius(width))
}

func radius(width float64) int {
	return max(int(math.Ceil(width/2)), 0)
}

// paint sets every set pixel of b, offset by (x, y), to c. Pixels outside the
// canvas are clipped.
func paint(dst *image.RGBA, b *bitmap.Bitmap, x, y int, c color.Color) {
	rgba := color.RGBAModel.Convert(c).(color.RGBA)
	bounds := dst.Bounds()
	for by := 0; by < b.H; by++ {
		for _, sp := range b.Spans(by) {
			for bx := sp.X0; bx < sp.X1; bx++ {
				px, py := x+bx, y+by
				if !image.Pt(px, py).In(bounds) {
					continue
				}
				dst.SetRGBA(px, py, rgba)
			}
		}
	}
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	return enc.Encode(w, img)
}

// PNG returns img encoded as PNG bytes.
func PNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodePNG(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
