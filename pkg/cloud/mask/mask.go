// Package mask converts an arbitrary image into the binary field that bounds
// a word cloud.
//
// Dark pixels are drawable, light pixels are forbidden. Transparent pixels
// are first composited over white, so translucency reads as light and never
// silently enlarges the drawable area. Rasterization is a pure function of the
// input pixels: the same image and options always yield the same field.
//
// # Usage
//
//	img, err := mask.Decode(r)           // INVALID_MASK on decode failure
//	field, err := mask.Rasterize(img, mask.Options{MaxSide: 800})
//	if field.FreeCount() == 0 {
//	    // nothing can be drawn
//	}
package mask

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder

	"github.com/matzehuels/maskcloud/pkg/cloud/bitmap"
	"github.com/matzehuels/maskcloud/pkg/errors"
)

// DefaultThreshold is the luminance above which a pixel is forbidden.
const DefaultThreshold = 128

// Options configures rasterization.
type Options struct {
	// MaxSide bounds the longer canvas side. Larger masks are downscaled
	// uniformly; zero keeps the original resolution.
	MaxSide int

	// Threshold overrides DefaultThreshold when non-zero.
	Threshold uint8
}

// Field is the rasterized mask: one cell per canvas pixel.
type Field struct {
	Width, Height int

	// Forbidden holds the cells no word may cover.
	Forbidden *bitmap.Bitmap
}

// Free reports whether (x, y) lies on the canvas and is drawable.
func (f *Field) Free(x, y int) bool {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return false
	}
	return !f.Forbidden.Bits[y*f.Width+x]
}

// FreeCount returns the number of drawable cells.
func (f *Field) FreeCount() int {
	return f.Width*f.Height - f.Forbidden.Count()
}

// Centroid returns the mean position of the drawable cells, or the canvas
// center when there are none.
func (f *Field) Centroid() (float64, float64) {
	var sx, sy float64
	n := 0
	for y := 0; y < f.Height; y++ {
		row := f.Forbidden.Bits[y*f.Width : (y+1)*f.Width]
		for x, forbidden := range row {
			if !forbidden {
				sx += float64(x)
				sy += float64(y)
				n++
			}
		}
	}
	if n == 0 {
		return float64(f.Width) / 2, float64(f.Height) / 2
	}
	return sx / float64(n), sy / float64(n)
}

// Decode reads an image in any registered format (PNG, JPEG, GIF, BMP, TIFF,
// WebP). Every failure is reported as INVALID_MASK.
func Decode(r io.Reader) (image.Image, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidMask, err, "decode mask image")
	}
	if img.Bounds().Empty() {
		return nil, errors.New(errors.ErrCodeInvalidMask, "%s mask has zero size", format)
	}
	return img, nil
}

// DecodeBytes is Decode over an in-memory buffer.
func DecodeBytes(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidMask, "mask image is empty")
	}
	return Decode(bytes.NewReader(data))
}

// Rasterize converts img into a Field. A nil or empty image is INVALID_MASK.
func Rasterize(img image.Image, opts Options) (*Field, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, errors.New(errors.ErrCodeInvalidMask, "mask image has zero size")
	}
	threshold := opts.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}

	flat := flatten(img)
	scaled := downscale(flat, opts.MaxSide)

	b := scaled.Bounds()
	w, h := b.Dx(), b.Dy()
	forbidden := bitmap.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			l := color.GrayModel.Convert(scaled.At(b.Min.X+x, b.Min.Y+y)).(color.Gray).Y
			forbidden.Bits[y*w+x] = l > threshold
		}
	}

	return &Field{Width: w, Height: h, Forbidden: forbidden}, nil
}

// flatten composites img over an opaque white background.
func flatten(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

// downscale shrinks img so that its longer side is at most maxSide,
// preserving the aspect ratio. Images already within bounds are returned as is.
func downscale(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSide <= 0 || (w <= maxSide && h <= maxSide) {
		return img
	}
	if w >= h {
		return imaging.Resize(img, maxSide, 0, imaging.Box)
	}
	return imaging.Resize(img, 0, maxSide, imaging.Box)
}
