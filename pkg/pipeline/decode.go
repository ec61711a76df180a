package pipeline

import (
	"image"

	"github.com/matzehuels/maskcloud/pkg/cloud/glyph"
	"github.com/matzehuels/maskcloud/pkg/cloud/mask"
	"github.com/matzehuels/maskcloud/pkg/fonts"
)

// ResolveFont returns the font bytes for a run: the uploaded font if any,
// otherwise the font named by opts.Font (a built-in name or a path).
func ResolveFont(in Input, opts Options) ([]byte, error) {
	return fonts.Resolve(in.Font, opts.Font)
}

// Decode checks the font and decodes the mask image. The font is checked
// first so a run with both a broken font and a broken mask fails with
// FONT_LOAD, matching the engine's error order.
func Decode(in Input, fontData []byte) (image.Image, error) {
	r, err := glyph.Parse(fontData)
	if err != nil {
		return nil, err
	}
	_ = r.Close()

	return mask.DecodeBytes(in.Mask)
}
