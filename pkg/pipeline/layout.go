package pipeline

import (
	"image"

	"github.com/matzehuels/maskcloud/pkg/cloud"
)

// =============================================================================
// Layout Generation
// =============================================================================

// GenerateLayout runs the engine on a decoded mask. The returned result holds
// the painted canvas, the placements in placement order and the vocabulary.
//
// opts must have been through SetDefaults.
func GenerateLayout(text string, maskImg image.Image, fontData []byte, opts Options) (*cloud.Result, error) {
	engineOpts, fill, err := opts.engineOptions()
	if err != nil {
		return nil, err
	}
	return cloud.Generate(text, maskImg, fill, fontData, engineOpts)
}
