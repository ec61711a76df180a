package pipeline

import (
	"encoding/json"
	"image"

	"github.com/matzehuels/maskcloud/pkg/cloud/sink"
)

// Encode PNG-encodes a painted canvas.
func Encode(img image.Image) ([]byte, error) {
	return sink.PNG(img)
}

// artifact is the cached form of a run: the image plus the stats needed to
// report on it without running the layout again.
type artifact struct {
	PNG   []byte `json:"png"`
	Stats Stats  `json:"stats"`
}

func marshalArtifact(png []byte, st Stats) ([]byte, error) {
	return json.Marshal(artifact{PNG: png, Stats: st})
}

func unmarshalArtifact(data []byte) (artifact, error) {
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return artifact{}, err
	}
	return a, nil
}
