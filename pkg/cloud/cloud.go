// Package cloud is the word-cloud layout engine.
//
// Generate turns four in-memory inputs (text, a mask image, a fill color and
// font data) into a raster image in which word size encodes frequency and
// every word lies inside the dark area of the mask:
//
//	res, err := cloud.Generate(text, maskImg, color.Black, goregular.TTF, cloud.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	png.Encode(w, res.Image)
//
// # Stages
//
// The work is split across sub-packages, each usable on its own:
//
//   - [github.com/matzehuels/maskcloud/pkg/cloud/vocab]: text to ranked vocabulary
//   - [github.com/matzehuels/maskcloud/pkg/cloud/mask]: image to drawable/forbidden field
//   - [github.com/matzehuels/maskcloud/pkg/cloud/occupancy]: collision index
//   - [github.com/matzehuels/maskcloud/pkg/cloud/glyph]: word rasterization
//   - [github.com/matzehuels/maskcloud/pkg/cloud/layout]: placement planner
//   - [github.com/matzehuels/maskcloud/pkg/cloud/sink]: compositor and PNG encoding
//
// # Errors
//
// Inputs are checked in a fixed order and the first failure aborts the run
// with no image:
//
//  1. FONT_LOAD: the font data cannot be parsed
//  2. INVALID_MASK: the mask is nil or has zero size
//  3. EMPTY_CANVAS: the mask has no drawable pixel
//  4. EMPTY_VOCABULARY: filtering left no word (recoverable)
//
// Words that cannot be placed are dropped silently and never cause an error.
//
// # Concurrency
//
// A run is single-threaded and allocates all of its state. Concurrent calls
// to Generate share nothing and are safe.
package cloud

import (
	"image"
	"image/color"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/maskcloud/pkg/cloud/glyph"
	"github.com/matzehuels/maskcloud/pkg/cloud/layout"
	"github.com/matzehuels/maskcloud/pkg/cloud/mask"
	"github.com/matzehuels/maskcloud/pkg/cloud/occupancy"
	"github.com/matzehuels/maskcloud/pkg/cloud/sink"
	"github.com/matzehuels/maskcloud/pkg/cloud/vocab"
	"github.com/matzehuels/maskcloud/pkg/errors"
)

// Default option values.
const (
	DefaultMaxWords         = 400
	DefaultMinFontSize      = 10
	DefaultPreferHorizontal = 0.9
	DefaultRelativeScaling  = 1.0
	DefaultMargin           = 2
)

// Options configures a run. Start from DefaultOptions: the zero value
// disables repetition and case folding.
type Options struct {
	// Vocabulary
	MaxWords             int
	MinWordLength        int
	Stopwords            []string
	Collocations         bool
	CollocationThreshold float64
	NormalizeCase        bool
	NormalizePlurals     bool
	IncludeNumbers       bool

	// Sizing and placement
	MinFontSize      int
	MaxFontSize      int // 0 derives it from the canvas height
	FontStep         int
	RelativeScaling  float64
	PreferHorizontal float64
	Repeat           bool
	Margin           int
	MaxAttempts      int

	// Canvas
	MaxCanvasSide   int // downscale larger masks; 0 keeps the mask size
	BackgroundColor color.Color
	ContourWidth    float64
	ContourColor    color.Color
	Antialias       bool

	// Seed drives orientation and spiral phase. 0 picks a random seed, so
	// output then differs per run.
	Seed uint64

	Logger  *log.Logger
	OnEvent func(layout.Event)
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() Options {
	return Options{
		MaxWords:             DefaultMaxWords,
		CollocationThreshold: vocab.DefaultCollocationThreshold,
		NormalizeCase:        true,
		NormalizePlurals:     true,
		MinFontSize:          DefaultMinFontSize,
		FontStep:             layout.DefaultFontStep,
		RelativeScaling:      DefaultRelativeScaling,
		PreferHorizontal:     DefaultPreferHorizontal,
		Repeat:               true,
		Margin:               DefaultMargin,
		BackgroundColor:      color.White,
		ContourColor:         color.Black,
	}
}

// Validate rejects option values no run could honor.
func (o Options) Validate() error {
	switch {
	case o.MaxWords < 0:
		return errors.New(errors.ErrCodeInvalidInput, "max words must not be negative")
	case o.MinFontSize < 1:
		return errors.New(errors.ErrCodeInvalidInput, "min font size must be at least 1")
	case o.MaxFontSize != 0 && o.MaxFontSize < o.MinFontSize:
		return errors.New(errors.ErrCodeInvalidInput, "max font size %d is below min font size %d", o.MaxFontSize, o.MinFontSize)
	case o.MinWordLength < 0:
		return errors.New(errors.ErrCodeInvalidInput, "min word length must not be negative")
	case o.Margin < 0 || o.ContourWidth < 0 || o.MaxCanvasSide < 0:
		return errors.New(errors.ErrCodeInvalidInput, "margin, contour width and canvas size must not be negative")
	}
	if err := errors.ValidateRatio("prefer horizontal", o.PreferHorizontal); err != nil {
		return err
	}
	return errors.ValidateRatio("relative scaling", o.RelativeScaling)
}

// Stats describes a finished run.
type Stats struct {
	Width          int           `json:"width"`
	Height         int           `json:"height"`
	FreeCells      int           `json:"free_cells"`
	VocabularySize int           `json:"vocabulary_size"`
	Layout         layout.Stats  `json:"layout"`
	Duration       time.Duration `json:"duration"`
}

// Result is the output of Generate.
type Result struct {
	Image      *image.RGBA
	Placements []layout.Placement
	Vocabulary vocab.Vocabulary
	Stats      Stats
}

// PNG encodes the result image.
func (r *Result) PNG() ([]byte, error) {
	return sink.PNG(r.Image)
}

// Layout runs the engine and returns only the image.
func Layout(text string, maskImg image.Image, fill color.Color, fontData []byte, opts Options) (image.Image, error) {
	res, err := Generate(text, maskImg, fill, fontData, opts)
	if err != nil {
		return nil, err
	}
	return res.Image, nil
}

// Generate runs the engine and returns the image with its placements.
func Generate(text string, maskImg image.Image, fill color.Color, fontData []byte, opts Options) (*Result, error) {
	start := time.Now()
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if fill == nil {
		fill = color.Black
	}

	fonts, err := glyph.Parse(fontData)
	if err != nil {
		return nil, err
	}
	defer fonts.Close()

	field, err := mask.Rasterize(maskImg, mask.Options{MaxSide: opts.MaxCanvasSide})
	if err != nil {
		return nil, err
	}
	free := field.FreeCount()
	if free == 0 {
		return nil, errors.New(errors.ErrCodeEmptyCanvas, "mask has no drawable pixel (%dx%d)", field.Width, field.Height)
	}
	logger.Debug("mask rasterized", "width", field.Width, "height", field.Height, "free", free)

	words, err := vocab.Extract(text, vocab.Options{
		Stopwords:            opts.Stopwords,
		MinWordLength:        opts.MinWordLength,
		MaxWords:             opts.MaxWords,
		Collocations:         opts.Collocations,
		CollocationThreshold: opts.CollocationThreshold,
		NormalizeCase:        opts.NormalizeCase,
		NormalizePlurals:     opts.NormalizePlurals,
		IncludeNumbers:       opts.IncludeNumbers,
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("vocabulary extracted", "words", len(words), "top", words[0].Word)

	ax, ay := field.Centroid()
	planner := layout.NewPlanner(occupancy.New(field), fonts, ax, ay, layout.Options{
		MaxWords:         opts.MaxWords,
		MinFontSize:      opts.MinFontSize,
		MaxFontSize:      opts.MaxFontSize,
		FontStep:         opts.FontStep,
		PreferHorizontal: opts.PreferHorizontal,
		RelativeScaling:  opts.RelativeScaling,
		Repeat:           opts.Repeat,
		Margin:           opts.Margin,
		MaxAttempts:      opts.MaxAttempts,
		Seed:             opts.Seed,
		Color:            fill,
		Logger:           logger,
		OnEvent:          opts.OnEvent,
	})
	placements, err := planner.Place(words)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "place words")
	}

	img, err := sink.Render(field.Width, field.Height, placements, fonts,
		sink.WithBackground(opts.BackgroundColor),
		sink.WithContour(field, opts.ContourWidth, opts.ContourColor),
		sink.WithAntialias(opts.Antialias),
	)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "paint words")
	}

	st := planner.Stats()
	res := &Result{
		Image:      img,
		Placements: placements,
		Vocabulary: words,
		Stats: Stats{
			Width:          field.Width,
			Height:         field.Height,
			FreeCells:      free,
			VocabularySize: len(words),
			Layout:         st,
			Duration:       time.Since(start),
		},
	}
	logger.Debug("layout complete", "placed", st.Placed, "dropped", st.Dropped, "passes", st.Passes, "probes", st.Probes)
	return res, nil
}
