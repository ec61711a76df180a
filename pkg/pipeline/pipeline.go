// Package pipeline runs the word-cloud engine end to end for the CLI and the
// HTTP server: decode the uploaded bytes, lay out the cloud, encode a PNG,
// and cache the result.
//
// # Architecture
//
// The pipeline consists of three stages:
//
//  1. Decode: resolve the font and decode the mask image
//  2. Layout: extract the vocabulary, place words and paint them
//  3. Encode: PNG-encode the painted canvas
//
// The encoded artifact is cached under a key derived from content hashes of
// the text, mask and font plus every option that influences the output, so
// a repeated request skips all three stages. Runs with a random seed are
// never cached because their output is not reproducible.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	result, err := runner.Execute(ctx, pipeline.Input{
//	    Text: text,
//	    Mask: maskPNG,
//	}, pipeline.Options{Color: "hsl(210, 60%, 30%)"})
//	if err != nil {
//	    return err
//	}
//	os.WriteFile("cloud.png", result.PNG, 0644)
package pipeline

import (
	"image"
	"image/color"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/maskcloud/pkg/cache"
	"github.com/matzehuels/maskcloud/pkg/cloud"
	"github.com/matzehuels/maskcloud/pkg/cloud/layout"
	"github.com/matzehuels/maskcloud/pkg/cloud/vocab"
	"github.com/matzehuels/maskcloud/pkg/colorspec"
	"github.com/matzehuels/maskcloud/pkg/errors"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

const (
	// DefaultMaxWords is the total number of placements per cloud.
	DefaultMaxWords = cloud.DefaultMaxWords

	// DefaultMinFontSize is the smallest font size in pixels.
	DefaultMinFontSize = cloud.DefaultMinFontSize

	// DefaultPreferHorizontal is the share of horizontal words.
	DefaultPreferHorizontal = cloud.DefaultPreferHorizontal

	// DefaultRelativeScaling makes font size proportional to frequency.
	DefaultRelativeScaling = cloud.DefaultRelativeScaling

	// DefaultMargin is the free border around every word in pixels.
	DefaultMargin = cloud.DefaultMargin

	// DefaultColor is the fill color for words.
	DefaultColor = colorspec.Default

	// DefaultBackground is the canvas color outside the words.
	DefaultBackground = "white"

	// DefaultContourColor is the color of the mask outline when drawn.
	DefaultContourColor = "black"

	// DefaultSeed is the default random seed for reproducibility.
	DefaultSeed = uint64(42)
)

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for a pipeline run.
// This struct supports JSON serialization for API requests, the run history
// and the TOML config file.
//
// Fields where zero is a meaningful value are pointers; nil selects the
// default.
type Options struct {
	// Vocabulary options
	MaxWords       int      `json:"max_words,omitempty" toml:"max_words"`
	MinWordLength  int      `json:"min_word_length,omitempty" toml:"min_word_length"`
	Stopwords      []string `json:"stopwords,omitempty" toml:"stopwords"`
	Collocations   bool     `json:"collocations,omitempty" toml:"collocations"`
	KeepCase       bool     `json:"keep_case,omitempty" toml:"keep_case"`
	KeepPlurals    bool     `json:"keep_plurals,omitempty" toml:"keep_plurals"`
	IncludeNumbers bool     `json:"include_numbers,omitempty" toml:"include_numbers"`

	// Layout options
	MinFontSize      int      `json:"min_font_size,omitempty" toml:"min_font_size"`
	MaxFontSize      int      `json:"max_font_size,omitempty" toml:"max_font_size"`
	FontStep         int      `json:"font_step,omitempty" toml:"font_step"`
	PreferHorizontal *float64 `json:"prefer_horizontal,omitempty" toml:"prefer_horizontal"`
	RelativeScaling  *float64 `json:"relative_scaling,omitempty" toml:"relative_scaling"`
	Margin           *int     `json:"margin,omitempty" toml:"margin"`
	NoRepeat         bool     `json:"no_repeat,omitempty" toml:"no_repeat"`
	MaxAttempts      int      `json:"max_attempts,omitempty" toml:"max_attempts"`
	MaxCanvasSide    int      `json:"max_canvas_side,omitempty" toml:"max_canvas_side"`
	Seed             uint64   `json:"seed,omitempty" toml:"seed"`
	Random           bool     `json:"random,omitempty" toml:"random"` // ignore Seed; output differs per run

	// Render options
	Color        string  `json:"color,omitempty" toml:"color"`
	Background   string  `json:"background,omitempty" toml:"background"`
	ContourWidth float64 `json:"contour_width,omitempty" toml:"contour_width"`
	ContourColor string  `json:"contour_color,omitempty" toml:"contour_color"`
	Antialias    bool    `json:"antialias,omitempty" toml:"antialias"`

	// Font is a built-in font name or a path, used when Input.Font is empty.
	Font string `json:"font,omitempty" toml:"font"`

	// Runtime options (not serialized)
	Refresh bool               `json:"-" toml:"-"` // skip the cache read
	Logger  *log.Logger        `json:"-" toml:"-"`
	OnEvent func(layout.Event) `json:"-" toml:"-"`
}

// Float returns a pointer to v, for the optional float fields of Options.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v, for the optional int fields of Options.
func Int(v int) *int { return &v }

// Input holds the raw bytes of one run.
type Input struct {
	Text string
	Mask []byte // encoded image (PNG, JPEG, GIF, BMP, TIFF or WebP)
	Font []byte // TTF/OTF data; empty uses Options.Font
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// PNG is the encoded image.
	PNG []byte

	// Image, Placements and Vocabulary are only set when the layout ran;
	// a cache hit restores PNG and Stats alone.
	Image      image.Image
	Placements []layout.Placement
	Vocabulary vocab.Vocabulary

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks whether the result came from the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Width          int           `json:"width"`
	Height         int           `json:"height"`
	VocabularySize int           `json:"vocabulary_size"`
	Placed         int           `json:"placed"`
	Dropped        int           `json:"dropped"`
	Passes         int           `json:"passes"`
	Probes         int           `json:"probes"`
	Bytes          int           `json:"bytes"`
	DecodeTime     time.Duration `json:"decode_time"`
	LayoutTime     time.Duration `json:"layout_time"`
	EncodeTime     time.Duration `json:"encode_time"`
}

// CacheInfo tracks cache use for a run.
type CacheInfo struct {
	Key string // empty when the run was not cacheable
	Hit bool   // whether the PNG came from cache
}

// =============================================================================
// Options Methods
// =============================================================================

// SetDefaults fills zero fields with defaults. It is idempotent.
func (o *Options) SetDefaults() {
	if o.MaxWords == 0 {
		o.MaxWords = DefaultMaxWords
	}
	if o.MinFontSize == 0 {
		o.MinFontSize = DefaultMinFontSize
	}
	if o.FontStep == 0 {
		o.FontStep = layout.DefaultFontStep
	}
	if o.PreferHorizontal == nil {
		o.PreferHorizontal = Float(DefaultPreferHorizontal)
	}
	if o.RelativeScaling == nil {
		o.RelativeScaling = Float(DefaultRelativeScaling)
	}
	if o.Margin == nil {
		o.Margin = Int(DefaultMargin)
	}
	if o.Seed == 0 {
		o.Seed = DefaultSeed
	}
	if o.Color == "" {
		o.Color = DefaultColor
	}
	if o.Background == "" {
		o.Background = DefaultBackground
	}
	if o.ContourColor == "" {
		o.ContourColor = DefaultContourColor
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// Validate checks option values after SetDefaults. Errors carry
// INVALID_INPUT or INVALID_COLOR.
func (o *Options) Validate() error {
	_, _, err := o.engineOptions()
	return err
}

// Cacheable reports whether the run output is reproducible.
func (o *Options) Cacheable() bool {
	return !o.Random
}

// engineOptions converts o into engine options and the parsed fill color.
func (o *Options) engineOptions() (cloud.Options, color.Color, error) {
	fill, err := colorspec.Parse(o.Color)
	if err != nil {
		return cloud.Options{}, nil, err
	}
	bg, err := colorspec.Parse(o.Background)
	if err != nil {
		return cloud.Options{}, nil, err
	}
	contour, err := colorspec.Parse(o.ContourColor)
	if err != nil {
		return cloud.Options{}, nil, err
	}

	c := cloud.DefaultOptions()
	c.MaxWords = o.MaxWords
	c.MinWordLength = o.MinWordLength
	c.Stopwords = o.Stopwords
	c.Collocations = o.Collocations
	c.NormalizeCase = !o.KeepCase
	c.NormalizePlurals = !o.KeepPlurals
	c.IncludeNumbers = o.IncludeNumbers
	c.MinFontSize = o.MinFontSize
	c.MaxFontSize = o.MaxFontSize
	c.FontStep = o.FontStep
	c.Repeat = !o.NoRepeat
	c.MaxAttempts = o.MaxAttempts
	c.MaxCanvasSide = o.MaxCanvasSide
	c.BackgroundColor = bg
	c.ContourWidth = o.ContourWidth
	c.ContourColor = contour
	c.Antialias = o.Antialias
	if o.PreferHorizontal != nil {
		c.PreferHorizontal = *o.PreferHorizontal
	}
	if o.RelativeScaling != nil {
		c.RelativeScaling = *o.RelativeScaling
	}
	if o.Margin != nil {
		c.Margin = *o.Margin
	}
	if !o.Random {
		c.Seed = o.Seed
	}
	c.Logger = o.Logger
	c.OnEvent = o.OnEvent

	if o.FontStep < 0 || o.MaxAttempts < 0 {
		return cloud.Options{}, nil, errors.New(errors.ErrCodeInvalidInput, "font step and max attempts must not be negative")
	}
	if err := c.Validate(); err != nil {
		return cloud.Options{}, nil, err
	}
	return c, fill, nil
}

// ArtifactKeyOpts returns cache key options for the encoded image.
func (o *Options) ArtifactKeyOpts(in Input, fontData []byte) cache.ArtifactKeyOpts {
	canonical, err := colorspec.Canonical(o.Color)
	if err != nil {
		canonical = o.Color
	}
	keyed := *o
	keyed.Color = canonical
	keyed.Font = ""
	return cache.ArtifactKeyOpts{
		TextHash: cache.HashString(in.Text),
		MaskHash: cache.Hash(in.Mask),
		FontHash: cache.Hash(fontData),
		Color:    canonical,
		Options:  keyed,
	}
}
