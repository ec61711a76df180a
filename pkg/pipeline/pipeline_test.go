package pipeline

import (
	"bytes"
	"context"
	stderrors "errors"
	"image"
	"image/draw"
	"image/png"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/maskcloud/pkg/cache"
	"github.com/matzehuels/maskcloud/pkg/errors"
	"github.com/matzehuels/maskcloud/pkg/fonts"
	"github.com/matzehuels/maskcloud/pkg/observability"
)

func maskPNG(t *testing.T, w, h int, fill image.Image) []byte {
	t.Helper()
	m := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(m, m.Bounds(), fill, image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, m); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func testRunner(c cache.Cache) *Runner {
	return NewRunner(c, nil, log.New(io.Discard))
}

func TestOptionsDefaults(t *testing.T) {
	var opts Options
	opts.SetDefaults()

	got := struct {
		MaxWords, MinFontSize, FontStep, Margin int
		PreferHorizontal, RelativeScaling       float64
		Seed                                    uint64
		Color, Background                       string
	}{opts.MaxWords, opts.MinFontSize, opts.FontStep, *opts.Margin,
		*opts.PreferHorizontal, *opts.RelativeScaling, opts.Seed, opts.Color, opts.Background}

	want := struct {
		MaxWords, MinFontSize, FontStep, Margin int
		PreferHorizontal, RelativeScaling       float64
		Seed                                    uint64
		Color, Background                       string
	}{DefaultMaxWords, DefaultMinFontSize, 1, DefaultMargin,
		DefaultPreferHorizontal, DefaultRelativeScaling, DefaultSeed, DefaultColor, DefaultBackground}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
	if opts.Logger == nil {
		t.Error("SetDefaults should set a logger")
	}

	// Explicit zero values survive.
	opts = Options{PreferHorizontal: Float(0), Margin: Int(0)}
	opts.SetDefaults()
	if *opts.PreferHorizontal != 0 || *opts.Margin != 0 {
		t.Errorf("explicit zeros overwritten: prefer=%v margin=%v", *opts.PreferHorizontal, *opts.Margin)
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		code errors.Code
	}{
		{"defaults", Options{}, ""},
		{"bad color", Options{Color: "not-a-color"}, errors.ErrCodeInvalidColor},
		{"bad background", Options{Background: "#12"}, errors.ErrCodeInvalidColor},
		{"font sizes", Options{MinFontSize: 20, MaxFontSize: 10}, errors.ErrCodeInvalidInput},
		{"prefer horizontal", Options{PreferHorizontal: Float(1.5)}, errors.ErrCodeInvalidInput},
		{"negative margin", Options{Margin: Int(-1)}, errors.ErrCodeInvalidInput},
		{"negative step", Options{FontStep: -2}, errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts
			opts.SetDefaults()
			err := opts.Validate()
			if tt.code == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.code) {
				t.Errorf("Validate() = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestArtifactKey(t *testing.T) {
	keyer := cache.NewDefaultKeyer()
	in := Input{Text: "a b c", Mask: []byte("mask")}
	font := fonts.Default()

	key := func(in Input, o Options) string {
		o.SetDefaults()
		return keyer.ArtifactKey(o.ArtifactKeyOpts(in, font))
	}

	base := key(in, Options{Color: "red"})
	if got := key(in, Options{Color: "hsl(0, 100%, 50%)"}); got != base {
		t.Error("equivalent colors should share a key")
	}
	if got := key(Input{Text: "a b d", Mask: in.Mask}, Options{Color: "red"}); got == base {
		t.Error("different text should change the key")
	}
	if got := key(in, Options{Color: "red", MaxWords: 10}); got == base {
		t.Error("different options should change the key")
	}
	if got := key(in, Options{Color: "red", Logger: log.Default()}); got != base {
		t.Error("runtime options should not change the key")
	}
}

func TestExecuteCaching(t *testing.T) {
	ctx := context.Background()
	r := testRunner(cache.NewMemoryCache())
	in := Input{Text: "gopher gopher gopher cloud cloud mask", Mask: maskPNG(t, 120, 80, image.Black)}
	opts := Options{MaxWords: 5}

	first, err := r.Execute(ctx, in, opts)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if first.CacheInfo.Hit {
		t.Error("first run should miss the cache")
	}
	if first.CacheInfo.Key == "" {
		t.Error("seeded run should be cacheable")
	}
	if first.Stats.Placed == 0 || first.Stats.Placed > 5 {
		t.Errorf("Placed = %d, want 1..5", first.Stats.Placed)
	}
	if _, err := png.Decode(bytes.NewReader(first.PNG)); err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if first.Image == nil || len(first.Placements) != first.Stats.Placed {
		t.Error("layout run should return image and placements")
	}

	second, err := r.Execute(ctx, in, opts)
	if err != nil {
		t.Fatalf("Execute (cached): %v", err)
	}
	if !second.CacheInfo.Hit {
		t.Error("second run should hit the cache")
	}
	if !bytes.Equal(first.PNG, second.PNG) {
		t.Error("cached PNG differs from original")
	}
	if diff := cmp.Diff(first.Stats, second.Stats); diff != "" {
		t.Errorf("cached stats mismatch (-first +second):\n%s", diff)
	}

	opts.Refresh = true
	third, err := r.Execute(ctx, in, opts)
	if err != nil {
		t.Fatalf("Execute (refresh): %v", err)
	}
	if third.CacheInfo.Hit {
		t.Error("refresh should bypass the cache")
	}
	if !bytes.Equal(first.PNG, third.PNG) {
		t.Error("same seed should reproduce the same PNG")
	}
}

func TestExecuteRandomNotCached(t *testing.T) {
	c := cache.NewMemoryCache()
	r := testRunner(c)
	in := Input{Text: "alpha beta", Mask: maskPNG(t, 60, 40, image.Black)}

	res, err := r.Execute(context.Background(), in, Options{Random: true, MaxWords: 2})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.CacheInfo.Key != "" {
		t.Errorf("random run got cache key %q", res.CacheInfo.Key)
	}
	if c.Len() != 0 {
		t.Errorf("random run wrote %d cache entries", c.Len())
	}
}

func TestExecuteErrors(t *testing.T) {
	black := maskPNG(t, 40, 40, image.Black)
	white := maskPNG(t, 40, 40, image.White)

	tests := []struct {
		name string
		in   Input
		opts Options
		code errors.Code
	}{
		{"bad mask", Input{Text: "word", Mask: []byte("not an image")}, Options{}, errors.ErrCodeInvalidMask},
		{"empty mask", Input{Text: "word"}, Options{}, errors.ErrCodeInvalidMask},
		{"font before mask", Input{Text: "word", Mask: []byte("x"), Font: []byte("not a font")}, Options{}, errors.ErrCodeFontLoad},
		{"missing font file", Input{Text: "word", Mask: black}, Options{Font: "/nonexistent/font.ttf"}, errors.ErrCodeFontLoad},
		{"empty canvas", Input{Text: "word", Mask: white}, Options{}, errors.ErrCodeEmptyCanvas},
		{"empty vocabulary", Input{Text: "a an the", Mask: black}, Options{Stopwords: []string{"a", "an", "the"}}, errors.ErrCodeEmptyVocabulary},
		{"bad color", Input{Text: "word", Mask: black}, Options{Color: "nope"}, errors.ErrCodeInvalidColor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testRunner(nil)
			_, err := r.Execute(context.Background(), tt.in, tt.opts)
			if !errors.Is(err, tt.code) {
				t.Errorf("Execute() = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestExecuteCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testRunner(nil).Execute(ctx, Input{Text: "word", Mask: maskPNG(t, 20, 20, image.Black)}, Options{})
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("Execute() = %v, want context.Canceled", err)
	}
}

func TestExecuteDeadline(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	_, err := testRunner(nil).Execute(ctx, Input{Text: "word", Mask: maskPNG(t, 20, 20, image.Black)}, Options{})
	if !errors.Is(err, errors.ErrCodeTimeout) {
		t.Errorf("Execute() = %v, want %s", err, errors.ErrCodeTimeout)
	}
	if !stderrors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Execute() = %v, want it to wrap context.DeadlineExceeded", err)
	}
	if got := errors.HTTPStatus(errors.GetCode(err)); got != 504 {
		t.Errorf("HTTPStatus = %d, want 504", got)
	}
}

func TestResults(t *testing.T) {
	ctx := context.Background()
	r := testRunner(cache.NewMemoryCache())

	if err := r.SaveResult(ctx, "id-1", []byte("png")); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	data, err := r.LoadResult(ctx, "id-1")
	if err != nil || string(data) != "png" {
		t.Errorf("LoadResult = %q, %v", data, err)
	}
	if _, err := r.LoadResult(ctx, "missing"); !stderrors.Is(err, cache.ErrNotFound) {
		t.Errorf("LoadResult(missing) = %v, want ErrNotFound", err)
	}
}

type recordingHooks struct {
	observability.NoopPipelineHooks
	stages []string
}

func (h *recordingHooks) OnDecodeComplete(_ context.Context, _, _ int, _ time.Duration, _ error) {
	h.stages = append(h.stages, "decode")
}

func (h *recordingHooks) OnLayoutComplete(_ context.Context, _ int, _ time.Duration, _ error) {
	h.stages = append(h.stages, "layout")
}

func (h *recordingHooks) OnEncodeComplete(_ context.Context, _ int, _ time.Duration, _ error) {
	h.stages = append(h.stages, "encode")
}

func TestExecuteHooks(t *testing.T) {
	hooks := &recordingHooks{}
	observability.SetPipelineHooks(hooks)
	defer observability.Reset()

	_, err := testRunner(nil).Execute(context.Background(),
		Input{Text: "alpha beta", Mask: maskPNG(t, 60, 40, image.Black)}, Options{MaxWords: 2})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if diff := cmp.Diff([]string{"decode", "layout", "encode"}, hooks.stages); diff != "" {
		t.Errorf("stages mismatch (-want +got):\n%s", diff)
	}
}
