package cloud

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/matzehuels/maskcloud/pkg/cloud/glyph"
	"github.com/matzehuels/maskcloud/pkg/cloud/layout"
	"github.com/matzehuels/maskcloud/pkg/errors"
)

var ink = color.RGBA{30, 90, 160, 255}

func solid(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// ringMask draws a black annulus on white: a non-convex drawable region.
func ringMask(size int) *image.NRGBA {
	img := solid(size, size, color.White)
	c := float64(size) / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			d := math.Hypot(float64(x)+0.5-c, float64(y)+0.5-c)
			if d < c-4 && d > c/3 {
				img.Set(x, y, color.Black)
			}
		}
	}
	return img
}

func opts(mut func(*Options)) Options {
	o := DefaultOptions()
	o.Seed = 42
	if mut != nil {
		mut(&o)
	}
	return o
}

// assertDisjoint re-renders every placement and checks that ink pixels lie
// on drawable mask pixels and are never shared.
func assertDisjoint(t *testing.T, maskImg image.Image, res *Result) {
	t.Helper()
	fonts, err := glyph.Parse(goregular.TTF)
	if err != nil {
		t.Fatal(err)
	}
	defer fonts.Close()

	w, h := res.Stats.Width, res.Stats.Height
	owner := make([]int, w*h)
	for i, pl := range res.Placements {
		g, err := fonts.Render(pl.Word, pl.FontSize, pl.Orientation)
		if err != nil {
			t.Fatal(err)
		}
		for gy := 0; gy < g.Ink.H; gy++ {
			for gx := 0; gx < g.Ink.W; gx++ {
				if !g.Ink.At(gx, gy) {
					continue
				}
				x, y := pl.X+gx, pl.Y+gy
				if x < 0 || y < 0 || x >= w || y >= h {
					t.Fatalf("%q leaves the canvas at (%d,%d)", pl.Word, x, y)
				}
				if l := color.GrayModel.Convert(maskImg.At(x, y)).(color.Gray).Y; l > 128 {
					t.Fatalf("%q covers forbidden mask pixel (%d,%d)", pl.Word, x, y)
				}
				if o := owner[y*w+x]; o != 0 {
					t.Fatalf("placements %d and %d overlap at (%d,%d)", o-1, i, x, y)
				}
				owner[y*w+x] = i + 1
			}
		}
	}
}

func TestGenerateTwoWords(t *testing.T) {
	m := solid(100, 100, color.Black)
	res, err := Generate("alpha alpha beta", m, ink, goregular.TTF, opts(func(o *Options) {
		o.MaxWords = 2
		o.MinFontSize = 5
	}))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(res.Placements) != 2 {
		t.Fatalf("placed %d words, want 2", len(res.Placements))
	}
	alpha, beta := res.Placements[0], res.Placements[1]
	if alpha.Word != "alpha" || beta.Word != "beta" {
		t.Fatalf("placement order = %q, %q", alpha.Word, beta.Word)
	}
	if alpha.FontSize < beta.FontSize {
		t.Errorf("alpha size %d < beta size %d", alpha.FontSize, beta.FontSize)
	}
	assertDisjoint(t, m, res)
}

func TestGenerateEmptyCanvas(t *testing.T) {
	res, err := Generate("plenty of words here", solid(50, 50, color.White), ink, goregular.TTF, opts(nil))
	if !errors.Is(err, errors.ErrCodeEmptyCanvas) {
		t.Fatalf("error = %v, want EMPTY_CANVAS", err)
	}
	if res != nil {
		t.Error("no result may be produced on failure")
	}
	if !errors.IsFatal(err) {
		t.Error("EMPTY_CANVAS must be fatal")
	}
}

func TestGenerateEmptyVocabulary(t *testing.T) {
	tests := []struct {
		name string
		text string
		mut  func(*Options)
	}{
		{"empty text", "", nil},
		{"all tokens too short", "a bb cc d", func(o *Options) { o.MinWordLength = 3 }},
		{"all stopwords", "The the THE", func(o *Options) { o.Stopwords = []string{"the"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Generate(tt.text, solid(40, 40, color.Black), ink, goregular.TTF, opts(tt.mut))
			if !errors.Is(err, errors.ErrCodeEmptyVocabulary) {
				t.Fatalf("error = %v, want EMPTY_VOCABULARY", err)
			}
			if !errors.IsRecoverable(err) {
				t.Error("EMPTY_VOCABULARY must be recoverable")
			}
		})
	}
}

func TestGenerateRepeatSingleWord(t *testing.T) {
	m := solid(100, 100, color.Black)
	res, err := Generate("x", m, ink, goregular.TTF, opts(nil))
	if err != nil {
		t.Fatal(err)
	}
	n := len(res.Placements)
	if n < 2 {
		t.Fatalf("placed %d instances of x, want several", n)
	}
	if n >= DefaultMaxWords {
		t.Fatalf("placed %d instances; the canvas cannot hold that many", n)
	}
	for _, pl := range res.Placements {
		if pl.Word != "x" {
			t.Fatalf("unexpected word %q", pl.Word)
		}
	}
	if st := res.Stats.Layout; st.Passes != n+1 || st.Exhausted {
		t.Errorf("passes = %d (exhausted %v), want %d ending with an empty pass", st.Passes, st.Exhausted, n+1)
	}
	assertDisjoint(t, m, res)
}

func TestGenerateFontLoad(t *testing.T) {
	var events int
	o := opts(func(o *Options) { o.OnEvent = func(layout.Event) { events++ } })

	for _, font := range [][]byte{nil, []byte("corrupt font bytes"), goregular.TTF[:100]} {
		// The mask is also unusable; the font is checked first.
		_, err := Generate("some words", solid(10, 10, color.White), ink, font, o)
		if !errors.Is(err, errors.ErrCodeFontLoad) {
			t.Errorf("error = %v, want FONT_LOAD", err)
		}
	}
	if events != 0 {
		t.Errorf("%d placement events before font failure", events)
	}
}

func TestGenerateInvalidMask(t *testing.T) {
	for _, m := range []image.Image{nil, image.NewGray(image.Rect(0, 0, 0, 0))} {
		_, err := Generate("words", m, ink, goregular.TTF, opts(nil))
		if !errors.Is(err, errors.ErrCodeInvalidMask) {
			t.Errorf("error = %v, want INVALID_MASK", err)
		}
	}
}

func TestGenerateNonConvexMask(t *testing.T) {
	m := ringMask(160)
	text := "ring ring ring ring donut donut donut hole hole shape mask word cloud go"
	res, err := Generate(text, m, ink, goregular.TTF, opts(func(o *Options) { o.MaxWords = 60 }))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Placements) == 0 {
		t.Fatal("nothing placed")
	}
	assertDisjoint(t, m, res)
}

func TestGenerateForcedColor(t *testing.T) {
	res, err := Generate("color color every pixel", ringMask(120), ink, goregular.TTF, opts(nil))
	if err != nil {
		t.Fatal(err)
	}
	white := color.RGBA{255, 255, 255, 255}
	b := res.Image.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if c := res.Image.RGBAAt(x, y); c != white && c != ink {
				t.Fatalf("pixel (%d,%d) = %v, want background or fill", x, y, c)
			}
		}
	}
	for _, pl := range res.Placements {
		if pl.Color != color.Color(ink) {
			t.Errorf("placement %q has color %v", pl.Word, pl.Color)
		}
	}
}

func TestGenerateFrequencyOrdering(t *testing.T) {
	text := "one two two three three three four four four four five five five five five"
	res, err := Generate(text, solid(200, 200, color.Black), ink, goregular.TTF, opts(func(o *Options) { o.Repeat = false }))
	if err != nil {
		t.Fatal(err)
	}
	initial := make(map[string]int)
	weight := make(map[string]float64)
	for _, pl := range res.Placements {
		initial[pl.Word] = pl.InitialSize
		weight[pl.Word] = pl.Weight
	}
	for a := range initial {
		for b := range initial {
			if weight[a] > weight[b] && initial[a] < initial[b] {
				t.Errorf("%q (weight %v) initial size %d < %q (weight %v) size %d",
					a, weight[a], initial[a], b, weight[b], initial[b])
			}
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	text := "same seed same layout every time seed"
	a, err := Generate(text, ringMask(120), ink, goregular.TTF, opts(nil))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Generate(text, ringMask(120), ink, goregular.TTF, opts(nil))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(a.Placements, b.Placements); diff != "" {
		t.Errorf("placements differ (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(a.Image.Pix, b.Image.Pix); diff != "" {
		t.Error("images differ for the same seed")
	}
}

func TestGenerateDownscale(t *testing.T) {
	img, err := Layout("scaled words", solid(400, 200, color.Black), ink, goregular.TTF, opts(func(o *Options) {
		o.MaxCanvasSide = 100
	}))
	if err != nil {
		t.Fatal(err)
	}
	if got := img.Bounds().Size(); got != image.Pt(100, 50) {
		t.Errorf("canvas = %v, want (100,50)", got)
	}
}

func TestGenerateContourAndBackground(t *testing.T) {
	bg := color.RGBA{250, 240, 200, 255}
	outline := color.RGBA{255, 0, 0, 255}
	res, err := Generate("outline", ringMask(100), ink, goregular.TTF, opts(func(o *Options) {
		o.BackgroundColor = bg
		o.ContourWidth = 2
		o.ContourColor = outline
	}))
	if err != nil {
		t.Fatal(err)
	}
	var contour int
	b := res.Image.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			switch res.Image.RGBAAt(x, y) {
			case outline:
				contour++
			case bg, ink:
			default:
				t.Fatalf("pixel (%d,%d) = %v", x, y, res.Image.RGBAAt(x, y))
			}
		}
	}
	if contour == 0 {
		t.Error("contour missing")
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*Options)
		ok   bool
	}{
		{"defaults", nil, true},
		{"negative max words", func(o *Options) { o.MaxWords = -1 }, false},
		{"zero min font", func(o *Options) { o.MinFontSize = 0 }, false},
		{"max below min", func(o *Options) { o.MaxFontSize = 5 }, false},
		{"prefer horizontal above one", func(o *Options) { o.PreferHorizontal = 1.5 }, false},
		{"negative margin", func(o *Options) { o.Margin = -1 }, false},
		{"all vertical", func(o *Options) { o.PreferHorizontal = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := opts(tt.mut).Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
			if err != nil && !errors.Is(err, errors.ErrCodeInvalidInput) {
				t.Errorf("error code = %v, want INVALID_INPUT", errors.GetCode(err))
			}
		})
	}
}
