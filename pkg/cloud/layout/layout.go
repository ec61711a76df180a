// Package layout places a ranked vocabulary onto an occupancy field.
//
// # Placement
//
// Words are processed strictly in rank order. For each word the planner:
//
//  1. Derives an initial font size from the word's weight relative to the
//     heaviest word, capped by the size of the last placed word.
//  2. Picks an orientation: horizontal with probability PreferHorizontal.
//  3. Renders the word and dilates its ink by Margin to get a footprint.
//  4. Walks an outward spiral from the mask's visual center, asking the
//     occupancy index whether the footprint fits at each point.
//  5. On success commits the footprint and records a Placement. On failure
//     tries the other orientation at the same size, then shrinks by FontStep.
//     A word that still fails at MinFontSize is dropped silently.
//
// With Repeat enabled the vocabulary is walked again from the top until
// MaxWords placements exist or a full pass places nothing.
//
// # Determinism
//
// Orientation choices and spiral start phases come from a PCG generator
// seeded with Options.Seed. The same seed, field, font and vocabulary always
// produce the same placements. Seed 0 draws a random seed, so output then
// differs per run.
package layout

import (
	"image/color"
	"io"
	"math"
	"math/rand/v2"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/maskcloud/pkg/cloud/bitmap"
	"github.com/matzehuels/maskcloud/pkg/cloud/glyph"
	"github.com/matzehuels/maskcloud/pkg/cloud/occupancy"
	"github.com/matzehuels/maskcloud/pkg/cloud/vocab"
)

// Defaults for Options fields left at zero by NewPlanner.
const (
	DefaultFontStep    = 1
	DefaultMaxAttempts = 100_000_000
)

// stepFraction sets the spiral step relative to the shorter canvas side.
const stepFraction = 0.005

// Options configures the planner.
type Options struct {
	MaxWords    int // total placements across all passes; 0 means len(vocabulary)
	MinFontSize int
	MaxFontSize int // 0 derives it from the canvas height
	FontStep    int

	// PreferHorizontal is the probability in [0,1] of a horizontal word.
	PreferHorizontal float64

	// RelativeScaling blends between rank-free sizing (0) and sizes
	// proportional to weight (1).
	RelativeScaling float64

	Repeat bool

	// Margin is the free border in pixels kept around every word.
	Margin int

	// MaxAttempts caps the total number of position probes in one run.
	MaxAttempts int

	Seed  uint64
	Color color.Color

	Logger  *log.Logger
	OnEvent func(Event)
}

// Placement is one word drawn on the canvas. X and Y locate the top-left
// corner of the rendered glyph box.
type Placement struct {
	Word        string            `json:"word"`
	Weight      float64           `json:"weight"`
	FontSize    int               `json:"font_size"`
	InitialSize int               `json:"initial_size"`
	Orientation glyph.Orientation `json:"orientation"`
	X           int               `json:"x"`
	Y           int               `json:"y"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	Pass        int               `json:"pass"`
	Color       color.Color       `json:"-"`
}

// Stats summarizes a planning run.
type Stats struct {
	Placed    int  `json:"placed"`
	Dropped   int  `json:"dropped"`
	Passes    int  `json:"passes"`
	Probes    int  `json:"probes"`
	Renders   int  `json:"renders"`
	Skipped   int  `json:"skipped"` // searches avoided by the failure memo
	Exhausted bool `json:"exhausted"`

	Occupancy occupancy.Stats `json:"-"`
}

// EventKind identifies an Event.
type EventKind int

const (
	EventPlaced EventKind = iota
	EventDropped
	EventPassDone
)

// Event reports planner progress to Options.OnEvent.
type Event struct {
	Kind      EventKind
	Pass      int
	Word      string
	Placement *Placement
	Placed    int // placements so far
	Target    int // placement limit for the run
}

// Renderer produces glyphs; *glyph.Renderer satisfies it.
type Renderer interface {
	Render(word string, size int, o glyph.Orientation) (*glyph.Glyph, error)
}

type glyphKey struct {
	word string
	size int
	o    glyph.Orientation
}

// Planner owns the occupancy index for one run. It is not safe for
// concurrent use.
type Planner struct {
	idx      *occupancy.Index
	fonts    Renderer
	opts     Options
	rng      *rand.Rand
	log      *log.Logger
	ax, ay   float64
	step     float64
	failed   map[glyphKey]bool
	ceiling  int
	stats    Stats
	placed   []Placement
	attempts int
}

// NewPlanner prepares a planner over idx. The spiral is anchored at (ax, ay),
// normally the centroid of the drawable area.
func NewPlanner(idx *occupancy.Index, fonts Renderer, ax, ay float64, opts Options) *Planner {
	if opts.FontStep <= 0 {
		opts.FontStep = DefaultFontStep
	}
	if opts.MinFontSize <= 0 {
		opts.MinFontSize = 1
	}
	if opts.MaxFontSize <= 0 {
		opts.MaxFontSize = max(idx.Height()/2, opts.MinFontSize)
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Color == nil {
		opts.Color = color.Black
	}
	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	step := math.Round(float64(min(idx.Width(), idx.Height())) * stepFraction)
	return &Planner{
		idx:     idx,
		fonts:   fonts,
		opts:    opts,
		rng:     rand.New(rand.NewPCG(seed, seed^0xdeadbeef)),
		log:     logger,
		ax:      ax,
		ay:      ay,
		step:    max(step, 1),
		failed:  make(map[glyphKey]bool),
		ceiling: opts.MaxFontSize,
	}
}

// InitialSize maps weight to a font size. The heaviest word gets maxSize;
// lighter words scale down by weight/maxWeight blended with RelativeScaling,
// never below minSize.
func InitialSize(weight, maxWeight float64, minSize, maxSize int, relativeScaling float64) int {
	if maxWeight <= 0 {
		return minSize
	}
	rs := min(max(relativeScaling, 0), 1)
	size := int(math.Round(float64(maxSize) * (rs*(weight/maxWeight) + (1 - rs))))
	return min(max(size, minSize), maxSize)
}

// Place runs the planner over v and returns the accepted placements in
// placement order. Per-word failures are never errors; an error means the
// renderer failed or the index rejected a commit it had just accepted.
func (p *Planner) Place(v vocab.Vocabulary) ([]Placement, error) {
	if len(v) == 0 {
		return nil, nil
	}
	target := p.opts.MaxWords
	if target <= 0 {
		target = len(v)
	}
	// A continuing pass places at least one word, so target bounds the
	// number of passes.
	passes := 1
	if p.opts.Repeat {
		passes = target
	}
	maxWeight := v.MaxWeight()

	for pass := 1; pass <= passes; pass++ {
		before := len(p.placed)
		for _, e := range v {
			if len(p.placed) >= target || p.exhausted() || p.idx.FreeCount() == 0 {
				break
			}
			pl, err := p.placeWord(e, maxWeight, pass)
			if err != nil {
				return nil, err
			}
			if pl == nil {
				p.stats.Dropped++
				if pass == 1 {
					p.log.Debug("dropped word", "word", e.Word, "weight", e.Weight)
				}
				p.emit(Event{Kind: EventDropped, Pass: pass, Word: e.Word, Placed: len(p.placed), Target: target})
				continue
			}
			p.placed = append(p.placed, *pl)
			p.emit(Event{Kind: EventPlaced, Pass: pass, Word: e.Word, Placement: pl, Placed: len(p.placed), Target: target})
		}
		p.stats.Passes = pass
		added := len(p.placed) - before
		p.log.Debug("pass complete", "pass", pass, "placed", added, "total", len(p.placed), "free", p.idx.FreeCount())
		p.emit(Event{Kind: EventPassDone, Pass: pass, Placed: len(p.placed), Target: target})
		if added == 0 || len(p.placed) >= target || p.exhausted() {
			break
		}
	}

	if p.exhausted() {
		p.stats.Exhausted = true
		p.log.Warn("probe budget exhausted", "attempts", p.attempts, "placed", len(p.placed))
	}
	p.stats.Placed = len(p.placed)
	p.stats.Probes = p.attempts
	p.stats.Occupancy = p.idx.Stats()
	return p.placed, nil
}

// Stats returns the counters of the last Place call.
func (p *Planner) Stats() Stats { return p.stats }

func (p *Planner) exhausted() bool { return p.attempts >= p.opts.MaxAttempts }

func (p *Planner) emit(e Event) {
	if p.opts.OnEvent != nil {
		p.opts.OnEvent(e)
	}
}

// placeWord runs the per-word state machine. It returns nil when the word is
// dropped.
func (p *Planner) placeWord(e vocab.Entry, maxWeight float64, pass int) (*Placement, error) {
	initial := InitialSize(e.Weight, maxWeight, p.opts.MinFontSize, p.opts.MaxFontSize, p.opts.RelativeScaling)
	initial = min(initial, p.ceiling)

	o := glyph.Horizontal
	if p.rng.Float64() >= p.opts.PreferHorizontal {
		o = glyph.Vertical
	}
	flipped := false

	for size := initial; size >= p.opts.MinFontSize; {
		if p.exhausted() {
			return nil, nil
		}
		x, y, g, fp, err := p.search(e.Word, size, o)
		if err != nil {
			return nil, err
		}
		if g != nil {
			if err := p.idx.Commit(fp, x-p.opts.Margin, y-p.opts.Margin); err != nil {
				return nil, err
			}
			p.ceiling = size
			return &Placement{
				Word:        e.Word,
				Weight:      e.Weight,
				FontSize:    size,
				InitialSize: initial,
				Orientation: o,
				X:           x,
				Y:           y,
				Width:       g.Ink.W,
				Height:      g.Ink.H,
				Pass:        pass,
				Color:       p.opts.Color,
			}, nil
		}
		if !flipped && p.opts.PreferHorizontal > 0 && p.opts.PreferHorizontal < 1 {
			flipped = true
			o = o.Flip()
			continue
		}
		if flipped {
			o = o.Flip()
			flipped = false
		}
		size -= p.opts.FontStep
	}
	return nil, nil
}

// search looks for a position for word at size and orientation. It returns a
// nil glyph when no position was found. Failed (word, size, orientation)
// searches are remembered and not retried in later passes. The spiral is not
// exhaustive, so this skips retries that are likely to fail again rather than
// ones that provably cannot succeed.
func (p *Planner) search(word string, size int, o glyph.Orientation) (x, y int, g *glyph.Glyph, fp *bitmap.Bitmap, err error) {
	key := glyphKey{word, size, o}
	if p.failed[key] {
		p.stats.Skipped++
		return 0, 0, nil, nil, nil
	}

	g, err = p.fonts.Render(word, size, o)
	if err != nil {
		return 0, 0, nil, nil, err
	}
	p.stats.Renders++
	if g.Empty() {
		p.failed[key] = true
		return 0, 0, nil, nil, nil
	}

	fp = g.Ink.Dilate(p.opts.Margin)
	if fp.W > p.idx.Width() || fp.H > p.idx.Height() || fp.Count() > p.idx.FreeCount() {
		p.failed[key] = true
		return 0, 0, nil, nil, nil
	}

	x, y, ok := p.spiralSearch(fp)
	if !ok {
		p.failed[key] = true
		return 0, 0, nil, nil, nil
	}
	return x + p.opts.Margin, y + p.opts.Margin, g, fp, nil
}

// spiralSearch returns the top-left corner of the first spiral point at which
// fp fits, centering fp on each point.
func (p *Planner) spiralSearch(fp *bitmap.Bitmap) (int, int, bool) {
	w, h := p.idx.Width(), p.idx.Height()
	// Beyond the farthest canvas corner no centered footprint can fit.
	maxR := 0.0
	for _, c := range [4][2]float64{{0, 0}, {float64(w), 0}, {0, float64(h)}, {float64(w), float64(h)}} {
		maxR = max(maxR, math.Hypot(c[0]-p.ax, c[1]-p.ay))
	}
	maxR = min(maxR, math.Hypot(float64(w), float64(h)))

	halfW, halfH := float64(fp.W)/2, float64(fp.H)/2
	s := newSpiral(p.ax, p.ay, p.step, maxR, p.rng.Float64()*2*math.Pi)
	lastX, lastY := math.MinInt, math.MinInt
	for {
		cx, cy, ok := s.next()
		if !ok {
			return 0, 0, false
		}
		x := int(math.Round(cx - halfW))
		y := int(math.Round(cy - halfH))
		if x == lastX && y == lastY {
			continue
		}
		lastX, lastY = x, y

		if p.attempts >= p.opts.MaxAttempts {
			return 0, 0, false
		}
		p.attempts++
		if p.idx.Fits(fp, x, y) {
			return x, y, true
		}
	}
}
