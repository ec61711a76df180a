// Package bitmap provides the boolean pixel grid shared by the layout engine.
//
// A Bitmap is used for three things: the forbidden region of a mask, the
// ink footprint of a rendered word and the contour stroke painted by the
// compositor. Rows are stored contiguously; (0,0) is the top-left pixel.
package bitmap

// Bitmap is a W×H grid of boolean pixels.
//
// Count and Spans are cached. Writes through Set invalidate the caches;
// writing Bits directly is only allowed before either has been called.
type Bitmap struct {
	W, H int
	Bits []bool

	spans [][]Span
	count int // set pixels + 1; zero means unknown
}

// Span is a half-open run [X0, X1) of set pixels within one row.
type Span struct {
	X0, X1 int
}

// New returns a cleared bitmap of the given size.
func New(w, h int) *Bitmap {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return &Bitmap{W: w, H: h, Bits: make([]bool, w*h)}
}

// At reports whether the pixel at (x, y) is set. Out-of-range pixels are unset.
func (b *Bitmap) At(x, y int) bool {
	if x < 0 || y < 0 || x >= b.W || y >= b.H {
		return false
	}
	return b.Bits[y*b.W+x]
}

// Set sets or clears the pixel at (x, y). Out-of-range writes are ignored.
func (b *Bitmap) Set(x, y int, v bool) {
	if x < 0 || y < 0 || x >= b.W || y >= b.H {
		return
	}
	b.Bits[y*b.W+x] = v
	b.spans = nil
	b.count = 0
}

// Count returns the number of set pixels.
func (b *Bitmap) Count() int {
	if b.count > 0 {
		return b.count - 1
	}
	n := 0
	for _, v := range b.Bits {
		if v {
			n++
		}
	}
	b.count = n + 1
	return n
}

// Empty reports whether the bitmap has no area or no set pixel.
func (b *Bitmap) Empty() bool {
	return b.W == 0 || b.H == 0 || b.Count() == 0
}

// Clone returns a deep copy.
func (b *Bitmap) Clone() *Bitmap {
	c := &Bitmap{W: b.W, H: b.H, Bits: make([]bool, len(b.Bits))}
	copy(c.Bits, b.Bits)
	return c
}

// Spans returns the runs of set pixels in row y, computed once and cached.
// The result must not be modified.
func (b *Bitmap) Spans(y int) []Span {
	if b.spans == nil {
		b.spans = make([][]Span, b.H)
		for row := 0; row < b.H; row++ {
			b.spans[row] = rowSpans(b.Bits[row*b.W : (row+1)*b.W])
		}
	}
	if y < 0 || y >= b.H {
		return nil
	}
	return b.spans[y]
}

func rowSpans(row []bool) []Span {
	var spans []Span
	start := -1
	for x, v := range row {
		switch {
		case v && start < 0:
			start = x
		case !v && start >= 0:
			spans = append(spans, Span{X0: start, X1: x})
			start = -1
		}
	}
	if start >= 0 {
		spans = append(spans, Span{X0: start, X1: len(row)})
	}
	return spans
}

// Dilate grows every set pixel into a (2r+1)×(2r+1) square. The result is
// padded by r on each side, so pixel (x, y) of b maps to (x+r, y+r).
func (b *Bitmap) Dilate(r int) *Bitmap {
	if r <= 0 {
		return b.Clone()
	}
	w, h := b.W+2*r, b.H+2*r

	// Separable max filter: horizontal pass into tmp, vertical pass into out.
	tmp := New(w, h)
	for y := 0; y < b.H; y++ {
		for _, s := range b.Spans(y) {
			row := (y + r) * w
			for x := s.X0; x < s.X1+2*r; x++ {
				tmp.Bits[row+x] = true
			}
		}
	}

	out := New(w, h)
	for x := 0; x < w; x++ {
		run := 0
		for y := 0; y < h; y++ {
			if tmp.Bits[y*w+x] {
				run = r + 1
			}
			if run > 0 {
				out.Bits[y*w+x] = true
				run--
			}
		}
		// Spread upwards as well.
		run = 0
		for y := h - 1; y >= 0; y-- {
			if tmp.Bits[y*w+x] {
				run = r + 1
			}
			if run > 0 {
				out.Bits[y*w+x] = true
				run--
			}
		}
	}
	return out
}

// Edges returns the pixels of b that have at least one 4-neighbour with the
// opposite value. The image border is not an edge.
func (b *Bitmap) Edges() *Bitmap {
	out := New(b.W, b.H)
	for y := 0; y < b.H; y++ {
		for x := 0; x < b.W; x++ {
			v := b.Bits[y*b.W+x]
			if b.neighbourDiffers(x, y, v) {
				out.Bits[y*b.W+x] = true
			}
		}
	}
	return out
}

func (b *Bitmap) neighbourDiffers(x, y int, v bool) bool {
	for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
		nx, ny := x+d[0], y+d[1]
		if nx < 0 || ny < 0 || nx >= b.W || ny >= b.H {
			continue
		}
		if b.Bits[ny*b.W+nx] != v {
			return true
		}
	}
	return false
}
