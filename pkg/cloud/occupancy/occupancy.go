// Package occupancy tracks which canvas cells are still available to words.
//
// Every cell is in one of three states: free, forbidden (outside the mask,
// permanent) or occupied (covered by a committed glyph, permanent). The index
// keeps a summed-area table over forbidden ∪ occupied so a candidate
// footprint's bounding box can be counted with four lookups. The count is an
// upper bound on the cells the glyph itself would hit:
//
//   - zero blocked cells in the box: the glyph fits
//   - more blocked cells than the box has non-ink cells: it cannot fit
//   - otherwise each ink row is checked exactly against the table
//
// Commit marks cells occupied and rebuilds only the part of the table that
// depends on them (rows and columns at or after the commit origin).
package occupancy

import (
	"fmt"

	"github.com/matzehuels/maskcloud/pkg/cloud/bitmap"
	"github.com/matzehuels/maskcloud/pkg/cloud/mask"
)

// State is the state of one canvas cell.
type State uint8

const (
	Free State = iota
	Forbidden
	Occupied
)

func (s State) String() string {
	switch s {
	case Free:
		return "free"
	case Forbidden:
		return "forbidden"
	case Occupied:
		return "occupied"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Stats counts the work performed by an Index.
type Stats struct {
	Queries    int // Fits calls
	FastAccept int // decided by an empty bounding box
	FastReject int // decided by the pigeonhole bound
	Exact      int // needed the per-row check
	Commits    int
}

// Index is the occupancy field plus its summed-area table.
// An Index is not safe for concurrent use.
type Index struct {
	w, h  int
	cells []State
	// sat[(y)*(w+1)+x] = blocked cells in [0,x)×[0,y).
	sat   []int32
	free  int
	stats Stats
}

// New builds an index whose forbidden cells are taken from field.
func New(field *mask.Field) *Index {
	idx := &Index{
		w:     field.Width,
		h:     field.Height,
		cells: make([]State, field.Width*field.Height),
		sat:   make([]int32, (field.Width+1)*(field.Height+1)),
	}
	for i, forbidden := range field.Forbidden.Bits {
		if forbidden {
			idx.cells[i] = Forbidden
		} else {
			idx.free++
		}
	}
	idx.rebuild(0, 0)
	return idx
}

// Width returns the canvas width.
func (idx *Index) Width() int { return idx.w }

// Height returns the canvas height.
func (idx *Index) Height() int { return idx.h }

// FreeCount returns the number of cells still free.
func (idx *Index) FreeCount() int { return idx.free }

// Stats returns the query counters.
func (idx *Index) Stats() Stats { return idx.stats }

// At returns the state of cell (x, y). Cells outside the canvas read as
// forbidden.
func (idx *Index) At(x, y int) State {
	if x < 0 || y < 0 || x >= idx.w || y >= idx.h {
		return Forbidden
	}
	return idx.cells[y*idx.w+x]
}

// Blocked returns the number of non-free cells in the rectangle
// [x0,x1)×[y0,y1), which must lie inside the canvas.
func (idx *Index) Blocked(x0, y0, x1, y1 int) int {
	s := idx.w + 1
	return int(idx.sat[y1*s+x1] - idx.sat[y0*s+x1] - idx.sat[y1*s+x0] + idx.sat[y0*s+x0])
}

// Fits reports whether glyph, with its top-left corner at (x, y), covers only
// free cells. Footprints that leave the canvas never fit.
func (idx *Index) Fits(glyph *bitmap.Bitmap, x, y int) bool {
	idx.stats.Queries++
	if x < 0 || y < 0 || x+glyph.W > idx.w || y+glyph.H > idx.h {
		return false
	}

	blocked := idx.Blocked(x, y, x+glyph.W, y+glyph.H)
	if blocked == 0 {
		idx.stats.FastAccept++
		return true
	}
	ink := glyph.Count()
	if blocked > glyph.W*glyph.H-ink {
		idx.stats.FastReject++
		return false
	}

	idx.stats.Exact++
	for gy := 0; gy < glyph.H; gy++ {
		for _, sp := range glyph.Spans(gy) {
			if idx.Blocked(x+sp.X0, y+gy, x+sp.X1, y+gy+1) != 0 {
				return false
			}
		}
	}
	return true
}

// Commit marks every set cell of glyph at (x, y) as occupied. It refuses,
// without modifying the field, a footprint that is not entirely free.
func (idx *Index) Commit(glyph *bitmap.Bitmap, x, y int) error {
	if x < 0 || y < 0 || x+glyph.W > idx.w || y+glyph.H > idx.h {
		return fmt.Errorf("occupancy: footprint %dx%d at (%d,%d) leaves %dx%d canvas",
			glyph.W, glyph.H, x, y, idx.w, idx.h)
	}
	for gy := 0; gy < glyph.H; gy++ {
		for _, sp := range glyph.Spans(gy) {
			if idx.Blocked(x+sp.X0, y+gy, x+sp.X1, y+gy+1) != 0 {
				return fmt.Errorf("occupancy: footprint at (%d,%d) overlaps blocked cells", x, y)
			}
		}
	}

	for gy := 0; gy < glyph.H; gy++ {
		row := (y + gy) * idx.w
		for _, sp := range glyph.Spans(gy) {
			for gx := sp.X0; gx < sp.X1; gx++ {
				idx.cells[row+x+gx] = Occupied
				idx.free--
			}
		}
	}
	idx.stats.Commits++
	idx.rebuild(x, y)
	return nil
}

// rebuild recomputes the table entries that depend on cells at or after
// (x0, y0). Entries above or left of the origin are unaffected by such cells.
func (idx *Index) rebuild(x0, y0 int) {
	s := idx.w + 1
	for y := y0; y < idx.h; y++ {
		// Running sum of row y over columns [0, x0).
		var row int32
		for x := 0; x < x0; x++ {
			if idx.cells[y*idx.w+x] != Free {
				row++
			}
		}
		for x := x0; x < idx.w; x++ {
			if idx.cells[y*idx.w+x] != Free {
				row++
			}
			idx.sat[(y+1)*s+x+1] = idx.sat[y*s+x+1] + row
		}
	}
}
