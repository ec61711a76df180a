package layout

import "math"

// spiral walks an Archimedean spiral outward from a center point. Consecutive
// points are about step pixels apart along the curve and successive turns are
// step pixels apart radially, so the walk covers the disc evenly.
type spiral struct {
	cx, cy float64
	step   float64
	maxR   float64
	phase  float64

	theta float64
	r     float64
	done  bool
}

func newSpiral(cx, cy, step, maxR, phase float64) *spiral {
	return &spiral{cx: cx, cy: cy, step: step, maxR: maxR, phase: phase}
}

// next returns the next candidate point, or false once the radius exceeds
// maxR.
func (s *spiral) next() (float64, float64, bool) {
	if s.done {
		return 0, 0, false
	}
	x := s.cx + s.r*math.Cos(s.theta+s.phase)
	y := s.cy + s.r*math.Sin(s.theta+s.phase)

	s.theta += s.step / max(s.r, s.step)
	s.r = s.step * s.theta / (2 * math.Pi)
	if s.r > s.maxR {
		s.done = true
	}
	return x, y, true
}
