// Package dodge picks where the decline button flees to and how much the
// accept button grows in return.
package dodge

import (
	"math"
	"math/rand"
	"time"

	"github.com/iburimskiy/sayyes/internal/config"
)

type Point struct {
	X, Y float64
}

type Size struct {
	W, H float64
}

// Sampler is the random source; *rand.Rand satisfies it.
type Sampler interface {
	Float64() float64
}

// Solver performs an approximate furthest-point placement by random sampling.
type Solver struct {
	Samples int
	Padding float64
	Control Size

	rng Sampler
}

func NewSolver(control Size, rng Sampler) *Solver {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Solver{
		Samples: config.DodgeSamples,
		Padding: config.DodgePadding,
		Control: control,
		rng:     rng,
	}
}

// Place returns a new top-left position for the control inside arena, as far
// from pointer as the sampled candidates allow. Degenerate input returns prev
// and false.
func (s *Solver) Place(pointer Point, arena Size, prev Point) (Point, bool) {
	if !finite(pointer.X) || !finite(pointer.Y) || !finite(arena.W) || !finite(arena.H) {
		return prev, false
	}
	minX, minY := s.Padding, s.Padding
	maxX := arena.W - s.Control.W - s.Padding
	maxY := arena.H - s.Control.H - s.Padding
	if arena.W <= 0 || arena.H <= 0 || maxX < minX || maxY < minY {
		return prev, false
	}

	n := s.Samples
	if n <= 0 {
		n = config.DodgeSamples
	}

	best, bestDist := prev, -1.0
	for i := 0; i < n; i++ {
		c := Point{
			X: minX + s.rng.Float64()*(maxX-minX),
			Y: minY + s.rng.Float64()*(maxY-minY),
		}
		d := math.Hypot(c.X+s.Control.W/2-pointer.X, c.Y+s.Control.H/2-pointer.Y)
		if d > bestDist {
			best, bestDist = c, d
		}
	}
	return best, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
