package prank

import (
	"math"

	"github.com/iburimskiy/sayyes/internal/config"
	"github.com/iburimskiy/sayyes/internal/dodge"
)

// Rect is an axis-aligned box in arena coordinates.
type Rect struct {
	X, Y, W, H float64
}

func (r Rect) Center() dodge.Point {
	return dodge.Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

func (r Rect) Contains(p dodge.Point) bool {
	return p.X >= r.X && p.X <= r.X+r.W && p.Y >= r.Y && p.Y <= r.Y+r.H
}

// Distance from p to the nearest point of r; zero inside.
func (r Rect) Distance(p dodge.Point) float64 {
	dx := math.Max(math.Max(r.X-p.X, 0), p.X-(r.X+r.W))
	dy := math.Max(math.Max(r.Y-p.Y, 0), p.Y-(r.Y+r.H))
	return math.Hypot(dx, dy)
}

// Interaction owns the arena: where the decline button is, how often it got
// away and how large the accept button has grown. Coordinates are relative
// to the arena's top-left corner.
type Interaction struct {
	solver *dodge.Solver
	esc    dodge.Escalation
	radius float64

	arena   dodge.Size
	target  dodge.Point
	shown   dodge.Point
	placed  bool
	escapes int
}

func NewInteraction(solver *dodge.Solver, esc dodge.Escalation) *Interaction {
	if solver == nil {
		solver = dodge.NewSolver(dodge.Size{W: config.DeclineWidth, H: config.DeclineHeight}, nil)
	}
	return &Interaction{
		solver: solver,
		esc:    esc,
		radius: config.ProximityRadius,
	}
}

// Resize records the arena's current size; call it before routing input.
func (in *Interaction) Resize(arena dodge.Size) {
	in.arena = arena
	if !in.placed {
		in.shown = in.defaultSlot()
	}
}

func (in *Interaction) Arena() dodge.Size { return in.arena }

func (in *Interaction) Escapes() int { return in.escapes }

func (in *Interaction) Scale() float64 { return in.esc.Scale(in.escapes) }

// defaultSlot is right of centre, level with the accept button.
func (in *Interaction) defaultSlot() dodge.Point {
	c := in.solver.Control
	return dodge.Point{
		X: in.arena.W*0.65 - c.W/2,
		Y: in.arena.H/2 - c.H/2,
	}
}

// Decline is the button's logical position (where it is heading).
func (in *Interaction) Decline() Rect {
	p := in.target
	if !in.placed {
		p = in.defaultSlot()
	}
	c := in.solver.Control
	return Rect{X: p.X, Y: p.Y, W: c.W, H: c.H}
}

// Displayed is where the button is drawn while it eases toward Decline.
func (in *Interaction) Displayed() Rect {
	c := in.solver.Control
	return Rect{X: in.shown.X, Y: in.shown.Y, W: c.W, H: c.H}
}

// Tick advances the easing by one frame.
func (in *Interaction) Tick() {
	goal := in.Decline()
	in.shown.X += (goal.X - in.shown.X) * config.DodgeEasing
	in.shown.Y += (goal.Y - in.shown.Y) * config.DodgeEasing
	if math.Abs(goal.X-in.shown.X) < 0.5 && math.Abs(goal.Y-in.shown.Y) < 0.5 {
		in.shown = dodge.Point{X: goal.X, Y: goal.Y}
	}
}

// Accept is the accept button scaled around its centre.
func (in *Interaction) Accept() Rect {
	s := in.Scale()
	w, h := config.AcceptWidth*s, config.AcceptHeight*s
	cx, cy := in.arena.W*0.35, in.arena.H/2
	return Rect{X: cx - w/2, Y: cy - h/2, W: w, H: h}
}

func (in *Interaction) AcceptHit(p dodge.Point) bool {
	return in.Accept().Contains(p)
}

func (in *Interaction) near(p dodge.Point) bool {
	return in.Decline().Distance(p) <= in.radius
}

// PointerMoved dodges when the pointer comes within reach of the button.
func (in *Interaction) PointerMoved(p dodge.Point) bool {
	if !in.near(p) {
		return false
	}
	return in.dodge(p)
}

func (in *Interaction) TouchStarted(p dodge.Point) bool {
	return in.PointerMoved(p)
}

func (in *Interaction) Click(p dodge.Point) bool {
	return in.PointerMoved(p)
}

// dodge moves the target away from p. A new dodge simply supersedes a target
// the button has not reached yet. Every successful placement is one escape.
func (in *Interaction) dodge(p dodge.Point) bool {
	next, ok := in.solver.Place(p, in.arena, in.Decline().topLeft())
	if !ok {
		return false
	}
	if !in.placed {
		in.shown = in.defaultSlot()
	}
	in.target = next
	in.placed = true
	in.escapes++
	return true
}

func (r Rect) topLeft() dodge.Point {
	return dodge.Point{X: r.X, Y: r.Y}
}

// Reset puts the button back in its default slot and forgets the escapes.
func (in *Interaction) Reset() {
	in.placed = false
	in.target = dodge.Point{}
	in.escapes = 0
	in.shown = in.defaultSlot()
}
