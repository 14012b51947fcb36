// Package confetti simulates and draws the celebration particle burst.
package confetti

import (
	"image/color"
	"math"
	"math/rand"
	"time"

	"github.com/iburimskiy/sayyes/internal/config"
)

type Shape uint8

const (
	ShapeCircle Shape = iota
	ShapeRect
	ShapeHeart
	shapeCount
)

func (s Shape) String() string {
	switch s {
	case ShapeCircle:
		return "circle"
	case ShapeRect:
		return "rect"
	case ShapeHeart:
		return "heart"
	default:
		return "unknown"
	}
}

type Particle struct {
	X, Y   float64
	VX, VY float64
	AX, AY float64

	Life  float64 // [0..1], also the draw opacity
	Decay float64 // life lost per step, always > 0

	Color color.NRGBA
	Size  float64
	Rot   float64
	RotV  float64
	Shape Shape
}

// Surface receives one frame of particles. Clear is called once per frame
// before the survivors are filled.
type Surface interface {
	Clear()
	FillCircle(cx, cy, r float64, c color.NRGBA, alpha float64)
	FillPath(p *Path, c color.NRGBA, alpha float64)
}

// Engine owns a transient particle set and its frame loop. It is not safe for
// concurrent use; everything runs on the game's update path.
type Engine struct {
	sched   Scheduler
	surface Surface
	rng     *rand.Rand

	width, height float64

	particles []Particle
	pending   Handle
	running   bool
	disposed  bool

	path Path
}

type Option func(*Engine)

// WithRand replaces the random source, for reproducible bursts.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// WithBounds sets the initial surface size.
func WithBounds(w, h float64) Option {
	return func(e *Engine) { e.Resize(w, h) }
}

func New(sched Scheduler, surface Surface, opts ...Option) *Engine {
	e := &Engine{
		sched:   sched,
		surface: surface,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		width:   config.WindowWidth,
		height:  config.WindowHeight,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Resize updates the area bursts are scattered over. Non-positive sizes are
// ignored.
func (e *Engine) Resize(w, h float64) {
	if w > 0 && h > 0 {
		e.width, e.height = w, h
	}
}

// Burst seeds a new batch of particles and starts the frame loop if idle.
func (e *Engine) Burst() {
	if e.disposed {
		return
	}
	n := config.BurstMin + e.rng.Intn(config.BurstMax-config.BurstMin+1)
	for i := 0; i < n; i++ {
		e.particles = append(e.particles, e.spawn())
	}
	if !e.running {
		e.running = true
		e.pending = e.sched.RequestStep(e.Step)
	}
}

func (e *Engine) spawn() Particle {
	r := e.rng
	return Particle{
		X:     e.width * (0.3 + r.Float64()*0.4),
		Y:     e.height * 0.4,
		VX:    (r.Float64() - 0.5) * 14,
		VY:    -r.Float64()*16 - 4,
		AY:    config.Gravity,
		Life:  1,
		Decay: config.DecayMin + r.Float64()*config.DecayJitter,
		Color: Palette[r.Intn(len(Palette))],
		Size:  config.ParticleSize + r.Float64()*10,
		Rot:   r.Float64() * 2 * math.Pi,
		RotV:  (r.Float64() - 0.5) * 0.3,
		Shape: Shape(r.Intn(int(shapeCount))),
	}
}

// Step advances and draws one frame, then requests the next one only while
// particles remain.
func (e *Engine) Step() {
	e.pending = 0
	if e.disposed {
		return
	}

	live := e.particles[:0]
	for _, p := range e.particles {
		p.VX += p.AX
		p.VY += p.AY
		p.X += p.VX
		p.Y += p.VY
		p.Life -= p.Decay
		p.Rot += p.RotV
		if p.Life > 0 {
			live = append(live, p)
		}
	}
	e.particles = live

	e.render()

	if len(e.particles) > 0 {
		e.pending = e.sched.RequestStep(e.Step)
		return
	}
	e.running = false
}

func (e *Engine) render() {
	if e.surface == nil {
		return
	}
	e.surface.Clear()
	for i := range e.particles {
		p := &e.particles[i]
		alpha := clamp01(p.Life)
		switch p.Shape {
		case ShapeCircle:
			e.surface.FillCircle(p.X, p.Y, p.Size/2, p.Color, alpha)
		case ShapeRect:
			e.path.Reset()
			e.path.appendRoundedRect(newTransform(p.X, p.Y, p.Rot), p.Size, p.Size*0.6, p.Size*0.15)
			e.surface.FillPath(&e.path, p.Color, alpha)
		default:
			e.path.Reset()
			e.path.appendHeart(newTransform(p.X, p.Y, p.Rot), p.Size/8)
			e.surface.FillPath(&e.path, p.Color, alpha)
		}
	}
}

// Running reports whether a frame is scheduled.
func (e *Engine) Running() bool {
	return e.running
}

// Len returns the number of live particles.
func (e *Engine) Len() int {
	return len(e.particles)
}

// Particles exposes the live set for inspection; callers must not keep it.
func (e *Engine) Particles() []Particle {
	return e.particles
}

// Dispose cancels the pending frame and makes later bursts no-ops.
func (e *Engine) Dispose() {
	if e.pending != 0 {
		e.sched.Cancel(e.pending)
		e.pending = 0
	}
	e.particles = nil
	e.running = false
	e.disposed = true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
