package confetti

import "math"

// Op is a path drawing command.
type Op uint8

const (
	OpMoveTo Op = iota
	OpLineTo
	OpCubicTo
	OpClose
)

// Cmd is one path command. CubicTo uses all three points, MoveTo and LineTo
// only P[0], Close none.
type Cmd struct {
	Op Op
	P  [3][2]float64
}

// Path is a closed outline in surface coordinates.
type Path struct {
	Cmds []Cmd
}

// kappa places cubic control points so a quarter arc approximates a circle.
const kappa = 0.5522847498

// transform maps local shape coordinates onto the surface.
type transform struct {
	x, y, sin, cos float64
}

func newTransform(x, y, rot float64) transform {
	s, c := math.Sincos(rot)
	return transform{x: x, y: y, sin: s, cos: c}
}

func (t transform) apply(lx, ly float64) [2]float64 {
	return [2]float64{t.x + lx*t.cos - ly*t.sin, t.y + lx*t.sin + ly*t.cos}
}

func (p *Path) moveTo(t transform, x, y float64) {
	p.Cmds = append(p.Cmds, Cmd{Op: OpMoveTo, P: [3][2]float64{t.apply(x, y)}})
}

func (p *Path) lineTo(t transform, x, y float64) {
	p.Cmds = append(p.Cmds, Cmd{Op: OpLineTo, P: [3][2]float64{t.apply(x, y)}})
}

func (p *Path) cubicTo(t transform, x1, y1, x2, y2, x3, y3 float64) {
	p.Cmds = append(p.Cmds, Cmd{Op: OpCubicTo, P: [3][2]float64{t.apply(x1, y1), t.apply(x2, y2), t.apply(x3, y3)}})
}

func (p *Path) close() {
	p.Cmds = append(p.Cmds, Cmd{Op: OpClose})
}

// Reset empties the path, keeping its storage.
func (p *Path) Reset() {
	p.Cmds = p.Cmds[:0]
}

// appendRoundedRect outlines a w x h rectangle centred on the origin with
// corner radius r.
func (p *Path) appendRoundedRect(t transform, w, h, r float64) {
	hw, hh := w/2, h/2
	r = math.Min(r, math.Min(hw, hh))
	k := r * kappa

	p.moveTo(t, -hw+r, -hh)
	p.lineTo(t, hw-r, -hh)
	p.cubicTo(t, hw-r+k, -hh, hw, -hh+r-k, hw, -hh+r)
	p.lineTo(t, hw, hh-r)
	p.cubicTo(t, hw, hh-r+k, hw-r+k, hh, hw-r, hh)
	p.lineTo(t, -hw+r, hh)
	p.cubicTo(t, -hw+r-k, hh, -hw, hh-r+k, -hw, hh-r)
	p.lineTo(t, -hw, -hh+r)
	p.cubicTo(t, -hw, -hh+r-k, -hw+r-k, -hh, -hw+r, -hh)
	p.close()
}

// appendHeart outlines a heart from two mirrored cubic curves meeting at the
// bottom tip (0, 3s) and the top notch (0, -2s).
func (p *Path) appendHeart(t transform, s float64) {
	p.moveTo(t, 0, 3*s)
	p.cubicTo(t, -4*s, s, -4*s, -2*s, 0, -2*s)
	p.cubicTo(t, 4*s, -2*s, 4*s, s, 0, 3*s)
	p.close()
}
