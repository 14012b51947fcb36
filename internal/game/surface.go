package game

import (
	"image"
	"image/color"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/iburimskiy/sayyes/internal/confetti"
)

var (
	whiteOnce sync.Once
	whiteSub  *ebiten.Image
)

// whiteSubImage is the 1x1 source texture for solid triangle fills.
func whiteSubImage() *ebiten.Image {
	whiteOnce.Do(func() {
		img := ebiten.NewImage(3, 3)
		img.Fill(color.White)
		whiteSub = img.SubImage(image.Rect(1, 1, 2, 2)).(*ebiten.Image)
	})
	return whiteSub
}

// fillPath fills p on dst with a premultiplied colour, reusing the vertex
// buffers it is given.
func fillPath(dst *ebiten.Image, p *vector.Path, clr color.RGBA, vs []ebiten.Vertex, is []uint16) ([]ebiten.Vertex, []uint16) {
	vs, is = p.AppendVerticesAndIndicesForFilling(vs[:0], is[:0])
	r := float32(clr.R) / 0xff
	g := float32(clr.G) / 0xff
	b := float32(clr.B) / 0xff
	a := float32(clr.A) / 0xff
	for i := range vs {
		vs[i].SrcX = 1
		vs[i].SrcY = 1
		vs[i].ColorR = r
		vs[i].ColorG = g
		vs[i].ColorB = b
		vs[i].ColorA = a
	}
	dst.DrawTriangles(vs, is, whiteSubImage(), &ebiten.DrawTrianglesOptions{
		AntiAlias:      true,
		ColorScaleMode: ebiten.ColorScaleModePremultipliedAlpha,
	})
	return vs, is
}

// layerSurface rasterises confetti into an offscreen image that Draw
// composites over the scene.
type layerSurface struct {
	img  *ebiten.Image
	path vector.Path
	vs   []ebiten.Vertex
	is   []uint16
}

func newLayerSurface(w, h int) *layerSurface {
	return &layerSurface{img: ebiten.NewImage(w, h)}
}

func (s *layerSurface) Clear() {
	s.img.Clear()
}

func (s *layerSurface) FillCircle(cx, cy, r float64, c color.NRGBA, alpha float64) {
	vector.DrawFilledCircle(s.img, float32(cx), float32(cy), float32(r), withAlpha(c, alpha), true)
}

func (s *layerSurface) FillPath(p *confetti.Path, c color.NRGBA, alpha float64) {
	s.path = vector.Path{}
	for _, cmd := range p.Cmds {
		switch cmd.Op {
		case confetti.OpMoveTo:
			s.path.MoveTo(float32(cmd.P[0][0]), float32(cmd.P[0][1]))
		case confetti.OpLineTo:
			s.path.LineTo(float32(cmd.P[0][0]), float32(cmd.P[0][1]))
		case confetti.OpCubicTo:
			s.path.CubicTo(
				float32(cmd.P[0][0]), float32(cmd.P[0][1]),
				float32(cmd.P[1][0]), float32(cmd.P[1][1]),
				float32(cmd.P[2][0]), float32(cmd.P[2][1]))
		case confetti.OpClose:
			s.path.Close()
		}
	}

	s.vs, s.is = fillPath(s.img, &s.path, withAlpha(c, alpha), s.vs, s.is)
}

// withAlpha scales an opaque palette colour into premultiplied RGBA.
func withAlpha(c color.NRGBA, alpha float64) color.RGBA {
	a := clamp01(alpha) * float64(c.A) / 0xff
	return color.RGBA{
		R: uint8(float64(c.R) * a),
		G: uint8(float64(c.G) * a),
		B: uint8(float64(c.B) * a),
		A: uint8(0xff * a),
	}
}
