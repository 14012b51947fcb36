package game

import (
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"github.com/hajimehoshi/ebiten/v2/vector"
	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"github.com/iburimskiy/sayyes/internal/config"
	"github.com/iburimskiy/sayyes/internal/prank"
)

const (
	bandHeight = 4
	charWidth  = 7
)

var (
	face = basicfont.Face7x13

	textDark  = color.RGBA{R: 90, G: 20, B: 50, A: 255}
	textLight = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	fieldBg   = color.RGBA{R: 255, G: 255, B: 255, A: 230}
)

func (g *Game) Draw(screen *ebiten.Image) {
	g.drawBackground(screen)
	g.drawHearts(screen)

	switch g.ctrl.Stage() {
	case prank.StageInput:
		g.drawInput(screen)
	case prank.StagePrank:
		g.drawPrank(screen)
	case prank.StageCelebration:
		g.drawCelebration(screen)
	}
	for _, b := range g.buttons() {
		g.drawButton(screen, b)
	}

	screen.DrawImage(g.layer.img, nil)
	g.drawToast(screen)

	hint := "Esc: quit"
	if g.ctrl.Stage() != prank.StageInput {
		hint += " | M: mute"
		if g.ctrl.Owner() && g.ctrl.Link() != "" {
			hint += " | C: copy link"
		}
	}
	ebitenutil.DebugPrintAt(screen, hint, 12, config.WindowHeight-20)
}

// drawBackground paints a slowly shifting pink gradient, blended in Lab.
func (g *Game) drawBackground(screen *ebiten.Image) {
	shift := math.Sin(g.phase) * 20
	top := colorful.Hsv(340+shift, 0.18, 1)
	bottom := colorful.Hsv(350+shift, 0.42, 0.97)
	for y := 0; y < config.WindowHeight; y += bandHeight {
		c := top.BlendLab(bottom, float64(y)/config.WindowHeight).Clamped()
		r, gg, b := c.RGB255()
		vector.DrawFilledRect(screen, 0, float32(y), config.WindowWidth, bandHeight,
			color.RGBA{R: r, G: gg, B: b, A: 255}, false)
	}
}

func (g *Game) drawHearts(screen *ebiten.Image) {
	for _, h := range g.hearts {
		x := h.x + math.Sin(float64(g.frame)*0.02+h.sway)*h.sway
		g.fillHeart(screen, x, h.y, h.size, hsv(h.hue, 0.45, 1, 90))
	}
}

// fillHeart draws a heart whose point sits size below (cx, cy).
func (g *Game) fillHeart(dst *ebiten.Image, cx, cy, size float64, clr color.RGBA) {
	s := float32(size / 2)
	x, y := float32(cx), float32(cy)
	var p vector.Path
	p.MoveTo(x, y+s*0.6)
	p.CubicTo(x-s*1.6, y-s*0.4, x-s*0.6, y-s*1.5, x, y-s*0.6)
	p.CubicTo(x+s*0.6, y-s*1.5, x+s*1.6, y-s*0.4, x, y+s*0.6)
	p.Close()
	g.layer.vs, g.layer.is = fillPath(dst, &p, clr, g.layer.vs, g.layer.is)
}

func (g *Game) drawInput(screen *ebiten.Image) {
	drawCentered(screen, "Ask someone the big question", 150, textDark)
	drawCentered(screen, "We'll make sure they can't say no.", 175, textDark)

	for i, f := range g.fields {
		r := f.rect
		text.Draw(screen, f.label, face, r.x, r.y-8, textDark)
		vector.DrawFilledRect(screen, float32(r.x), float32(r.y), float32(r.w), float32(r.h), fieldBg, false)
		border := color.RGBA{R: 230, G: 160, B: 190, A: 255}
		if i == g.focus {
			border = color.RGBA{R: 255, G: 71, B: 87, A: 255}
		}
		vector.StrokeRect(screen, float32(r.x), float32(r.y), float32(r.w), float32(r.h), 2, border, false)

		cols := (r.w - 20) / charWidth
		s := f.visible(cols - 1)
		clr := textDark
		if s == "" && i != g.focus {
			s = f.placeholder
			clr = color.RGBA{R: 170, G: 130, B: 150, A: 255}
		}
		if i == g.focus && (g.frame/30)%2 == 0 {
			s += "_"
		}
		text.Draw(screen, s, face, r.x+10, r.y+r.h/2+5, clr)
	}
}

func (g *Game) drawPrank(screen *ebiten.Image) {
	p := g.ctrl.Params()
	y := 120
	for _, line := range wrap(p.Prompt(), 60) {
		drawCentered(screen, line, y, textDark)
		y += 18
	}

	ox, oy := float32(config.ArenaMargin), float32(config.ArenaTop)
	aw, ah := float32(config.WindowWidth-2*config.ArenaMargin), float32(config.ArenaHeight)
	vector.StrokeRect(screen, ox, oy, aw, ah, 1, color.RGBA{R: 255, G: 180, B: 200, A: 120}, false)

	in := g.ctrl.Interaction()
	acc := in.Accept()
	if g.glow > 0.01 {
		c := acc.Center()
		r := float32(math.Max(acc.W, acc.H)/2 + 12*g.glow)
		vector.DrawFilledCircle(screen, ox+float32(c.X), oy+float32(c.Y), r,
			hsv(350, 0.6, 1, uint8(120*clamp01(g.glow))), true)
	}
	drawPill(screen, ox+float32(acc.X), oy+float32(acc.Y), float32(acc.W), float32(acc.H),
		color.RGBA{R: 255, G: 71, B: 87, A: 255})
	drawLabel(screen, "YES", ox+float32(acc.X), oy+float32(acc.Y), float32(acc.W), float32(acc.H), textLight)

	dec := in.Displayed()
	drawPill(screen, ox+float32(dec.X), oy+float32(dec.Y), float32(dec.W), float32(dec.H),
		color.RGBA{R: 178, G: 190, B: 195, A: 255})
	drawLabel(screen, "No", ox+float32(dec.X), oy+float32(dec.Y), float32(dec.W), float32(dec.H), textLight)

	if line := escapeLine(g.ctrl.Escapes()); line != "" {
		drawCentered(screen, line, config.ArenaTop+config.ArenaHeight+24, textDark)
	}
	if g.ctrl.Owner() && g.ctrl.Link() != "" {
		drawCentered(screen, "Preview. Send this link:", config.WindowHeight-80, textDark)
		drawCentered(screen, ellipsize(g.ctrl.Link(), 120), config.WindowHeight-62, textDark)
	}
}

func (g *Game) drawCelebration(screen *ebiten.Image) {
	p := g.ctrl.Params()
	y := 200
	for _, line := range wrap(p.Message, 48) {
		op := &ebiten.DrawImageOptions{}
		w := font.MeasureString(face, line).Ceil() * 2
		op.GeoM.Scale(2, 2)
		op.GeoM.Translate(float64((config.WindowWidth-w)/2), float64(y))
		op.ColorScale.ScaleWithColor(color.RGBA{R: 255, G: 71, B: 87, A: 255})
		text.DrawWithOptions(screen, line, face, op)
		y += 32
	}
	g.fillHeart(screen, config.WindowWidth/2, float64(y+40), 48, hsv(352, 0.75, 1, 255))

	n := g.ctrl.Escapes()
	if n > 0 {
		drawCentered(screen, escapeLine(n)+" but you said yes anyway", y+90, textDark)
	}
}

func (g *Game) drawToast(screen *ebiten.Image) {
	if g.toastLeft <= 0 || g.toast == "" {
		return
	}
	a := clamp01(float64(g.toastLeft) / 30)
	w := font.MeasureString(face, g.toast).Ceil() + 32
	x := float32((config.WindowWidth - w) / 2)
	y := float32(40)
	vector.DrawFilledRect(screen, x, y, float32(w), 32, color.RGBA{A: uint8(200 * a)}, false)
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(float64(x)+16, float64(y)+21)
	op.ColorScale.ScaleAlpha(float32(a))
	text.DrawWithOptions(screen, g.toast, face, op)
}

func (g *Game) drawButton(screen *ebiten.Image, b button) {
	var bg color.Color
	switch {
	case g.pressed == b.action && g.hovered == b.action:
		bg = color.RGBA{R: 200, G: 40, B: 70, A: 255}
	case g.hovered == b.action:
		bg = color.RGBA{R: 235, G: 60, B: 90, A: 255}
	default:
		bg = color.RGBA{R: 255, G: 90, B: 120, A: 255}
	}
	if b.action == actionGenerate && !g.ctrl.CanGenerate() {
		bg = color.RGBA{R: 200, G: 170, B: 180, A: 255}
	}
	r := b.rect
	vector.DrawFilledRect(screen, float32(r.x), float32(r.y), float32(r.w), float32(r.h), bg, false)
	vector.StrokeRect(screen, float32(r.x), float32(r.y), float32(r.w), float32(r.h), 2,
		color.RGBA{R: 255, G: 200, B: 215, A: 255}, false)
	drawLabel(screen, b.label, float32(r.x), float32(r.y), float32(r.w), float32(r.h), textLight)
}

// drawPill is a rounded button body.
func drawPill(dst *ebiten.Image, x, y, w, h float32, clr color.Color) {
	r := h / 2
	vector.DrawFilledRect(dst, x+r, y, w-2*r, h, clr, true)
	vector.DrawFilledCircle(dst, x+r, y+r, r, clr, true)
	vector.DrawFilledCircle(dst, x+w-r, y+r, r, clr, true)
}

func drawLabel(dst *ebiten.Image, s string, x, y, w, h float32, clr color.Color) {
	tw := float32(font.MeasureString(face, s).Ceil())
	text.Draw(dst, s, face, int(x+(w-tw)/2), int(y+h/2+5), clr)
}

func drawCentered(dst *ebiten.Image, s string, y int, clr color.Color) {
	w := font.MeasureString(face, s).Ceil()
	text.Draw(dst, s, face, (config.WindowWidth-w)/2, y, clr)
}

func ellipsize(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n-3]) + "..."
}
