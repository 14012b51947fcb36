package confetti

import (
	"image/color"

	colorful "github.com/lucasb-eyer/go-colorful"
)

var paletteHex = []string{
	"#ff4757", "#ff6b81", "#a29bfe", "#fd79a8",
	"#fdcb6e", "#e17055", "#00cec9", "#ffffff",
}

// Palette is the fixed set of particle colours.
var Palette = mustPalette(paletteHex)

func mustPalette(hexes []string) []color.NRGBA {
	out := make([]color.NRGBA, 0, len(hexes))
	for _, h := range hexes {
		c, err := colorful.Hex(h)
		if err != nil {
			panic("confetti: bad palette entry " + h + ": " + err.Error())
		}
		r, g, b := c.RGB255()
		out = append(out, color.NRGBA{R: r, G: g, B: b, A: 0xff})
	}
	return out
}
