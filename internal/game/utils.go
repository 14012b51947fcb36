package game

import (
	"fmt"
	"image/color"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// hsv converts HSV (hue: degrees, saturation: 0-1, value: 0-1) to a
// premultiplied colour with the given alpha.
func hsv(h, s, v float64, a uint8) color.RGBA {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	r, g, b := colorful.Hsv(h, s, v).Clamped().RGB255()
	k := uint32(a)
	return color.RGBA{
		R: uint8(uint32(r) * k / 0xff),
		G: uint8(uint32(g) * k / 0xff),
		B: uint8(uint32(b) * k / 0xff),
		A: a,
	}
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

// escapeLine formats the escape counter, "" before the first escape.
func escapeLine(n int) string {
	switch {
	case n <= 0:
		return ""
	case n == 1:
		return "No escaped 1 time..."
	default:
		return fmt.Sprintf("No escaped %d times...", n)
	}
}
