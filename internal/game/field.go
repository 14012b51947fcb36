package game

import (
	"strings"
	"unicode"
)

// textField is a single-line input box on the setup screen.
type textField struct {
	label       string
	placeholder string
	value       []rune
	max         int
	rect        box
}

func (f *textField) String() string { return string(f.value) }

// Insert appends printable runes up to the field's limit.
func (f *textField) Insert(rs []rune) bool {
	changed := false
	for _, r := range rs {
		if len(f.value) >= f.max {
			break
		}
		if r == '\n' || r == '\r' || !unicode.IsPrint(r) {
			continue
		}
		f.value = append(f.value, r)
		changed = true
	}
	return changed
}

func (f *textField) Backspace() bool {
	if len(f.value) == 0 {
		return false
	}
	f.value = f.value[:len(f.value)-1]
	return true
}

func (f *textField) Set(s string) {
	f.value = f.value[:0]
	f.Insert([]rune(s))
}

// visible is the tail of the value that fits in n characters.
func (f *textField) visible(n int) string {
	if n <= 0 {
		return ""
	}
	if len(f.value) <= n {
		return string(f.value)
	}
	return string(f.value[len(f.value)-n:])
}

// box is a screen-space rectangle in integer pixels.
type box struct {
	x, y, w, h int
}

func (b box) contains(x, y int) bool {
	return x >= b.x && x <= b.x+b.w && y >= b.y && y <= b.y+b.h
}

// wrap breaks s into lines of at most n characters on word boundaries.
func wrap(s string, n int) []string {
	if n <= 0 {
		return nil
	}
	var lines []string
	var cur strings.Builder
	for _, w := range strings.Fields(s) {
		for len([]rune(w)) > n {
			if cur.Len() > 0 {
				lines = append(lines, cur.String())
				cur.Reset()
			}
			rs := []rune(w)
			lines = append(lines, string(rs[:n]))
			w = string(rs[n:])
		}
		switch {
		case cur.Len() == 0:
			cur.WriteString(w)
		case len([]rune(cur.String()))+1+len([]rune(w)) <= n:
			cur.WriteByte(' ')
			cur.WriteString(w)
		default:
			lines = append(lines, cur.String())
			cur.Reset()
			cur.WriteString(w)
		}
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}
