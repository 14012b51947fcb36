package sound

import (
	"math"
	"sync"

	"github.com/faiface/beep"
)

// levelTap passes audio through unchanged and tracks how loud the last
// window of it was, so the accept button can glow with the tones.
type levelTap struct {
	beep.Streamer

	mu     sync.Mutex
	window []float64 // squared mono samples, oldest at head once full
	head   int
	filled int
	sum    float64
}

func newLevelTap(src beep.Streamer, window int) *levelTap {
	return &levelTap{Streamer: src, window: make([]float64, max(window, 1))}
}

func (t *levelTap) Stream(samples [][2]float64) (int, bool) {
	n, ok := t.Streamer.Stream(samples)
	if n == 0 {
		return n, ok
	}
	t.mu.Lock()
	for _, s := range samples[:n] {
		mono := (s[0] + s[1]) * 0.5
		sq := mono * mono
		t.sum += sq - t.window[t.head]
		t.window[t.head] = sq
		t.head = (t.head + 1) % len(t.window)
		if t.filled < len(t.window) {
			t.filled++
		}
	}
	// Rounding drift can leave the running sum a hair below zero.
	t.sum = math.Max(t.sum, 0)
	t.mu.Unlock()
	return n, ok
}

// level is the RMS of the samples in the window, compressed into [0, 1].
func (t *levelTap) level() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.filled == 0 {
		return 0
	}
	return math.Min(1, math.Pow(math.Sqrt(t.sum/float64(t.filled)), 0.3))
}
