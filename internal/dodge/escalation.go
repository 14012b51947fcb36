package dodge

import (
	"math"

	"github.com/iburimskiy/sayyes/internal/config"
)

// Escalation maps an escape count to the accept button's scale factor:
// 1 + K*ln(n+1), capped at Cap.
type Escalation struct {
	K   float64
	Cap float64
}

var DefaultEscalation = Escalation{K: config.ScaleK, Cap: config.ScaleCap}

func (e Escalation) Scale(n int) float64 {
	if n <= 0 {
		return 1
	}
	s := 1 + e.K*math.Log(float64(n)+1)
	if e.Cap >= 1 && s > e.Cap {
		return e.Cap
	}
	return s
}

// Scale applies DefaultEscalation.
func Scale(n int) float64 {
	return DefaultEscalation.Scale(n)
}
