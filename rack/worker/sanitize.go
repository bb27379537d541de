package worker

import (
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
)

func sanitize(buf []float32, mode Sanitize) {
	switch mode {
	case SanitizeClamp:
		for i, v := range buf {
			buf[i] = core.Clamp32(v, -1, 1)
		}
	case SanitizeZero:
		for i, v := range buf {
			// NaN fails both comparisons.
			if !(v >= -1 && v <= 1) {
				buf[i] = 0
			}
		}
	default:
		for i, v := range buf {
			if v != v || math.IsInf(float64(v), 0) {
				buf[i] = 0
			}
		}
	}
}
