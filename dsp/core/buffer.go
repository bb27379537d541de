package core

// Zero sets all values in buf to 0.
func Zero(buf []float64) {
	for i := range buf {
		buf[i] = 0
	}
}

// Deinterleave splits a two-channel interleaved block into left and right.
// It processes min(len(left), len(right), len(src)/2) frames.
func Deinterleave(left, right []float64, src []float32) int {
	n := len(src) / 2
	if len(left) < n {
		n = len(left)
	}

	if len(right) < n {
		n = len(right)
	}

	for i := 0; i < n; i++ {
		left[i] = float64(src[2*i])
		right[i] = float64(src[2*i+1])
	}

	return n
}

// Interleave is the inverse of Deinterleave.
func Interleave(dst []float32, left, right []float64) int {
	n := len(dst) / 2
	if len(left) < n {
		n = len(left)
	}

	if len(right) < n {
		n = len(right)
	}

	for i := 0; i < n; i++ {
		dst[2*i] = float32(left[i])
		dst[2*i+1] = float32(right[i])
	}

	return n
}

// PeakAbs returns the largest absolute value in buf.
func PeakAbs(buf []float64) float64 {
	peak := 0.0
	for _, v := range buf {
		if v < 0 {
			v = -v
		}

		if v > peak {
			peak = v
		}
	}

	return peak
}
