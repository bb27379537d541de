package testutil

import (
	"math"
	"math/rand"
)

// DeterministicSine generates a deterministic sine wave.
func DeterministicSine(freqHz, sampleRate, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}
	return out
}

// DeterministicNoise generates white noise with a fixed seed for reproducibility.
func DeterministicNoise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out
}

// Impulse generates a unit impulse at the given position.
func Impulse(length, pos int) []float64 {
	out := make([]float64, length)
	if pos >= 0 && pos < length {
		out[pos] = 1
	}
	return out
}

// DC generates a constant-valued signal.
func DC(value float64, length int) []float64 {
	out := make([]float64, length)
	for i := range out {
		out[i] = value
	}
	return out
}

// Stereo interleaves two channels into an L/R float32 block as delivered by
// the codec. The shorter channel bounds the frame count.
func Stereo(left, right []float64) []float32 {
	n := min(len(left), len(right))
	out := make([]float32, 2*n)
	for i := range n {
		out[2*i] = float32(left[i])
		out[2*i+1] = float32(right[i])
	}
	return out
}

// SplitStereo is the inverse of Stereo.
func SplitStereo(block []float32) (left, right []float64) {
	n := len(block) / 2
	left = make([]float64, n)
	right = make([]float64, n)
	for i := range n {
		left[i] = float64(block[2*i])
		right[i] = float64(block[2*i+1])
	}
	return left, right
}
