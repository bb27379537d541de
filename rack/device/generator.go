package device

import (
	"math"
)

// Generator produces input blocks for the simulated device. frame is the
// index of the first frame of buf since Init.
type Generator interface {
	Generate(buf []float32, frame uint64)
}

// GeneratorFunc adapts a function into a Generator.
type GeneratorFunc func(buf []float32, frame uint64)

func (f GeneratorFunc) Generate(buf []float32, frame uint64) { f(buf, frame) }

// Silence produces zeros.
var Silence = GeneratorFunc(func(buf []float32, _ uint64) {
	clear(buf)
})

// Sine produces the same sine on both channels.
func Sine(freqHz, sampleRate float64, amplitude float32) Generator {
	step := 2 * math.Pi * freqHz / sampleRate
	return GeneratorFunc(func(buf []float32, frame uint64) {
		for i := 0; i < len(buf)/2; i++ {
			v := amplitude * float32(math.Sin(step*float64(frame+uint64(i))))
			buf[2*i] = v
			buf[2*i+1] = v
		}
	})
}

// Constant produces fixed left and right values.
func Constant(left, right float32) Generator {
	return GeneratorFunc(func(buf []float32, _ uint64) {
		for i := 0; i < len(buf)/2; i++ {
			buf[2*i] = left
			buf[2*i+1] = right
		}
	})
}

// Loop repeats an interleaved sample sequence.
func Loop(samples []float32) Generator {
	frames := uint64(len(samples) / 2)
	return GeneratorFunc(func(buf []float32, frame uint64) {
		if frames == 0 {
			clear(buf)
			return
		}
		for i := 0; i < len(buf)/2; i++ {
			j := (frame + uint64(i)) % frames
			buf[2*i] = samples[2*j]
			buf[2*i+1] = samples[2*j+1]
		}
	})
}
