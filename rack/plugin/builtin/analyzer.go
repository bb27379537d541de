package builtin

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	algofft "github.com/MeKo-Christian/algo-fft"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/rack/channel"
	"github.com/cwbudde/algo-rack/rack/param"
	"github.com/cwbudde/algo-rack/rack/plugin"
)

const (
	AnalyzerMinFreq param.ID = iota
)

const analyzerSize = 2048

// The region holds the sample ring followed by the transform buffer. Only
// the FFT plan's twiddle tables live on the heap.
const (
	analyzerRingBytes = 8 * analyzerSize
	analyzerWorkBytes = 16 * analyzerSize
)

func analyzerInfo() plugin.Info {
	return plugin.Info{
		Kind:      KindAnalyzer,
		Name:      "Spectrum analyzer",
		Stereo:    true,
		Footprint: func(core.Format) int { return analyzerRingBytes + analyzerWorkBytes },
		Params: []param.Descriptor{
			{ID: AnalyzerMinFreq, Name: "min_freq", Type: param.UFloat, Default: 20},
		},
		New: func() plugin.Plugin { return &Analyzer{} },
	}
}

// Analyzer passes audio through unchanged and tracks the dominant
// frequency of the mid signal. Each analysis runs a Hann-windowed FFT
// over the last analyzerSize samples, collected in the arena.
type Analyzer struct {
	params     *param.Set
	sampleRate float64

	ring []float64
	pos  int
	work []complex128
	plan *algofft.Plan[complex128]

	dominant atomic.Uint64
	level    atomic.Uint64
	frames   atomic.Uint64
}

func (a *Analyzer) Init(cfg plugin.Config) error {
	if cfg.Memory.Size() < analyzerRingBytes+analyzerWorkBytes {
		return errors.New("analyzer: arena region too small")
	}
	plan, err := algofft.NewPlan64(analyzerSize)
	if err != nil {
		return fmt.Errorf("analyzer: %w", err)
	}

	a.params = cfg.Params
	a.sampleRate = cfg.Format.SampleRate
	a.ring = cfg.Memory.Sub(0, analyzerRingBytes).Float64s()
	a.work = cfg.Memory.Sub(analyzerRingBytes, analyzerWorkBytes).Complex128s()
	a.plan = plan
	return nil
}

func (a *Analyzer) Process(_ channel.Mask, pd *plugin.ProcessData) {
	n := min(len(pd.Left), len(pd.Right))
	for i := range n {
		a.ring[a.pos] = 0.5 * (pd.Left[i] + pd.Right[i])
		a.pos++
		if a.pos == analyzerSize {
			a.pos = 0
			a.analyze(float64(a.params.Float(AnalyzerMinFreq, pd.Controls)))
		}
	}
}

func (a *Analyzer) analyze(minFreq float64) {
	// The ring starts at pos == 0 here, so it is already in time order.
	for i, v := range a.ring {
		w := 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/analyzerSize)
		a.work[i] = complex(v*w, 0)
	}
	if err := a.plan.InPlace(a.work); err != nil {
		return
	}

	binHz := a.sampleRate / analyzerSize
	lo := max(1, int(math.Ceil(minFreq/binHz)))
	best, bestPow := 0, 0.0
	for k := lo; k < analyzerSize/2; k++ {
		re, im := real(a.work[k]), imag(a.work[k])
		if p := re*re + im*im; p > bestPow {
			best, bestPow = k, p
		}
	}

	freq := 0.0
	if best > 0 {
		freq = float64(best) * binHz
		// Parabolic interpolation on log power.
		if best+1 < analyzerSize/2 {
			l, c, r := a.power(best-1), a.power(best), a.power(best+1)
			if d := l - 2*c + r; d < 0 {
				freq += 0.5 * (l - r) / d * binHz
			}
		}
	}

	// Amplitude of a windowed sinusoid: 2|X|/sum(w) with sum(w) = N/2.
	amp := 4 * math.Sqrt(bestPow) / analyzerSize

	a.dominant.Store(math.Float64bits(freq))
	a.level.Store(math.Float64bits(amp))
	a.frames.Add(1)
}

func (a *Analyzer) power(k int) float64 {
	re, im := real(a.work[k]), imag(a.work[k])
	return math.Log(re*re + im*im + 1e-30)
}

func (a *Analyzer) Teardown() { a.ring, a.work = nil, nil }

// Dominant returns the frequency in Hz of the strongest spectral peak of
// the last analysis, or 0 before the first one.
func (a *Analyzer) Dominant() float64 {
	return math.Float64frombits(a.dominant.Load())
}

// Report implements plugin.Reporter.
func (a *Analyzer) Report() map[string]float64 {
	return map[string]float64{
		"dominant_hz": a.Dominant(),
		"level":       math.Float64frombits(a.level.Load()),
		"analyses":    float64(a.frames.Load()),
	}
}
