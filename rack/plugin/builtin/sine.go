package builtin

import (
	"errors"
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/rack/channel"
	"github.com/cwbudde/algo-rack/rack/param"
	"github.com/cwbudde/algo-rack/rack/plugin"
)

const (
	SineFreq param.ID = iota
	SineLevel
)

const sineTableSize = 1024

func sineInfo() plugin.Info {
	return plugin.Info{
		Kind:      KindSine,
		Name:      "Sine oscillator",
		Footprint: func(core.Format) int { return 4 * sineTableSize },
		Params: []param.Descriptor{
			{ID: SineFreq, Name: "freq", Type: param.UFloat, Default: 440},
			{ID: SineLevel, Name: "level", Type: param.Float, Default: 0.5},
		},
		New: func() plugin.Plugin { return &sine{} },
	}
}

// sine replaces its channel with a table-lookup oscillator. The table
// lives in the arena.
type sine struct {
	params     *param.Set
	table      []float32
	phase      float64 // in table positions
	sampleRate float64
}

func (s *sine) Init(cfg plugin.Config) error {
	t := cfg.Memory.Float32s()
	if len(t) < sineTableSize {
		return errors.New("sine: arena region too small")
	}
	s.table = t[:sineTableSize]
	for i := range s.table {
		s.table[i] = float32(math.Sin(2 * math.Pi * float64(i) / sineTableSize))
	}
	s.params = cfg.Params
	s.sampleRate = cfg.Format.SampleRate
	return nil
}

func (s *sine) Process(mask channel.Mask, pd *plugin.ProcessData) {
	freq := float64(s.params.Float(SineFreq, pd.Controls))
	level := float64(s.params.Float(SineLevel, pd.Controls))
	step := freq / s.sampleRate * sineTableSize
	if step >= sineTableSize/2 {
		step = 0
	}

	var phase float64
	for _, c := range mask.Channels() {
		buf := pd.Channel(c)
		phase = s.phase
		for i := range buf {
			j := int(phase)
			frac := phase - float64(j)
			a := float64(s.table[j])
			b := float64(s.table[(j+1)%sineTableSize])
			buf[i] = level * (a + frac*(b-a))
			phase += step
			if phase >= sineTableSize {
				phase -= sineTableSize
			}
		}
	}
	s.phase = phase
}

func (s *sine) Teardown() { s.table = nil }
