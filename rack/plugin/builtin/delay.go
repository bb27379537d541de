package builtin

import (
	"errors"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/rack/channel"
	"github.com/cwbudde/algo-rack/rack/param"
	"github.com/cwbudde/algo-rack/rack/plugin"
)

const (
	DelayTime param.ID = iota
	DelayFeedback
	DelayMix
)

// MaxDelaySeconds bounds the delay line length.
const MaxDelaySeconds = 0.25

func delaySamples(f core.Format) int {
	return int(f.SampleRate*MaxDelaySeconds) + 1
}

func delayInfo() plugin.Info {
	return plugin.Info{
		Kind:      KindDelay,
		Name:      "Delay",
		Footprint: func(f core.Format) int { return 4 * delaySamples(f) },
		Params: []param.Descriptor{
			{ID: DelayTime, Name: "time", Type: param.Uint, Default: 4410},
			{ID: DelayFeedback, Name: "feedback", Type: param.Float, Default: 0.3},
			{ID: DelayMix, Name: "mix", Type: param.Float, Default: 0.5},
		},
		New: func() plugin.Plugin { return &delay{} },
	}
}

// delay is a feedback delay line stored in the arena. time is in samples,
// clamped to the line length; feedback is clamped to [-0.99, 0.99].
type delay struct {
	params *param.Set
	line   []float32
	write  int
}

func (d *delay) Init(cfg plugin.Config) error {
	n := delaySamples(cfg.Format)
	line := cfg.Memory.Float32s()
	if len(line) < n {
		return errors.New("delay: arena region too small")
	}
	d.line = line[:n]
	d.params = cfg.Params
	return nil
}

func (d *delay) Process(mask channel.Mask, pd *plugin.ProcessData) {
	n := len(d.line)
	t := int(d.params.Uint(DelayTime, pd.Controls))
	t = min(max(t, 1), n-1)
	fb := core.Clamp(float64(d.params.Float(DelayFeedback, pd.Controls)), -0.99, 0.99)
	mix := core.Clamp(float64(d.params.Float(DelayMix, pd.Controls)), 0, 1)

	for _, c := range mask.Channels() {
		buf := pd.Channel(c)
		for i, x := range buf {
			r := d.write - t
			if r < 0 {
				r += n
			}
			y := float64(d.line[r])
			d.line[d.write] = float32(x + fb*y)
			buf[i] = (1-mix)*x + mix*y
			d.write++
			if d.write == n {
				d.write = 0
			}
		}
	}
}

func (d *delay) Teardown() { d.line = nil }
