package builtin

import (
	"github.com/cwbudde/algo-rack/dsp/filter/biquad"
	"github.com/cwbudde/algo-rack/dsp/filter/design"
	"github.com/cwbudde/algo-rack/rack/channel"
	"github.com/cwbudde/algo-rack/rack/param"
	"github.com/cwbudde/algo-rack/rack/plugin"
)

const (
	LowpassCutoff param.ID = iota
	LowpassQ
)

func lowpassInfo() plugin.Info {
	return plugin.Info{
		Kind: KindLowpass,
		Name: "Low-pass filter",
		Params: []param.Descriptor{
			{ID: LowpassCutoff, Name: "cutoff", Type: param.UFloat, Default: 1000},
			{ID: LowpassQ, Name: "q", Type: param.UFloat, Default: 0.7071},
		},
		New: func() plugin.Plugin { return &lowpass{} },
	}
}

// lowpass is a resonant biquad low-pass. Coefficients are redesigned when
// cutoff or q change; invalid settings keep the previous response.
type lowpass struct {
	params     *param.Set
	section    biquad.Section
	sampleRate float64
	cutoff, q  float32
}

func (l *lowpass) Init(cfg plugin.Config) error {
	l.params = cfg.Params
	l.sampleRate = cfg.Format.SampleRate
	return nil
}

func (l *lowpass) Process(mask channel.Mask, pd *plugin.ProcessData) {
	cutoff := l.params.Float(LowpassCutoff, pd.Controls)
	q := l.params.Float(LowpassQ, pd.Controls)
	if cutoff != l.cutoff || q != l.q {
		l.cutoff, l.q = cutoff, q
		if c := design.Lowpass(float64(cutoff), float64(q), l.sampleRate); c != (biquad.Coefficients{}) {
			l.section.Coefficients = c
		}
	}
	for _, c := range mask.Channels() {
		l.section.ProcessBlock(pd.Channel(c))
	}
}

func (l *lowpass) Teardown() {}
