package builtin

import (
	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-rack/rack/channel"
	"github.com/cwbudde/algo-rack/rack/param"
	"github.com/cwbudde/algo-rack/rack/plugin"
)

const (
	GainLevel param.ID = iota
	GainMute
)

func gainInfo() plugin.Info {
	return plugin.Info{
		Kind: KindGain,
		Name: "Gain",
		Params: []param.Descriptor{
			{ID: GainLevel, Name: "gain", Type: param.Float, Default: 1},
			{ID: GainMute, Name: "mute", Type: param.Trigger},
		},
		New: func() plugin.Plugin { return &gain{} },
	}
}

// gain scales its channel by the gain parameter; the mute trigger
// silences it.
type gain struct {
	params *param.Set
}

func (g *gain) Init(cfg plugin.Config) error {
	g.params = cfg.Params
	return nil
}

func (g *gain) Process(mask channel.Mask, pd *plugin.ProcessData) {
	v := float64(g.params.Float(GainLevel, pd.Controls))
	if g.params.Trigger(GainMute, pd.Controls) {
		v = 0
	}
	for _, c := range mask.Channels() {
		buf := pd.Channel(c)
		vecmath.ScaleBlock(buf, buf, v)
	}
}

func (g *gain) Teardown() {}
