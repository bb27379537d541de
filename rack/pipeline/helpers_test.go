package pipeline

import (
	"testing"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/rack/channel"
	"github.com/cwbudde/algo-rack/rack/param"
	"github.com/cwbudde/algo-rack/rack/plugin"
	"github.com/cwbudde/algo-rack/rack/registry"
)

const blockSize = 32

func testFormat() core.Format {
	return core.ApplyFormatOptions(core.WithBlockSize(blockSize))
}

func newPipeline(t *testing.T, d Dispatcher, params *Params, controls ControlSource, opts Options) *Pipeline {
	t.Helper()
	p, err := New(testFormat(), d, params, controls, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p.Startup()
	return p
}

// constBlock returns an interleaved block with constant left and right
// values.
func constBlock(l, r float32) []float32 {
	b := make([]float32, 2*blockSize)
	for i := range blockSize {
		b[2*i] = l
		b[2*i+1] = r
	}
	return b
}

// squareBlock alternates +a and -a on both channels so every block has
// peak a and no DC.
func squareBlock(a float32) []float32 {
	b := make([]float32, 2*blockSize)
	for i := range blockSize {
		v := a
		if i%2 == 1 {
			v = -a
		}
		b[2*i] = v
		b[2*i+1] = v
	}
	return b
}

type passthrough struct{}

func (passthrough) Init(plugin.Config) error                  { return nil }
func (passthrough) Process(channel.Mask, *plugin.ProcessData) {}
func (passthrough) Teardown()                                 {}

type gain struct{ params *param.Set }

func (g *gain) Init(cfg plugin.Config) error { g.params = cfg.Params; return nil }
func (g *gain) Process(mask channel.Mask, pd *plugin.ProcessData) {
	v := float64(g.params.Float(0, pd.Controls))
	for _, c := range mask.Channels() {
		buf := pd.Channel(c)
		for i := range buf {
			buf[i] *= v
		}
	}
}
func (g *gain) Teardown() {}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	cat := plugin.NewCatalog()
	cat.MustRegister(plugin.Info{Kind: "thru", Stereo: true, New: func() plugin.Plugin { return passthrough{} }})
	cat.MustRegister(plugin.Info{
		Kind:   "gain",
		Params: []param.Descriptor{{ID: 0, Name: "gain", Type: param.Float, Default: 1}},
		New:    func() plugin.Plugin { return &gain{} },
	})
	r, err := registry.New(cat, registry.WithFormat(testFormat()), registry.WithInputs(2, 1))
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}
	return r
}

// recorder is a Dispatcher that records its calls.
type recorder struct {
	calls  int
	daisy  bool
	stereo bool
}

func (r *recorder) Dispatch(pd *plugin.ProcessData, daisy bool) (channel.Mask, bool) {
	r.calls++
	r.daisy = daisy
	if r.stereo {
		return channel.MaskBoth, true
	}
	return channel.MaskNone, false
}
