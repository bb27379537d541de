package registry

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/rack/channel"
	"github.com/cwbudde/algo-rack/rack/param"
	"github.com/cwbudde/algo-rack/rack/plugin"
)

const (
	kindMono    plugin.Kind = "mono"
	kindStereo  plugin.Kind = "stereo"
	kindHuge    plugin.Kind = "huge"
	kindFailing plugin.Kind = "failing"
	kindBlocker plugin.Kind = "blocker"

	testArena = 8 << 10

	idGain param.ID = 0
	idMute param.ID = 1
)

var gainParams = []param.Descriptor{
	{ID: idGain, Name: "gain", Type: param.Float, Default: 1},
	{ID: idMute, Name: "mute", Type: param.Trigger},
}

type counters struct {
	inits, teardowns atomic.Int32
}

// probe scales its channel(s) by the gain parameter and records lifecycle
// calls. Process after Teardown is flagged.
type probe struct {
	c      *counters
	params *param.Set
	mem    plugin.Memory
	dead   atomic.Bool
	bad    *atomic.Bool
	block  chan struct{}
}

func (p *probe) Init(cfg plugin.Config) error {
	p.c.inits.Add(1)
	p.params = cfg.Params
	p.mem = cfg.Memory
	return nil
}

func (p *probe) Process(mask channel.Mask, pd *plugin.ProcessData) {
	if p.dead.Load() {
		p.bad.Store(true)
	}
	if p.block != nil {
		<-p.block
	}
	g := float64(p.params.Float(idGain, pd.Controls))
	if p.params.Trigger(idMute, pd.Controls) {
		g = 0
	}
	for _, c := range mask.Channels() {
		buf := pd.Channel(c)
		for i := range buf {
			buf[i] *= g
		}
	}
}

func (p *probe) Teardown() {
	p.c.teardowns.Add(1)
	p.dead.Store(true)
}

type fixture struct {
	c       counters
	bad     atomic.Bool
	block   chan struct{}
	catalog *plugin.Catalog
}

func newFixture() *fixture {
	f := &fixture{catalog: plugin.NewCatalog()}
	newProbe := func() plugin.Plugin { return &probe{c: &f.c, bad: &f.bad, block: f.block} }
	fixed := func(n int) func(core.Format) int { return func(core.Format) int { return n } }

	f.catalog.MustRegister(plugin.Info{Kind: kindMono, Footprint: fixed(1000), Params: gainParams, New: newProbe})
	f.catalog.MustRegister(plugin.Info{Kind: kindStereo, Stereo: true, Footprint: fixed(3000), Params: gainParams, New: newProbe})
	f.catalog.MustRegister(plugin.Info{Kind: kindHuge, Footprint: fixed(testArena + 1), New: newProbe})
	f.catalog.MustRegister(plugin.Info{Kind: kindFailing, Footprint: fixed(64), New: func() plugin.Plugin { return failing{} }})
	f.catalog.MustRegister(plugin.Info{Kind: kindBlocker, Footprint: fixed(64), Params: gainParams, New: func() plugin.Plugin {
		return &probe{c: &f.c, bad: &f.bad, block: f.block}
	}})
	return f
}

type failing struct{}

func (failing) Init(plugin.Config) error                  { return errors.New("no calibration data") }
func (failing) Process(channel.Mask, *plugin.ProcessData) {}
func (failing) Teardown()                                 {}

func newTestRegistry(t *testing.T, f *fixture, opts ...Option) *Registry {
	t.Helper()
	opts = append([]Option{WithArenaSize(testArena)}, opts...)
	r, err := New(f.catalog, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func mustSet(t *testing.T, r *Registry, mask channel.Mask, kind plugin.Kind) {
	t.Helper()
	if err := r.SetPlugin(mask, kind); err != nil {
		t.Fatalf("SetPlugin(%s, %s): %v", mask, kind, err)
	}
}

func block(n int, l, r float64) *plugin.ProcessData {
	pd := &plugin.ProcessData{Left: make([]float64, n), Right: make([]float64, n)}
	for i := range n {
		pd.Left[i] = l
		pd.Right[i] = r
	}
	return pd
}

func (p *probe) Report() map[string]float64 {
	return map[string]float64{"teardowns": float64(p.c.teardowns.Load())}
}
