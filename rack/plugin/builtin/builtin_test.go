package builtin

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/internal/testutil"
	"github.com/cwbudde/algo-rack/rack/arena"
	"github.com/cwbudde/algo-rack/rack/channel"
	"github.com/cwbudde/algo-rack/rack/param"
	"github.com/cwbudde/algo-rack/rack/plugin"
	"github.com/cwbudde/algo-rack/rack/registry"
)

const sampleRate = 44100.0

func testFormat() core.Format {
	return core.ApplyFormatOptions(core.WithSampleRate(sampleRate))
}

type instance struct {
	p      plugin.Plugin
	params *param.Set
	mem    plugin.Memory
}

func newInstance(t *testing.T, kind plugin.Kind) instance {
	t.Helper()

	info, ok := Catalog().Lookup(kind)
	if !ok {
		t.Fatalf("kind %s not registered", kind)
	}
	f := testFormat()
	a, err := arena.New(arena.DefaultSize)
	if err != nil {
		t.Fatalf("arena.New: %v", err)
	}
	mask := channel.MaskLeft
	if info.Stereo {
		mask = channel.MaskBoth
	}
	h, err := a.Reserve(mask, info.Size(f))
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	params := param.MustNewSet(info.Params)
	mem := plugin.NewMemory(a, h)
	p := info.New()
	if err := p.Init(plugin.Config{Format: f, Memory: mem, Params: params}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(p.Teardown)
	return instance{p: p, params: params, mem: mem}
}

func mono(samples []float64) *plugin.ProcessData {
	return &plugin.ProcessData{Left: samples, Right: make([]float64, len(samples))}
}

func TestCatalog(t *testing.T) {
	t.Parallel()

	c := Catalog()
	want := []plugin.Kind{
		KindAnalyzer, KindDelay, KindGain, KindLowpass,
		KindPassthrough, KindStereoPassthrough, KindSine,
	}
	got := c.Kinds()
	if len(got) != len(want) {
		t.Fatalf("kinds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("kinds = %v, want %v", got, want)
		}
	}

	if err := Register(c); err == nil {
		t.Fatal("registering built-ins twice should fail")
	}

	for _, info := range Infos() {
		if info.Size(testFormat()) > arena.DefaultSize/2 {
			t.Errorf("%s: footprint %d leaves no room for a second instance", info.Kind, info.Size(testFormat()))
		}
	}
}

func TestPassthrough(t *testing.T) {
	t.Parallel()

	in := testutil.DeterministicNoise(7, 0.5, 32)
	pd := mono(append([]float64(nil), in...))
	newInstance(t, KindPassthrough).p.Process(channel.MaskLeft, pd)
	testutil.RequireSliceNearlyEqual(t, pd.Left, in, 0)
}

func TestGain(t *testing.T) {
	t.Parallel()

	g := newInstance(t, KindGain)
	if err := g.params.SetFloat(GainLevel, 0.5); err != nil {
		t.Fatal(err)
	}

	pd := mono([]float64{1, -2, 4})
	g.p.Process(channel.MaskLeft, pd)
	testutil.RequireSliceNearlyEqual(t, pd.Left, []float64{0.5, -1, 2}, 0)

	if err := g.params.SetTrigger(GainMute, true); err != nil {
		t.Fatal(err)
	}
	g.p.Process(channel.MaskLeft, pd)
	testutil.RequireSliceNearlyEqual(t, pd.Left, []float64{0, 0, 0}, 0)
}

func TestGainFollowsCV(t *testing.T) {
	t.Parallel()

	g := newInstance(t, KindGain)
	if err := g.params.Map(GainLevel, 1, 2, 1); err != nil {
		t.Fatal(err)
	}
	pd := mono([]float64{1, 1})
	pd.Controls = param.Inputs{CV: []float32{0, 0.25}, Trig: []uint8{0}}
	g.p.Process(channel.MaskLeft, pd)
	testutil.RequireSliceNearlyEqual(t, pd.Left, []float64{0.25, 0.25}, 0)
}

func TestSineIsContinuousAcrossBlocks(t *testing.T) {
	t.Parallel()

	whole := newInstance(t, KindSine)
	split := newInstance(t, KindSine)

	long := mono(make([]float64, 128))
	whole.p.Process(channel.MaskLeft, long)

	var joined []float64
	for range 4 {
		pd := mono(make([]float64, 32))
		split.p.Process(channel.MaskLeft, pd)
		joined = append(joined, pd.Left...)
	}

	testutil.RequireSliceNearlyEqual(t, joined, long.Left, 1e-12)
	if long.Left[0] != 0 {
		t.Fatalf("first sample = %v, want 0", long.Left[0])
	}
	if peak := core.PeakAbs(long.Left); peak > 0.5+1e-6 || peak < 0.45 {
		t.Fatalf("peak = %v, want about 0.5", peak)
	}
}

func TestSineAboveNyquistIsSilent(t *testing.T) {
	t.Parallel()

	s := newInstance(t, KindSine)
	if err := s.params.SetUFloat(SineFreq, 30000); err != nil {
		t.Fatal(err)
	}
	pd := mono(make([]float64, 32))
	s.p.Process(channel.MaskLeft, pd)
	testutil.RequireSliceNearlyEqual(t, pd.Left, make([]float64, 32), 0)
}

func TestLowpass(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		freq    float64
		maxGain float64
		minGain float64
	}{
		{"passband", 100, 1.05, 0.95},
		{"stopband", 10000, 0.05, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			lp := newInstance(t, KindLowpass)
			in := testutil.DeterministicSine(tt.freq, sampleRate, 1, 8192)
			pd := mono(append([]float64(nil), in...))
			lp.p.Process(channel.MaskLeft, pd)

			// Skip the transient.
			gain := core.PeakAbs(pd.Left[4096:])
			if gain > tt.maxGain || gain < tt.minGain {
				t.Fatalf("gain at %v Hz = %v, want [%v, %v]", tt.freq, gain, tt.minGain, tt.maxGain)
			}
		})
	}
}

func TestLowpassKeepsResponseOnInvalidCutoff(t *testing.T) {
	t.Parallel()

	lp := newInstance(t, KindLowpass)
	pd := mono(testutil.DC(1, 4096))
	lp.p.Process(channel.MaskLeft, pd)

	if err := lp.params.SetUFloat(LowpassCutoff, 40000); err != nil {
		t.Fatal(err)
	}
	pd = mono(testutil.DC(1, 64))
	lp.p.Process(channel.MaskLeft, pd)
	if math.Abs(pd.Left[63]-1) > 1e-3 {
		t.Fatalf("DC output = %v after invalid cutoff", pd.Left[63])
	}
}

func TestAnalyzerFindsDominantFrequency(t *testing.T) {
	t.Parallel()

	a := newInstance(t, KindAnalyzer)
	an := a.p.(*Analyzer)
	if an.Dominant() != 0 {
		t.Fatalf("dominant before analysis = %v", an.Dominant())
	}

	// Centered on bin 47 so the level reads without scalloping loss.
	freq := 47 * sampleRate / analyzerSize
	sig := testutil.DeterministicSine(freq, sampleRate, 0.8, 4*analyzerSize)
	for off := 0; off < len(sig); off += 32 {
		l := append([]float64(nil), sig[off:off+32]...)
		r := append([]float64(nil), sig[off:off+32]...)
		pd := &plugin.ProcessData{Left: l, Right: r}
		a.p.Process(channel.MaskBoth, pd)
		testutil.RequireSliceNearlyEqual(t, pd.Left, sig[off:off+32], 0)
	}

	if got := an.Dominant(); math.Abs(got-freq) > 1 {
		t.Fatalf("dominant = %v Hz, want %v", got, freq)
	}

	rep := an.Report()
	if rep["analyses"] != 4 {
		t.Fatalf("analyses = %v, want 4", rep["analyses"])
	}
	if lvl := rep["level"]; math.Abs(lvl-0.8) > 0.02 {
		t.Fatalf("level = %v, want about 0.8", lvl)
	}
}

func TestAnalyzerWorksInArena(t *testing.T) {
	t.Parallel()

	a := newInstance(t, KindAnalyzer)
	work := a.mem.Sub(analyzerRingBytes, analyzerWorkBytes).Float64s()
	for _, v := range work {
		if v != 0 {
			t.Fatal("transform buffer not zero before the first analysis")
		}
	}

	sig := testutil.DeterministicSine(1000, sampleRate, 0.5, analyzerSize)
	for off := 0; off < len(sig); off += 32 {
		pd := &plugin.ProcessData{
			Left:  append([]float64(nil), sig[off:off+32]...),
			Right: append([]float64(nil), sig[off:off+32]...),
		}
		a.p.Process(channel.MaskBoth, pd)
	}
	if core.PeakAbs(work) == 0 {
		t.Fatal("analysis did not use the arena transform buffer")
	}

	small := &Analyzer{}
	mem := a.mem.Sub(0, analyzerRingBytes)
	if err := small.Init(plugin.Config{Format: testFormat(), Memory: mem, Params: a.params}); err == nil {
		t.Fatal("Init accepted a region without room for the transform buffer")
	}
}

func TestDelayImpulse(t *testing.T) {
	t.Parallel()

	d := newInstance(t, KindDelay)
	if err := d.params.SetUint(DelayTime, 10); err != nil {
		t.Fatal(err)
	}
	if err := d.params.SetFloat(DelayFeedback, 0.5); err != nil {
		t.Fatal(err)
	}
	if err := d.params.SetFloat(DelayMix, 1); err != nil {
		t.Fatal(err)
	}

	pd := mono(testutil.Impulse(32, 0))
	d.p.Process(channel.MaskLeft, pd)

	want := make([]float64, 32)
	want[10] = 1
	want[20] = 0.5
	want[30] = 0.25
	testutil.RequireSliceNearlyEqual(t, pd.Left, want, 1e-7)
}

func TestDelayExhaustsArena(t *testing.T) {
	t.Parallel()

	footprint := 4 * delaySamples(testFormat())
	r, err := registry.New(Catalog(),
		registry.WithFormat(testFormat()),
		registry.WithArenaSize(footprint+footprint/2))
	if err != nil {
		t.Fatal(err)
	}

	if err := r.SetPlugin(channel.MaskLeft, KindDelay); err != nil {
		t.Fatal(err)
	}
	if err := r.SetPlugin(channel.MaskRight, KindDelay); !errors.Is(err, arena.ErrOutOfArena) {
		t.Fatalf("second delay: got %v, want ErrOutOfArena", err)
	}
	if err := r.SetPlugin(channel.MaskRight, KindSine); err != nil {
		t.Fatalf("sine should still fit: %v", err)
	}
}
