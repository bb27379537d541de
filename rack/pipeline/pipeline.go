package pipeline

import (
	"errors"
	"fmt"
	"math"

	vecmath "github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/dsp/filter/biquad"
	"github.com/cwbudde/algo-rack/dsp/filter/design"
	"github.com/cwbudde/algo-rack/rack/channel"
	"github.com/cwbudde/algo-rack/rack/plugin"
)

// Dispatcher runs the active plugins on one block. It reports the
// channels that were processed and whether a stereo plugin handled them.
type Dispatcher interface {
	Dispatch(pd *plugin.ProcessData, daisy bool) (channel.Mask, bool)
}

// Metrics summarizes one processed block.
type Metrics struct {
	// InputLevel and OutputLevel are on the 0..255 LED scale,
	// 255 + 3.2*dBV(peak). InputLevel is zero while the gate is closed.
	InputLevel  float32
	OutputLevel float32
	// InputPeak and OutputPeak are the smoothed linear peaks.
	InputPeak  float32
	OutputPeak float32
	GateOpen   bool
	// Warning is set when the output exceeded full scale before soft clip
	// or the smoothed output peak exceeded the warn threshold.
	Warning bool
	// Overrun is set by the worker when the block missed its deadline.
	Overrun bool
}

// Pipeline is the per-block processing chain. It is owned by the audio
// goroutine; only Params, the Dispatcher and the ControlSource are shared.
type Pipeline struct {
	format   core.Format
	opts     Options
	params   *Params
	disp     Dispatcher
	controls ControlSource

	dcL, dcR *biquad.Section

	left, right, tmp []float64
	rampUp, rampDown []float64
	pd               plugin.ProcessData

	peakIn, peakL, peakR, peakOut float64
	gateOpen                      bool
}

// New creates a pipeline for format f. A nil dispatcher passes every block
// through; a nil params uses zero settings; a nil controls leaves all CV
// and trigger inputs at zero.
func New(f core.Format, d Dispatcher, params *Params, controls ControlSource, opts Options) (*Pipeline, error) {
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	if params == nil {
		params = &Params{}
	}

	coeffs := design.DCBlocker(opts.DCCutoff, f.SampleRate)
	if coeffs == (biquad.Coefficients{}) {
		return nil, errors.New("pipeline: DC cutoff outside (0, Nyquist)")
	}

	n := f.BlockSize
	p := &Pipeline{
		format:   f,
		opts:     opts,
		params:   params,
		disp:     d,
		controls: controls,
		dcL:      biquad.NewSection(coeffs),
		dcR:      biquad.NewSection(coeffs),
		left:     make([]float64, n),
		right:    make([]float64, n),
		tmp:      make([]float64, n),
		rampUp:   make([]float64, n),
		rampDown: make([]float64, n),
	}
	p.pd.Controls.CV = make([]float32, opts.CVInputs)
	p.pd.Controls.Trig = make([]uint8, opts.TriggerInputs)

	// Squared linear ramp in (0,1), reversed for closing.
	for i := range n {
		v := float64(i+1) / float64(n+1)
		p.rampUp[i] = v * v
		p.rampDown[n-1-i] = v * v
	}
	p.reset()

	return p, nil
}

// Format returns the stream format.
func (p *Pipeline) Format() core.Format { return p.format }

// Params returns the shared processing settings.
func (p *Pipeline) Params() *Params { return p.params }

// GateOpen reports the current gate state.
func (p *Pipeline) GateOpen() bool { return p.gateOpen }

func (p *Pipeline) reset() {
	p.dcL.Reset()
	p.dcR.Reset()
	p.peakIn, p.peakL, p.peakR, p.peakOut = 0, 0, 0, 0
	p.gateOpen = true
}

// Startup resets filter, meter and gate state before the worker starts.
func (p *Pipeline) Startup() {
	p.reset()
	p.opts.Logger.Info("audio pipeline started",
		"sample_rate", p.format.SampleRate, "block", p.format.BlockSize, "dc_cutoff", p.opts.DCCutoff)
}

// Cleanup runs once after the worker stopped.
func (p *Pipeline) Cleanup() {
	p.opts.Logger.Info("audio pipeline stopped")
}

// Consume processes one interleaved stereo block in place. A block shorter
// than the configured size is processed up to its length.
func (p *Pipeline) Consume(block []float32) Metrics {
	n := core.Deinterleave(p.left, p.right, block)
	l, r := p.left[:n], p.right[:n]
	var m Metrics

	if p.controls != nil {
		p.controls.Update(p.pd.Controls.CV, p.pd.Controls.Trig)
	}

	// 1. DC removal.
	if !p.opts.DisableDCFilter {
		p.dcL.ProcessBlock(l)
		p.dcR.ProcessBlock(r)
	}

	// 2. Input metering.
	maxL, maxR := core.PeakAbs(l), core.PeakAbs(r)
	a := p.opts.InputDecay
	p.peakIn = a*p.peakIn + (1-a)*math.Max(maxL, maxR)
	p.peakL = a*p.peakL + (1-a)*maxL
	p.peakR = a*p.peakR + (1-a)*maxR

	// 3. Noise gate.
	p.gate(l, r)
	m.GateOpen = p.gateOpen
	m.InputPeak = float32(p.peakIn)
	if p.gateOpen {
		m.InputLevel = ledLevel(p.peakIn)
	}

	// 4. Plugin dispatch.
	stereo := false
	if p.disp != nil && !p.params.Bypass() {
		p.pd.Left, p.pd.Right = l, r
		_, stereo = p.disp.Dispatch(&p.pd, p.params.Daisy())
	}

	// 5. Routing.
	if !stereo {
		p.params.Routing().apply(l, r, p.tmp)
	}

	// 6. Soft clip.
	over := exceeds(l, 1) || exceeds(r, 1)
	if p.params.SoftClip(channel.Left) {
		softClip(l)
	}
	if p.params.SoftClip(channel.Right) {
		softClip(r)
	}

	// 7. Output metering on the first frame of the block.
	var first float64
	if n > 0 {
		first = math.Abs(l[0]+r[0]) / 2
	}
	b := p.opts.OutputDecay
	p.peakOut = b*p.peakOut + (1-b)*first
	m.OutputPeak = float32(p.peakOut)
	m.OutputLevel = ledLevel(p.peakOut)
	m.Warning = over || p.peakOut > p.opts.WarnThreshold

	core.Interleave(block, l, r)
	return m
}

// gate applies the hysteresis gate. The gate closes when the tracked level
// falls below the close threshold and opens when it rises above the open
// threshold; in between the state is kept. Transitions ramp across the
// block and a closed gate silences its channels.
func (p *Pipeline) gate(l, r []float64) {
	mode := p.params.GateMode()
	mask := mode.mask()
	if mask == channel.MaskNone {
		p.gateOpen = true
		return
	}

	level := p.peakIn
	switch mode {
	case GateLeft:
		level = p.peakL
	case GateRight:
		level = p.peakR
	}

	var gain []float64
	switch {
	case p.gateOpen && level < p.opts.CloseThreshold:
		p.gateOpen = false
		gain = p.rampDown[len(p.rampDown)-len(l):]
	case !p.gateOpen && level > p.opts.OpenThreshold:
		p.gateOpen = true
		gain = p.rampUp[:len(l)]
	case !p.gateOpen:
		if mask.Has(channel.Left) {
			core.Zero(l)
		}
		if mask.Has(channel.Right) {
			core.Zero(r)
		}
		return
	default:
		return
	}

	if mask.Has(channel.Left) {
		vecmath.MulBlockInPlace(l, gain)
	}
	if mask.Has(channel.Right) {
		vecmath.MulBlockInPlace(r, gain)
	}
}

func exceeds(buf []float64, limit float64) bool {
	for _, v := range buf {
		if v > limit || v < -limit {
			return true
		}
	}
	return false
}

func softClip(buf []float64) {
	for i, v := range buf {
		buf[i] = core.SoftClip(v)
	}
}

func ledLevel(peak float64) float32 {
	v := 255 + 3.2*core.DBV(peak)
	return float32(core.Clamp(v, 0, 255))
}
