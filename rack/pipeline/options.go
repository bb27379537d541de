package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/cwbudde/algo-rack/dsp/filter/design"
)

const (
	// DefaultOpenThreshold is the smoothed input peak above which a closed
	// gate opens.
	DefaultOpenThreshold = 0.0003
	// DefaultCloseThreshold is the smoothed input peak below which an open
	// gate closes.
	DefaultCloseThreshold = 0.0001
	// DefaultInputDecay is the per-block smoothing factor of the input peak.
	DefaultInputDecay = 0.95
	// DefaultOutputDecay is the per-block smoothing factor of the output peak.
	DefaultOutputDecay = 0.9
	// DefaultWarnThreshold is the smoothed output peak that raises Warning.
	DefaultWarnThreshold = 1.0

	defaultCVInputs      = 4
	defaultTriggerInputs = 2
)

// Options configures a Pipeline. Zero fields select the defaults above.
type Options struct {
	// DisableDCFilter skips the input DC blocker.
	DisableDCFilter bool
	// DCCutoff is the DC blocker corner in Hz.
	DCCutoff float64

	OpenThreshold  float64
	CloseThreshold float64
	InputDecay     float64
	OutputDecay    float64
	WarnThreshold  float64

	// CVInputs and TriggerInputs size the control buffers handed to
	// plugins each block.
	CVInputs      int
	TriggerInputs int

	Logger *slog.Logger
}

// DefaultOptions returns Options with every default filled in.
func DefaultOptions() Options {
	return Options{
		DCCutoff:       design.DefaultDCCutoff,
		OpenThreshold:  DefaultOpenThreshold,
		CloseThreshold: DefaultCloseThreshold,
		InputDecay:     DefaultInputDecay,
		OutputDecay:    DefaultOutputDecay,
		WarnThreshold:  DefaultWarnThreshold,
		CVInputs:       defaultCVInputs,
		TriggerInputs:  defaultTriggerInputs,
		Logger:         slog.Default(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.DCCutoff <= 0 {
		o.DCCutoff = d.DCCutoff
	}
	if o.OpenThreshold <= 0 {
		o.OpenThreshold = d.OpenThreshold
	}
	if o.CloseThreshold <= 0 {
		o.CloseThreshold = d.CloseThreshold
	}
	if o.InputDecay <= 0 {
		o.InputDecay = d.InputDecay
	}
	if o.OutputDecay <= 0 {
		o.OutputDecay = d.OutputDecay
	}
	if o.WarnThreshold <= 0 {
		o.WarnThreshold = d.WarnThreshold
	}
	if o.CVInputs <= 0 {
		o.CVInputs = d.CVInputs
	}
	if o.TriggerInputs <= 0 {
		o.TriggerInputs = d.TriggerInputs
	}
	if o.Logger == nil {
		o.Logger = d.Logger
	}
	return o
}

// Validate checks the option ranges after defaults are applied.
func (o Options) Validate() error {
	o = o.withDefaults()
	if o.CloseThreshold >= o.OpenThreshold {
		return fmt.Errorf("pipeline: close threshold %v must be below open threshold %v",
			o.CloseThreshold, o.OpenThreshold)
	}
	if o.InputDecay >= 1 || o.OutputDecay >= 1 {
		return fmt.Errorf("pipeline: decay factors must be in (0,1): in=%v out=%v", o.InputDecay, o.OutputDecay)
	}
	return nil
}
