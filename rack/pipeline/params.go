package pipeline

import (
	"fmt"
	"sync/atomic"

	"github.com/cwbudde/algo-rack/rack/channel"
)

// GateMode selects which channels the noise gate acts on.
type GateMode uint32

const (
	GateOff GateMode = iota
	GateLeft
	GateRight
	GateBoth
)

func (m GateMode) String() string {
	switch m {
	case GateOff:
		return "off"
	case GateLeft:
		return "left"
	case GateRight:
		return "right"
	case GateBoth:
		return "both"
	default:
		return fmt.Sprintf("GateMode(%d)", uint32(m))
	}
}

// ParseGateMode converts a name produced by GateMode.String.
func ParseGateMode(s string) (GateMode, error) {
	for m := GateOff; m <= GateBoth; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return GateOff, fmt.Errorf("pipeline: unknown gate mode %q", s)
}

func (m GateMode) mask() channel.Mask {
	switch m {
	case GateLeft:
		return channel.MaskLeft
	case GateRight:
		return channel.MaskRight
	case GateBoth:
		return channel.MaskBoth
	default:
		return channel.MaskNone
	}
}

// Params holds the processing settings shared between the control plane
// and the audio goroutine. Each setting is one atomic word; the zero value
// is gate off, independent routing, no daisy chain, no soft clip.
type Params struct {
	gate     atomic.Uint32
	route    atomic.Uint32
	daisy    atomic.Bool
	softClip [2]atomic.Bool
	bypass   atomic.Bool
}

// SetGateMode sets the noise gate mode. Unknown modes disable the gate.
func (p *Params) SetGateMode(m GateMode) {
	if m > GateBoth {
		m = GateOff
	}
	p.gate.Store(uint32(m))
}

// GateMode returns the noise gate mode.
func (p *Params) GateMode() GateMode { return GateMode(p.gate.Load()) }

// SetRouting sets the output routing. Unknown routes select Independent.
func (p *Params) SetRouting(r Route) {
	if !r.Valid() {
		r = RouteIndependent
	}
	p.route.Store(uint32(r))
}

// Routing returns the output routing.
func (p *Params) Routing() Route { return Route(p.route.Load()) }

// SetDaisy enables feeding the left output into the right input when two
// mono plugins are active.
func (p *Params) SetDaisy(on bool) { p.daisy.Store(on) }

// Daisy reports whether the daisy chain is enabled.
func (p *Params) Daisy() bool { return p.daisy.Load() }

// SetSoftClip enables or disables the output soft clip on the channels of
// mask.
func (p *Params) SetSoftClip(mask channel.Mask, on bool) {
	for _, c := range mask.Channels() {
		p.softClip[c].Store(on)
	}
}

// SoftClip reports whether soft clip is enabled on c.
func (p *Params) SoftClip(c channel.Channel) bool {
	if int(c) >= len(p.softClip) {
		return false
	}
	return p.softClip[c].Load()
}

// SetBypass skips plugin dispatch while the rest of the chain keeps
// running.
func (p *Params) SetBypass(on bool) { p.bypass.Store(on) }

// Bypass reports whether plugin dispatch is skipped.
func (p *Params) Bypass() bool { return p.bypass.Load() }
