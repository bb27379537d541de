// Package plugin defines the contract between the registry and the DSP
// units it hosts, and the catalog of plugin kinds that can be activated.
package plugin

import (
	"fmt"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/rack/arena"
	"github.com/cwbudde/algo-rack/rack/channel"
	"github.com/cwbudde/algo-rack/rack/param"
)

// Kind identifies a plugin type.
type Kind string

// ProcessData is the per-block view handed to Process. Left and Right are
// the de-interleaved channel buffers, processed in place.
type ProcessData struct {
	Left, Right []float64
	Controls    param.Inputs
}

// Channel returns the buffer for c.
func (pd *ProcessData) Channel(c channel.Channel) []float64 {
	if c == channel.Right {
		return pd.Right
	}
	return pd.Left
}

// Memory is the arena region owned by one plugin instance.
type Memory struct {
	a *arena.Arena
	h arena.Handle
}

// NewMemory wraps the region h of a.
func NewMemory(a *arena.Arena, h arena.Handle) Memory {
	return Memory{a: a, h: h}
}

// Handle returns the arena handle of the region.
func (m Memory) Handle() arena.Handle { return m.h }

// Size returns the region size in bytes.
func (m Memory) Size() int { return m.h.Size }

// Bytes returns the region as bytes.
func (m Memory) Bytes() []byte {
	if m.a == nil {
		return nil
	}
	return m.a.Bytes(m.h)
}

// Float32s returns the region as float32 samples.
func (m Memory) Float32s() []float32 {
	if m.a == nil {
		return nil
	}
	return m.a.Float32s(m.h)
}

// Float64s returns the region as float64 samples.
func (m Memory) Float64s() []float64 {
	if m.a == nil {
		return nil
	}
	return m.a.Float64s(m.h)
}

// Complex128s returns the region as complex128 values.
func (m Memory) Complex128s() []complex128 {
	if m.a == nil {
		return nil
	}
	return m.a.Complex128s(m.h)
}

// Sub returns size bytes of the region starting off bytes in. Both must be
// multiples of 8 and lie inside the region.
func (m Memory) Sub(off, size int) Memory {
	if off < 0 || size < 0 || off+size > m.h.Size || off%8 != 0 || size%8 != 0 {
		panic(fmt.Sprintf("plugin: sub-region [%d, %d) of a %d byte region", off, off+size, m.h.Size))
	}
	return Memory{a: m.a, h: arena.Handle{Offset: m.h.Offset + off, Size: size}}
}

// Config is passed to Init once per instance.
type Config struct {
	Format core.Format
	Memory Memory
	Params *param.Set
}

// Plugin is a DSP unit hosted by the registry.
//
// Init runs on the control plane before the instance becomes visible to
// the audio goroutine. Process runs on the audio goroutine once per block
// with the mask the instance owns; it must not block or allocate.
// Teardown runs on the control plane after the instance is no longer
// reachable from Process. Its arena region may already belong to a
// replacement, so Teardown must not touch Memory.
type Plugin interface {
	Init(cfg Config) error
	Process(mask channel.Mask, pd *ProcessData)
	Teardown()
}

// Reporter is implemented by plugins that expose readouts to the control
// plane. Report runs concurrently with Process and possibly after
// Teardown, so it may only read values the instance publishes atomically
// and must not touch its arena memory.
type Reporter interface {
	Report() map[string]float64
}
