package pipeline

import (
	"math"
	"sync/atomic"
)

// ControlSource fills the CV and trigger inputs once per block, before
// plugin dispatch. Update runs on the audio goroutine and must not block.
type ControlSource interface {
	Update(cv []float32, trig []uint8)
}

// StaticControls is a ControlSource whose values are set by the control
// plane, standing in for the ADC and GPIO inputs.
type StaticControls struct {
	cv   []atomic.Uint32
	trig []atomic.Bool
}

// NewStaticControls creates cv control inputs and trig trigger inputs, all
// zero.
func NewStaticControls(cv, trig int) *StaticControls {
	return &StaticControls{
		cv:   make([]atomic.Uint32, max(cv, 0)),
		trig: make([]atomic.Bool, max(trig, 0)),
	}
}

// SetCV sets control input i. Out-of-range indices are ignored.
func (s *StaticControls) SetCV(i int, v float32) {
	if i >= 0 && i < len(s.cv) {
		s.cv[i].Store(math.Float32bits(v))
	}
}

// SetTrigger sets trigger input i.
func (s *StaticControls) SetTrigger(i int, on bool) {
	if i >= 0 && i < len(s.trig) {
		s.trig[i].Store(on)
	}
}

// Update copies the current values into cv and trig.
func (s *StaticControls) Update(cv []float32, trig []uint8) {
	for i := range min(len(cv), len(s.cv)) {
		cv[i] = math.Float32frombits(s.cv[i].Load())
	}
	for i := range min(len(trig), len(s.trig)) {
		var v uint8
		if s.trig[i].Load() {
			v = 1
		}
		trig[i] = v
	}
}
