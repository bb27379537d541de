// Package param implements the lock-free parameter store of a plugin
// instance.
//
// Every parameter is one 32-bit atomic word plus a mapping word that can
// redirect reads to a live control-voltage or trigger input. The control
// plane writes; the owning plugin reads at most once per block inside its
// own Process call.
package param

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
)

var (
	ErrTypeMismatch     = errors.New("param: type mismatch")
	ErrUnknownParameter = errors.New("param: unknown parameter")
	ErrNegativeValue    = errors.New("param: negative value for unsigned float")
	ErrBadInput         = errors.New("param: input index out of range")
)

// Unmapped is the mapping value that selects the literal value.
const Unmapped = -1

// Type is the declared storage type of a parameter.
type Type uint8

const (
	Int Type = iota
	Uint
	Float
	UFloat
	Trigger
)

func (t Type) String() string {
	switch t {
	case Int:
		return "int"
	case Uint:
		return "uint"
	case Float:
		return "float"
	case UFloat:
		return "ufloat"
	case Trigger:
		return "trigger"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// ID indexes a parameter within its plugin's descriptor table.
type ID int

// Descriptor declares one parameter. Default is interpreted according to
// Type: integers are truncated, triggers are set when Default != 0.
type Descriptor struct {
	ID      ID
	Name    string
	Type    Type
	Default float64
}

// Inputs carries the live control inputs sampled for the current block.
type Inputs struct {
	CV   []float32
	Trig []uint8
}

type slot struct {
	typ     Type
	value   atomic.Uint32
	mapping atomic.Int32
}

// Set is the parameter storage of one plugin instance. Slot layout is
// fixed at construction; values and mappings are updated atomically.
type Set struct {
	descs []Descriptor
	slots []slot
}

// NewSet builds a Set from a descriptor table. Descriptor IDs must equal
// their index in descs.
func NewSet(descs []Descriptor) (*Set, error) {
	s := &Set{descs: descs, slots: make([]slot, len(descs))}
	for i, d := range descs {
		if int(d.ID) != i {
			return nil, fmt.Errorf("param: descriptor %q has id %d at index %d", d.Name, d.ID, i)
		}
		sl := &s.slots[i]
		sl.typ = d.Type
		sl.mapping.Store(Unmapped)
		sl.value.Store(encodeDefault(d))
	}
	return s, nil
}

// MustNewSet is like NewSet but panics on error.
func MustNewSet(descs []Descriptor) *Set {
	s, err := NewSet(descs)
	if err != nil {
		panic(err)
	}
	return s
}

func encodeDefault(d Descriptor) uint32 {
	switch d.Type {
	case Int:
		return uint32(int32(d.Default))
	case Uint:
		return uint32(d.Default)
	case Float, UFloat:
		return math.Float32bits(float32(d.Default))
	case Trigger:
		if d.Default != 0 {
			return 1
		}
	}
	return 0
}

// Len returns the number of parameters.
func (s *Set) Len() int { return len(s.slots) }

// Descriptors returns the descriptor table the set was built from.
func (s *Set) Descriptors() []Descriptor { return s.descs }

// Lookup finds a parameter by name.
func (s *Set) Lookup(name string) (Descriptor, bool) {
	for _, d := range s.descs {
		if d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}

func (s *Set) slot(id ID, want Type) (*slot, error) {
	if id < 0 || int(id) >= len(s.slots) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownParameter, id)
	}
	sl := &s.slots[id]
	if sl.typ != want {
		return nil, fmt.Errorf("%w: %s is %s, not %s", ErrTypeMismatch, s.descs[id].Name, sl.typ, want)
	}
	return sl, nil
}

// SetInt stores v into an Int parameter.
func (s *Set) SetInt(id ID, v int32) error {
	sl, err := s.slot(id, Int)
	if err != nil {
		return err
	}
	sl.value.Store(uint32(v))
	return nil
}

// SetUint stores v into a Uint parameter.
func (s *Set) SetUint(id ID, v uint32) error {
	sl, err := s.slot(id, Uint)
	if err != nil {
		return err
	}
	sl.value.Store(v)
	return nil
}

// SetFloat stores v into a Float parameter.
func (s *Set) SetFloat(id ID, v float32) error {
	sl, err := s.slot(id, Float)
	if err != nil {
		return err
	}
	sl.value.Store(math.Float32bits(v))
	return nil
}

// SetUFloat stores v into a UFloat parameter. Negative values and NaN are
// rejected.
func (s *Set) SetUFloat(id ID, v float32) error {
	sl, err := s.slot(id, UFloat)
	if err != nil {
		return err
	}
	if !(v >= 0) {
		return fmt.Errorf("%w: %v", ErrNegativeValue, v)
	}
	sl.value.Store(math.Float32bits(v))
	return nil
}

// SetTrigger stores v into a Trigger parameter.
func (s *Set) SetTrigger(id ID, v bool) error {
	sl, err := s.slot(id, Trigger)
	if err != nil {
		return err
	}
	var w uint32
	if v {
		w = 1
	}
	sl.value.Store(w)
	return nil
}

// Map routes reads of parameter id to a live input. Numeric parameters are
// mapped to a CV input in [0, cvInputs), triggers to a trigger input in
// [0, trigInputs). Unmapped restores the literal value.
func (s *Set) Map(id ID, input, cvInputs, trigInputs int) error {
	if id < 0 || int(id) >= len(s.slots) {
		return fmt.Errorf("%w: %d", ErrUnknownParameter, id)
	}
	sl := &s.slots[id]
	limit := cvInputs
	if sl.typ == Trigger {
		limit = trigInputs
	}
	if input != Unmapped && (input < 0 || input >= limit) {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrBadInput, input, limit)
	}
	sl.mapping.Store(int32(input))
	return nil
}

// Mapping returns the input index of parameter id, or Unmapped.
func (s *Set) Mapping(id ID) int {
	if id < 0 || int(id) >= len(s.slots) {
		return Unmapped
	}
	return int(s.slots[id].mapping.Load())
}

// The readers below are called from Process. They never fail: an unknown
// id or a mapping beyond the supplied inputs falls back to zero or the
// literal value respectively.

// Float returns the value of a Float or UFloat parameter.
func (s *Set) Float(id ID, in Inputs) float32 {
	if id < 0 || int(id) >= len(s.slots) {
		return 0
	}
	sl := &s.slots[id]
	if m := int(sl.mapping.Load()); m >= 0 && m < len(in.CV) {
		v := in.CV[m]
		if sl.typ == UFloat && v < 0 {
			return 0
		}
		return v
	}
	return math.Float32frombits(sl.value.Load())
}

// Int returns the value of an Int parameter. A mapped CV value is
// truncated toward zero.
func (s *Set) Int(id ID, in Inputs) int32 {
	if id < 0 || int(id) >= len(s.slots) {
		return 0
	}
	sl := &s.slots[id]
	if m := int(sl.mapping.Load()); m >= 0 && m < len(in.CV) {
		return int32(in.CV[m])
	}
	return int32(sl.value.Load())
}

// Uint returns the value of a Uint parameter. Negative mapped CV values
// read as zero.
func (s *Set) Uint(id ID, in Inputs) uint32 {
	if id < 0 || int(id) >= len(s.slots) {
		return 0
	}
	sl := &s.slots[id]
	if m := int(sl.mapping.Load()); m >= 0 && m < len(in.CV) {
		if v := in.CV[m]; v > 0 {
			return uint32(v)
		}
		return 0
	}
	return sl.value.Load()
}

// Trigger returns the state of a Trigger parameter.
func (s *Set) Trigger(id ID, in Inputs) bool {
	if id < 0 || int(id) >= len(s.slots) {
		return false
	}
	sl := &s.slots[id]
	if m := int(sl.mapping.Load()); m >= 0 && m < len(in.Trig) {
		return in.Trig[m] != 0
	}
	return sl.value.Load() != 0
}

// Literal returns the stored literal value of parameter id decoded to
// float64, ignoring any mapping.
func (s *Set) Literal(id ID) (float64, bool) {
	if id < 0 || int(id) >= len(s.slots) {
		return 0, false
	}
	sl := &s.slots[id]
	w := sl.value.Load()
	switch sl.typ {
	case Int:
		return float64(int32(w)), true
	case Float, UFloat:
		return float64(math.Float32frombits(w)), true
	default:
		return float64(w), true
	}
}
