package registry

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/rack/channel"
	"github.com/cwbudde/algo-rack/rack/param"
	"github.com/cwbudde/algo-rack/rack/plugin"
)

// owner resolves the instance addressed by mask. A stereo instance is only
// addressable with MaskBoth, a mono instance only with its own channel.
func (r *Registry) owner(mask channel.Mask) (*Slot, error) {
	if err := validMask(mask); err != nil {
		return nil, err
	}
	a := r.cur.Load()
	switch mask {
	case channel.MaskLeft, channel.MaskRight:
		s := a.left
		if mask == channel.MaskRight {
			s = a.right
		}
		if s == nil {
			return nil, fmt.Errorf("%w on %s", ErrNoPluginPresent, mask)
		}
		if s.Stereo {
			return nil, fmt.Errorf("%w: %s", ErrNeedStereo, s.Kind)
		}
		return s, nil
	default:
		if a.left == nil || !a.left.Stereo {
			return nil, fmt.Errorf("%w: no stereo plugin on %s", ErrNoPluginPresent, mask)
		}
		return a.left, nil
	}
}

func (r *Registry) setParam(mask channel.Mask, id param.ID, v float64, store func(*param.Set) error) error {
	s, err := r.owner(mask)
	if err != nil {
		return err
	}
	if err := store(s.params); err != nil {
		return fmt.Errorf("registry: %s: %w", s.Kind, err)
	}
	name := ""
	if int(id) >= 0 && int(id) < len(s.params.Descriptors()) {
		name = s.params.Descriptors()[id].Name
	}
	r.emit(Event{Type: EventParamChanged, Mask: mask, Kind: s.Kind, ID: s.ID, Param: name, Value: v})
	return nil
}

// SetInt stores an Int parameter of the instance on mask.
func (r *Registry) SetInt(mask channel.Mask, id param.ID, v int32) error {
	return r.setParam(mask, id, float64(v), func(s *param.Set) error { return s.SetInt(id, v) })
}

// SetUint stores a Uint parameter of the instance on mask.
func (r *Registry) SetUint(mask channel.Mask, id param.ID, v uint32) error {
	return r.setParam(mask, id, float64(v), func(s *param.Set) error { return s.SetUint(id, v) })
}

// SetFloat stores a Float parameter of the instance on mask.
func (r *Registry) SetFloat(mask channel.Mask, id param.ID, v float32) error {
	return r.setParam(mask, id, float64(v), func(s *param.Set) error { return s.SetFloat(id, v) })
}

// SetUFloat stores a UFloat parameter of the instance on mask.
func (r *Registry) SetUFloat(mask channel.Mask, id param.ID, v float32) error {
	return r.setParam(mask, id, float64(v), func(s *param.Set) error { return s.SetUFloat(id, v) })
}

// SetTrigger stores a Trigger parameter of the instance on mask.
func (r *Registry) SetTrigger(mask channel.Mask, id param.ID, v bool) error {
	f := 0.0
	if v {
		f = 1
	}
	return r.setParam(mask, id, f, func(s *param.Set) error { return s.SetTrigger(id, v) })
}

// SetValue stores v into the parameter called name, converting it to the
// parameter's declared type. Integers must be whole numbers.
func (r *Registry) SetValue(mask channel.Mask, name string, v float64) error {
	s, err := r.owner(mask)
	if err != nil {
		return err
	}
	d, ok := s.params.Lookup(name)
	if !ok {
		return fmt.Errorf("registry: %s: %w: %q", s.Kind, param.ErrUnknownParameter, name)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("registry: %s.%s: %w: %v", s.Kind, name, param.ErrTypeMismatch, v)
	}
	switch d.Type {
	case param.Int:
		if v != math.Trunc(v) || v < math.MinInt32 || v > math.MaxInt32 {
			return fmt.Errorf("registry: %s.%s: %w: %v is not an int", s.Kind, name, param.ErrTypeMismatch, v)
		}
		return r.SetInt(mask, d.ID, int32(v))
	case param.Uint:
		if v != math.Trunc(v) || v < 0 || v > math.MaxUint32 {
			return fmt.Errorf("registry: %s.%s: %w: %v is not a uint", s.Kind, name, param.ErrTypeMismatch, v)
		}
		return r.SetUint(mask, d.ID, uint32(v))
	case param.Float:
		return r.SetFloat(mask, d.ID, float32(v))
	case param.UFloat:
		return r.SetUFloat(mask, d.ID, float32(v))
	default:
		return r.SetTrigger(mask, d.ID, v != 0)
	}
}

// MapCV routes parameter id of the instance on mask to a live input, or
// back to its literal with param.Unmapped. Triggers map to trigger inputs.
func (r *Registry) MapCV(mask channel.Mask, id param.ID, input int) error {
	s, err := r.owner(mask)
	if err != nil {
		return err
	}
	if err := s.params.Map(id, input, r.cvInputs, r.trigInputs); err != nil {
		return fmt.Errorf("registry: %s: %w", s.Kind, err)
	}
	r.emit(Event{
		Type:  EventMappingChanged,
		Mask:  mask,
		Kind:  s.Kind,
		ID:    s.ID,
		Param: s.params.Descriptors()[id].Name,
		Input: input,
	})
	return nil
}

// MapCVByName is MapCV addressed by parameter name.
func (r *Registry) MapCVByName(mask channel.Mask, name string, input int) error {
	s, err := r.owner(mask)
	if err != nil {
		return err
	}
	d, ok := s.params.Lookup(name)
	if !ok {
		return fmt.Errorf("registry: %s: %w: %q", s.Kind, param.ErrUnknownParameter, name)
	}
	return r.MapCV(mask, d.ID, input)
}

// Readouts returns the reported values of the instance on mask. Instances
// that do not implement plugin.Reporter report nothing.
func (r *Registry) Readouts(mask channel.Mask) (map[string]float64, error) {
	s, err := r.owner(mask)
	if err != nil {
		return nil, err
	}
	if rep, ok := s.plugin.(plugin.Reporter); ok {
		return rep.Report(), nil
	}
	return map[string]float64{}, nil
}
