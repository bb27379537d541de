package registry

import (
	"github.com/google/uuid"

	"github.com/cwbudde/algo-rack/rack/channel"
	"github.com/cwbudde/algo-rack/rack/param"
	"github.com/cwbudde/algo-rack/rack/plugin"
)

// EventType classifies registry change events.
type EventType uint8

const (
	// EventPluginChanged reports an activation, or a removal when Kind is
	// empty.
	EventPluginChanged EventType = iota + 1
	EventParamChanged
	EventMappingChanged
	EventReset
)

func (t EventType) String() string {
	switch t {
	case EventPluginChanged:
		return "plugin_changed"
	case EventParamChanged:
		return "param_changed"
	case EventMappingChanged:
		return "mapping_changed"
	case EventReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Event describes one registry change.
type Event struct {
	Type  EventType
	Mask  channel.Mask
	Kind  plugin.Kind
	ID    uuid.UUID
	Param string
	Value float64
	Input int
}

// Observer receives registry events. Notify is called on the control-plane
// goroutine that made the change, with the registry lock held for
// lifecycle events; it must not call back into the registry.
type Observer interface {
	Notify(Event)
}

// ObserverFunc adapts a function into an Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Notify(e Event) { f(e) }

func (r *Registry) emit(e Event) {
	if r.observer != nil {
		r.observer.Notify(e)
	}
}

// SlotInfo is a read-only view of an active instance.
type SlotInfo struct {
	Mask   channel.Mask
	Kind   plugin.Kind
	ID     uuid.UUID
	Bytes  int
	Params []ParamValue
}

// ParamValue is the current literal and mapping of one parameter.
type ParamValue struct {
	Name    string
	Type    param.Type
	Value   float64
	Mapping int
}

// Snapshot lists the active instances, left owner first.
func (r *Registry) Snapshot() []SlotInfo {
	slots := r.cur.Load().slots()
	out := make([]SlotInfo, 0, len(slots))
	for _, s := range slots {
		info := SlotInfo{Mask: s.Mask, Kind: s.Kind, ID: s.ID, Bytes: s.Handle.Size}
		for _, d := range s.params.Descriptors() {
			v, _ := s.params.Literal(d.ID)
			info.Params = append(info.Params, ParamValue{
				Name:    d.Name,
				Type:    d.Type,
				Value:   v,
				Mapping: s.params.Mapping(d.ID),
			})
		}
		out = append(out, info)
	}
	return out
}
