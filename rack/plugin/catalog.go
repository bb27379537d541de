package plugin

import (
	"errors"
	"fmt"
	"sort"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/rack/param"
)

// Info describes a plugin kind.
type Info struct {
	Kind   Kind
	Name   string
	Stereo bool

	// Footprint returns the arena bytes an instance needs for format f.
	// A nil Footprint reserves nothing.
	Footprint func(f core.Format) int

	Params []param.Descriptor
	New    func() Plugin
}

// Size returns the arena footprint for f.
func (i Info) Size(f core.Format) int {
	if i.Footprint == nil {
		return 0
	}
	return i.Footprint(f)
}

var errDuplicatePlugin = errors.New("duplicate plugin kind")

// Catalog maps plugin kinds to their descriptions.
type Catalog struct {
	infos map[Kind]Info
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{infos: make(map[Kind]Info)}
}

// Register adds info to the catalog.
func (c *Catalog) Register(info Info) error {
	if info.Kind == "" {
		return errors.New("empty plugin kind")
	}

	if info.New == nil {
		return fmt.Errorf("nil constructor for %s", info.Kind)
	}

	if _, exists := c.infos[info.Kind]; exists {
		return fmt.Errorf("%w: %s", errDuplicatePlugin, info.Kind)
	}

	if _, err := param.NewSet(info.Params); err != nil {
		return fmt.Errorf("%s: %w", info.Kind, err)
	}

	c.infos[info.Kind] = info

	return nil
}

// MustRegister is like Register but panics on error.
func (c *Catalog) MustRegister(info Info) {
	err := c.Register(info)
	if err != nil {
		panic("plugin catalog: " + err.Error())
	}
}

// Lookup returns the description of kind.
func (c *Catalog) Lookup(kind Kind) (Info, bool) {
	info, ok := c.infos[kind]
	return info, ok
}

// Kinds returns the registered kinds in sorted order.
func (c *Catalog) Kinds() []Kind {
	out := make([]Kind, 0, len(c.infos))
	for k := range c.infos {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
