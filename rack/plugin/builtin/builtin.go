package builtin

import (
	"github.com/cwbudde/algo-rack/rack/channel"
	"github.com/cwbudde/algo-rack/rack/plugin"
)

// Plugin kinds.
const (
	KindPassthrough       plugin.Kind = "passthrough"
	KindStereoPassthrough plugin.Kind = "passthrough-stereo"
	KindGain              plugin.Kind = "gain"
	KindSine              plugin.Kind = "sine"
	KindLowpass           plugin.Kind = "lowpass"
	KindAnalyzer          plugin.Kind = "analyzer"
	KindDelay             plugin.Kind = "delay"
)

// Infos returns the descriptions of all built-in kinds.
func Infos() []plugin.Info {
	return []plugin.Info{
		{
			Kind: KindPassthrough,
			Name: "Passthrough",
			New:  func() plugin.Plugin { return passthrough{} },
		},
		{
			Kind:   KindStereoPassthrough,
			Name:   "Stereo passthrough",
			Stereo: true,
			New:    func() plugin.Plugin { return passthrough{} },
		},
		gainInfo(),
		sineInfo(),
		lowpassInfo(),
		analyzerInfo(),
		delayInfo(),
	}
}

// Register adds every built-in kind to c.
func Register(c *plugin.Catalog) error {
	for _, info := range Infos() {
		if err := c.Register(info); err != nil {
			return err
		}
	}
	return nil
}

// Catalog returns a new catalog holding the built-in kinds.
func Catalog() *plugin.Catalog {
	c := plugin.NewCatalog()
	for _, info := range Infos() {
		c.MustRegister(info)
	}
	return c
}

type passthrough struct{}

func (passthrough) Init(plugin.Config) error                  { return nil }
func (passthrough) Process(channel.Mask, *plugin.ProcessData) {}
func (passthrough) Teardown()                                 {}
