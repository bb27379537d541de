// Package config loads the rack's startup configuration: built-in defaults,
// then the YAML file named by RACK_CONFIG, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/internal/logging"
	"github.com/cwbudde/algo-rack/rack/arena"
	"github.com/cwbudde/algo-rack/rack/channel"
	"github.com/cwbudde/algo-rack/rack/pipeline"
	"github.com/cwbudde/algo-rack/rack/plugin"
	"github.com/cwbudde/algo-rack/rack/worker"
)

// Environment variables.
const (
	EnvConfig   = "RACK_CONFIG"
	EnvLogLevel = "RACK_LOG_LEVEL"
)

// Config is the complete startup configuration.
type Config struct {
	Audio    AudioConfig    `yaml:"audio"`
	Arena    ArenaConfig    `yaml:"arena"`
	Inputs   InputsConfig   `yaml:"inputs"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Device   DeviceConfig   `yaml:"device"`
	Worker   WorkerConfig   `yaml:"worker"`
	Registry RegistryConfig `yaml:"registry"`
	Plugins  PluginsConfig  `yaml:"plugins"`
	Control  ControlConfig  `yaml:"control"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// AudioConfig fixes the stream format.
type AudioConfig struct {
	SampleRate float64 `yaml:"sampleRate"`
	BlockSize  int     `yaml:"blockSize"`
	Channels   int     `yaml:"channels"`
}

// ArenaConfig sizes the plugin memory arena.
type ArenaConfig struct {
	Bytes int `yaml:"bytes"`
}

// InputsConfig sets the number of CV and trigger inputs.
type InputsConfig struct {
	CV       int `yaml:"cv"`
	Triggers int `yaml:"triggers"`
}

// PipelineConfig holds the audio pipeline defaults.
type PipelineConfig struct {
	DCFilter      bool    `yaml:"dcFilter"`
	DCCutoffHz    float64 `yaml:"dcCutoffHz"`
	GateOpen      float64 `yaml:"gateOpen"`
	GateClose     float64 `yaml:"gateClose"`
	InputDecay    float64 `yaml:"inputDecay"`
	OutputDecay   float64 `yaml:"outputDecay"`
	WarnThreshold float64 `yaml:"warnThreshold"`
	GateMode      string  `yaml:"gateMode"`
	Routing       string  `yaml:"routing"`
	Daisy         bool    `yaml:"daisy"`
	SoftClip      string  `yaml:"softClip"` // channel mask: none, left, right, both
}

// DeviceConfig selects the audio device.
type DeviceConfig struct {
	Kind      string  `yaml:"kind"` // sim or oto
	Realtime  bool    `yaml:"realtime"`
	Generator string  `yaml:"generator"` // silence or sine
	SineHz    float64 `yaml:"sineHz"`
	Level     float64 `yaml:"level"`
	Buffer    int     `yaml:"bufferBlocks"`
}

// WorkerConfig selects scheduling.
type WorkerConfig struct {
	Strategy string `yaml:"strategy"` // pull or push
	Sanitize string `yaml:"sanitize"` // nonfinite, clamp or zero
	Nice     int    `yaml:"nice"`
}

// RegistryConfig bounds control-plane waits.
type RegistryConfig struct {
	LockTimeoutMs    int `yaml:"lockTimeoutMs"`
	QuiesceTimeoutMs int `yaml:"quiesceTimeoutMs"`
}

// PluginsConfig names the plugins activated at startup. Stereo excludes
// Left and Right.
type PluginsConfig struct {
	Stereo string `yaml:"stereo"`
	Left   string `yaml:"left"`
	Right  string `yaml:"right"`
}

// ControlConfig tunes the control plane.
type ControlConfig struct {
	QueueSize      int `yaml:"queueSize"`
	PollIntervalMs int `yaml:"pollIntervalMs"`
}

// LoggingConfig configures internal/logging.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Source     bool   `yaml:"source"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	Compress   bool   `yaml:"compress"`
}

// Load builds the configuration from defaults, the RACK_CONFIG file and
// the environment, and validates it.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(EnvConfig); path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	f := core.DefaultFormat()
	po := pipeline.DefaultOptions()
	return &Config{
		Audio: AudioConfig{
			SampleRate: f.SampleRate,
			BlockSize:  f.BlockSize,
			Channels:   f.Channels,
		},
		Arena:  ArenaConfig{Bytes: arena.DefaultSize},
		Inputs: InputsConfig{CV: po.CVInputs, Triggers: po.TriggerInputs},
		Pipeline: PipelineConfig{
			DCFilter:      true,
			DCCutoffHz:    po.DCCutoff,
			GateOpen:      po.OpenThreshold,
			GateClose:     po.CloseThreshold,
			InputDecay:    po.InputDecay,
			OutputDecay:   po.OutputDecay,
			WarnThreshold: po.WarnThreshold,
			GateMode:      pipeline.GateOff.String(),
			Routing:       pipeline.RouteIndependent.String(),
			SoftClip:      channel.MaskBoth.String(),
		},
		Device: DeviceConfig{
			Kind:      "sim",
			Realtime:  true,
			Generator: "silence",
			SineHz:    440,
			Level:     0.5,
			Buffer:    8,
		},
		Worker: WorkerConfig{
			Strategy: worker.Pull.String(),
			Sanitize: worker.SanitizeNonFinite.String(),
			Nice:     -10,
		},
		Registry: RegistryConfig{
			LockTimeoutMs:    50,
			QuiesceTimeoutMs: 100,
		},
		Control: ControlConfig{
			QueueSize:      32,
			PollIntervalMs: 50,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "auto",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return yaml.UnmarshalStrict(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	if level := os.Getenv(EnvLogLevel); level != "" {
		cfg.Logging.Level = level
	}
}

// Validate checks ranges and names.
func (c *Config) Validate() error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	add(c.Format().Validate())
	if c.Arena.Bytes <= 0 {
		add(fmt.Errorf("arena bytes must be > 0: %d", c.Arena.Bytes))
	}
	if c.Inputs.CV < 0 || c.Inputs.Triggers < 0 {
		add(fmt.Errorf("input counts must be >= 0: cv=%d triggers=%d", c.Inputs.CV, c.Inputs.Triggers))
	}
	add(c.PipelineOptions().Validate())

	_, err := c.GateMode()
	add(err)
	_, err = c.Routing()
	add(err)
	_, err = c.SoftClipMask()
	add(err)
	_, err = c.Strategy()
	add(err)
	_, err = c.Sanitize()
	add(err)
	_, err = logging.ParseLevel(c.Logging.Level)
	add(err)

	switch c.Device.Kind {
	case "sim":
	case "oto":
		if s, _ := c.Strategy(); s != worker.Push {
			add(errors.New("device oto requires the push strategy"))
		}
	default:
		add(fmt.Errorf("unknown device kind %q, must be sim or oto", c.Device.Kind))
	}
	switch c.Device.Generator {
	case "silence", "sine":
	default:
		add(fmt.Errorf("unknown generator %q, must be silence or sine", c.Device.Generator))
	}

	if c.Plugins.Stereo != "" && (c.Plugins.Left != "" || c.Plugins.Right != "") {
		add(errors.New("plugins: stereo excludes left and right"))
	}
	if c.Registry.LockTimeoutMs < 0 || c.Registry.QuiesceTimeoutMs < 0 {
		add(errors.New("registry timeouts must be >= 0"))
	}
	return errors.Join(errs...)
}

// Format returns the stream format.
func (c *Config) Format() core.Format {
	return core.Format{
		SampleRate: c.Audio.SampleRate,
		BlockSize:  c.Audio.BlockSize,
		Channels:   c.Audio.Channels,
	}
}

// PipelineOptions maps the pipeline section to pipeline.Options.
func (c *Config) PipelineOptions() pipeline.Options {
	p := c.Pipeline
	return pipeline.Options{
		DisableDCFilter: !p.DCFilter,
		DCCutoff:        p.DCCutoffHz,
		OpenThreshold:   p.GateOpen,
		CloseThreshold:  p.GateClose,
		InputDecay:      p.InputDecay,
		OutputDecay:     p.OutputDecay,
		WarnThreshold:   p.WarnThreshold,
		CVInputs:        c.Inputs.CV,
		TriggerInputs:   c.Inputs.Triggers,
	}
}

// GateMode parses the configured gate mode.
func (c *Config) GateMode() (pipeline.GateMode, error) {
	return pipeline.ParseGateMode(c.Pipeline.GateMode)
}

// Routing parses the configured routing mode.
func (c *Config) Routing() (pipeline.Route, error) {
	return pipeline.ParseRoute(c.Pipeline.Routing)
}

// SoftClipMask parses the channels with soft clip enabled.
func (c *Config) SoftClipMask() (channel.Mask, error) {
	m, ok := channel.ParseMask(c.Pipeline.SoftClip)
	if !ok {
		return channel.MaskNone, fmt.Errorf("invalid softClip mask %q", c.Pipeline.SoftClip)
	}
	return m, nil
}

// Strategy parses the worker strategy.
func (c *Config) Strategy() (worker.Strategy, error) {
	return worker.ParseStrategy(c.Worker.Strategy)
}

// Sanitize parses the worker sanitize mode.
func (c *Config) Sanitize() (worker.Sanitize, error) {
	return worker.ParseSanitize(c.Worker.Sanitize)
}

// LockTimeout returns the registry lock timeout.
func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.Registry.LockTimeoutMs) * time.Millisecond
}

// QuiesceTimeout returns the registry quiesce timeout.
func (c *Config) QuiesceTimeout() time.Duration {
	return time.Duration(c.Registry.QuiesceTimeoutMs) * time.Millisecond
}

// PollInterval returns the control-plane metrics poll interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Control.PollIntervalMs) * time.Millisecond
}

// Assignments returns the startup plugin assignments.
func (c *Config) Assignments() []Assignment {
	var out []Assignment
	if c.Plugins.Stereo != "" {
		out = append(out, Assignment{Mask: channel.MaskBoth, Kind: plugin.Kind(c.Plugins.Stereo)})
	}
	if c.Plugins.Left != "" {
		out = append(out, Assignment{Mask: channel.MaskLeft, Kind: plugin.Kind(c.Plugins.Left)})
	}
	if c.Plugins.Right != "" {
		out = append(out, Assignment{Mask: channel.MaskRight, Kind: plugin.Kind(c.Plugins.Right)})
	}
	return out
}

// Assignment is one startup plugin activation.
type Assignment struct {
	Mask channel.Mask
	Kind plugin.Kind
}

// LoggingOptions maps the logging section.
func (c *Config) LoggingOptions() logging.Options {
	l := c.Logging
	return logging.Options{
		Level:      l.Level,
		Format:     l.Format,
		Source:     l.Source,
		File:       l.File,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAgeDays: l.MaxAgeDays,
		Compress:   l.Compress,
	}
}
