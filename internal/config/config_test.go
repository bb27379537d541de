package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/algo-rack/rack/channel"
	"github.com/cwbudde/algo-rack/rack/pipeline"
	"github.com/cwbudde/algo-rack/rack/worker"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rack.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	opts := cfg.PipelineOptions()
	want := pipeline.DefaultOptions()
	if opts.OpenThreshold != want.OpenThreshold || opts.CloseThreshold != want.CloseThreshold ||
		opts.DCCutoff != want.DCCutoff || opts.DisableDCFilter {
		t.Fatalf("pipeline options %+v", opts)
	}
	if cfg.LockTimeout() != 50*time.Millisecond || cfg.QuiesceTimeout() != 100*time.Millisecond {
		t.Fatal("registry timeouts")
	}
	if len(cfg.Assignments()) != 0 {
		t.Fatal("default config activates plugins")
	}
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv(EnvConfig, "")
	t.Setenv(EnvLogLevel, "")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Format().SampleRate != 44100 || cfg.Format().BlockSize != 32 {
		t.Fatalf("format %+v", cfg.Format())
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
audio:
  sampleRate: 48000
  blockSize: 64
  channels: 2
pipeline:
  dcFilter: false
  dcCutoffHz: 3.7
  gateOpen: 0.001
  gateClose: 0.0005
  inputDecay: 0.95
  outputDecay: 0.9
  warnThreshold: 1
  gateMode: left
  routing: swap
  softClip: right
device:
  kind: oto
  generator: sine
worker:
  strategy: push
  sanitize: zero
plugins:
  left: gain
  right: delay
logging:
  level: info
`)
	t.Setenv(EnvConfig, path)
	t.Setenv(EnvLogLevel, "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if f := cfg.Format(); f.SampleRate != 48000 || f.BlockSize != 64 {
		t.Fatalf("format %+v", f)
	}
	if !cfg.PipelineOptions().DisableDCFilter {
		t.Fatal("dcFilter: false not applied")
	}
	if g, _ := cfg.GateMode(); g != pipeline.GateLeft {
		t.Fatalf("gate %v", g)
	}
	if r, _ := cfg.Routing(); r != pipeline.RouteSwap {
		t.Fatalf("routing %v", r)
	}
	if m, _ := cfg.SoftClipMask(); m != channel.MaskRight {
		t.Fatalf("soft clip %v", m)
	}
	if s, _ := cfg.Strategy(); s != worker.Push {
		t.Fatalf("strategy %v", s)
	}
	if s, _ := cfg.Sanitize(); s != worker.SanitizeZero {
		t.Fatalf("sanitize %v", s)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("log level %q, env override not applied", cfg.Logging.Level)
	}
	// Sections absent from the file keep their defaults.
	if cfg.Arena.Bytes != Default().Arena.Bytes {
		t.Fatalf("arena %d", cfg.Arena.Bytes)
	}

	as := cfg.Assignments()
	if len(as) != 2 || as[0].Mask != channel.MaskLeft || as[0].Kind != "gain" || as[1].Kind != "delay" {
		t.Fatalf("assignments %+v", as)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	t.Setenv(EnvConfig, writeConfig(t, "audio:\n  sampleRte: 48000\n"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for misspelled field")
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv(EnvConfig, filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		substr string
	}{
		{"mono", func(c *Config) { c.Audio.Channels = 1 }, "format"},
		{"arena", func(c *Config) { c.Arena.Bytes = 0 }, "arena"},
		{"inputs", func(c *Config) { c.Inputs.CV = -1 }, "input counts"},
		{"thresholds", func(c *Config) { c.Pipeline.GateClose = 0.01 }, "threshold"},
		{"gate", func(c *Config) { c.Pipeline.GateMode = "sometimes" }, "gate mode"},
		{"routing", func(c *Config) { c.Pipeline.Routing = "diagonal" }, "route"},
		{"softclip", func(c *Config) { c.Pipeline.SoftClip = "middle" }, "softClip"},
		{"strategy", func(c *Config) { c.Worker.Strategy = "poll" }, "strategy"},
		{"sanitize", func(c *Config) { c.Worker.Sanitize = "wrap" }, "sanitize"},
		{"level", func(c *Config) { c.Logging.Level = "loud" }, "logging"},
		{"device", func(c *Config) { c.Device.Kind = "alsa" }, "device kind"},
		{"oto pull", func(c *Config) { c.Device.Kind = "oto" }, "push strategy"},
		{"generator", func(c *Config) { c.Device.Generator = "noise" }, "generator"},
		{"plugins", func(c *Config) { c.Plugins.Stereo = "analyzer"; c.Plugins.Left = "gain" }, "stereo excludes"},
		{"timeouts", func(c *Config) { c.Registry.LockTimeoutMs = -1 }, "timeouts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.substr) {
				t.Fatalf("error %q does not mention %q", err, tt.substr)
			}
		})
	}
}
