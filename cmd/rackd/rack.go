package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cwbudde/algo-rack/internal/config"
	"github.com/cwbudde/algo-rack/rack/control"
	"github.com/cwbudde/algo-rack/rack/device"
	"github.com/cwbudde/algo-rack/rack/device/otodev"
	"github.com/cwbudde/algo-rack/rack/pipeline"
	"github.com/cwbudde/algo-rack/rack/plugin/builtin"
	"github.com/cwbudde/algo-rack/rack/registry"
	"github.com/cwbudde/algo-rack/rack/worker"
)

// rack holds the wired components of one daemon instance.
type rack struct {
	ctl    *control.Controller
	logger *slog.Logger
}

// build wires registry, pipeline, device, worker and controller from cfg.
// cfg must be validated.
func build(cfg *config.Config, logger *slog.Logger) (*rack, error) {
	format := cfg.Format()
	hub := control.NewHub()

	reg, err := registry.New(builtin.Catalog(),
		registry.WithFormat(format),
		registry.WithArenaSize(cfg.Arena.Bytes),
		registry.WithInputs(cfg.Inputs.CV, cfg.Inputs.Triggers),
		registry.WithLockTimeout(cfg.LockTimeout()),
		registry.WithQuiesceTimeout(cfg.QuiesceTimeout()),
		registry.WithObserver(hub),
		registry.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	params := &pipeline.Params{}
	gate, _ := cfg.GateMode()
	route, _ := cfg.Routing()
	clip, _ := cfg.SoftClipMask()
	params.SetGateMode(gate)
	params.SetRouting(route)
	params.SetDaisy(cfg.Pipeline.Daisy)
	params.SetSoftClip(clip, true)

	controls := pipeline.NewStaticControls(cfg.Inputs.CV, cfg.Inputs.Triggers)
	opts := cfg.PipelineOptions()
	opts.Logger = logger
	pipe, err := pipeline.New(format, reg, params, controls, opts)
	if err != nil {
		return nil, err
	}

	dev := newDevice(cfg, logger)
	strategy, _ := cfg.Strategy()
	sanitize, _ := cfg.Sanitize()
	w, err := worker.New(dev, pipe,
		worker.WithStrategy(strategy),
		worker.WithSanitize(sanitize),
		worker.WithNice(cfg.Worker.Nice),
		worker.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	ctl, err := control.New(control.Config{
		Registry:     reg,
		Pipeline:     pipe,
		Worker:       w,
		Device:       dev,
		Hub:          hub,
		Controls:     controls,
		QueueSize:    cfg.Control.QueueSize,
		PollInterval: cfg.PollInterval(),
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}
	return &rack{ctl: ctl, logger: logger}, nil
}

func newDevice(cfg *config.Config, logger *slog.Logger) device.Device {
	format := cfg.Format()
	var gen device.Generator = device.Silence
	if cfg.Device.Generator == "sine" {
		gen = device.Sine(cfg.Device.SineHz, format.SampleRate, float32(cfg.Device.Level))
	}

	if cfg.Device.Kind == "oto" {
		return otodev.New(format,
			otodev.WithGenerator(gen),
			otodev.WithBufferBlocks(cfg.Device.Buffer),
			otodev.WithLogger(logger))
	}
	return device.NewSim(format,
		device.WithGenerator(gen),
		device.WithRealtime(cfg.Device.Realtime),
		device.WithCapture(0))
}

// start begins audio processing and activates the configured plugins.
// A plugin that fails to activate is logged and skipped.
func (r *rack) start(ctx context.Context, cfg *config.Config) error {
	if err := r.ctl.Start(ctx); err != nil {
		return fmt.Errorf("start audio: %w", err)
	}
	for _, a := range cfg.Assignments() {
		if err := r.ctl.SetPlugin(ctx, a.Mask, a.Kind); err != nil {
			r.logger.Error("startup plugin not activated", "mask", a.Mask.String(), "kind", string(a.Kind), "error", err)
		}
	}
	return nil
}
