// Package control is the control-plane entry point of the rack. A
// Controller serializes commands from any number of callers onto one
// goroutine and exposes status, levels and change events.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cwbudde/algo-rack/rack/channel"
	"github.com/cwbudde/algo-rack/rack/device"
	"github.com/cwbudde/algo-rack/rack/lock"
	"github.com/cwbudde/algo-rack/rack/pipeline"
	"github.com/cwbudde/algo-rack/rack/plugin"
	"github.com/cwbudde/algo-rack/rack/registry"
	"github.com/cwbudde/algo-rack/rack/worker"
)

const (
	defaultQueueSize    = 32
	defaultPollInterval = 50 * time.Millisecond
)

// Config wires a Controller to the components it drives. Registry,
// Pipeline, Worker and Device are required.
type Config struct {
	Registry *registry.Registry
	Pipeline *pipeline.Pipeline
	Worker   *worker.Worker
	Device   device.Device

	// Hub should be the observer the registry was built with; events
	// reach subscribers through it. Optional.
	Hub *Hub

	// Controls receives SetCV and SetTrigger commands. Optional.
	Controls *pipeline.StaticControls

	QueueSize    int
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Controller is the control-plane façade.
type Controller struct {
	reg      *registry.Registry
	pipe     *pipeline.Pipeline
	params   *pipeline.Params
	worker   *worker.Worker
	dev      device.Device
	hub      *Hub
	controls *pipeline.StaticControls
	queue    *lock.Queue
	poll     time.Duration
	logger   *slog.Logger

	latest   atomic.Pointer[pipeline.Metrics]
	warning  bool
	overruns uint64
}

// New validates cfg and creates a Controller.
func New(cfg Config) (*Controller, error) {
	if cfg.Registry == nil || cfg.Pipeline == nil || cfg.Worker == nil || cfg.Device == nil {
		return nil, errors.New("control: registry, pipeline, worker and device are required")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Hub == nil {
		cfg.Hub = NewHub()
	}

	return &Controller{
		reg:      cfg.Registry,
		pipe:     cfg.Pipeline,
		params:   cfg.Pipeline.Params(),
		worker:   cfg.Worker,
		dev:      cfg.Device,
		hub:      cfg.Hub,
		controls: cfg.Controls,
		queue:    lock.NewQueue(cfg.QueueSize),
		poll:     cfg.PollInterval,
		logger:   cfg.Logger,
	}, nil
}

// Start starts the command queue and the audio worker.
func (c *Controller) Start(ctx context.Context) error {
	c.queue.Start()
	return c.worker.Begin(ctx)
}

// Run polls the worker metrics until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	t := time.NewTicker(c.poll)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			c.pollMetrics()
		}
	}
}

// Close stops the worker, drains pending commands and tears down all
// plugins.
func (c *Controller) Close() error {
	var errs []error
	if s := c.worker.State(); s == worker.Running || s == worker.Paused {
		errs = append(errs, c.worker.End())
	}
	c.queue.Close()
	errs = append(errs, c.reg.Reset())
	return errors.Join(errs...)
}

func (c *Controller) pollMetrics() {
	m, n := c.worker.Metrics().Drain()
	if n == 0 {
		return
	}
	c.latest.Store(&m)

	if m.Warning != c.warning {
		c.warning = m.Warning
		if m.Warning {
			c.logger.Warn("output level warning", "output_peak", m.OutputPeak)
		} else {
			c.logger.Info("output level back in range")
		}
	}
	if st := c.worker.Stats(); st.Overruns > c.overruns {
		c.logger.Warn("audio block overruns",
			"new", st.Overruns-c.overruns,
			"total", st.Overruns,
			"max_load", st.MaxLoad)
		c.overruns = st.Overruns
	}
}

// Levels returns the most recent block metrics.
func (c *Controller) Levels() (pipeline.Metrics, bool) {
	if m := c.latest.Load(); m != nil {
		return *m, true
	}
	return pipeline.Metrics{}, false
}

// Subscribe returns registry change events.
func (c *Controller) Subscribe(buffer int) (<-chan registry.Event, func()) {
	return c.hub.Subscribe(buffer)
}

func (c *Controller) do(ctx context.Context, name string, fn func() error) error {
	err := c.queue.Do(ctx, lock.Func(func(context.Context) error { return fn() }))
	if err != nil {
		c.logger.Debug("command failed", "command", name, "error", err)
		return err
	}
	c.logger.Debug("command applied", "command", name)
	return nil
}

// SetPlugin activates kind on mask.
func (c *Controller) SetPlugin(ctx context.Context, mask channel.Mask, kind plugin.Kind) error {
	return c.do(ctx, "set_plugin", func() error { return c.reg.SetPlugin(mask, kind) })
}

// Replace swaps whatever owns mask for kind.
func (c *Controller) Replace(ctx context.Context, mask channel.Mask, kind plugin.Kind) error {
	return c.do(ctx, "replace", func() error { return c.reg.Replace(mask, kind) })
}

// Clear removes the owners of mask.
func (c *Controller) Clear(ctx context.Context, mask channel.Mask) error {
	return c.do(ctx, "clear", func() error { return c.reg.Clear(mask) })
}

// Reset removes every plugin.
func (c *Controller) Reset(ctx context.Context) error {
	return c.do(ctx, "reset", c.reg.Reset)
}

// SetParam sets a parameter by name.
func (c *Controller) SetParam(ctx context.Context, mask channel.Mask, name string, v float64) error {
	return c.do(ctx, "set_param", func() error { return c.reg.SetValue(mask, name, v) })
}

// MapCV maps a parameter to a CV or trigger input; -1 unmaps it.
func (c *Controller) MapCV(ctx context.Context, mask channel.Mask, name string, input int) error {
	return c.do(ctx, "map_cv", func() error { return c.reg.MapCVByName(mask, name, input) })
}

// SetGateMode sets the noise gate mode.
func (c *Controller) SetGateMode(ctx context.Context, m pipeline.GateMode) error {
	return c.do(ctx, "set_gate", func() error {
		c.params.SetGateMode(m)
		return nil
	})
}

// SetRouting sets the channel routing mode.
func (c *Controller) SetRouting(ctx context.Context, r pipeline.Route) error {
	if !r.Valid() {
		return fmt.Errorf("control: invalid route %d", r)
	}
	return c.do(ctx, "set_routing", func() error {
		c.params.SetRouting(r)
		return nil
	})
}

// SetDaisy enables feeding the left output into the right input.
func (c *Controller) SetDaisy(ctx context.Context, on bool) error {
	return c.do(ctx, "set_daisy", func() error {
		c.params.SetDaisy(on)
		return nil
	})
}

// SetSoftClip enables the soft clipper on the channels in mask.
func (c *Controller) SetSoftClip(ctx context.Context, mask channel.Mask, on bool) error {
	if !mask.Valid() || mask == channel.MaskNone {
		return fmt.Errorf("%w: %s", registry.ErrBadChannelMapping, mask)
	}
	return c.do(ctx, "set_soft_clip", func() error {
		c.params.SetSoftClip(mask, on)
		return nil
	})
}

// SetOutputLevels sets the device output gain.
func (c *Controller) SetOutputLevels(ctx context.Context, left, right float32) error {
	return c.do(ctx, "set_output_levels", func() error {
		c.dev.SetOutputLevels(left, right)
		return nil
	})
}

// RecalibrateDCOffset asks the device to re-measure its input offset.
func (c *Controller) RecalibrateDCOffset(ctx context.Context) error {
	return c.do(ctx, "recalibrate", func() error {
		c.dev.RecalibrateDCOffset()
		return nil
	})
}

// SetCV sets a simulated CV input.
func (c *Controller) SetCV(ctx context.Context, input int, v float32) error {
	if c.controls == nil {
		return errors.New("control: no simulated controls")
	}
	return c.do(ctx, "set_cv", func() error {
		c.controls.SetCV(input, v)
		return nil
	})
}

// SetTrigger sets a simulated trigger input.
func (c *Controller) SetTrigger(ctx context.Context, input int, on bool) error {
	if c.controls == nil {
		return errors.New("control: no simulated controls")
	}
	return c.do(ctx, "set_trigger", func() error {
		c.controls.SetTrigger(input, on)
		return nil
	})
}

// Pause bypasses plugin processing.
func (c *Controller) Pause(ctx context.Context) error {
	return c.do(ctx, "pause", c.worker.Pause)
}

// Resume re-enables plugin processing.
func (c *Controller) Resume(ctx context.Context) error {
	return c.do(ctx, "resume", c.worker.Resume)
}

// Readouts returns the values reported by the plugin on mask.
func (c *Controller) Readouts(mask channel.Mask) (map[string]float64, error) {
	return c.reg.Readouts(mask)
}

// Status is a point-in-time view of the rack.
type Status struct {
	State          worker.State
	Stats          worker.Stats
	Stereo         bool
	Left, Right    plugin.Kind
	Slots          []registry.SlotInfo
	ArenaBytes     int
	RemainingBytes int
	Gate           pipeline.GateMode
	Route          pipeline.Route
	Daisy          bool
	SoftClip       [2]bool
}

// Status reads the current state without going through the queue.
func (c *Controller) Status() Status {
	s := Status{
		State:          c.worker.State(),
		Stats:          c.worker.Stats(),
		Stereo:         c.reg.IsStereo(),
		Slots:          c.reg.Snapshot(),
		ArenaBytes:     c.reg.ArenaSize(),
		RemainingBytes: c.reg.RemainingBufferSize(),
		Gate:           c.params.GateMode(),
		Route:          c.params.Routing(),
		Daisy:          c.params.Daisy(),
		SoftClip:       [2]bool{c.params.SoftClip(channel.Left), c.params.SoftClip(channel.Right)},
	}
	s.Left, _ = c.reg.OnLeft()
	s.Right, _ = c.reg.OnRight()
	return s
}
