// Package otodev plays the pipeline output through the host sound system
// using oto. It is a push device: oto pulls samples and each pull runs as
// many blocks as needed.
//
// Built with the headless tag the device discards output at the block rate,
// which keeps the daemon runnable on machines without audio.
package otodev

import (
	"errors"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/rack/device"
)

// ErrPullUnsupported is returned by ReadBuffer and WriteBuffer; the device
// only supports the push strategy.
var ErrPullUnsupported = errors.New("otodev: pull strategy not supported")

const defaultBufferBlocks = 8

// Option configures a Device.
type Option func(*Device)

// WithGenerator sets the input source fed to the pipeline. The host has no
// codec input, so the default is silence.
func WithGenerator(g device.Generator) Option {
	return func(d *Device) {
		if g != nil {
			d.gen = g
		}
	}
}

// WithBufferBlocks sets the oto buffer length in blocks.
func WithBufferBlocks(n int) Option {
	return func(d *Device) {
		if n > 0 {
			d.bufferBlocks = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Device) {
		if l != nil {
			d.logger = l
		}
	}
}

// Device is a host audio output.
type Device struct {
	format       core.Format
	gen          device.Generator
	bufferBlocks int
	logger       *slog.Logger

	mu      sync.Mutex
	open    bool
	backend backend

	levelL atomic.Uint32
	levelR atomic.Uint32
}

var _ device.PushDevice = (*Device)(nil)

// New creates a device for format f.
func New(f core.Format, opts ...Option) *Device {
	d := &Device{
		format:       f,
		gen:          device.Silence,
		bufferBlocks: defaultBufferBlocks,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	d.SetOutputLevels(1, 1)
	return d
}

func (d *Device) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open {
		return errors.New("otodev: already initialized")
	}
	d.open = true
	return nil
}

func (d *Device) Deinit() error {
	if err := d.Stop(); err != nil {
		return err
	}
	d.mu.Lock()
	d.open = false
	d.mu.Unlock()
	return nil
}

func (d *Device) ReadBuffer([]float32) error  { return ErrPullUnsupported }
func (d *Device) WriteBuffer([]float32) error { return ErrPullUnsupported }

func (d *Device) SetOutputLevels(left, right float32) {
	d.levelL.Store(math.Float32bits(left))
	d.levelR.Store(math.Float32bits(right))
}

func (d *Device) levels() (float32, float32) {
	return math.Float32frombits(d.levelL.Load()), math.Float32frombits(d.levelR.Load())
}

// RecalibrateDCOffset is a no-op; the host path has no codec offset.
func (d *Device) RecalibrateDCOffset() {}

// Start opens the player and begins pulling blocks through process.
func (d *Device) Start(process func(buf []float32)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return device.ErrClosed
	}
	if d.backend.running() {
		return errors.New("otodev: already started")
	}

	r := newBlockReader(d.format, d.gen, process, d.levels)
	if err := d.backend.start(d.format, d.bufferBlocks, r); err != nil {
		return err
	}
	d.logger.Info("host audio output started",
		"sample_rate", d.format.SampleRate,
		"buffer", d.format.Period()*time.Duration(d.bufferBlocks))
	return nil
}

// Stop closes the player.
func (d *Device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.backend.stop()
}
