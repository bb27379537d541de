package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/cwbudde/algo-rack/rack/device"
	"github.com/cwbudde/algo-rack/rack/lock"
	"github.com/cwbudde/algo-rack/rack/pipeline"
)

const (
	defaultMetricsCapacity = 64
	defaultNice            = -10
)

// Option configures a Worker.
type Option func(*Worker)

// WithStrategy selects Pull (default) or Push scheduling.
func WithStrategy(s Strategy) Option {
	return func(w *Worker) { w.strategy = s }
}

// WithSanitize selects the input sanitize mode.
func WithSanitize(s Sanitize) Option {
	return func(w *Worker) { w.sanitize = s }
}

// WithNice sets the nice value requested for the pull thread. Zero leaves
// the priority alone.
func WithNice(nice int) Option {
	return func(w *Worker) { w.nice = nice }
}

// WithMetricsCapacity sets the size of the metrics ring.
func WithMetricsCapacity(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.metricsCap = n
		}
	}
}

// WithLogger sets the logger used outside the block loop.
func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// Stats are cumulative block counters since the last Begin.
type Stats struct {
	Blocks     uint64
	Overruns   uint64
	ReadErrors uint64
	MaxLoad    time.Duration
}

// Worker drives a pipeline from a device.
type Worker struct {
	dev        device.Device
	pipe       *pipeline.Pipeline
	strategy   Strategy
	sanitize   Sanitize
	nice       int
	metricsCap int
	logger     *slog.Logger

	ctl     lock.Mutex
	state   atomic.Uint32
	metrics *lock.Ring[pipeline.Metrics]
	cancel  context.CancelFunc
	done    chan struct{}

	period     time.Duration
	blocks     atomic.Uint64
	overruns   atomic.Uint64
	readErrors atomic.Uint64
	maxLoad    atomic.Int64
}

// New creates a stopped worker.
func New(dev device.Device, pipe *pipeline.Pipeline, opts ...Option) (*Worker, error) {
	if dev == nil || pipe == nil {
		return nil, errors.New("worker: nil device or pipeline")
	}

	w := &Worker{
		dev:        dev,
		pipe:       pipe,
		nice:       defaultNice,
		metricsCap: defaultMetricsCapacity,
		logger:     slog.Default(),
		period:     pipe.Format().Period(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}

	if w.strategy == Push {
		if _, ok := dev.(device.PushDevice); !ok {
			return nil, fmt.Errorf("worker: push strategy needs a push device, got %T", dev)
		}
	}

	w.metrics = lock.NewRing[pipeline.Metrics](w.metricsCap)
	return w, nil
}

// State returns the current lifecycle state.
func (w *Worker) State() State { return State(w.state.Load()) }

// Metrics returns the ring the block loop publishes to. There must be a
// single consumer.
func (w *Worker) Metrics() *lock.Ring[pipeline.Metrics] { return w.metrics }

// Strategy returns the scheduling strategy.
func (w *Worker) Strategy() Strategy { return w.strategy }

// Stats returns the block counters.
func (w *Worker) Stats() Stats {
	return Stats{
		Blocks:     w.blocks.Load(),
		Overruns:   w.overruns.Load(),
		ReadErrors: w.readErrors.Load(),
		MaxLoad:    time.Duration(w.maxLoad.Load()),
	}
}

// Begin initializes the device and pipeline and starts the real-time
// context. It returns once blocks are flowing or ctx is done.
func (w *Worker) Begin(ctx context.Context) error {
	w.ctl.Lock()
	defer w.ctl.Unlock()

	if !w.state.CompareAndSwap(uint32(Stopped), uint32(Starting)) {
		return fmt.Errorf("%w: begin from %s", ErrInvalidState, w.State())
	}

	if err := w.dev.Init(); err != nil {
		w.state.Store(uint32(Stopped))
		return fmt.Errorf("worker: device init: %w", err)
	}

	w.blocks.Store(0)
	w.overruns.Store(0)
	w.readErrors.Store(0)
	w.maxLoad.Store(0)
	w.pipe.Params().SetBypass(false)
	w.pipe.Startup()

	runCtx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	started := make(chan error, 1)

	switch w.strategy {
	case Push:
		go w.runPush(runCtx, started)
	default:
		go w.runPull(runCtx, started)
	}

	var err error
	select {
	case err = <-started:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		w.stopLocked()
		return fmt.Errorf("worker: start: %w", err)
	}

	w.state.Store(uint32(Running))
	w.logger.Info("audio worker running",
		"strategy", w.strategy.String(),
		"sanitize", w.sanitize.String(),
		"period", w.period)
	return nil
}

// Pause bypasses plugin dispatch.
func (w *Worker) Pause() error {
	return w.toggle(Running, Paused, true)
}

// Resume re-enables plugin dispatch.
func (w *Worker) Resume() error {
	return w.toggle(Paused, Running, false)
}

func (w *Worker) toggle(from, to State, bypass bool) error {
	w.ctl.Lock()
	defer w.ctl.Unlock()

	if !w.state.CompareAndSwap(uint32(from), uint32(to)) {
		return fmt.Errorf("%w: %s from %s", ErrInvalidState, to, w.State())
	}
	w.pipe.Params().SetBypass(bypass)
	return nil
}

// End stops the real-time context after the current block, flushes the
// device, and deinitializes it.
func (w *Worker) End() error {
	w.ctl.Lock()
	defer w.ctl.Unlock()

	s := w.State()
	if s != Running && s != Paused {
		return fmt.Errorf("%w: end from %s", ErrInvalidState, s)
	}
	w.state.Store(uint32(Stopping))

	err := w.stopLocked()
	st := w.Stats()
	w.logger.Info("audio worker stopped",
		"blocks", st.Blocks,
		"overruns", st.Overruns,
		"max_load", st.MaxLoad)
	return err
}

func (w *Worker) stopLocked() error {
	w.cancel()
	<-w.done

	var errs []error
	if f, ok := w.dev.(device.Flusher); ok {
		if err := f.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("worker: flush: %w", err))
		}
	}
	w.pipe.Cleanup()
	if err := w.dev.Deinit(); err != nil {
		errs = append(errs, fmt.Errorf("worker: device deinit: %w", err))
	}
	w.pipe.Params().SetBypass(false)
	w.state.Store(uint32(Stopped))
	return errors.Join(errs...)
}

func (w *Worker) runPull(ctx context.Context, started chan<- error) {
	defer close(w.done)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := raisePriority(w.nice); err != nil {
		w.logger.Warn("audio thread priority unchanged", "nice", w.nice, "error", err)
	}
	started <- nil

	buf := make([]float32, w.pipe.Format().Samples())
	for ctx.Err() == nil {
		if err := w.dev.ReadBuffer(buf); err != nil {
			if errors.Is(err, device.ErrClosed) {
				return
			}
			w.readErrors.Add(1)
			clear(buf)
		}
		w.process(buf)
		if err := w.dev.WriteBuffer(buf); errors.Is(err, device.ErrClosed) {
			return
		}
	}
}

func (w *Worker) runPush(ctx context.Context, started chan<- error) {
	defer close(w.done)

	pd := w.dev.(device.PushDevice)
	if err := pd.Start(w.process); err != nil {
		started <- err
		return
	}
	started <- nil

	<-ctx.Done()
	if err := pd.Stop(); err != nil {
		w.logger.Warn("push device stop", "error", err)
	}
}

// process runs one block on the real-time goroutine. It must not block or
// allocate.
func (w *Worker) process(buf []float32) {
	start := time.Now()

	sanitize(buf, w.sanitize)
	m := w.pipe.Consume(buf)

	load := time.Since(start)
	if load > w.period {
		m.Overrun = true
		w.overruns.Add(1)
	}
	if int64(load) > w.maxLoad.Load() {
		w.maxLoad.Store(int64(load))
	}
	w.blocks.Add(1)
	w.metrics.TryPush(m)
}
