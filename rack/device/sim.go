package device

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cwbudde/algo-rack/dsp/core"
)

const defaultCaptureFrames = 1 << 16

// SimOption configures a Sim.
type SimOption func(*Sim)

// WithGenerator sets the input source. The default is Silence.
func WithGenerator(g Generator) SimOption {
	return func(s *Sim) {
		if g != nil {
			s.gen = g
		}
	}
}

// WithRealtime paces blocks with a ticker at the block period. Without it
// the device is free-running, which is what tests want.
func WithRealtime(on bool) SimOption {
	return func(s *Sim) { s.realtime = on }
}

// WithCapture keeps the last frames output frames for inspection.
func WithCapture(frames int) SimOption {
	return func(s *Sim) {
		if frames >= 0 {
			s.captureFrames = frames
		}
	}
}

// Sim is a simulated stereo codec with a sample clock. It implements both
// Device and PushDevice.
type Sim struct {
	format        core.Format
	gen           Generator
	realtime      bool
	captureFrames int

	mu       sync.Mutex
	open     bool
	done     chan struct{}
	ticker   *time.Ticker
	captured []float32
	flushes  int
	pushWG   sync.WaitGroup

	frame    atomic.Uint64
	written  atomic.Uint64
	levelL   atomic.Uint32
	levelR   atomic.Uint32
	recals   atomic.Uint32
	pushStop chan struct{}
}

// NewSim creates a simulated device for format f.
func NewSim(f core.Format, opts ...SimOption) *Sim {
	s := &Sim{format: f, gen: Silence, captureFrames: defaultCaptureFrames}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.SetOutputLevels(1, 1)
	return s
}

// Init opens the device and starts the sample clock.
func (s *Sim) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return errors.New("device: sim already initialized")
	}
	s.open = true
	s.done = make(chan struct{})
	s.frame.Store(0)
	if s.realtime {
		s.ticker = time.NewTicker(s.format.Period())
	}
	return nil
}

// Deinit stops the clock and unblocks pending reads.
func (s *Sim) Deinit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil
	}
	s.open = false
	close(s.done)
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
	return nil
}

func (s *Sim) tick() <-chan time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticker == nil {
		return nil
	}
	return s.ticker.C
}

func (s *Sim) closed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		c := make(chan struct{})
		close(c)
		return c
	}
	return s.done
}

// ReadBuffer waits for the next block period (in realtime mode) and fills
// buf from the generator.
func (s *Sim) ReadBuffer(buf []float32) error {
	done := s.closed()
	if tick := s.tick(); tick != nil {
		select {
		case <-tick:
		case <-done:
			return ErrClosed
		}
	} else {
		select {
		case <-done:
			return ErrClosed
		default:
		}
	}
	s.gen.Generate(buf, s.frame.Load())
	s.frame.Add(uint64(len(buf) / 2))
	return nil
}

// WriteBuffer applies the output levels and records the block.
func (s *Sim) WriteBuffer(buf []float32) error {
	select {
	case <-s.closed():
		return ErrClosed
	default:
	}

	l := math.Float32frombits(s.levelL.Load())
	r := math.Float32frombits(s.levelR.Load())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.captureFrames > 0 {
		for i := 0; i+1 < len(buf); i += 2 {
			s.captured = append(s.captured, buf[i]*l, buf[i+1]*r)
		}
		if over := len(s.captured) - 2*s.captureFrames; over > 0 {
			s.captured = append(s.captured[:0], s.captured[over:]...)
		}
	}
	s.written.Add(uint64(len(buf) / 2))
	return nil
}

// Flush records that the output was drained.
func (s *Sim) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	return nil
}

// SetOutputLevels sets the output gain per channel.
func (s *Sim) SetOutputLevels(left, right float32) {
	s.levelL.Store(math.Float32bits(left))
	s.levelR.Store(math.Float32bits(right))
}

// OutputLevels returns the output gain per channel.
func (s *Sim) OutputLevels() (left, right float32) {
	return math.Float32frombits(s.levelL.Load()), math.Float32frombits(s.levelR.Load())
}

// RecalibrateDCOffset counts calibration requests.
func (s *Sim) RecalibrateDCOffset() { s.recals.Add(1) }

// Recalibrations returns the number of RecalibrateDCOffset calls.
func (s *Sim) Recalibrations() int { return int(s.recals.Load()) }

// Captured returns a copy of the captured output frames.
func (s *Sim) Captured() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float32(nil), s.captured...)
}

// FramesWritten returns the number of frames written since creation.
func (s *Sim) FramesWritten() uint64 { return s.written.Load() }

// Flushes returns the number of Flush calls.
func (s *Sim) Flushes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushes
}

// Start runs the device in push mode: a goroutine reads a block, hands it
// to process and writes it back until Stop or Deinit.
func (s *Sim) Start(process func(buf []float32)) error {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.pushStop != nil {
		s.mu.Unlock()
		return errors.New("device: sim already started")
	}
	stop := make(chan struct{})
	s.pushStop = stop
	s.mu.Unlock()

	buf := make([]float32, s.format.Samples())
	s.pushWG.Add(1)
	go func() {
		defer s.pushWG.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			if err := s.ReadBuffer(buf); err != nil {
				return
			}
			process(buf)
			if err := s.WriteBuffer(buf); err != nil {
				return
			}
		}
	}()
	return nil
}

// Stop ends push mode and waits for the callback goroutine to exit.
func (s *Sim) Stop() error {
	s.mu.Lock()
	stop := s.pushStop
	s.pushStop = nil
	s.mu.Unlock()
	if stop != nil {
		close(stop)
	}
	s.pushWG.Wait()
	return nil
}
