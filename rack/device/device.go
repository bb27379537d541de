// Package device defines the audio device abstraction the worker drives
// and a simulated implementation with a sample clock.
package device

import "errors"

// ErrClosed is returned by blocking calls once the device is deinitialized.
var ErrClosed = errors.New("device: closed")

// Device is a block-oriented stereo codec. Buffers are interleaved L/R
// float32 of one block. ReadBuffer blocks until the next block is
// available; this is the only place the audio goroutine waits.
type Device interface {
	Init() error
	Deinit() error
	ReadBuffer(buf []float32) error
	WriteBuffer(buf []float32) error
	SetOutputLevels(left, right float32)
	RecalibrateDCOffset()
}

// PushDevice is a Device that drives processing itself: after Start it
// calls process from its own audio goroutine with a buffer holding the
// input block, and plays back what process leaves in it.
type PushDevice interface {
	Device
	Start(process func(buf []float32)) error
	Stop() error
}

// Flusher is implemented by devices that buffer output and can drain it
// before shutdown.
type Flusher interface {
	Flush() error
}
