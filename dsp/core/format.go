package core

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidFormat is returned by Format.Validate.
var ErrInvalidFormat = errors.New("invalid stream format")

// Format describes the fixed stream layout of the audio core. It is chosen
// once at startup and never renegotiated.
type Format struct {
	SampleRate float64
	BlockSize  int // frames per block
	Channels   int
}

// FormatOption mutates a Format.
type FormatOption func(*Format)

// DefaultFormat returns the module's native layout: 44.1 kHz, 32-frame
// blocks, two channels.
func DefaultFormat() Format {
	return Format{
		SampleRate: 44100,
		BlockSize:  32,
		Channels:   2,
	}
}

// WithSampleRate sets the processing sample rate.
func WithSampleRate(sampleRate float64) FormatOption {
	return func(f *Format) {
		if sampleRate > 0 {
			f.SampleRate = sampleRate
		}
	}
}

// WithBlockSize sets the number of frames per block.
func WithBlockSize(blockSize int) FormatOption {
	return func(f *Format) {
		if blockSize > 0 {
			f.BlockSize = blockSize
		}
	}
}

// ApplyFormatOptions applies zero or more options to the default format.
func ApplyFormatOptions(opts ...FormatOption) Format {
	f := DefaultFormat()
	for _, opt := range opts {
		if opt != nil {
			opt(&f)
		}
	}

	return f
}

// Samples returns the interleaved sample count of one block.
func (f Format) Samples() int {
	return f.BlockSize * f.Channels
}

// Period returns the wall-clock duration of one block.
func (f Format) Period() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}

	return time.Duration(float64(f.BlockSize) / f.SampleRate * float64(time.Second))
}

// Validate checks the format against what the core supports.
func (f Format) Validate() error {
	if f.SampleRate <= 0 || f.SampleRate != f.SampleRate {
		return fmt.Errorf("%w: sample rate %v", ErrInvalidFormat, f.SampleRate)
	}

	if f.BlockSize <= 0 {
		return fmt.Errorf("%w: block size %d", ErrInvalidFormat, f.BlockSize)
	}

	if f.Channels != 2 {
		return fmt.Errorf("%w: %d channels, only stereo is supported", ErrInvalidFormat, f.Channels)
	}

	return nil
}
