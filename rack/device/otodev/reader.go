package otodev

import (
	"encoding/binary"
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/rack/device"
)

// blockReader turns block processing into an io.Reader of little-endian
// float32 stereo frames.
type blockReader struct {
	gen     device.Generator
	process func([]float32)
	levels  func() (float32, float32)

	block   []float32
	bytes   []byte
	pending []byte
	frame   uint64
}

func newBlockReader(f core.Format, gen device.Generator, process func([]float32), levels func() (float32, float32)) *blockReader {
	n := f.Samples()
	return &blockReader{
		gen:     gen,
		process: process,
		levels:  levels,
		block:   make([]float32, n),
		bytes:   make([]byte, 4*n),
	}
}

func (r *blockReader) next() {
	r.gen.Generate(r.block, r.frame)
	r.frame += uint64(len(r.block) / 2)
	r.process(r.block)

	l, rt := r.levels()
	for i := 0; i+1 < len(r.block); i += 2 {
		binary.LittleEndian.PutUint32(r.bytes[4*i:], math.Float32bits(r.block[i]*l))
		binary.LittleEndian.PutUint32(r.bytes[4*i+4:], math.Float32bits(r.block[i+1]*rt))
	}
	r.pending = r.bytes
}

// Read fills p completely, running blocks as needed.
func (r *blockReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(r.pending) == 0 {
			r.next()
		}
		c := copy(p[n:], r.pending)
		r.pending = r.pending[c:]
		n += c
	}
	return n, nil
}
