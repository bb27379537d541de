//go:build headless

package otodev

import (
	"io"
	"time"

	"github.com/cwbudde/algo-rack/dsp/core"
)

// backend discards output at the block rate.
type backend struct {
	stopc chan struct{}
	done  chan struct{}
}

func (b *backend) running() bool { return b.stopc != nil }

func (b *backend) start(f core.Format, _ int, r io.Reader) error {
	b.stopc = make(chan struct{})
	b.done = make(chan struct{})
	go func(stop <-chan struct{}, done chan<- struct{}) {
		defer close(done)
		t := time.NewTicker(f.Period())
		defer t.Stop()
		sink := make([]byte, 4*f.Samples())
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				_, _ = r.Read(sink)
			}
		}
	}(b.stopc, b.done)
	return nil
}

func (b *backend) stop() error {
	if b.stopc == nil {
		return nil
	}
	close(b.stopc)
	<-b.done
	b.stopc, b.done = nil, nil
	return nil
}
