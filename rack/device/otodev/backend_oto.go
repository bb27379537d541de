//go:build !headless

package otodev

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/cwbudde/algo-rack/dsp/core"
)

// oto allows one context per process.
var (
	contextOnce sync.Once
	otoContext  *oto.Context
	contextErr  error
)

func sharedContext(f core.Format, bufferBlocks int) (*oto.Context, error) {
	contextOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   int(f.SampleRate),
			ChannelCount: 2,
			Format:       oto.FormatFloat32LE,
			BufferSize:   time.Duration(bufferBlocks) * f.Period(),
		}
		var ready chan struct{}
		otoContext, ready, contextErr = oto.NewContext(op)
		if contextErr == nil {
			<-ready
		}
	})
	if contextErr != nil {
		return nil, fmt.Errorf("otodev: %w", contextErr)
	}
	return otoContext, nil
}

type backend struct {
	player *oto.Player
}

func (b *backend) running() bool { return b.player != nil }

func (b *backend) start(f core.Format, bufferBlocks int, r io.Reader) error {
	ctx, err := sharedContext(f, bufferBlocks)
	if err != nil {
		return err
	}
	b.player = ctx.NewPlayer(r)
	b.player.Play()
	return nil
}

func (b *backend) stop() error {
	if b.player == nil {
		return nil
	}
	p := b.player
	b.player = nil
	p.Pause()
	if err := p.Close(); err != nil {
		return fmt.Errorf("otodev: close player: %w", err)
	}
	return nil
}
