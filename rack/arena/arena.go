// Package arena implements the single pre-reserved memory region that backs
// every plugin instance.
//
// The region is split from both ends: Left and Both reservations grow from
// the start, Right reservations grow from the end. Each end holds at most
// one live region, so a mono plugin on one channel can be reclaimed without
// touching the other. There is no free list.
package arena

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/cwbudde/algo-rack/rack/channel"
)

// DefaultSize is the arena size of the reference hardware.
const DefaultSize = 112 << 10

const align = 8

var (
	// ErrOutOfArena is returned when the free gap between the two ends is
	// smaller than the requested size.
	ErrOutOfArena = errors.New("arena: out of memory")
	// ErrRegionInUse is returned when the end addressed by a mask already
	// holds a live region.
	ErrRegionInUse = errors.New("arena: region in use")
	// ErrBadMask is returned for masks other than Left, Right or Both.
	ErrBadMask = errors.New("arena: invalid channel mask")
)

// Handle identifies a reserved region by byte offset and size.
type Handle struct {
	Offset int
	Size   int
}

// End returns the first byte past the region.
func (h Handle) End() int { return h.Offset + h.Size }

// Arena is a fixed-size two-ended bump allocator. It is not safe for
// concurrent use.
type Arena struct {
	words []uint64
	size  int

	low   int          // bytes used from the start
	high  int          // bytes used from the end
	lowM  channel.Mask // owner of the low end, MaskNone when free
	highM channel.Mask // owner of the high end, MaskNone when free
}

// New reserves an arena of size bytes, rounded up to 8-byte alignment.
func New(size int) (*Arena, error) {
	if size <= 0 {
		return nil, fmt.Errorf("arena: size must be positive: %d", size)
	}
	n := roundUp(size)
	return &Arena{words: make([]uint64, n/align), size: n}, nil
}

// Reserve claims size bytes for mask. Left and Both take the low end,
// Right takes the high end. The region is zeroed.
func (a *Arena) Reserve(mask channel.Mask, size int) (Handle, error) {
	n, err := a.fit(mask, size)
	if err != nil {
		return Handle{}, err
	}

	var h Handle
	if mask == channel.MaskRight {
		a.high, a.highM = n, mask
		h = Handle{Offset: a.size - n, Size: n}
	} else {
		a.low, a.lowM = n, mask
		h = Handle{Offset: 0, Size: n}
	}
	clear(a.Bytes(h))
	return h, nil
}

// CanReserve reports the error Reserve(mask, size) would return after the
// regions held for the masks in release were freed. The arena itself is
// not modified.
func (a *Arena) CanReserve(mask channel.Mask, size int, release ...channel.Mask) error {
	b := *a
	for _, m := range release {
		if err := b.Release(m); err != nil {
			return err
		}
	}
	_, err := b.fit(mask, size)
	return err
}

// fit returns the aligned size of a reservation for mask, or why it
// cannot be made.
func (a *Arena) fit(mask channel.Mask, size int) (int, error) {
	if size < 0 {
		return 0, fmt.Errorf("arena: negative size %d", size)
	}

	switch mask {
	case channel.MaskLeft, channel.MaskBoth:
		if a.lowM != channel.MaskNone {
			return 0, fmt.Errorf("%w: low end held by %s", ErrRegionInUse, a.lowM)
		}
		if mask == channel.MaskBoth && a.highM != channel.MaskNone {
			return 0, fmt.Errorf("%w: high end held by %s", ErrRegionInUse, a.highM)
		}
	case channel.MaskRight:
		if a.highM != channel.MaskNone {
			return 0, fmt.Errorf("%w: high end held by %s", ErrRegionInUse, a.highM)
		}
		if a.lowM == channel.MaskBoth {
			return 0, fmt.Errorf("%w: low end held by %s", ErrRegionInUse, a.lowM)
		}
	default:
		return 0, fmt.Errorf("%w: %d", ErrBadMask, mask)
	}

	n := roundUp(size)
	if n > a.Remaining() {
		return 0, fmt.Errorf("%w: need %d, have %d", ErrOutOfArena, n, a.Remaining())
	}
	return n, nil
}

// Release reclaims the region held for mask. Releasing Both or Left frees
// the low end; releasing Right frees the high end. Releasing a free end is
// a no-op.
func (a *Arena) Release(mask channel.Mask) error {
	switch mask {
	case channel.MaskLeft, channel.MaskBoth:
		if a.lowM == mask {
			a.low = 0
			a.lowM = channel.MaskNone
		}
	case channel.MaskRight:
		if a.highM == mask {
			a.high = 0
			a.highM = channel.MaskNone
		}
	default:
		return fmt.Errorf("%w: %d", ErrBadMask, mask)
	}
	return nil
}

// ReleaseAll resets both ends to empty.
func (a *Arena) ReleaseAll() {
	a.low, a.high = 0, 0
	a.lowM, a.highM = channel.MaskNone, channel.MaskNone
}

// Size returns the total arena capacity in bytes.
func (a *Arena) Size() int { return a.size }

// Used returns the number of bytes held by live regions.
func (a *Arena) Used() int { return a.low + a.high }

// Remaining returns the free gap between the two ends.
func (a *Arena) Remaining() int { return a.size - a.low - a.high }

// Bytes returns a view of the region h. The view aliases arena memory and
// is only valid until the region is released.
func (a *Arena) Bytes(h Handle) []byte {
	if h.Size == 0 {
		return nil
	}
	a.check(h)
	p := unsafe.Pointer(&a.words[h.Offset/align])
	return unsafe.Slice((*byte)(p), h.Size)
}

// Float32s returns a float32 view of the region h.
func (a *Arena) Float32s(h Handle) []float32 {
	if h.Size == 0 {
		return nil
	}
	a.check(h)
	p := unsafe.Pointer(&a.words[h.Offset/align])
	return unsafe.Slice((*float32)(p), h.Size/4)
}

// Float64s returns a float64 view of the region h.
func (a *Arena) Float64s(h Handle) []float64 {
	if h.Size == 0 {
		return nil
	}
	a.check(h)
	p := unsafe.Pointer(&a.words[h.Offset/align])
	return unsafe.Slice((*float64)(p), h.Size/8)
}

// Complex128s returns a complex128 view of the region h. Sizes that are
// not a multiple of 16 drop the trailing 8 bytes.
func (a *Arena) Complex128s(h Handle) []complex128 {
	if h.Size < 16 {
		return nil
	}
	a.check(h)
	p := unsafe.Pointer(&a.words[h.Offset/align])
	return unsafe.Slice((*complex128)(p), h.Size/16)
}

func (a *Arena) check(h Handle) {
	if h.Offset < 0 || h.Offset%align != 0 || h.Size%align != 0 || h.End() > a.size {
		panic(fmt.Sprintf("arena: handle %+v outside arena of %d bytes", h, a.size))
	}
}

func roundUp(n int) int {
	return (n + align - 1) &^ (align - 1)
}
