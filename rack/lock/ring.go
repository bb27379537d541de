package lock

import "sync/atomic"

// Ring is a bounded single-producer single-consumer queue. One goroutine
// may push and one other goroutine may pop concurrently without locks.
// Capacity is rounded up to a power of two.
type Ring[T any] struct {
	buf  []T
	mask uint64

	head    atomic.Uint64 // next slot to pop
	tail    atomic.Uint64 // next slot to push
	dropped atomic.Uint64
}

// NewRing creates a ring holding at least capacity elements (minimum 2).
func NewRing[T any](capacity int) *Ring[T] {
	n := 2
	for n < capacity {
		n <<= 1
	}
	return &Ring[T]{buf: make([]T, n), mask: uint64(n - 1)}
}

// TryPush appends v. It never blocks; when the ring is full the value is
// dropped, counted and false is returned.
func (r *Ring[T]) TryPush(v T) bool {
	tail := r.tail.Load()
	if tail-r.head.Load() == uint64(len(r.buf)) {
		r.dropped.Add(1)
		return false
	}
	r.buf[tail&r.mask] = v
	r.tail.Store(tail + 1)
	return true
}

// TryPop removes the oldest value.
func (r *Ring[T]) TryPop() (T, bool) {
	var zero T
	head := r.head.Load()
	if head == r.tail.Load() {
		return zero, false
	}
	v := r.buf[head&r.mask]
	r.buf[head&r.mask] = zero
	r.head.Store(head + 1)
	return v, true
}

// Drain pops every available value and returns the newest one.
func (r *Ring[T]) Drain() (latest T, n int) {
	for {
		v, ok := r.TryPop()
		if !ok {
			return latest, n
		}
		latest = v
		n++
	}
}

// Len returns the number of buffered values.
func (r *Ring[T]) Len() int {
	return int(r.tail.Load() - r.head.Load())
}

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int { return len(r.buf) }

// Dropped returns the number of values rejected because the ring was full.
func (r *Ring[T]) Dropped() uint64 { return r.dropped.Load() }
