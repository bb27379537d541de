package lock

import (
	"runtime"
	"sync/atomic"
	"time"
)

// Epoch lets a writer wait until a single reader has left the critical
// section it may have entered before the writer published new state.
//
// The reader brackets its section with Enter and Exit. The counter is odd
// while the reader is inside. Neither call blocks or allocates.
type Epoch struct {
	seq atomic.Uint64
}

// Enter marks the start of a read-side section.
func (e *Epoch) Enter() { e.seq.Add(1) }

// Exit marks the end of a read-side section.
func (e *Epoch) Exit() { e.seq.Add(1) }

// Active reports whether the reader is currently inside a section.
func (e *Epoch) Active() bool { return e.seq.Load()&1 == 1 }

// Wait blocks until any section that was in progress when Wait was called
// has finished, or until timeout elapses. It returns false on timeout.
// Sections entered after the call are not waited for.
func (e *Epoch) Wait(timeout time.Duration) bool {
	start := e.seq.Load()
	if start&1 == 0 {
		return true
	}
	deadline := time.Now().Add(timeout)
	for spins := 0; ; spins++ {
		if e.seq.Load() != start {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		if spins < 64 {
			runtime.Gosched()
		} else {
			time.Sleep(50 * time.Microsecond)
		}
	}
}
