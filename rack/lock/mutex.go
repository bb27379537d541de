package lock

import (
	"context"
	"sync"
	"time"
)

// Mutex is a mutual exclusion lock whose acquisition can be bounded by a
// timeout or a context. The zero value is an unlocked mutex.
//
// A Mutex must not be copied after first use.
type Mutex struct {
	once sync.Once
	sem  chan struct{}
}

func (m *Mutex) init() {
	m.once.Do(func() { m.sem = make(chan struct{}, 1) })
}

// Lock blocks until the mutex is acquired.
func (m *Mutex) Lock() {
	m.init()
	m.sem <- struct{}{}
}

// TryLock acquires the mutex only if it is free.
func (m *Mutex) TryLock() bool {
	m.init()
	select {
	case m.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

// TryLockTimeout waits at most d for the mutex. A non-positive d behaves
// like TryLock.
func (m *Mutex) TryLockTimeout(d time.Duration) bool {
	if d <= 0 {
		return m.TryLock()
	}
	m.init()
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case m.sem <- struct{}{}:
		return true
	case <-timer.C:
		return false
	}
}

// LockContext waits for the mutex until ctx is done.
func (m *Mutex) LockContext(ctx context.Context) error {
	m.init()
	select {
	case m.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unlock releases the mutex. Unlocking an unlocked mutex panics.
func (m *Mutex) Unlock() {
	m.init()
	select {
	case <-m.sem:
	default:
		panic("lock: unlock of unlocked mutex")
	}
}

// Guard acquires m within d and returns the matching release function.
// When the wait times out ok is false and unlock is a no-op.
//
//	unlock, ok := mu.Guard(50 * time.Millisecond)
//	if !ok {
//		return ErrLockTimeout
//	}
//	defer unlock()
func (m *Mutex) Guard(d time.Duration) (unlock func(), ok bool) {
	if !m.TryLockTimeout(d) {
		return func() {}, false
	}
	var once sync.Once
	return func() { once.Do(m.Unlock) }, true
}
