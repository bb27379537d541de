// Package lock holds the concurrency primitives shared by the control plane
// and the audio worker.
//
// The control plane uses [Mutex] (bounded-wait acquisition) and [Queue]
// (serialized operations). The real-time goroutine only touches the
// lock-free types: [Ring] for handing values to the control plane and
// [Epoch] for announcing when it is inside a dispatch.
package lock
