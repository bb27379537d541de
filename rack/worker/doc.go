// Package worker runs the audio pipeline against a device at the block
// rate.
//
// A Worker owns exactly one real-time goroutine. With the Pull strategy it
// locks that goroutine to an OS thread, raises its scheduling priority
// where the platform allows and loops ReadBuffer, Consume, WriteBuffer. With
// the Push strategy the device drives the loop from its own callback.
//
// Lifecycle:
//
//	Stopped -> Starting -> Running <-> Paused -> Stopping -> Stopped
//
// Pause only bypasses plugin dispatch; metering, gating and soft clip keep
// running so the output stays continuous.
package worker
