// Package registry hosts plugin instances in arena memory and publishes
// them to the audio goroutine.
//
// Control-plane calls (SetPlugin, Replace, Clear, Reset and the parameter
// setters) are serialized by a bounded-wait mutex. The audio goroutine
// only calls Dispatch, which loads the current assignment through one
// atomic pointer and never blocks.
//
// An assignment is immutable once published. Activation builds and
// initializes the new instance first and then swaps the pointer. Removal
// swaps the pointer first, waits for the audio goroutine to leave any
// dispatch that may still see the old assignment, and only then tears the
// instance down and reclaims its arena region.
package registry
