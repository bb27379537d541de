// Package pipeline implements the fixed per-block processing chain of the
// audio core.
//
// Consume runs, in order: DC removal, input metering, noise gate, plugin
// dispatch, output routing, soft clip and output metering. All state is
// owned by the audio goroutine; the only shared inputs are the atomic
// [Params] words, the [Dispatcher] and the [ControlSource]. Consume never
// fails and never allocates.
package pipeline
