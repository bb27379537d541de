// Package design provides biquad coefficient designers.
//
// The functions in this package produce coefficients consumable by
// dsp/filter/biquad for runtime processing: the RBJ lowpass behind the
// lowpass plugin and the first-order Butterworth high-pass that blocks DC
// on the rack input.
//
// Designers never return an error. Frequencies outside (0, Nyquist) or a
// non-positive sample rate yield zero coefficients, which silence the
// section instead of letting it blow up.
package design
