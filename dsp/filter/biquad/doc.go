// Package biquad provides the biquad (second-order IIR) runtime used on the
// audio thread: DC removal ahead of the plugin stage and filter plugins.
//
// A [Section] implements Direct Form II Transposed processing for a single
// second-order section defined by [Coefficients]. Coefficient design lives
// in dsp/filter/design.
package biquad
