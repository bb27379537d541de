package testutil

import (
	"math"
	"testing"
)

func TestGenerators(t *testing.T) {
	tests := []struct {
		name string
		got  []float64
		want []float64
	}{
		{name: "impulse", got: Impulse(4, 1), want: []float64{0, 1, 0, 0}},
		{name: "impulse outside", got: Impulse(3, 5), want: []float64{0, 0, 0}},
		{name: "dc", got: DC(-0.25, 3), want: []float64{-0.25, -0.25, -0.25}},
		{name: "sine quarter period", got: DeterministicSine(1, 4, 2, 4), want: []float64{0, 2, 0, -2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			RequireSliceNearlyEqual(t, tt.got, tt.want, 1e-12)
		})
	}
}

func TestDeterministicNoiseSeeded(t *testing.T) {
	a := DeterministicNoise(3, 0.5, 256)
	RequireSliceNearlyEqual(t, DeterministicNoise(3, 0.5, 256), a, 0)

	if d, _ := MaxAbsDiff(a, DeterministicNoise(4, 0.5, 256)); d == 0 {
		t.Fatal("different seeds produced the same block")
	}
	for i, v := range a {
		if math.Abs(v) > 0.5 {
			t.Fatalf("sample %d = %v exceeds amplitude", i, v)
		}
	}
}

func TestStereoLayout(t *testing.T) {
	l := []float64{1, 2, 3}
	r := []float64{-1, -2}

	block := Stereo(l, r)
	RequireBlockEqual(t, block, []float32{1, -1, 2, -2})

	gl, gr := SplitStereo(block)
	RequireSliceNearlyEqual(t, gl, l[:2], 0)
	RequireSliceNearlyEqual(t, gr, r, 0)
}
