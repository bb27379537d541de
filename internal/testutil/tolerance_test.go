package testutil

import (
	"math"
	"testing"
)

func TestMaxAbsDiff(t *testing.T) {
	d, err := MaxAbsDiff([]float64{0, 1, -2}, []float64{0.5, 1, -2.25})
	if err != nil {
		t.Fatal(err)
	}
	if d != 0.5 {
		t.Fatalf("MaxAbsDiff = %v, want 0.5", d)
	}

	if _, err := MaxAbsDiff([]float64{1}, nil); err == nil {
		t.Fatal("length mismatch must fail")
	}
}

func TestAssertionsAcceptValidInput(t *testing.T) {
	RequireSliceNearlyEqual(t, []float64{1, 2}, []float64{1.05, 2}, 0.1)
	RequireBlockEqual(t, []float32{0.5, -0.5}, []float32{0.5, -0.5})
	RequireFinite(t, []float64{0, math.MaxFloat64, -1})
	RequireBounded(t, []float32{1, -1, 0}, 1)
}
