package core

import "testing"

func TestDeinterleaveRoundTripIsExact(t *testing.T) {
	src := []float32{0.1, -0.2, 0.3, -0.4, 1.5, -1.5, 1e-7, 0}
	left := make([]float64, 4)
	right := make([]float64, 4)

	if n := Deinterleave(left, right, src); n != 4 {
		t.Fatalf("Deinterleave frames = %d, want 4", n)
	}

	dst := make([]float32, len(src))
	if n := Interleave(dst, left, right); n != 4 {
		t.Fatalf("Interleave frames = %d, want 4", n)
	}

	for i := range src {
		if dst[i] != src[i] {
			t.Fatalf("index %d: got %v, want %v", i, dst[i], src[i])
		}
	}
}

func TestDeinterleaveShortDestination(t *testing.T) {
	src := []float32{1, 2, 3, 4, 5, 6}
	left := make([]float64, 2)
	right := make([]float64, 3)

	if n := Deinterleave(left, right, src); n != 2 {
		t.Fatalf("frames = %d, want 2", n)
	}

	if left[1] != 3 || right[1] != 4 {
		t.Fatalf("unexpected split: %v %v", left, right)
	}
}

func TestPeakAbs(t *testing.T) {
	if got := PeakAbs([]float64{0.1, -0.7, 0.5}); got != 0.7 {
		t.Fatalf("PeakAbs = %v, want 0.7", got)
	}

	if got := PeakAbs(nil); got != 0 {
		t.Fatalf("PeakAbs(nil) = %v, want 0", got)
	}
}

func TestZero(t *testing.T) {
	buf := []float64{1, 2, 3}
	Zero(buf)

	for i, v := range buf {
		if v != 0 {
			t.Fatalf("index %d = %v, want 0", i, v)
		}
	}
}
