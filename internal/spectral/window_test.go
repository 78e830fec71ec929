// SPDX-License-Identifier: MIT
package spectral

import (
	"errors"
	"math"
	"testing"
)

func TestHannWindowShape(t *testing.T) {
	for _, size := range []int{16, 256, 4096} {
		w, err := NewHannWindow(size)
		if err != nil {
			t.Fatalf("NewHannWindow(%d): %v", size, err)
		}
		if w.Len() != size {
			t.Fatalf("Len() = %d, want %d", w.Len(), size)
		}
		if w.At(0) != 0 {
			t.Errorf("size %d: w[0] = %g, want 0", size, w.At(0))
		}
		if last := w.At(size - 1); last <= 0 || math.Abs(last-w.At(1)) > 1e-12 {
			t.Errorf("size %d: w[N-1] = %g, want w[1] = %g", size, last, w.At(1))
		}
		if math.Abs(w.At(size/2)-1) > 1e-12 {
			t.Errorf("size %d: w[N/2] = %g, want 1", size, w.At(size/2))
		}
		for i := 1; i < size; i++ {
			if math.Abs(w.At(i)-w.At(size-i)) > 1e-12 {
				t.Fatalf("size %d: w[%d] = %g, w[%d] = %g", size, i, w.At(i), size-i, w.At(size-i))
			}
			if w.At(i) > w.At(size/2) {
				t.Fatalf("size %d: w[%d] exceeds the centre", size, i)
			}
		}
	}
}

func TestHannWindowOverlap(t *testing.T) {
	const size = 512
	hop := size / DefaultHopDivisor

	w, err := NewHannWindow(size)
	if err != nil {
		t.Fatal(err)
	}

	// Squared periodic Hann sums to 1.5 at every position under 75% overlap.
	for n := range hop {
		var sum float64
		for k := 0; k < size; k += hop {
			sum += w.At(n+k) * w.At(n+k)
		}
		if math.Abs(sum-1.5) > 1e-12 {
			t.Fatalf("overlap sum at %d = %.15f, want 1.5", n, sum)
		}
	}

	if got := w.OverlapGain(hop); math.Abs(got-1.5) > 1e-12 {
		t.Errorf("OverlapGain(%d) = %f, want 1.5", hop, got)
	}
	if got := w.OverlapGain(0); got != 0 {
		t.Errorf("OverlapGain(0) = %f, want 0", got)
	}
}

func TestHannWindowHalfOverlapRipples(t *testing.T) {
	const size = 512
	w, err := NewHannWindow(size)
	if err != nil {
		t.Fatal(err)
	}

	// With only two frames overlapping the squared sum swings between 0.5
	// and 1, so hop N/2 cannot reconstruct exactly.
	lo, hi := math.Inf(1), math.Inf(-1)
	for n := range size / 2 {
		sum := w.At(n)*w.At(n) + w.At(n+size/2)*w.At(n+size/2)
		lo, hi = math.Min(lo, sum), math.Max(hi, sum)
	}
	if math.Abs(lo-0.5) > 1e-12 || math.Abs(hi-1) > 1e-12 {
		t.Errorf("half overlap sum in [%f, %f], want [0.5, 1]", lo, hi)
	}
	if _, err := NewFrameClock(size, size/2); !errors.Is(err, ErrHopSize) {
		t.Errorf("NewFrameClock(%d, %d) error = %v, want ErrHopSize", size, size/2, err)
	}
}

func TestHannWindowCoefficientsCopy(t *testing.T) {
	w, err := NewHannWindow(16)
	if err != nil {
		t.Fatal(err)
	}
	c := w.Coefficients()
	c[4] = 42
	if w.At(4) == 42 {
		t.Errorf("Coefficients() returned the internal table")
	}
}

func TestHannWindowTooSmall(t *testing.T) {
	if _, err := NewHannWindow(8); !errors.Is(err, ErrFrameSize) {
		t.Errorf("NewHannWindow(8) error = %v, want ErrFrameSize", err)
	}
}
