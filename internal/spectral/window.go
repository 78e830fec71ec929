// SPDX-License-Identifier: MIT
package spectral

import (
	"fmt"

	"gonum.org/v1/gonum/dsp/window"
)

// Window is an immutable table of analysis/synthesis coefficients shared by
// the accumulator and the reconstructor.
type Window struct {
	coeffs     []float64
	sumSquares float64
}

// NewHannWindow builds a DFT-even (periodic) Hann table of the given size:
// w[0] == 0, w[i] == w[size-i] and the peak of 1.0 sits at size/2. gonum's
// window.Hann is the symmetric form, so it is evaluated over size+1 points
// and the closing zero is dropped.
//
// Only the first coefficient is zero; w[size-1] is small but positive. A
// table that is zero at both ends does not overlap-add to a constant, which
// this one does whenever at least MinOverlap frames cover each sample.
func NewHannWindow(size int) (*Window, error) {
	if size < MinFrameSize {
		return nil, fmt.Errorf("%w: %d", ErrFrameSize, size)
	}

	seq := make([]float64, size+1)
	for i := range seq {
		seq[i] = 1.0
	}
	window.Hann(seq)

	w := &Window{coeffs: seq[:size:size]}
	for _, c := range w.coeffs {
		w.sumSquares += c * c
	}
	return w, nil
}

// Len returns the number of coefficients.
func (w *Window) Len() int { return len(w.coeffs) }

// At returns coefficient i.
func (w *Window) At(i int) float64 { return w.coeffs[i] }

// Coefficients returns a copy of the table.
func (w *Window) Coefficients() []float64 {
	out := make([]float64, len(w.coeffs))
	copy(out, w.coeffs)
	return out
}

// OverlapGain is the sum of w² across every frame that covers one output
// sample when frames start hop samples apart.
func (w *Window) OverlapGain(hop int) float64 {
	if hop <= 0 {
		return 0
	}
	return w.sumSquares / float64(hop)
}
