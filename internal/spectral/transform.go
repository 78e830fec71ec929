// SPDX-License-Identifier: MIT
package spectral

import (
	"fmt"
	"math/cmplx"
	"strings"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Transform is the forward/inverse Fourier pair the processor runs once per
// hop and channel. Forward fills all N bins of dst (conjugate symmetric for
// real input). Inverse must treat src as read-only and return a normalised
// result, so that Inverse(Forward(x)) == x within rounding. Implementations
// pre-allocate their scratch space and must not allocate per call.
type Transform interface {
	Len() int
	Forward(dst []complex128, src []float64)
	Inverse(dst []float64, src []complex128)
}

// Transform names accepted by NewTransform.
const (
	TransformReal    = "real"
	TransformComplex = "complex"
)

// NewTransform returns the named transform for frames of size n.
func NewTransform(name string, n int) (Transform, error) {
	switch strings.ToLower(name) {
	case "", TransformReal:
		return NewRealFFT(n), nil
	case TransformComplex:
		return NewComplexFFT(n), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransform, name)
	}
}

// RealFFT runs gonum's real-input FFT. Only bins [0, N/2] are computed;
// Forward mirrors them into the upper half and Inverse reads only them.
type RealFFT struct {
	n    int
	fft  *fourier.FFT
	half []complex128
}

// NewRealFFT creates a real transform of length n.
func NewRealFFT(n int) *RealFFT {
	return &RealFFT{
		n:    n,
		fft:  fourier.NewFFT(n),
		half: make([]complex128, n/2+1),
	}
}

// Len returns the transform length.
func (t *RealFFT) Len() int { return t.n }

// Forward computes the N-bin spectrum of src.
func (t *RealFFT) Forward(dst []complex128, src []float64) {
	t.fft.Coefficients(t.half, src)
	copy(dst, t.half)
	for k := 1; k < t.n/2; k++ {
		dst[t.n-k] = cmplx.Conj(t.half[k])
	}
}

// Inverse reconstructs the real sequence from bins [0, N/2] of src.
func (t *RealFFT) Inverse(dst []float64, src []complex128) {
	copy(t.half, src[:t.n/2+1])
	t.fft.Sequence(dst, t.half)
	norm := 1 / float64(t.n)
	for i := range dst[:t.n] {
		dst[i] *= norm
	}
}

// ComplexFFT runs gonum's complex FFT over all N bins and keeps the real
// part of the inverse. It is slower than RealFFT and exists for backends
// and tests that want the full-spectrum path.
type ComplexFFT struct {
	n    int
	fft  *fourier.CmplxFFT
	work []complex128
	seq  []complex128
}

// NewComplexFFT creates a complex transform of length n.
func NewComplexFFT(n int) *ComplexFFT {
	return &ComplexFFT{
		n:    n,
		fft:  fourier.NewCmplxFFT(n),
		work: make([]complex128, n),
		seq:  make([]complex128, n),
	}
}

// Len returns the transform length.
func (t *ComplexFFT) Len() int { return t.n }

// Forward computes the N-bin spectrum of src.
func (t *ComplexFFT) Forward(dst []complex128, src []float64) {
	for i, v := range src[:t.n] {
		t.work[i] = complex(v, 0)
	}
	t.fft.Coefficients(dst, t.work)
}

// Inverse reconstructs the real part of the sequence described by src.
func (t *ComplexFFT) Inverse(dst []float64, src []complex128) {
	t.fft.Sequence(t.seq, src)
	norm := 1 / float64(t.n)
	for i, v := range t.seq {
		dst[i] = real(v) * norm
	}
}

// Compile-time checks for interface implementations.
var _ Transform = (*RealFFT)(nil)
var _ Transform = (*ComplexFFT)(nil)
