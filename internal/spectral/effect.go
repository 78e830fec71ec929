// SPDX-License-Identifier: MIT
package spectral

import (
	"math"
	"math/cmplx"
	"time"
)

// Params is the per-block parameter snapshot the effect reads. The core never
// writes it; callers hand a fresh copy in through a ParamSource.
type Params struct {
	WetDry   float64 // 0 dry, 1 fully processed
	Time     float64 // decay time control, 0.1..10
	Density  float64
	Damping  float64 // high-bin attenuation
	Size     float64 // spectral spread
	LowBand  float64
	MidBand  float64
	HighBand float64
	Freeze   bool
}

// DefaultParams returns the plugin's factory settings.
func DefaultParams() Params {
	return Params{
		WetDry:   0.5,
		Time:     2.0,
		Density:  0.5,
		Damping:  0.5,
		Size:     0.5,
		LowBand:  1.0,
		MidBand:  1.0,
		HighBand: 1.0,
	}
}

// Stage mutates one full N-bin spectrum in place. Apply runs on the audio
// thread and must not allocate or block.
type Stage interface {
	Apply(frame []complex128, p Params)
}

// Band identifies one of the three gain regions of the spectrum.
type Band int

const (
	BandLow Band = iota
	BandMid
	BandHigh
)

func (b Band) String() string {
	switch b {
	case BandLow:
		return "low"
	case BandMid:
		return "mid"
	case BandHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Band edges as fractions of the N/2 usable bins.
const (
	LowCutoffFraction = 0.1
	MidCutoffFraction = 0.4
)

const (
	spreadThreshold  = 0.01
	maxSpread        = 10
	spreadGain       = 0.3
	dampingFloor     = 0.01
	densityThreshold = 0.01
	densityDepth     = 0.3
	densityRate      = 0.3
)

// BandForBin routes bin i of a bins-wide half spectrum.
func BandForBin(i, bins int) Band {
	switch {
	case float64(i) < float64(bins)*LowCutoffFraction:
		return BandLow
	case float64(i) < float64(bins)*MidCutoffFraction:
		return BandMid
	default:
		return BandHigh
	}
}

// Gain returns the gain p assigns to band b.
func (p Params) Gain(b Band) float64 {
	switch b {
	case BandLow:
		return p.LowBand
	case BandMid:
		return p.MidBand
	default:
		return p.HighBand
	}
}

// DecayFactor maps the time control to the per-frame decay multiplier.
func DecayFactor(t float64) float64 {
	return 1 - 1/(t*10+1)
}

// DampingFactor is the linear high-bin tilt for bin i, floored at 0.01.
func DampingFactor(damping float64, i, bins int) float64 {
	return math.Max(dampingFloor, 1-damping*float64(i)/float64(bins))
}

// DensityFactor is the time-varying per-bin modulation; it is 1 when the
// density control is effectively off.
func DensityFactor(density float64, i int, t float64) float64 {
	if density <= densityThreshold {
		return 1
	}
	return 1 - density*densityDepth*(0.5+0.5*math.Sin(float64(i)*densityRate+t))
}

// SpreadWidth returns how many upper neighbours each bin leaks into.
func SpreadWidth(size float64) int {
	if size <= spreadThreshold {
		return 0
	}
	return min(int(size*maxSpread), maxSpread)
}

// Effect is the spectral reverb stage: band gains, spread, decay, damping
// and density modulation over bins [1, N/2). DC and Nyquist are left alone
// and the upper half is rewritten as the conjugate mirror of the lower.
type Effect struct {
	elapsed func() float64
}

// EffectOption configures an Effect.
type EffectOption func(*Effect)

// WithElapsed replaces the wall clock that drives density modulation.
func WithElapsed(fn func() float64) EffectOption {
	return func(e *Effect) {
		e.elapsed = fn
	}
}

// NewEffect returns an Effect driven by time since construction unless an
// elapsed-time source is supplied.
func NewEffect(opts ...EffectOption) *Effect {
	start := time.Now()
	e := &Effect{
		elapsed: func() float64 { return time.Since(start).Seconds() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply implements Stage. A frozen block is passed through untouched; the
// processor holds the spectrum itself.
func (e *Effect) Apply(frame []complex128, p Params) {
	if p.Freeze {
		return
	}

	n := len(frame)
	bins := n / 2
	spread := SpreadWidth(p.Size)
	decay := DecayFactor(p.Time)
	t := 0.0
	if p.Density > densityThreshold {
		t = e.elapsed()
	}

	for i := 1; i < bins; i++ {
		// Spread reads frame[i] after earlier bins have leaked into it, so
		// the smear compounds upward within one frame.
		if spread > 0 && i+spread < bins {
			src := frame[i]
			for j := 1; j <= spread; j++ {
				w := float64(spread-j+1) / float64(spread+1) * spreadGain
				frame[i+j] += src * complex(w, 0)
			}
		}

		g := p.Gain(BandForBin(i, bins)) *
			decay *
			DampingFactor(p.Damping, i, bins) *
			DensityFactor(p.Density, i, t)

		frame[i] *= complex(g, 0)
		frame[n-i] = cmplx.Conj(frame[i])
	}
}

var _ Stage = (*Effect)(nil)
