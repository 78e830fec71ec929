// SPDX-License-Identifier: MIT
package spectral

import "fmt"

// Reconstructor holds one overlap-add output ring per channel, addressed by
// the same FrameClock as the Accumulator. Cells are only ever added into
// until Drain reads and zeroes them.
type Reconstructor struct {
	clock  *FrameClock
	window *Window
	scale  float64
	rings  [][]float64
}

// NewReconstructor allocates one ring per channel. The synthesis scale is
// the inverse of the window's overlap gain at the clock's hop, so that an
// untouched spectrum reconstructs its input with unity gain.
func NewReconstructor(clock *FrameClock, win *Window, channels int) (*Reconstructor, error) {
	if channels < 1 {
		return nil, fmt.Errorf("%w: %d", ErrChannelCount, channels)
	}
	if win.Len() != clock.Size() {
		return nil, fmt.Errorf("%w: window %d, frame %d", ErrWindowSize, win.Len(), clock.Size())
	}
	r := &Reconstructor{
		clock:  clock,
		window: win,
		scale:  1 / win.OverlapGain(clock.Hop()),
		rings:  make([][]float64, channels),
	}
	r.Reset()
	return r, nil
}

// Channels returns the number of rings.
func (r *Reconstructor) Channels() int { return len(r.rings) }

// Scale returns the normalisation applied to every synthesized sample.
func (r *Reconstructor) Scale() float64 { return r.scale }

// Accumulate re-windows the synthesized frame and adds sample i into the
// ring cell i positions past the cursor.
func (r *Reconstructor) Accumulate(channel int, frame []float64) {
	ring := r.rings[channel]
	coeffs := r.window.coeffs
	for i := range coeffs {
		ring[r.clock.index(i)] += frame[i] * coeffs[i] * r.scale
	}
}

// Drain returns the cell at the cursor and zeroes it so it can take the
// next overlapping frame.
func (r *Reconstructor) Drain(channel int) float64 {
	cell := &r.rings[channel][r.clock.cursor]
	v := *cell
	*cell = 0
	return v
}

// Reset zeroes every ring, allocating them again after Release.
func (r *Reconstructor) Reset() {
	for ch := range r.rings {
		if r.rings[ch] == nil {
			r.rings[ch] = make([]float64, r.clock.Size())
			continue
		}
		clear(r.rings[ch])
	}
}

// Release drops the ring storage. Reset must be called before the next
// Accumulate or Drain.
func (r *Reconstructor) Release() {
	for ch := range r.rings {
		r.rings[ch] = nil
	}
}
