// SPDX-License-Identifier: MIT
package spectral

import "fmt"

// Accumulator holds one circular input ring per channel. Samples are
// written at the shared FrameClock cursor; pushing the last channel of a
// sample frame advances the clock.
type Accumulator struct {
	clock  *FrameClock
	window *Window
	rings  [][]float64
	last   int
}

// NewAccumulator allocates one ring of clock.Size() samples per channel.
func NewAccumulator(clock *FrameClock, win *Window, channels int) (*Accumulator, error) {
	if channels < 1 {
		return nil, fmt.Errorf("%w: %d", ErrChannelCount, channels)
	}
	if win.Len() != clock.Size() {
		return nil, fmt.Errorf("%w: window %d, frame %d", ErrWindowSize, win.Len(), clock.Size())
	}
	a := &Accumulator{
		clock:  clock,
		window: win,
		rings:  make([][]float64, channels),
		last:   channels - 1,
	}
	a.Reset()
	return a, nil
}

// Channels returns the number of rings.
func (a *Accumulator) Channels() int { return len(a.rings) }

// Push stores sample for channel at the cursor. Channels must be pushed in
// order 0..Channels()-1 for each sample frame. The push of the last channel
// advances the clock and returns true when a new frame is ready.
func (a *Accumulator) Push(channel int, sample float64) bool {
	a.rings[channel][a.clock.cursor] = sample
	if channel != a.last {
		return false
	}
	return a.clock.Advance()
}

// Extract copies the N retained samples of channel into dst, oldest first,
// multiplying sample i by window coefficient i. dst must hold N values.
func (a *Accumulator) Extract(channel int, dst []float64) {
	ring := a.rings[channel]
	coeffs := a.window.coeffs
	for i := range coeffs {
		dst[i] = ring[a.clock.index(i)] * coeffs[i]
	}
}

// Reset zeroes every ring, allocating them again after Release.
func (a *Accumulator) Reset() {
	for ch := range a.rings {
		if a.rings[ch] == nil {
			a.rings[ch] = make([]float64, a.clock.Size())
			continue
		}
		clear(a.rings[ch])
	}
}

// Release drops the ring storage. Reset must be called before the next Push.
func (a *Accumulator) Release() {
	for ch := range a.rings {
		a.rings[ch] = nil
	}
}
