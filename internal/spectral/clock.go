// SPDX-License-Identifier: MIT
package spectral

import (
	"fmt"

	"specverb/pkg/bitint"
)

// FrameClock is the one ring cursor shared by every per-channel buffer in a
// processor. Channels never keep their own cursor, so they cannot drift
// apart; the clock only moves once all channels of a sample frame are in.
type FrameClock struct {
	size    int
	hop     int
	mask    int
	cursor  int // next ring cell to write (and to drain)
	pending int // sample frames pushed since the last hop boundary
}

// NewFrameClock validates the frame and hop sizes and returns a clock at
// position zero. The hop must divide the frame at least MinOverlap times.
func NewFrameClock(size, hop int) (*FrameClock, error) {
	if size < MinFrameSize || !bitint.IsPowerOfTwo(size) {
		return nil, fmt.Errorf("%w: %d", ErrFrameSize, size)
	}
	if hop <= 0 || size/hop < MinOverlap || !bitint.Divides(hop, size) {
		return nil, fmt.Errorf("%w: hop %d, frame %d", ErrHopSize, hop, size)
	}
	return &FrameClock{size: size, hop: hop, mask: size - 1}, nil
}

// Size returns the ring length N.
func (c *FrameClock) Size() int { return c.size }

// Hop returns the hop length H.
func (c *FrameClock) Hop() int { return c.hop }

// Cursor returns the current ring position. After an Advance that reported
// a hop boundary, Cursor is the index of the oldest retained sample.
func (c *FrameClock) Cursor() int { return c.cursor }

// Pending returns how many sample frames arrived since the last boundary.
func (c *FrameClock) Pending() int { return c.pending }

// Advance moves the cursor one cell and reports whether H sample frames
// have arrived since the previous boundary.
func (c *FrameClock) Advance() bool {
	c.cursor = (c.cursor + 1) & c.mask
	c.pending++
	if c.pending < c.hop {
		return false
	}
	c.pending = 0
	return true
}

// Reset rewinds the clock to position zero.
func (c *FrameClock) Reset() {
	c.cursor = 0
	c.pending = 0
}

// index maps a frame offset to a ring cell relative to the cursor.
func (c *FrameClock) index(offset int) int {
	return (c.cursor + offset) & c.mask
}
