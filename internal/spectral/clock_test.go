// SPDX-License-Identifier: MIT
package spectral

import (
	"errors"
	"math"
	"testing"
)

func TestNewFrameClockValidation(t *testing.T) {
	tests := []struct {
		name string
		size int
		hop  int
		want error
	}{
		{"Valid", 64, 16, nil},
		{"Eighth Hop", 64, 8, nil},
		{"Too Small", 8, 2, ErrFrameSize},
		{"Not Power Of Two", 100, 25, ErrFrameSize},
		{"Hop Equals Size", 64, 64, ErrHopSize},
		{"Hop Larger", 64, 128, ErrHopSize},
		{"Hop Not Divisor", 64, 24, ErrHopSize},
		{"Zero Hop", 64, 0, ErrHopSize},
		{"Half Overlap", 64, 32, ErrHopSize},
		{"Two Hops Short", 16, 8, ErrHopSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFrameClock(tt.size, tt.hop)
			if !errors.Is(err, tt.want) {
				t.Errorf("NewFrameClock(%d, %d) error = %v, want %v", tt.size, tt.hop, err, tt.want)
			}
		})
	}
}

func TestFrameClockAdvance(t *testing.T) {
	c, err := NewFrameClock(16, 4)
	if err != nil {
		t.Fatal(err)
	}

	for step := 1; step <= 40; step++ {
		ready := c.Advance()
		if want := step%4 == 0; ready != want {
			t.Fatalf("step %d: Advance() = %v, want %v", step, ready, want)
		}
		if c.Cursor() != step%16 {
			t.Fatalf("step %d: Cursor() = %d, want %d", step, c.Cursor(), step%16)
		}
		if c.Pending() != step%4 {
			t.Fatalf("step %d: Pending() = %d, want %d", step, c.Pending(), step%4)
		}
	}

	c.Reset()
	if c.Cursor() != 0 || c.Pending() != 0 {
		t.Errorf("Reset() left cursor %d, pending %d", c.Cursor(), c.Pending())
	}
}

func newTestPipeline(t *testing.T, size, hop, channels int) (*FrameClock, *Window, *Accumulator, *Reconstructor) {
	t.Helper()

	clock, err := NewFrameClock(size, hop)
	if err != nil {
		t.Fatal(err)
	}
	win, err := NewHannWindow(size)
	if err != nil {
		t.Fatal(err)
	}
	acc, err := NewAccumulator(clock, win, channels)
	if err != nil {
		t.Fatal(err)
	}
	rec, err := NewReconstructor(clock, win, channels)
	if err != nil {
		t.Fatal(err)
	}
	return clock, win, acc, rec
}

func TestAccumulatorPushAndExtract(t *testing.T) {
	const size, hop = 16, 4
	_, win, acc, _ := newTestPipeline(t, size, hop, 2)

	// Channel 1 carries the negated sample index; only its push may report
	// a ready frame.
	for s := range 3 * size {
		if acc.Push(0, float64(s)) {
			t.Fatalf("sample %d: channel 0 push reported a frame", s)
		}
		ready := acc.Push(1, -float64(s))
		if want := (s+1)%hop == 0; ready != want {
			t.Fatalf("sample %d: Push() = %v, want %v", s, ready, want)
		}
	}

	// The last 16 samples pushed were 32..47, oldest first.
	frame := make([]float64, size)
	acc.Extract(0, frame)
	for i, v := range frame {
		want := float64(2*size+i) * win.At(i)
		if v != want {
			t.Errorf("ch0 frame[%d] = %g, want %g", i, v, want)
		}
	}
	acc.Extract(1, frame)
	for i, v := range frame {
		want := -float64(2*size+i) * win.At(i)
		if v != want {
			t.Errorf("ch1 frame[%d] = %g, want %g", i, v, want)
		}
	}

	acc.Reset()
	acc.Extract(0, frame)
	for i, v := range frame {
		if v != 0 {
			t.Fatalf("frame[%d] = %g after Reset, want 0", i, v)
		}
	}
}

func TestReconstructorAccumulateDrain(t *testing.T) {
	const size, hop = 16, 4
	clock, win, _, rec := newTestPipeline(t, size, hop, 1)

	if math.Abs(rec.Scale()-1/1.5) > 1e-12 {
		t.Fatalf("Scale() = %f, want %f", rec.Scale(), 1/1.5)
	}

	ones := make([]float64, size)
	for i := range ones {
		ones[i] = 1
	}

	// Overlap-add a constant frame at every hop boundary; once four frames
	// overlap each drained cell sums to exactly one.
	for s := range 4 * size {
		out := rec.Drain(0)
		if s >= size {
			if math.Abs(out-1) > 1e-12 {
				t.Fatalf("sample %d: Drain() = %.15f, want 1", s, out)
			}
		}
		if clock.Advance() {
			rec.Accumulate(0, ones)
		}
	}

	// Drain zeroes the cell it reads.
	clock.Reset()
	rec.Reset()
	rec.Accumulate(0, ones)
	if got := rec.Drain(0); got != win.At(0)*rec.Scale() {
		t.Errorf("Drain() = %g, want %g", got, win.At(0)*rec.Scale())
	}
	clock.Advance()
	if got := rec.Drain(0); got != win.At(1)*rec.Scale() {
		t.Errorf("Drain() = %g, want %g", got, win.At(1)*rec.Scale())
	}
	for range size {
		clock.Advance()
	}
	if got := rec.Drain(0); got != 0 {
		t.Errorf("drained cell read back %g, want 0", got)
	}
}

func TestPipelineChannelChecks(t *testing.T) {
	clock, err := NewFrameClock(32, 8)
	if err != nil {
		t.Fatal(err)
	}
	win, err := NewHannWindow(32)
	if err != nil {
		t.Fatal(err)
	}
	other, err := NewHannWindow(64)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := NewAccumulator(clock, win, 0); !errors.Is(err, ErrChannelCount) {
		t.Errorf("NewAccumulator(0 channels) error = %v, want ErrChannelCount", err)
	}
	if _, err := NewReconstructor(clock, other, 1); !errors.Is(err, ErrWindowSize) {
		t.Errorf("NewReconstructor(wrong window) error = %v, want ErrWindowSize", err)
	}

	acc, err := NewAccumulator(clock, win, 2)
	if err != nil {
		t.Fatal(err)
	}
	rec, err := NewReconstructor(clock, win, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := checkPipeline(acc, rec); !errors.Is(err, ErrChannelMismatch) {
		t.Errorf("checkPipeline() error = %v, want ErrChannelMismatch", err)
	}
}
